package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/traceworks/boardpilot/cli"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "boardpilot",
	Short: "AI design assistant for KiCad projects",
	Long:  "BoardPilot — chat with a local model about your board, backed by component, pricing, and design-analysis tool servers.",
	// SilenceUsage prevents printing usage on every error
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "", false, "Enable verbose/debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "", false, "Suppress all output except errors")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("boardpilot version %s\n", version))

	rootCmd.AddCommand(cli.NewChatCmd())
	rootCmd.AddCommand(cli.NewToolsCmd())
	rootCmd.AddCommand(cli.NewCallCmd())
	rootCmd.AddCommand(cli.NewServersCmd())
}
