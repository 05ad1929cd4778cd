package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/traceworks/boardpilot/registry"
)

// NewCallCmd creates the "call" subcommand: a one-shot tool invocation.
func NewCallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call <tool>",
		Short: "Invoke a single tool and print its result",
		Args:  cobra.ExactArgs(1),
		RunE:  runCall,
	}

	cmd.Flags().String("config", "", "Config file path")
	cmd.Flags().String("args", "{}", "Tool arguments as a JSON object")
	cmd.Flags().Bool("raw", false, "Print the raw result without indentation")

	return cmd
}

func runCall(cmd *cobra.Command, args []string) error {
	toolName := args[0]

	rawArgs, _ := cmd.Flags().GetString("args")
	var arguments map[string]any
	if err := json.Unmarshal([]byte(rawArgs), &arguments); err != nil {
		return exitError(exitInputParse, "parsing --args: %v", err)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd)

	reg, cleanup, err := connectServers(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := reg.Call(cmd.Context(), toolName, arguments)
	if err != nil {
		var notFound *registry.NotFoundError
		if errors.As(err, &notFound) {
			return exitError(exitInputParse, "unknown tool %q; run 'boardpilot tools' to list them", toolName)
		}
		return exitError(exitRuntime, "%v", err)
	}

	out := cmd.OutOrStdout()
	if raw, _ := cmd.Flags().GetBool("raw"); raw {
		fmt.Fprintln(out, string(result))
		return nil
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, result, "", "  "); err != nil {
		fmt.Fprintln(out, string(result))
		return nil
	}
	fmt.Fprintln(out, pretty.String())
	return nil
}
