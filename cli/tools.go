package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewToolsCmd creates the "tools" subcommand: spawn the configured
// servers and list every discovered tool.
func NewToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List tools advertised by the configured servers",
		RunE:  runTools,
	}

	cmd.Flags().String("config", "", "Config file path")
	cmd.Flags().String("format", "text", "Output format: text | json")

	return cmd
}

func runTools(cmd *cobra.Command, args []string) error {
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

	format, _ := cmd.Flags().GetString("format")
	out := cmd.OutOrStdout()

	if format == "json" {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(reg.Tools())
	}

	w := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TOOL\tDESCRIPTION")
	for _, tool := range reg.Tools() {
		fmt.Fprintf(w, "%s\t%s\n", tool.Name, tool.Description)
	}
	return w.Flush()
}
