package cli

import (
	"fmt"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/traceworks/boardpilot/health"
)

// NewServersCmd creates the "servers" subcommand: a one-shot health
// snapshot of every configured server.
func NewServersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "servers",
		Short: "Probe the configured servers and report liveness",
		RunE:  runServers,
	}

	cmd.Flags().String("config", "", "Config file path")

	return cmd
}

func runServers(cmd *cobra.Command, args []string) error {
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

	scheduler, err := health.NewScheduler(health.Config{
		Registry: reg,
		Logger:   logger,
		Schedule: cfg.Health.Schedule,
	})
	if err != nil {
		return exitError(exitRuntime, "%v", err)
	}

	events := scheduler.Probe(cmd.Context())

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SERVER\tSTATUS\tTOOLS\tLATENCY")
	unhealthy := 0
	for _, event := range events {
		status := "up"
		if !event.Healthy {
			status = fmt.Sprintf("down (%v)", event.Err)
			unhealthy++
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", event.Server, status, event.ToolCount, event.Latency.Round(time.Millisecond))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if unhealthy > 0 {
		return exitError(exitRuntime, "%d of %d servers unhealthy", unhealthy, len(events))
	}
	return nil
}

// logHealthEvent returns a probe handler that surfaces liveness in the
// session log while a long-running command is up.
func logHealthEvent(logger *slog.Logger) health.Handler {
	return func(event health.Event) {
		if event.Healthy {
			logger.Debug("server probe ok",
				"server", event.Server,
				"tools", event.ToolCount,
				"latency", event.Latency,
			)
			return
		}
		logger.Warn("server probe failed",
			"server", event.Server,
			"consecutive_failures", event.ConsecutiveFailures,
			"error", event.Err,
		)
	}
}
