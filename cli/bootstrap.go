// Package cli implements the boardpilot command surface: an interactive
// design chat, tool discovery and invocation, and server health
// inspection. Commands spawn the configured tool servers as stdio
// subprocesses and route calls through the registry.
package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	otelapi "go.opentelemetry.io/otel"

	"github.com/traceworks/boardpilot/config"
	"github.com/traceworks/boardpilot/mcp"
	"github.com/traceworks/boardpilot/otel"
	"github.com/traceworks/boardpilot/registry"
)

func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	if quiet, _ := cmd.Root().PersistentFlags().GetBool("quiet"); quiet {
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	resolved, found, err := config.Discover(path)
	if err != nil {
		return config.Config{}, exitError(exitConfig, "%v", err)
	}
	if !found {
		return config.FromEnv(), nil
	}
	cfg, err := config.Load(resolved)
	if err != nil {
		return config.Config{}, exitError(exitConfig, "%v", err)
	}
	return cfg, nil
}

// connectServers spawns every configured server, initializes the MCP
// handshake, and registers the advertised tools. The returned cleanup
// closes every connection; it is safe to call after partial failure.
func connectServers(ctx context.Context, cfg config.Config, logger *slog.Logger) (*registry.Registry, func(), error) {
	reg := registry.New(logger)
	cleanup := func() { reg.UnregisterAll(context.Background()) }

	shutdownTelemetry, err := otel.Setup(ctx, otel.SetupConfig{Endpoint: cfg.Telemetry.Endpoint})
	if err != nil {
		return nil, nil, exitError(exitRuntime, "telemetry setup: %v", err)
	}
	observer, err := otel.NewToolObserver(
		otelapi.GetMeterProvider().Meter("boardpilot/tool"),
		otelapi.GetTracerProvider().Tracer("boardpilot/tool"),
	)
	if err != nil {
		return nil, nil, exitError(exitRuntime, "telemetry observer: %v", err)
	}
	reg.SetObserver(func(tool, server string, d time.Duration, callErr error) {
		observer.ObserveCall(otel.ToolCallObservation{Tool: tool, Server: server, Duration: d, Err: callErr})
	})

	full := func() {
		cleanup()
		_ = shutdownTelemetry(context.Background())
	}

	for _, server := range cfg.Servers {
		dialer := func(ctx context.Context) (mcp.Transport, error) {
			return mcp.NewStdioTransport(ctx, mcp.StdioTransportConfig{
				Command: server.Command,
				Args:    server.Args,
				Env:     server.Env,
				Logger:  logger,
			})
		}
		transport, err := mcp.NewReconnectingTransport(ctx, dialer, mcp.ReconnectConfig{
			MaxAttempts: cfg.Restart.MaxAttempts,
			BaseBackoff: cfg.Restart.BackoffDuration(),
			Logger:      logger.With("server", server.Name),
		})
		if err != nil {
			full()
			return nil, nil, exitError(exitRuntime, "spawning %s: %v", server.Name, err)
		}

		client := mcp.NewClient(transport, mcp.Options{})
		if _, err := client.Initialize(ctx); err != nil {
			_ = client.Close(context.Background())
			full()
			return nil, nil, exitError(exitRuntime, "initializing %s: %v", server.Name, err)
		}
		if err := reg.Register(ctx, server.Name, client); err != nil {
			_ = client.Close(context.Background())
			full()
			return nil, nil, exitError(exitRuntime, "registering %s: %v", server.Name, err)
		}
	}
	return reg, full, nil
}
