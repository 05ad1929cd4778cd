// Command boardpilot-pricing serves the distributor-pricing tools over
// stdio. With NEXAR_TOKEN set, part search goes to the live Nexar API;
// otherwise deterministic demo data is served.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/traceworks/boardpilot/config"
	"github.com/traceworks/boardpilot/pricing"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	var provider pricing.Provider
	if token := os.Getenv(config.EnvNexarToken); token != "" {
		nexar, err := pricing.NewNexarProvider(pricing.NexarConfig{Token: token})
		if err != nil {
			return err
		}
		provider = nexar
		logger.Info("live pricing enabled")
	} else {
		provider = pricing.NewDemoProvider()
		logger.Info("demo pricing mode", "hint", "set NEXAR_TOKEN for live distributor data")
	}

	server, err := pricing.NewServer(provider, logger)
	if err != nil {
		return err
	}
	return server.Run(ctx)
}
