// Command boardpilot-catalog serves the component-database tools over
// stdio. With --db it backs the catalog with SQLite, seeding the demo
// parts on first run; otherwise it serves the in-memory demo catalog.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/traceworks/boardpilot/catalog"
)

func main() {
	dbPath := flag.String("db", "", "SQLite database path (empty for in-memory demo data)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *dbPath, logger); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, dbPath string, logger *slog.Logger) error {
	var provider catalog.Provider
	if dbPath != "" {
		sqlite, err := catalog.NewSQLiteProvider(dbPath)
		if err != nil {
			return fmt.Errorf("opening catalog database: %w", err)
		}
		defer sqlite.Close()
		if err := sqlite.Seed(ctx, catalog.DemoParts()); err != nil {
			return fmt.Errorf("seeding catalog database: %w", err)
		}
		provider = sqlite
	} else {
		provider = catalog.NewStaticProvider(nil)
	}

	server, err := catalog.NewServer(provider, logger)
	if err != nil {
		return err
	}
	return server.Run(ctx)
}
