package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"mod-gobot/internal/app"
	"mod-gobot/internal/cli"
	"mod-gobot/internal/config"
	"mod-gobot/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := storage.New(cfg.StoragePath)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application := app.New(cfg, store)
	return cli.NewRootCommand(cfg, store, application).ExecuteContext(ctx)
}
