package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"kontext/apps/processor/internal/app"
	"kontext/apps/processor/internal/config"
	"kontext/apps/processor/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		slog.Error("processor exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	a, err := app.New(cfg, deps, logger)
	if err != nil {
		return err
	}

	logger.Info("processor starting", "transport", cfg.Transport, "concurrency", cfg.WorkerConcurrency)
	return a.Run(ctx)
}
