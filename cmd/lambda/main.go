package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"kontext/apps/processor/internal/app"
	"kontext/apps/processor/internal/config"
	"kontext/apps/processor/internal/logger"
)

// Triggered deployment: the host delivers SQS batches and redelivers the
// records reported as batch item failures.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(log)

	deps, err := app.Bootstrap(context.Background(), cfg)
	if err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}

	a, err := app.New(cfg, deps, log)
	if err != nil {
		slog.Error("failed to build processor", "error", err)
		os.Exit(1)
	}

	lambda.Start(a.Processor.HandleSQSEvent)
}
