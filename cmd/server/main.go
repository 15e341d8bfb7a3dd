package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sevigo/metroid/internal/subscriber"
	"github.com/sevigo/metroid/internal/wire"
)

func main() {
	if err := run(); err != nil {
		var ended *subscriber.RunnerEndedError
		if errors.As(err, &ended) {
			slog.Error("subscription ended, exiting so the process can be restarted",
				"topic", ended.TopicName,
				"subscription", ended.SubscriptionName,
				"error", err)
		} else {
			slog.Error("application failed to run", "error", err)
		}
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := wire.InitializeApp(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer cleanup()

	slog.Info("starting metroid worker")
	runErr := app.Run(ctx)
	if ctx.Err() != nil {
		slog.Info("received shutdown signal")
	}

	if err := app.Stop(); err != nil {
		slog.Error("failed to stop application", "error", err)
		if runErr == nil {
			return fmt.Errorf("failed to stop application: %w", err)
		}
	}
	return runErr
}
