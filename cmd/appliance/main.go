package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"audioassistant/internal/app"
	"audioassistant/internal/config"
)

func main() {
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	slog.SetDefault(slog.New(jsonHandler))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	application, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("build application", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	if result, err := application.Store.Sweep(); err != nil {
		slog.Error("startup garbage collection failed", "error", err)
	} else {
		slog.Info("startup garbage collection complete",
			"items", result.ItemsDeleted, "extracts", result.ExtractsDeleted, "topics", result.TopicsDeleted)
	}

	// The Input Dispatcher calls LoadGlobalTopics itself once headphones are
	// present (spec §4.6's startup gate); no separate call is needed here.
	errs := make(chan error, 2)
	go func() { errs <- application.Dispatcher.Run(ctx) }()
	go func() { errs <- application.Tracker.Run(ctx) }()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errs:
		if err != nil {
			slog.Error("background task failed", "error", err)
		}
		cancel()
	}
}
