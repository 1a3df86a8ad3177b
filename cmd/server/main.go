package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ratefeed/internal/app"
	"ratefeed/internal/config"
	"ratefeed/internal/logging"
	"ratefeed/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := logging.New(logging.Config{
		Name:          "ratefeed",
		Debug:         cfg.Server.Debug,
		JSONLogFormat: cfg.Server.LogJSON,
	})

	tel, err := telemetry.Setup("ratefeed")
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	a, err := app.New(cfg, tel, logger)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("ratefeed starting", "port", cfg.Server.Port, "debug", cfg.Server.Debug,
		"interval", cfg.BroadcastInterval(), "pairs", cfg.Server.TrackedPairs)
	return a.Run(ctx)
}
