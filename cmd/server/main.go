package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/kobosync/internal/app"
	"github.com/JonMunkholm/kobosync/internal/config"
	"github.com/JonMunkholm/kobosync/internal/logging"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.Service.Ping(ctx); err != nil {
		slog.Error("failed to ping store", "error", err)
		a.Close()
		os.Exit(1)
	}

	slog.Info("server starting",
		"addr", cfg.Server.Addr(),
		"store", cfg.Store.Driver,
		"schedule_enabled", cfg.Sync.ScheduleEnabled,
		"sync_interval", cfg.Sync.Interval.String(),
	)
	if err := a.Serve(ctx); err != nil {
		slog.Error("server stopped", "error", err)
		a.Close()
		os.Exit(1)
	}
}
