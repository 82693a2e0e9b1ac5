package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/JonMunkholm/kobosync/internal/core"
	"github.com/JonMunkholm/kobosync/internal/web"
)

// Serve runs the HTTP server and, when enabled, the scheduled incremental
// sync until ctx is cancelled, then shuts both down within
// SERVER_SHUTDOWN_TIMEOUT.
func (a *App) Serve(ctx context.Context) error {
	cfg := a.Config
	server := web.NewServer(a.Service, cfg)

	jobCtx, cancelJobs := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelJobs()

	var jobs sync.WaitGroup
	if cfg.Sync.ScheduleEnabled {
		jobs.Add(1)
		go func() {
			defer jobs.Done()
			a.Service.StartSyncScheduler(jobCtx, core.SchedulerConfig{
				Interval:   cfg.Sync.Interval,
				RunOnStart: cfg.Sync.RunOnStart,
			})
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		cancelJobs()
		jobs.Wait()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err

	case <-ctx.Done():
		slog.Info("shutting down...")
	}

	// A pass in flight is cancelled with the jobs context and rolls back.
	cancelJobs()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		return err
	}
	jobs.Wait()

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("server stopped")
	return nil
}
