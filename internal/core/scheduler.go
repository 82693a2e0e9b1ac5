package core

// scheduler.go runs the periodic incremental sync.
//
// Each tick starts one incremental pass. A tick that finds another pass
// holding the pass lock is skipped, not queued; the next tick picks up
// whatever arrived meanwhile. Failures are logged and never stop the loop.

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// DefaultSyncInterval is the scheduled sync period.
const DefaultSyncInterval = 24 * time.Hour

// SchedulerConfig holds configuration for the sync scheduler.
type SchedulerConfig struct {
	Interval   time.Duration // How often to sync (default: 24h)
	RunOnStart bool          // Sync once before the first tick
}

// StartSyncScheduler runs incremental syncs every Interval until ctx is
// cancelled. It blocks; run it in its own goroutine.
func (s *Service) StartSyncScheduler(ctx context.Context, cfg SchedulerConfig) {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSyncInterval
	}
	slog.Info("sync scheduler started",
		"interval", cfg.Interval.String(),
		"run_on_start", cfg.RunOnStart,
	)

	ctx = ContextWithTrigger(ctx, TriggerSchedule)
	if cfg.RunOnStart {
		s.runScheduledSync(ctx)
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sync scheduler stopped")
			return
		case <-ticker.C:
			s.runScheduledSync(ctx)
		}
	}
}

// runScheduledSync performs one scheduled pass.
func (s *Service) runScheduledSync(ctx context.Context) {
	start := time.Now()
	result, err := s.IncrementalSync(ctx)
	switch {
	case errors.Is(err, ErrPassInProgress):
		slog.Info("scheduled sync skipped, pass in progress")
	case err != nil:
		if ctx.Err() != nil {
			return
		}
		slog.Error("scheduled sync failed",
			"error", err,
			"code", MapError(err).Code,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	default:
		inserted, updated := result.Totals()
		slog.Info("scheduled sync completed",
			"pass_id", result.PassID,
			"records", result.Processed,
			"inserted", inserted,
			"updated", updated,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
