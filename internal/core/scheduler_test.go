package core

import (
	"context"
	"testing"
	"time"

	"github.com/JonMunkholm/kobosync/internal/store"
	"github.com/JonMunkholm/kobosync/internal/store/memory"
)

func TestStartSyncScheduler_RunsOnStartAndStops(t *testing.T) {
	gw := memory.New()
	f := &fakeFetcher{}
	f.set(submission(101, "M-1", "+254700000001", "2024-01-10T10:00:00"))
	s := newTestService(t, gw, f)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.StartSyncScheduler(ctx, SchedulerConfig{Interval: time.Hour, RunOnStart: true})
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for gw.Count(store.Surveys) == 0 {
		select {
		case <-deadline:
			cancel()
			t.Fatal("scheduled sync never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}

func TestScheduledSync_SkipsWhilePassRuns(t *testing.T) {
	f := &fakeFetcher{}
	s := newTestService(t, memory.New(), f)

	release, err := s.locker.Acquire(context.Background(), passLockName)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release(context.Background())

	s.runScheduledSync(ContextWithTrigger(context.Background(), TriggerSchedule))
	if f.calls != 0 {
		t.Errorf("got %d fetches while locked, want 0", f.calls)
	}
}
