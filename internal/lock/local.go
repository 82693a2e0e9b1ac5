package lock

import (
	"context"
	"sync"
	"time"
)

// Local is an in-process Locker. Each name maps to a one-slot semaphore;
// a caller that cannot take the slot within maxWait gets ErrLocked.
type Local struct {
	maxWait time.Duration

	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewLocal creates a Local lock. maxWait <= 0 selects DefaultWait.
func NewLocal(maxWait time.Duration) *Local {
	if maxWait <= 0 {
		maxWait = DefaultWait
	}
	return &Local{
		maxWait: maxWait,
		slots:   make(map[string]chan struct{}),
	}
}

func (l *Local) slot(name string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.slots[name]
	if !ok {
		s = make(chan struct{}, 1)
		l.slots[name] = s
	}
	return s
}

// Acquire takes the named lock, waiting up to maxWait.
func (l *Local) Acquire(ctx context.Context, name string) (Release, error) {
	s := l.slot(name)

	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case s <- struct{}{}:
		var once sync.Once
		return func(context.Context) error {
			once.Do(func() { <-s })
			return nil
		}, nil

	case <-waitCtx.Done():
		// Distinguish caller cancellation from an expired wait.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrLocked
	}
}

// TryAcquire takes the named lock without waiting.
func (l *Local) TryAcquire(name string) (Release, bool) {
	s := l.slot(name)
	select {
	case s <- struct{}{}:
		var once sync.Once
		return func(context.Context) error {
			once.Do(func() { <-s })
			return nil
		}, true
	default:
		return nil, false
	}
}

// Held reports whether name is currently locked.
func (l *Local) Held(name string) bool {
	return len(l.slot(name)) == 1
}
