// Package lock keeps sync passes mutually exclusive.
//
// Local serializes passes inside one process with a single-slot semaphore.
// Redis extends the same guarantee across replicas sharing a store.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrLocked is returned when the lock is held elsewhere and could not be
// obtained within the wait budget.
var ErrLocked = errors.New("another sync pass is in progress")

// DefaultWait is how long Acquire waits for a held lock before giving up.
const DefaultWait = 5 * time.Second

// Release gives a lock back. It is safe to call once.
type Release func(ctx context.Context) error

// Locker acquires a named exclusive lock.
type Locker interface {
	Acquire(ctx context.Context, name string) (Release, error)
}
