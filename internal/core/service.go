package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/kobosync/internal/lock"
	"github.com/JonMunkholm/kobosync/internal/record"
	"github.com/JonMunkholm/kobosync/internal/store"
)

// DefaultSyncTimeout bounds one sync pass, fetch included.
var DefaultSyncTimeout = 30 * time.Minute

// passLockName is shared by full and incremental passes so they exclude
// each other.
const passLockName = "sync-pass"

var (
	// ErrPassInProgress is returned when another pass holds the pass lock.
	ErrPassInProgress = errors.New("sync pass already in progress")

	// ErrPassTimeout wraps the failure of a pass that ran past its sync
	// timeout. Nothing from such a pass is committed.
	ErrPassTimeout = errors.New("sync pass timed out")

	// ErrNoSource is returned by operations that need the Kobo fetcher when
	// none is configured.
	ErrNoSource = errors.New("no data source configured")
)

// Fetcher supplies raw submissions. *kobo.Client satisfies it.
type Fetcher interface {
	FetchAllWithRetry(ctx context.Context) ([]record.Record, error)
}

// Service runs sync passes and data-quality checks against one store.
type Service struct {
	gw      store.Gateway
	fetcher Fetcher
	locker  lock.Locker
	now     func() time.Time

	syncTimeout   time.Duration
	qualityOnSync bool
}

// Option configures a Service.
type Option func(*Service)

// WithLocker replaces the default in-process pass lock.
func WithLocker(l lock.Locker) Option {
	return func(s *Service) { s.locker = l }
}

// WithClock sets the pass clock used for last_updated stamps and temporal
// rules.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithSyncTimeout bounds each pass. Zero disables the bound.
func WithSyncTimeout(d time.Duration) Option {
	return func(s *Service) { s.syncTimeout = d }
}

// WithQualityOnSync makes every sync pass validate its batch alongside
// mapping and append the resulting issues after the entities commit.
func WithQualityOnSync(enabled bool) Option {
	return func(s *Service) { s.qualityOnSync = enabled }
}

// NewService creates a Service. fetcher may be nil when records are always
// supplied by the caller.
func NewService(gw store.Gateway, fetcher Fetcher, opts ...Option) (*Service, error) {
	if gw == nil {
		return nil, fmt.Errorf("create service: nil gateway")
	}

	s := &Service{
		gw:          gw,
		fetcher:     fetcher,
		locker:      lock.NewLocal(lock.DefaultWait),
		now:         time.Now,
		syncTimeout: DefaultSyncTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Gateway returns the store the service writes to.
func (s *Service) Gateway() store.Gateway {
	return s.gw
}

// Ping checks that the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.gw.Ping(ctx)
}

func (s *Service) fetch(ctx context.Context) ([]record.Record, error) {
	if s.fetcher == nil {
		return nil, ErrNoSource
	}
	recs, err := s.fetcher.FetchAllWithRetry(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch submissions: %w", err)
	}
	return recs, nil
}

func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Second)
}
