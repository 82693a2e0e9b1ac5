// Package app wires configuration into a ready core.Service. The server and
// the CLI build their dependencies through it so both run identical passes.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/kobosync/internal/config"
	"github.com/JonMunkholm/kobosync/internal/core"
	"github.com/JonMunkholm/kobosync/internal/kobo"
	"github.com/JonMunkholm/kobosync/internal/lock"
	"github.com/JonMunkholm/kobosync/internal/store"
	"github.com/JonMunkholm/kobosync/internal/store/duckdb"
	"github.com/JonMunkholm/kobosync/internal/store/memory"
	"github.com/JonMunkholm/kobosync/internal/store/postgres"
)

// App holds the wired service and everything that must be closed with it.
type App struct {
	Config  *config.Config
	Service *core.Service

	closers []func() error
}

// New opens the configured store, lock and source, and builds the service.
// Anything opened before a failure is closed again.
func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	gw, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, gw.Close)

	locker, closeLock, err := NewLocker(ctx, cfg.Lock)
	if err != nil {
		return nil, err
	}
	if closeLock != nil {
		a.closers = append(a.closers, closeLock)
	}

	fetcher, err := NewFetcher(cfg.Kobo)
	if err != nil {
		return nil, err
	}

	a.Service, err = core.NewService(gw, fetcher,
		core.WithLocker(locker),
		core.WithSyncTimeout(cfg.Sync.Timeout),
		core.WithQualityOnSync(cfg.Sync.CheckQuality),
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Close releases the store and lock connections in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// OpenStore opens the gateway selected by STORE_DRIVER.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (store.Gateway, error) {
	switch strings.ToLower(cfg.Driver) {
	case config.DriverDuckDB:
		gw, err := duckdb.Open(ctx, cfg.StorePath())
		if err != nil {
			return nil, fmt.Errorf("open duckdb store: %w", err)
		}
		slog.Info("store opened", "driver", config.DriverDuckDB, "path", cfg.StorePath())
		return gw, nil

	case config.DriverPostgres:
		gw, err := postgres.Open(ctx, cfg.DSN, postgres.PoolOptions{
			MaxConns:        int32(cfg.MaxConns),
			MinConns:        int32(cfg.MinConns),
			MaxConnLifetime: cfg.MaxConnLifetime,
			MaxConnIdleTime: cfg.MaxConnIdleTime,
		})
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		slog.Info("store opened", "driver", config.DriverPostgres,
			"max_conns", cfg.MaxConns, "min_conns", cfg.MinConns)
		return gw, nil

	case config.DriverMemory:
		slog.Warn("using in-memory store; data is lost on exit")
		return memory.New(), nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// NewLocker returns the Redis lock when REDIS_ADDRESS is set and an
// in-process lock otherwise. The returned close func may be nil.
func NewLocker(ctx context.Context, cfg config.LockConfig) (lock.Locker, func() error, error) {
	if !cfg.UsesRedis() {
		return lock.NewLocal(cfg.Wait), nil, nil
	}

	rl, err := lock.NewRedis(ctx, lock.RedisOptions{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      cfg.TTL,
		Wait:     cfg.Wait,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect pass lock: %w", err)
	}
	slog.Info("pass lock shared through redis", "addr", cfg.RedisAddress)
	return rl, rl.Close, nil
}

// NewFetcher builds the Kobo client from its settings.
func NewFetcher(cfg config.KoboConfig) (*kobo.Client, error) {
	c, err := kobo.New(cfg.DataURL, cfg.Token,
		kobo.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		kobo.WithPageSize(cfg.PageSize),
		kobo.WithAuthScheme(cfg.AuthScheme),
		kobo.WithRetry(cfg.MaxRetries, cfg.RetryInitial, cfg.RetryMax),
	)
	if err != nil {
		return nil, fmt.Errorf("create kobo client: %w", err)
	}
	return c, nil
}
