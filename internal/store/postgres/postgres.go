// Package postgres is the networked storage backend on a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/kobosync/internal/store"
)

// undefinedTable is the SQLSTATE for a reference to a missing relation.
const undefinedTable = "42P01"

// PoolOptions tunes the connection pool.
type PoolOptions struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string, opts PoolOptions) (*store.SQLGateway, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if opts.MaxConns > 0 {
		poolConfig.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		poolConfig.MinConns = opts.MinConns
	}
	if opts.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return store.NewSQLGateway(&conn{pool: pool}, store.Postgres), nil
}

type conn struct {
	pool *pgxpool.Pool
}

func (c *conn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := c.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, classify(err)
	}
	return tag.RowsAffected(), nil
}

func (c *conn) Query(ctx context.Context, query string, args ...any) (store.Rows, error) {
	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	return pgRows{rows}, nil
}

func (c *conn) BeginTx(ctx context.Context) (store.TxConn, error) {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &txConn{tx: tx}, nil
}

func (c *conn) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

func (c *conn) Close() error {
	c.pool.Close()
	return nil
}

type txConn struct {
	tx pgx.Tx
}

func (t *txConn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, classify(err)
	}
	return tag.RowsAffected(), nil
}

func (t *txConn) Query(ctx context.Context, query string, args ...any) (store.Rows, error) {
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	return pgRows{rows}, nil
}

func (t *txConn) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *txConn) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

// pgRows surfaces query errors deferred to the first Next, which is where
// pgx reports a missing relation.
type pgRows struct {
	pgx.Rows
}

func (r pgRows) Err() error {
	return classify(r.Rows.Err())
}

func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
		return fmt.Errorf("%w: %v", store.ErrMissingTable, err)
	}
	return err
}
