// Package duckdb is the embedded analytical storage backend.
package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/JonMunkholm/kobosync/internal/store"
)

// Open opens (or creates) the database file at path. An empty path opens an
// in-process database that vanishes on Close.
func Open(ctx context.Context, path string) (*store.SQLGateway, error) {
	db, err := openDB(ctx, path)
	if err != nil {
		return nil, err
	}
	return store.NewSQLGateway(&conn{db: db}, store.DuckDB), nil
}

func openDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	// A single connection keeps in-memory databases shared across calls.
	if path == "" {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return db, nil
}

type conn struct {
	db *sql.DB
}

func (c *conn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return execOn(ctx, c.db, query, args)
}

func (c *conn) Query(ctx context.Context, query string, args ...any) (store.Rows, error) {
	return queryOn(ctx, c.db, query, args)
}

func (c *conn) BeginTx(ctx context.Context) (store.TxConn, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify(err)
	}
	return &txConn{tx: tx}, nil
}

func (c *conn) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *conn) Close() error {
	return c.db.Close()
}

type txConn struct {
	tx *sql.Tx
}

func (t *txConn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return execOn(ctx, t.tx, query, args)
}

func (t *txConn) Query(ctx context.Context, query string, args ...any) (store.Rows, error) {
	return queryOn(ctx, t.tx, query, args)
}

func (t *txConn) Commit(context.Context) error {
	return classify(t.tx.Commit())
}

func (t *txConn) Rollback(context.Context) error {
	return t.tx.Rollback()
}

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func execOn(ctx context.Context, q execQuerier, query string, args []any) (int64, error) {
	bound, err := bind(args)
	if err != nil {
		return 0, err
	}
	res, err := q.ExecContext(ctx, query, bound...)
	if err != nil {
		return 0, classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func queryOn(ctx context.Context, q execQuerier, query string, args []any) (store.Rows, error) {
	bound, err := bind(args)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, query, bound...)
	if err != nil {
		return nil, classify(err)
	}
	return sqlRows{rows}, nil
}

// bind resolves driver.Valuer arguments (pgtype nullables) to plain values.
// The duckdb driver accepts arguments as-is and does not call Value itself.
func bind(args []any) ([]any, error) {
	out := make([]any, len(args))
	for i, a := range args {
		v, ok := a.(driver.Valuer)
		if !ok {
			out[i] = a
			continue
		}
		val, err := v.Value()
		if err != nil {
			return nil, fmt.Errorf("bind argument %d: %w", i+1, err)
		}
		out[i] = val
	}
	return out, nil
}

// classify maps catalog errors for absent tables onto store.ErrMissingTable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "Catalog Error") && strings.Contains(msg, "does not exist") {
		return fmt.Errorf("%w: %v", store.ErrMissingTable, err)
	}
	return err
}

type sqlRows struct {
	*sql.Rows
}

func (r sqlRows) Close() {
	_ = r.Rows.Close()
}
