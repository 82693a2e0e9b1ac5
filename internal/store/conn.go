package store

import "context"

// Querier is the statement surface the SQL backends expose to SQLGateway.
// Adapters wrap "relation does not exist" failures with ErrMissingTable.
type Querier interface {
	Exec(ctx context.Context, query string, args ...any) (rowsAffected int64, err error)
	Query(ctx context.Context, query string, args ...any) (Rows, error)
}

// Rows is a forward-only result cursor.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// Conn is a pooled connection to a SQL engine.
type Conn interface {
	Querier
	BeginTx(ctx context.Context) (TxConn, error)
	Ping(ctx context.Context) error
	Close() error
}

// TxConn is a Querier bound to one open transaction.
type TxConn interface {
	Querier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// queryRow runs a single-row query and scans it into dest.
// found is false when the query returned no rows.
func queryRow(ctx context.Context, q Querier, query string, args []any, dest ...any) (found bool, err error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	if !rows.Next() {
		return false, rows.Err()
	}
	if err := rows.Scan(dest...); err != nil {
		return false, err
	}
	return true, rows.Err()
}
