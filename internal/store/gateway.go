// Package store is the storage gateway for normalized Kobo entities and the
// data-quality audit log. Backends share the table catalogue in this package;
// the SQL backends additionally share query text and schema evolution.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/kobosync/internal/model"
)

// ErrMissingTable is wrapped by backends when a statement references a table
// that has not been created yet.
var ErrMissingTable = errors.New("table does not exist")

// DefaultIssueLimit caps issue listings when the caller gives no limit.
const DefaultIssueLimit = 100

// Gateway is a storage backend.
type Gateway interface {
	// EnsureSchema creates missing tables, columns and indexes. It never
	// drops or narrows anything.
	EnsureSchema(ctx context.Context) error
	Begin(ctx context.Context) (Tx, error)

	// LatestSubmission returns the newest stored survey submission time.
	LatestSubmission(ctx context.Context) (time.Time, bool, error)

	AppendIssues(ctx context.Context, issues []model.Issue) error
	ListIssues(ctx context.Context, f IssueFilter) (IssuePage, error)
	IssueSummary(ctx context.Context) (model.IssueSummary, error)

	DailySurveyCounts(ctx context.Context) ([]model.DailyCount, error)
	Demographics(ctx context.Context) ([]model.Demographic, error)

	Ping(ctx context.Context) error
	Close() error
}

// Tx is one all-or-nothing write scope.
type Tx interface {
	// Lookup returns the stored version for key. Unversioned tables report
	// version 0 when the row exists.
	Lookup(ctx context.Context, t *Table, key []any) (version int64, found bool, err error)
	// Insert writes row unless its key already exists.
	Insert(ctx context.Context, t *Table, row []any) (inserted bool, err error)
	// Upsert writes row, replacing the stored row's updatable columns.
	Upsert(ctx context.Context, t *Table, row []any) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// IssueFilter narrows an issue listing. Empty fields match everything.
type IssueFilter struct {
	EntityType string `json:"entity_type,omitempty"`
	IssueType  string `json:"issue_type,omitempty"`
	EntityID   string `json:"entity_id,omitempty"`
	Limit      int    `json:"limit"`
	Offset     int    `json:"offset"`
}

// Normalize applies the default limit and clamps negatives.
func (f IssueFilter) Normalize() IssueFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultIssueLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// IssuePage is one page of an issue listing.
type IssuePage struct {
	Issues []model.Issue `json:"issues"`
	Total  int64         `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// WithTx runs fn inside a transaction. The transaction commits if fn
// returns nil and rolls back otherwise, including when fn panics. If the
// first attempt fails on a missing table the schema is ensured and fn runs
// once more, so fn must not carry state across attempts.
func WithTx(ctx context.Context, gw Gateway, fn func(Tx) error) error {
	err := runTx(ctx, gw, fn)
	if !errors.Is(err, ErrMissingTable) {
		return err
	}
	if serr := gw.EnsureSchema(ctx); serr != nil {
		return fmt.Errorf("ensure schema after %w: %v", err, serr)
	}
	return runTx(ctx, gw, fn)
}

func runTx(ctx context.Context, gw Gateway, fn func(Tx) error) (err error) {
	tx, err := gw.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
