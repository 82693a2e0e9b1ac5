// Package memory is an in-process storage backend. Writes stage into
// per-table copies and become visible on Commit; one transaction runs at a
// time.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/kobosync/internal/model"
	"github.com/JonMunkholm/kobosync/internal/store"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("memory store closed")

type table map[string][]any

// Gateway implements store.Gateway in memory.
type Gateway struct {
	txMu sync.Mutex // held for the lifetime of a transaction

	mu     sync.RWMutex
	tables map[string]table
	issues []model.Issue
	closed bool
}

// New returns an empty gateway. Tables do not exist until EnsureSchema.
func New() *Gateway {
	return &Gateway{tables: make(map[string]table)}
}

func (g *Gateway) EnsureSchema(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return ErrClosed
	}
	for _, t := range store.Tables() {
		if _, ok := g.tables[t.Name]; !ok {
			g.tables[t.Name] = make(table)
		}
	}
	return nil
}

func (g *Gateway) Begin(ctx context.Context) (store.Tx, error) {
	g.txMu.Lock()

	g.mu.RLock()
	closed := g.closed
	g.mu.RUnlock()
	if closed {
		g.txMu.Unlock()
		return nil, ErrClosed
	}
	return &tx{gw: g, staged: make(map[string]table)}, nil
}

// Rows returns a copy of every stored row of t, in key order.
func (g *Gateway) Rows(t *store.Table) [][]any {
	g.mu.RLock()
	defer g.mu.RUnlock()

	rows := g.tables[t.Name]
	keys := make([]string, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([][]any, len(keys))
	for i, k := range keys {
		out[i] = append([]any(nil), rows[k]...)
	}
	return out
}

// Count returns the number of stored rows in t.
func (g *Gateway) Count(t *store.Table) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.tables[t.Name])
}

func (g *Gateway) LatestSubmission(ctx context.Context) (time.Time, bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	surveys, ok := g.tables[store.SurveysTable]
	if !ok {
		return time.Time{}, false, fmt.Errorf("latest submission: %w", store.ErrMissingTable)
	}

	col := store.Surveys.ColumnIndex("submission_time")
	var (
		latest time.Time
		found  bool
	)
	for _, row := range surveys {
		ts, ok := row[col].(pgtype.Timestamptz)
		if !ok || !ts.Valid {
			continue
		}
		if !found || ts.Time.After(latest) {
			latest, found = ts.Time, true
		}
	}
	return latest.UTC(), found, nil
}

func (g *Gateway) AppendIssues(ctx context.Context, issues []model.Issue) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return ErrClosed
	}
	now := time.Now().UTC()
	for _, issue := range issues {
		if issue.ID == "" {
			issue.ID = uuid.NewString()
		}
		if issue.CreatedAt.IsZero() {
			issue.CreatedAt = now
		}
		g.issues = append(g.issues, issue)
	}
	return nil
}

func (g *Gateway) ListIssues(ctx context.Context, f store.IssueFilter) (store.IssuePage, error) {
	f = f.Normalize()
	page := store.IssuePage{Issues: []model.Issue{}, Limit: f.Limit, Offset: f.Offset}

	g.mu.RLock()
	var matched []model.Issue
	for _, issue := range g.issues {
		if f.EntityType != "" && string(issue.EntityType) != f.EntityType {
			continue
		}
		if f.IssueType != "" && string(issue.Type) != f.IssueType {
			continue
		}
		if f.EntityID != "" && issue.EntityID != f.EntityID {
			continue
		}
		matched = append(matched, issue)
	}
	g.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	page.Total = int64(len(matched))
	if f.Offset >= len(matched) {
		return page, nil
	}
	end := min(f.Offset+f.Limit, len(matched))
	page.Issues = append(page.Issues, matched[f.Offset:end]...)
	return page, nil
}

func (g *Gateway) IssueSummary(ctx context.Context) (model.IssueSummary, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	summary := model.NewIssueSummary()
	for _, issue := range g.issues {
		summary.Add(issue.EntityType, issue.Type)
	}
	return summary, nil
}

func (g *Gateway) DailySurveyCounts(ctx context.Context) ([]model.DailyCount, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	col := store.Surveys.ColumnIndex("survey_date")
	counts := make(map[string]int64)
	for _, row := range g.tables[store.SurveysTable] {
		d, ok := row[col].(pgtype.Date)
		if !ok || !d.Valid {
			continue
		}
		counts[d.Time.Format("2006-01-02")]++
	}

	out := make([]model.DailyCount, 0, len(counts))
	for day, n := range counts {
		out = append(out, model.DailyCount{SurveyDate: day, Surveys: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SurveyDate < out[j].SurveyDate })
	return out, nil
}

func (g *Gateway) Demographics(ctx context.Context) ([]model.Demographic, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var (
		genderCol      = store.Clients.ColumnIndex("gender")
		ageCol         = store.Clients.ColumnIndex("age")
		nationalityCol = store.Clients.ColumnIndex("nationality")
	)

	buckets := make(map[model.Demographic]int64)
	for _, row := range g.tables[store.ClientsTable] {
		group := -1
		if age, ok := row[ageCol].(pgtype.Int4); ok && age.Valid {
			group = model.AgeGroup(int(age.Int32))
		}
		gender, _ := row[genderCol].(string)
		nationality, _ := row[nationalityCol].(string)
		buckets[model.Demographic{Gender: gender, AgeGroup: group, Nationality: nationality}]++
	}

	out := make([]model.Demographic, 0, len(buckets))
	for d, n := range buckets {
		d.Clients = n
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Gender != b.Gender {
			return a.Gender < b.Gender
		}
		if a.AgeGroup != b.AgeGroup {
			return a.AgeGroup < b.AgeGroup
		}
		return a.Nationality < b.Nationality
	})
	return out, nil
}

func (g *Gateway) Ping(ctx context.Context) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		return ErrClosed
	}
	return nil
}

func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	return nil
}

type tx struct {
	gw     *Gateway
	staged map[string]table
	done   bool
}

// read returns the current view of t: staged if written, committed otherwise.
func (x *tx) read(t *store.Table) (table, error) {
	if rows, ok := x.staged[t.Name]; ok {
		return rows, nil
	}
	x.gw.mu.RLock()
	rows, ok := x.gw.tables[t.Name]
	x.gw.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", t.Name, store.ErrMissingTable)
	}
	return rows, nil
}

// write returns a private copy of t for staging.
func (x *tx) write(t *store.Table) (table, error) {
	if rows, ok := x.staged[t.Name]; ok {
		return rows, nil
	}
	committed, err := x.read(t)
	if err != nil {
		return nil, err
	}
	x.gw.mu.RLock()
	rows := make(table, len(committed)+1)
	for k, v := range committed {
		rows[k] = v
	}
	x.gw.mu.RUnlock()
	x.staged[t.Name] = rows
	return rows, nil
}

func (x *tx) Lookup(ctx context.Context, t *store.Table, key []any) (int64, bool, error) {
	if x.done {
		return 0, false, errTxDone
	}
	rows, err := x.read(t)
	if err != nil {
		return 0, false, err
	}
	row, ok := rows[store.KeyString(key)]
	if !ok {
		return 0, false, nil
	}
	if !t.Versioned() {
		return 0, true, nil
	}
	v, _ := row[t.ColumnIndex("version")].(int64)
	return v, true, nil
}

func (x *tx) Insert(ctx context.Context, t *store.Table, row []any) (bool, error) {
	if x.done {
		return false, errTxDone
	}
	if err := checkWidth(t, row); err != nil {
		return false, err
	}
	rows, err := x.write(t)
	if err != nil {
		return false, err
	}
	key := store.KeyString(t.KeyOf(row))
	if _, exists := rows[key]; exists {
		return false, nil
	}
	rows[key] = append([]any(nil), row...)
	return true, nil
}

func (x *tx) Upsert(ctx context.Context, t *store.Table, row []any) error {
	if x.done {
		return errTxDone
	}
	if err := checkWidth(t, row); err != nil {
		return err
	}
	rows, err := x.write(t)
	if err != nil {
		return err
	}
	key := store.KeyString(t.KeyOf(row))
	next := append([]any(nil), row...)
	if prev, exists := rows[key]; exists {
		for _, col := range t.Immutable {
			i := t.ColumnIndex(col)
			next[i] = prev[i]
		}
	}
	rows[key] = next
	return nil
}

func (x *tx) Commit(ctx context.Context) error {
	if x.done {
		return errTxDone
	}
	x.done = true
	defer x.gw.txMu.Unlock()

	x.gw.mu.Lock()
	defer x.gw.mu.Unlock()
	if x.gw.closed {
		return ErrClosed
	}
	for name, rows := range x.staged {
		x.gw.tables[name] = rows
	}
	return nil
}

func (x *tx) Rollback(ctx context.Context) error {
	if x.done {
		return errTxDone
	}
	x.done = true
	x.staged = nil
	x.gw.txMu.Unlock()
	return nil
}

var errTxDone = errors.New("transaction already committed or rolled back")

func checkWidth(t *store.Table, row []any) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("%s: row has %d values, want %d", t.Name, len(row), len(t.Columns))
	}
	return nil
}
