package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/kobosync/internal/model"
)

// SQLGateway implements Gateway over any Conn that speaks the shared SQL
// subset. Backends supply the Conn and the Dialect.
type SQLGateway struct {
	conn    Conn
	dialect Dialect
}

// NewSQLGateway wraps conn.
func NewSQLGateway(conn Conn, dialect Dialect) *SQLGateway {
	return &SQLGateway{conn: conn, dialect: dialect}
}

// Dialect returns the gateway's dialect.
func (g *SQLGateway) Dialect() Dialect {
	return g.dialect
}

// EnsureSchema creates every registered table that is absent, adds columns
// missing from existing tables and creates indexes. Existing columns are
// never altered.
func (g *SQLGateway) EnsureSchema(ctx context.Context) error {
	for _, t := range Tables() {
		existing, err := g.columns(ctx, t.Name)
		if err != nil {
			return fmt.Errorf("describe %s: %w", t.Name, err)
		}

		if len(existing) == 0 {
			if _, err := g.conn.Exec(ctx, g.dialect.CreateTableSQL(t)); err != nil {
				return fmt.Errorf("create %s: %w", t.Name, err)
			}
		} else {
			for _, c := range t.Columns {
				if existing[c.Name] {
					continue
				}
				if _, err := g.conn.Exec(ctx, g.dialect.AddColumnSQL(t, c)); err != nil {
					return fmt.Errorf("add column %s.%s: %w", t.Name, c.Name, err)
				}
			}
		}

		for _, idx := range t.Indexes {
			if _, err := g.conn.Exec(ctx, g.dialect.CreateIndexSQL(t, idx)); err != nil {
				return fmt.Errorf("create index %s: %w", idx.Name, err)
			}
		}
	}
	return nil
}

func (g *SQLGateway) columns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := g.conn.Query(ctx, DescribeSQL, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// Begin opens a write transaction.
func (g *SQLGateway) Begin(ctx context.Context) (Tx, error) {
	tx, err := g.conn.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return &sqlTx{tx: tx}, nil
}

// LatestSubmission returns max(submission_time) over stored surveys.
func (g *SQLGateway) LatestSubmission(ctx context.Context) (time.Time, bool, error) {
	var ts pgtype.Timestamptz
	found, err := queryRow(ctx, g.conn, LatestSubmissionSQL, nil, &ts)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("latest submission: %w", err)
	}
	if !found || !ts.Valid {
		return time.Time{}, false, nil
	}
	return ts.Time.UTC(), true, nil
}

// AppendIssues inserts issues into the audit log in one transaction.
func (g *SQLGateway) AppendIssues(ctx context.Context, issues []model.Issue) error {
	if len(issues) == 0 {
		return nil
	}

	tx, err := g.conn.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(context.WithoutCancel(ctx))

	query := AppendSQL(Issues)
	now := time.Now().UTC()
	for _, issue := range issues {
		if issue.ID == "" {
			issue.ID = uuid.NewString()
		}
		if issue.CreatedAt.IsZero() {
			issue.CreatedAt = now
		}
		row, err := IssueRow(issue)
		if err != nil {
			return fmt.Errorf("encode issue details: %w", err)
		}
		if _, err := tx.Exec(ctx, query, row...); err != nil {
			return fmt.Errorf("append issue: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// ListIssues returns one page of the audit log, newest first.
func (g *SQLGateway) ListIssues(ctx context.Context, f IssueFilter) (IssuePage, error) {
	f = f.Normalize()
	page := IssuePage{Issues: []model.Issue{}, Limit: f.Limit, Offset: f.Offset}

	query, countQuery, args, countArgs := ListIssuesSQL(f)

	if _, err := queryRow(ctx, g.conn, countQuery, countArgs, &page.Total); err != nil {
		return page, fmt.Errorf("count issues: %w", err)
	}

	rows, err := g.conn.Query(ctx, query, args...)
	if err != nil {
		return page, fmt.Errorf("list issues: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			issue      model.Issue
			entityType string
			issueType  string
			details    string
		)
		if err := rows.Scan(&issue.ID, &entityType, &issueType, &issue.EntityID, &details, &issue.CreatedAt); err != nil {
			return page, fmt.Errorf("scan issue: %w", err)
		}
		issue.EntityType = model.EntityType(entityType)
		issue.Type = model.IssueType(issueType)
		issue.CreatedAt = issue.CreatedAt.UTC()
		decodeDetails(&issue, details)
		page.Issues = append(page.Issues, issue)
	}
	return page, rows.Err()
}

// decodeDetails splits a stored payload back into Value and Details.
func decodeDetails(issue *model.Issue, raw string) {
	if raw == "" {
		return
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		issue.Details = map[string]any{"raw": raw}
		return
	}
	if v, ok := payload["value"]; ok {
		issue.Value = v
		delete(payload, "value")
	}
	if len(payload) > 0 {
		issue.Details = payload
	}
}

// IssueSummary aggregates the whole audit log.
func (g *SQLGateway) IssueSummary(ctx context.Context) (model.IssueSummary, error) {
	summary := model.NewIssueSummary()

	rows, err := g.conn.Query(ctx, IssueSummarySQL)
	if err != nil {
		return summary, fmt.Errorf("summarize issues: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			entity, typ string
			n           int64
		)
		if err := rows.Scan(&entity, &typ, &n); err != nil {
			return summary, fmt.Errorf("scan summary: %w", err)
		}
		summary.AddN(model.EntityType(entity), model.IssueType(typ), int(n))
	}
	return summary, rows.Err()
}

// DailySurveyCounts returns the number of surveys per survey date.
func (g *SQLGateway) DailySurveyCounts(ctx context.Context) ([]model.DailyCount, error) {
	rows, err := g.conn.Query(ctx, DailySurveyCountsSQL)
	if err != nil {
		return nil, fmt.Errorf("daily survey counts: %w", err)
	}
	defer rows.Close()

	out := []model.DailyCount{}
	for rows.Next() {
		var (
			day pgtype.Date
			n   int64
		)
		if err := rows.Scan(&day, &n); err != nil {
			return nil, fmt.Errorf("scan daily count: %w", err)
		}
		if !day.Valid {
			continue
		}
		out = append(out, model.DailyCount{SurveyDate: day.Time.Format("2006-01-02"), Surveys: n})
	}
	return out, rows.Err()
}

// Demographics returns client counts by gender, age band and nationality.
func (g *SQLGateway) Demographics(ctx context.Context) ([]model.Demographic, error) {
	rows, err := g.conn.Query(ctx, DemographicsSQL)
	if err != nil {
		return nil, fmt.Errorf("demographics: %w", err)
	}
	defer rows.Close()

	out := []model.Demographic{}
	for rows.Next() {
		var (
			gender, nationality pgtype.Text
			ageGroup, n         int64
		)
		if err := rows.Scan(&gender, &ageGroup, &nationality, &n); err != nil {
			return nil, fmt.Errorf("scan demographic: %w", err)
		}
		out = append(out, model.Demographic{
			Gender:      gender.String,
			AgeGroup:    int(ageGroup),
			Nationality: nationality.String,
			Clients:     n,
		})
	}
	return out, rows.Err()
}

func (g *SQLGateway) Ping(ctx context.Context) error {
	return g.conn.Ping(ctx)
}

func (g *SQLGateway) Close() error {
	return g.conn.Close()
}

type sqlTx struct {
	tx TxConn
}

func (t *sqlTx) Lookup(ctx context.Context, table *Table, key []any) (int64, bool, error) {
	var version int64
	found, err := queryRow(ctx, t.tx, LookupSQL(table), key, &version)
	if err != nil {
		return 0, false, fmt.Errorf("lookup %s: %w", table.Name, err)
	}
	return version, found, nil
}

func (t *sqlTx) Insert(ctx context.Context, table *Table, row []any) (bool, error) {
	n, err := t.tx.Exec(ctx, InsertSQL(table), row...)
	if err != nil {
		return false, fmt.Errorf("insert %s: %w", table.Name, err)
	}
	return n > 0, nil
}

func (t *sqlTx) Upsert(ctx context.Context, table *Table, row []any) error {
	if _, err := t.tx.Exec(ctx, UpsertSQL(table), row...); err != nil {
		return fmt.Errorf("upsert %s: %w", table.Name, err)
	}
	return nil
}

func (t *sqlTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *sqlTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}
