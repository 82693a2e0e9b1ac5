package store

import (
	"fmt"
	"strings"
)

// Dialect renders portable column types. Both supported engines accept the
// same $n placeholders and ON CONFLICT clauses, so only types differ.
type Dialect struct {
	Name  string
	Types map[ColumnType]string
}

var (
	DuckDB = Dialect{
		Name: "duckdb",
		Types: map[ColumnType]string{
			TypeText:      "VARCHAR",
			TypeBigInt:    "BIGINT",
			TypeInteger:   "INTEGER",
			TypeDouble:    "DOUBLE",
			TypeTimestamp: "TIMESTAMP",
			TypeDate:      "DATE",
		},
	}

	Postgres = Dialect{
		Name: "postgres",
		Types: map[ColumnType]string{
			TypeText:      "TEXT",
			TypeBigInt:    "BIGINT",
			TypeInteger:   "INTEGER",
			TypeDouble:    "DOUBLE PRECISION",
			TypeTimestamp: "TIMESTAMPTZ",
			TypeDate:      "DATE",
		},
	}
)

// quoteIdentifier double-quotes an identifier.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteAll(names []string) string {
	q := make([]string, len(names))
	for i, n := range names {
		q[i] = quoteIdentifier(n)
	}
	return strings.Join(q, ", ")
}

func placeholders(from, n int) string {
	p := make([]string, n)
	for i := range p {
		p[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(p, ", ")
}

// CreateTableSQL renders CREATE TABLE IF NOT EXISTS for t.
func (d Dialect) CreateTableSQL(t *Table) string {
	defs := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		defs = append(defs, quoteIdentifier(c.Name)+" "+d.Types[c.Type])
	}
	defs = append(defs, "PRIMARY KEY ("+quoteAll(t.Key)+")")
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", quoteIdentifier(t.Name), strings.Join(defs, ",\n\t"))
}

// AddColumnSQL renders ALTER TABLE ... ADD COLUMN for c.
func (d Dialect) AddColumnSQL(t *Table, c Column) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", quoteIdentifier(t.Name), quoteIdentifier(c.Name), d.Types[c.Type])
}

// CreateIndexSQL renders CREATE INDEX IF NOT EXISTS for idx.
func (d Dialect) CreateIndexSQL(t *Table, idx Index) string {
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", quoteIdentifier(idx.Name), quoteIdentifier(t.Name), quoteAll(idx.Columns))
}

// InsertSQL renders a create-if-absent insert: a key conflict is a no-op.
func InsertSQL(t *Table) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO NOTHING",
		quoteIdentifier(t.Name), quoteAll(t.ColumnNames()), placeholders(1, len(t.Columns)), quoteAll(t.Key))
}

// AppendSQL renders a plain insert.
func AppendSQL(t *Table) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdentifier(t.Name), quoteAll(t.ColumnNames()), placeholders(1, len(t.Columns)))
}

// UpsertSQL renders insert-or-replace keyed on t.Key. Key and immutable
// columns keep their stored values on conflict.
func UpsertSQL(t *Table) string {
	cols := t.UpdatableColumns()
	sets := make([]string, len(cols))
	for i, c := range cols {
		q := quoteIdentifier(c)
		sets[i] = q + " = excluded." + q
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		quoteIdentifier(t.Name), quoteAll(t.ColumnNames()), placeholders(1, len(t.Columns)), quoteAll(t.Key), strings.Join(sets, ", "))
}

// LookupSQL renders a keyed lookup returning the stored version, or 0 for
// unversioned tables.
func LookupSQL(t *Table) string {
	sel := "0"
	if t.Versioned() {
		sel = quoteIdentifier("version")
	}
	conds := make([]string, len(t.Key))
	for i, k := range t.Key {
		conds[i] = fmt.Sprintf("%s = $%d", quoteIdentifier(k), i+1)
	}
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s", sel, quoteIdentifier(t.Name), strings.Join(conds, " AND "))
}

// DescribeSQL lists a table's columns in the current schema. Takes the
// table name as $1.
const DescribeSQL = `SELECT column_name FROM information_schema.columns
WHERE table_schema = current_schema() AND table_name = $1`

// LatestSubmissionSQL returns the newest stored submission time.
const LatestSubmissionSQL = `SELECT max(submission_time) FROM surveys`

// IssueSummarySQL groups the audit log by entity and issue type.
const IssueSummarySQL = `SELECT entity_type, issue_type, count(*) AS n
FROM data_quality_issues
GROUP BY entity_type, issue_type`

// DailySurveyCountsSQL counts surveys per survey date.
const DailySurveyCountsSQL = `SELECT survey_date, count(*) AS n
FROM surveys
WHERE survey_date IS NOT NULL
GROUP BY survey_date
ORDER BY survey_date`

// DemographicsSQL buckets clients by gender, ten-year age band and
// nationality.
const DemographicsSQL = `SELECT gender,
	CASE WHEN age IS NULL OR age < 0 THEN -1 ELSE CAST(floor(age / 10.0) * 10 AS INTEGER) END AS age_group,
	nationality,
	count(*) AS n
FROM clients
GROUP BY 1, 2, 3
ORDER BY 1, 2, 3`

// ListIssuesSQL builds the page and count queries for f.
func ListIssuesSQL(f IssueFilter) (query string, count string, args []any, countArgs []any) {
	wb := NewWhereBuilder()
	wb.Add("entity_type", f.EntityType)
	wb.Add("issue_type", f.IssueType)
	wb.Add("entity_id", f.EntityID)
	where, whereArgs := wb.Build()

	count = "SELECT count(*) FROM data_quality_issues" + where
	countArgs = whereArgs

	n := wb.NextArgIndex()
	query = fmt.Sprintf(`SELECT id, entity_type, issue_type, entity_id, details, created_at
FROM data_quality_issues%s
ORDER BY created_at DESC, id
LIMIT $%d OFFSET $%d`, where, n, n+1)
	args = append(append([]any{}, whereArgs...), f.Limit, f.Offset)
	return query, count, args, countArgs
}

// WhereBuilder accumulates equality conditions with numbered placeholders.
// Empty values are skipped so optional filters can be added unconditionally.
type WhereBuilder struct {
	conditions []string
	args       []any
	argIndex   int
}

// NewWhereBuilder returns an empty builder starting at $1.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{argIndex: 1}
}

// Add appends "column = $n" unless value is empty.
func (wb *WhereBuilder) Add(column, value string) {
	if value == "" {
		return
	}
	wb.conditions = append(wb.conditions, fmt.Sprintf("%s = $%d", column, wb.argIndex))
	wb.args = append(wb.args, value)
	wb.argIndex++
}

// Build returns the WHERE clause (with a leading space) and its arguments,
// or "" and nil when no condition was added.
func (wb *WhereBuilder) Build() (string, []any) {
	if len(wb.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(wb.conditions, " AND "), wb.args
}

// NextArgIndex returns the next free placeholder number.
func (wb *WhereBuilder) NextArgIndex() int {
	return wb.argIndex
}
