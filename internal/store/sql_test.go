package store

import (
	"strings"
	"testing"

	"github.com/JonMunkholm/kobosync/internal/model"
)

// ============================================================================
// WhereBuilder Tests
// ============================================================================

func TestNewWhereBuilder(t *testing.T) {
	wb := NewWhereBuilder()

	if wb == nil {
		t.Fatal("NewWhereBuilder returned nil")
	}
	if wb.argIndex != 1 {
		t.Errorf("expected argIndex to be 1, got %d", wb.argIndex)
	}
	if len(wb.conditions) != 0 {
		t.Errorf("expected empty conditions, got %d", len(wb.conditions))
	}
}

func TestWhereBuilder_Build_Empty(t *testing.T) {
	whereClause, args := NewWhereBuilder().Build()

	if whereClause != "" {
		t.Errorf("expected empty string for no conditions, got %q", whereClause)
	}
	if args != nil {
		t.Errorf("expected nil args for no conditions, got %v", args)
	}
}

func TestWhereBuilder_Add_EmptyValue_Skipped(t *testing.T) {
	wb := NewWhereBuilder()
	wb.Add("entity_type", "")
	wb.Add("issue_type", "invalid_age")

	whereClause, args := wb.Build()

	expectedClause := " WHERE issue_type = $1"
	if whereClause != expectedClause {
		t.Errorf("expected %q, got %q", expectedClause, whereClause)
	}
	if len(args) != 1 || args[0] != "invalid_age" {
		t.Errorf("expected args [invalid_age], got %v", args)
	}
	if wb.NextArgIndex() != 2 {
		t.Errorf("expected NextArgIndex 2, got %d", wb.NextArgIndex())
	}
}

// ============================================================================
// Statement Builder Tests
// ============================================================================

func TestCreateTableSQL(t *testing.T) {
	got := DuckDB.CreateTableSQL(Locations)
	want := "CREATE TABLE IF NOT EXISTS \"locations\" (\n" +
		"\t\"location_id\" VARCHAR,\n" +
		"\t\"country\" VARCHAR,\n" +
		"\t\"region\" VARCHAR,\n" +
		"\t\"specific_location\" VARCHAR,\n" +
		"\tPRIMARY KEY (\"location_id\")\n)"
	if got != want {
		t.Errorf("got\n%s\nwant\n%s", got, want)
	}

	pg := Postgres.CreateTableSQL(Surveys)
	for _, frag := range []string{`"start_time" TIMESTAMPTZ`, `"latitude" DOUBLE PRECISION`, `PRIMARY KEY ("_id")`} {
		if !strings.Contains(pg, frag) {
			t.Errorf("postgres DDL missing %q:\n%s", frag, pg)
		}
	}
}

func TestInsertSQL(t *testing.T) {
	got := InsertSQL(Surveyors)
	want := `INSERT INTO "surveyors" ("name", "cohort", "program") VALUES ($1, $2, $3) ON CONFLICT ("name") DO NOTHING`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestUpsertSQL_SkipsKeyAndImmutableColumns(t *testing.T) {
	got := UpsertSQL(Surveys)

	if !strings.Contains(got, `ON CONFLICT ("_id") DO UPDATE SET`) {
		t.Fatalf("missing conflict clause: %s", got)
	}
	set := got[strings.Index(got, "DO UPDATE SET"):]
	for _, col := range []string{`"_id" =`, `"submission_time" =`, `"client_id_manifest" =`} {
		if strings.Contains(set, col) {
			t.Errorf("upsert overwrites protected column %s: %s", col, set)
		}
	}
	for _, col := range []string{`"version" = excluded."version"`, `"business_status" = excluded."business_status"`} {
		if !strings.Contains(set, col) {
			t.Errorf("upsert missing %s: %s", col, set)
		}
	}
}

func TestUpsertSQL_CompositeKey(t *testing.T) {
	got := UpsertSQL(Responses)
	if !strings.Contains(got, `ON CONFLICT ("_id", "unique_id", "question_key")`) {
		t.Errorf("unexpected conflict target: %s", got)
	}
	if !strings.Contains(got, "$7") || strings.Contains(got, "$8") {
		t.Errorf("expected 7 placeholders: %s", got)
	}
}

func TestLookupSQL(t *testing.T) {
	tests := []struct {
		table *Table
		want  string
	}{
		{Clients, `SELECT "version" FROM "clients" WHERE "client_id_manifest" = $1`},
		{Locations, `SELECT 0 FROM "locations" WHERE "location_id" = $1`},
		{Responses, `SELECT "version" FROM "survey_responses" WHERE "_id" = $1 AND "unique_id" = $2 AND "question_key" = $3`},
	}
	for _, tt := range tests {
		t.Run(tt.table.Name, func(t *testing.T) {
			if got := LookupSQL(tt.table); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestListIssuesSQL(t *testing.T) {
	query, count, args, countArgs := ListIssuesSQL(IssueFilter{IssueType: "invalid_age", Limit: 10, Offset: 20})

	if count != "SELECT count(*) FROM data_quality_issues WHERE issue_type = $1" {
		t.Errorf("unexpected count query: %s", count)
	}
	if len(countArgs) != 1 {
		t.Errorf("expected 1 count arg, got %v", countArgs)
	}
	if !strings.HasSuffix(query, "LIMIT $2 OFFSET $3") {
		t.Errorf("unexpected page query: %s", query)
	}
	if len(args) != 3 || args[1] != 10 || args[2] != 20 {
		t.Errorf("unexpected args: %v", args)
	}
}

func TestIssueFilter_Normalize(t *testing.T) {
	f := IssueFilter{Limit: 0, Offset: -5}.Normalize()
	if f.Limit != DefaultIssueLimit || f.Offset != 0 {
		t.Errorf("got limit=%d offset=%d", f.Limit, f.Offset)
	}
}

// ============================================================================
// Catalogue Tests
// ============================================================================

func TestTables_Registered(t *testing.T) {
	tables := Tables()
	if len(tables) != 6 {
		t.Fatalf("expected 6 tables, got %d", len(tables))
	}
	for _, name := range []string{LocationsTable, SurveyorsTable, ClientsTable, SurveysTable, ResponsesTable, IssuesTable} {
		if _, ok := Lookup(name); !ok {
			t.Errorf("table %s not registered", name)
		}
	}
}

func TestTable_KeyOf(t *testing.T) {
	row := []any{int64(7), "U1", "q1", "yes", "choice", nil, int64(1)}
	key := Responses.KeyOf(row)
	if KeyString(key) != KeyString([]any{int64(7), "U1", "q1"}) {
		t.Errorf("unexpected key %v", key)
	}
}

func TestRowBuilders_MatchColumns(t *testing.T) {
	tests := []struct {
		table *Table
		width int
	}{
		{Locations, len(LocationRow(model.Location{}))},
		{Surveyors, len(SurveyorRow(model.Surveyor{}))},
		{Clients, len(ClientRow(model.Client{}))},
		{Surveys, len(SurveyRow(model.Survey{}))},
		{Responses, len(ResponseRow(model.Response{}))},
	}
	for _, tt := range tests {
		if tt.width != len(tt.table.Columns) {
			t.Errorf("%s: row width %d, columns %d", tt.table.Name, tt.width, len(tt.table.Columns))
		}
	}
}
