package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/kobosync/internal/app"
	"github.com/JonMunkholm/kobosync/internal/config"
	"github.com/JonMunkholm/kobosync/internal/core"
	"github.com/JonMunkholm/kobosync/internal/lock"
	"github.com/JonMunkholm/kobosync/internal/record"
	"github.com/JonMunkholm/kobosync/internal/store"
	"github.com/JonMunkholm/kobosync/internal/store/memory"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func submission(id int64, manifest, gender string) record.Record {
	return record.Record{
		string(record.KeyID):                id,
		string(record.KeyFormhubUUID):       "7f0c7b2e-1d4a-4c55-9f0e-2b8d1f7c9a10",
		string(record.KeyStartTime):         "2024-01-10T09:00:00.000+03:00",
		string(record.KeyEndTime):           "2024-01-10T09:30:00.000+03:00",
		string(record.KeySurveyDate):        "2024-01-10",
		string(record.KeySubmissionTime):    "2024-01-10T07:00:00",
		string(record.KeyUniqueID):          "U-" + manifest,
		string(record.KeyCountry):           "Kenya",
		string(record.KeyRegion):            "Nairobi",
		string(record.KeyLocation):          "Kibera",
		string(record.KeySurveyorName):      "Jane Doe",
		string(record.KeyCohort):            "C1",
		string(record.KeyProgram):           "Retail",
		string(record.KeyClientManifestID):  manifest,
		string(record.KeyClientName):        "Client " + manifest,
		string(record.KeyPhone):             "0712345678",
		string(record.KeyPhoneType):         "smart",
		string(record.KeyGender):            gender,
		string(record.KeyAge):               "34",
		string(record.KeyNationality):       "Kenyan",
		string(record.KeyDependents):        "2",
		string(record.KeyBusinessStatus):    "existing",
		string(record.KeyBusinessOperating): "yes",
	}
}

type stubFetcher struct {
	recs []record.Record
}

func (f *stubFetcher) FetchAllWithRetry(ctx context.Context) ([]record.Record, error) {
	return append([]record.Record(nil), f.recs...), nil
}

// testApp returns an app backed by one memory store. A nil fetcher leaves
// the service without a source.
func testApp(t *testing.T, f core.Fetcher) *app.App {
	t.Helper()
	svc, err := core.NewService(memory.New(), f,
		core.WithClock(func() time.Time { return testNow }),
		core.WithLocker(lock.NewLocal(20*time.Millisecond)),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &app.App{Config: &config.Config{}, Service: svc}
}

// run executes args against a root command bound to a.
func run(t *testing.T, a *app.App, args ...string) (string, error) {
	t.Helper()
	opts := &RootOptions{Open: func(context.Context, *RootOptions) (*app.App, error) { return a, nil }}
	cmd := newRootCommand(opts)

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

type response struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *CLIError       `json:"error"`
}

func decodeResponse(t *testing.T, out string) response {
	t.Helper()
	var r response
	if err := json.Unmarshal([]byte(out), &r); err != nil {
		t.Fatalf("decode output: %v (output %q)", err, out)
	}
	return r
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	if cmd.Use != "kobosync" {
		t.Errorf("got Use %q, want kobosync", cmd.Use)
	}
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"extract", "sync", "check", "issues", "summary", "serve"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			if err != nil {
				t.Fatalf("command %s should exist: %v", name, err)
			}
			if sub.Name() != name {
				t.Errorf("got %q, want %q", sub.Name(), name)
			}
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	if verbose == nil || verbose.Shorthand != "v" || verbose.DefValue != "false" {
		t.Errorf("unexpected verbose flag %+v", verbose)
	}
	format := cmd.PersistentFlags().Lookup("format")
	if format == nil || format.DefValue != "text" {
		t.Errorf("unexpected format flag %+v", format)
	}
}

func TestInvalidFormat(t *testing.T) {
	_, err := run(t, testApp(t, nil), "--format", "yaml", "summary")
	if err == nil || !strings.Contains(err.Error(), "invalid format") {
		t.Errorf("got %v, want invalid format error", err)
	}
}

func TestExtract_JSON(t *testing.T) {
	a := testApp(t, &stubFetcher{recs: []record.Record{
		submission(1, "M-1", "female"),
		submission(2, "M-2", "male"),
	}})

	out, err := run(t, a, "--format", "json", "extract")
	if err != nil {
		t.Fatalf("extract: %v (output %q)", err, out)
	}
	resp := decodeResponse(t, out)
	if resp.Status != "ok" {
		t.Fatalf("got status %q, want ok", resp.Status)
	}
	var result core.SyncResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Mode != core.ModeFull || result.Processed != 2 {
		t.Errorf("got mode=%q processed=%d, want full/2", result.Mode, result.Processed)
	}
}

func TestSync_Text(t *testing.T) {
	a := testApp(t, &stubFetcher{recs: []record.Record{submission(1, "M-1", "female")}})

	out, err := run(t, a, "sync")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	for _, want := range []string{"(incremental)", "Fetched 1, processed 1", "ENTITY", "client"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSync_NoSource(t *testing.T) {
	out, err := run(t, testApp(t, nil), "--format", "json", "sync")
	if err == nil {
		t.Fatal("expected an error without a source")
	}
	if got := GetExitCode(err); got != ExitFailure {
		t.Errorf("got exit code %d, want %d", got, ExitFailure)
	}
	resp := decodeResponse(t, out)
	if resp.Status != "error" || resp.Error == nil || resp.Error.Code != "FETCH002" {
		t.Errorf("got %+v, want FETCH002 error", resp)
	}
}

func TestCheckFromFileThenIssues(t *testing.T) {
	a := testApp(t, nil)

	path := filepath.Join(t.TempDir(), "records.json")
	body, _ := json.Marshal(map[string]any{"results": []record.Record{
		submission(1, "M-1", "robot"),
		submission(2, "M-2", "female"),
	}})
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, a, "--format", "json", "check", "--file", path)
	if err != nil {
		t.Fatalf("check: %v (output %q)", err, out)
	}
	var result core.CheckResult
	if err := json.Unmarshal(decodeResponse(t, out).Data, &result); err != nil {
		t.Fatalf("decode check: %v", err)
	}
	if result.Records != 2 || result.Summary.IssuesByType["invalid_gender"] != 1 {
		t.Errorf("got records=%d summary=%+v", result.Records, result.Summary)
	}

	out, err = run(t, a, "--format", "json", "issues", "--issue-type", "invalid_gender")
	if err != nil {
		t.Fatalf("issues: %v", err)
	}
	var page store.IssuePage
	if err := json.Unmarshal(decodeResponse(t, out).Data, &page); err != nil {
		t.Fatalf("decode issues: %v", err)
	}
	if page.Total != 1 || len(page.Issues) != 1 || page.Issues[0].EntityID != "M-1" {
		t.Errorf("got %+v, want one issue for M-1", page)
	}

	out, err = run(t, a, "summary")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !strings.Contains(out, "invalid_gender") {
		t.Errorf("summary missing invalid_gender:\n%s", out)
	}
}

func TestCheck_UnreadableFile(t *testing.T) {
	out, err := run(t, testApp(t, nil), "--format", "json", "check", "--file", filepath.Join(t.TempDir(), "missing.json"))
	if got := GetExitCode(err); got != ExitCommandError {
		t.Errorf("got exit code %d, want %d", got, ExitCommandError)
	}
	if resp := decodeResponse(t, out); resp.Error == nil || resp.Error.Code != "CMD001" {
		t.Errorf("got %+v, want CMD001", resp)
	}
}

func TestIssues_Export(t *testing.T) {
	a := testApp(t, nil)
	if _, err := a.Service.CheckQuality(context.Background(), []record.Record{submission(1, "M-1", "robot")}); err != nil {
		t.Fatalf("CheckQuality: %v", err)
	}

	path := filepath.Join(t.TempDir(), "issues.xlsx")
	out, err := run(t, a, "issues", "--issue-type", "invalid_gender", "--export", path)
	if err != nil {
		t.Fatalf("issues --export: %v", err)
	}
	if !strings.Contains(out, "Wrote 1 issues") {
		t.Errorf("got output %q", out)
	}

	xl, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer xl.Close()
	rows, err := xl.GetRows("Issues")
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("got %d rows, want heading plus 1", len(rows))
	}
}

func TestSummary_EmptyStore(t *testing.T) {
	out, err := run(t, testApp(t, nil), "summary")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !strings.Contains(out, "Total issues: 0") {
		t.Errorf("got output %q", out)
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{WrapExitError(ExitCommandError, "bad input", errors.New("x")), ExitCommandError},
		{WrapExitError(ExitFailure, "failed", nil), ExitFailure},
		{errors.New("plain"), ExitFailure},
	}
	for _, tt := range tests {
		if got := GetExitCode(tt.err); got != tt.want {
			t.Errorf("GetExitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
