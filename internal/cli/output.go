package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/JonMunkholm/kobosync/internal/core"
	"github.com/JonMunkholm/kobosync/internal/model"
	"github.com/JonMunkholm/kobosync/internal/store"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The pass, check or query failed
	ExitCommandError = 2 // Command error (bad configuration, unreadable input file)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses. Codes are the same
// stable codes the HTTP API returns.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}
	return renderText(f.Writer, data)
}

// Error outputs a user message in the configured format.
func (f *OutputFormatter) Error(msg core.UserMessage) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    msg.Code,
				Message: msg.Message,
				Action:  msg.Action,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", msg.Code, msg.Message)
	if msg.Action != "" {
		fmt.Fprintf(f.Writer, "  %s\n", msg.Action)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// ExportResult reports a written workbook.
type ExportResult struct {
	Path   string `json:"path"`
	Issues int    `json:"issues"`
}

func renderText(w io.Writer, data any) error {
	switch v := data.(type) {
	case *core.SyncResult:
		return renderSync(w, v)
	case *core.CheckResult:
		return renderCheck(w, v)
	case store.IssuePage:
		return renderIssues(w, v)
	case model.IssueSummary:
		return renderSummary(w, v)
	case ExportResult:
		_, err := fmt.Fprintf(w, "Wrote %d issues to %s\n", v.Issues, v.Path)
		return err
	default:
		_, err := fmt.Fprintln(w, data)
		return err
	}
}

func renderSync(w io.Writer, r *core.SyncResult) error {
	fmt.Fprintf(w, "Pass %s (%s) finished in %dms\n", r.PassID, r.Mode, r.DurationMS)
	if r.Since != nil {
		fmt.Fprintf(w, "Submissions after %s\n", r.Since.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "Fetched %d, processed %d\n\n", r.Fetched, r.Processed)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ENTITY\tINSERTED\tUPDATED\tUNCHANGED")
	for _, e := range model.EntityTypes {
		c, ok := r.Entities[e]
		if !ok {
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", e, c.Inserted, c.Updated, c.Unchanged)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if n := len(r.Diagnostics); n > 0 {
		fmt.Fprintf(w, "\n%d field(s) degraded during mapping\n", n)
	}
	if r.Quality != nil {
		fmt.Fprintf(w, "%d data-quality issue(s) recorded\n", r.Quality.TotalIssues)
	}
	return nil
}

func renderCheck(w io.Writer, r *core.CheckResult) error {
	fmt.Fprintf(w, "Check %s: %d record(s), %d issue(s) in %dms\n",
		r.CheckID, r.Records, r.Summary.TotalIssues, r.DurationMS)
	return renderCounts(w, "ISSUE TYPE", r.Summary.IssuesByType)
}

func renderIssues(w io.Writer, p store.IssuePage) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED AT\tENTITY\tISSUE\tENTITY ID\tVALUE")
	for _, is := range p.Issues {
		value := ""
		if is.Value != nil {
			value = fmt.Sprint(is.Value)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			is.CreatedAt.Format(time.RFC3339), is.EntityType, is.Type, is.EntityID, value)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(p.Issues) == 0 {
		_, err := fmt.Fprintf(w, "No issues (total %d)\n", p.Total)
		return err
	}
	_, err := fmt.Fprintf(w, "\nShowing %d-%d of %d\n", p.Offset+1, p.Offset+len(p.Issues), p.Total)
	return err
}

func renderSummary(w io.Writer, s model.IssueSummary) error {
	fmt.Fprintf(w, "Total issues: %d\n\n", s.TotalIssues)
	if err := renderCounts(w, "ENTITY", s.IssuesByEntity); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return renderCounts(w, "ISSUE TYPE", s.IssuesByType)
}

func renderCounts(w io.Writer, heading string, counts map[string]int) error {
	if len(counts) == 0 {
		return nil
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\tCOUNT\n", heading)
	for _, k := range keys {
		fmt.Fprintf(tw, "%s\t%d\n", k, counts[k])
	}
	return tw.Flush()
}
