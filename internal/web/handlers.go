package web

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/kobosync/internal/core"
	"github.com/JonMunkholm/kobosync/internal/record"
	"github.com/JonMunkholm/kobosync/internal/store"
	"github.com/JonMunkholm/kobosync/internal/web/middleware"
)

// MaxCheckBody bounds the raw-records body accepted by the check endpoint.
const MaxCheckBody = 32 << 20

// handleExtract runs a full sync pass.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	ctx := core.ContextWithTrigger(r.Context(), core.TriggerHTTP)
	result, err := s.service.FullSync(ctx)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	annotatePass(r, result)
	writeJSON(w, http.StatusOK, result)
}

// handleSync runs an incremental pass. The webhook alias only differs in
// the trigger recorded on the pass log.
func (s *Server) handleSync(trigger core.Trigger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := core.ContextWithTrigger(r.Context(), trigger)
		result, err := s.service.IncrementalSync(ctx)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		annotatePass(r, result)
		writeJSON(w, http.StatusOK, result)
	}
}

// handleCheck validates the raw records in the body, or a fresh fetch when
// the body is empty, and persists the issues found.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxCheckBody))
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: read body: %v", core.ErrInvalidRequest, err))
		return
	}

	var recs []record.Record
	if len(bytes.TrimSpace(body)) > 0 {
		if recs, err = record.DecodeBatch(bytes.NewReader(body)); err != nil {
			s.respondError(w, r, fmt.Errorf("%w: %v", core.ErrInvalidRequest, err))
			return
		}
		if recs == nil {
			recs = []record.Record{}
		}
	}

	ctx := core.ContextWithTrigger(r.Context(), core.TriggerHTTP)
	result, err := s.service.CheckQuality(ctx, recs)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	middleware.Annotate(r.Context(), "check_id", result.CheckID, "issues", result.Summary.TotalIssues)
	writeJSON(w, http.StatusOK, result)
}

// annotatePass attaches the pass outcome to the request log line.
func annotatePass(r *http.Request, result *core.SyncResult) {
	inserted, updated := result.Totals()
	middleware.AnnotatePass(r.Context(), result.PassID, string(result.Mode), result.DurationMS)
	middleware.Annotate(r.Context(), "processed", result.Processed, "inserted", inserted, "updated", updated)
}

func (s *Server) handleListIssues(w http.ResponseWriter, r *http.Request) {
	page, err := s.service.ListIssues(r.Context(), s.issueFilter(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.service.IssueSummary(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleExportIssues streams the filtered issues as an XLSX workbook. The
// workbook is buffered so a failed export still answers with a JSON error.
func (s *Server) handleExportIssues(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	n, err := s.service.ExportIssues(r.Context(), s.issueFilter(r), &buf)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	filename := fmt.Sprintf("data_quality_issues_%s.xlsx", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", core.XLSXContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Issue-Count", strconv.Itoa(n))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

func (s *Server) handleDailySurveys(w http.ResponseWriter, r *http.Request) {
	counts, err := s.service.DailySurveyCounts(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"daily_surveys": counts})
}

func (s *Server) handleDemographics(w http.ResponseWriter, r *http.Request) {
	rows, err := s.service.Demographics(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"demographics": rows})
}

// issueFilter reads the issue query parameters. The limit falls back to
// QUALITY_DEFAULT_LIMIT and is capped at QUALITY_MAX_LIMIT.
func (s *Server) issueFilter(r *http.Request) store.IssueFilter {
	q := r.URL.Query()
	limit := parseIntParam(r, "limit", s.cfg.Quality.DefaultLimit, 1)
	if limit > s.cfg.Quality.MaxLimit {
		limit = s.cfg.Quality.MaxLimit
	}
	return store.IssueFilter{
		EntityType: q.Get("entity_type"),
		IssueType:  q.Get("issue_type"),
		EntityID:   q.Get("entity_id"),
		Limit:      limit,
		Offset:     parseIntParam(r, "offset", 0, 0),
	}
}

// parseIntParam parses an integer query parameter, returning defaultVal
// when it is absent, malformed or below floor.
func parseIntParam(r *http.Request, name string, defaultVal, floor int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < floor {
		return defaultVal
	}
	return i
}
