package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/kobosync/internal/logging"
	"github.com/JonMunkholm/kobosync/internal/metrics"
	"github.com/JonMunkholm/kobosync/internal/model"
	"github.com/JonMunkholm/kobosync/internal/quality"
	"github.com/JonMunkholm/kobosync/internal/record"
	"github.com/JonMunkholm/kobosync/internal/store"
)

// MaxIssueLimit caps a single page of issues.
const MaxIssueLimit = 1000

// CheckResult is a persisted data-quality check.
type CheckResult struct {
	CheckID string `json:"check_id"`
	quality.Report
	DurationMS int64 `json:"duration_ms"`
}

// CheckQuality validates recs, or a fresh fetch when recs is nil, and
// appends every issue found to the audit log. Individual rule failures are
// part of the result, not errors; only a failed fetch or write fails the
// check.
func (s *Service) CheckQuality(ctx context.Context, recs []record.Record) (*CheckResult, error) {
	start := time.Now()
	checkID := uuid.NewString()
	logger := logging.WithFields(ctx, "check_id", checkID, "trigger", string(TriggerFromContext(ctx)))

	if recs == nil {
		var err error
		if recs, err = s.fetch(ctx); err != nil {
			logger.Error("fetch failed", "error", err)
			return nil, err
		}
	}

	now := s.clock()
	report, err := quality.NewValidator(now).CheckBatch(ctx, recs)
	if err != nil {
		return nil, fmt.Errorf("check batch: %w", err)
	}

	if err := s.persistIssues(ctx, report.Issues, now); err != nil {
		logger.Error("persist issues failed", "error", err)
		return nil, err
	}

	result := &CheckResult{
		CheckID:    checkID,
		Report:     report,
		DurationMS: time.Since(start).Milliseconds(),
	}
	logger.Info("data quality check completed",
		"records", report.Records,
		"issues", report.Summary.TotalIssues,
		"duration_ms", result.DurationMS,
	)
	return result, nil
}

// persistIssues stamps issues with ids and the pass clock, then appends
// them. A missing audit table is created once and the append retried.
func (s *Service) persistIssues(ctx context.Context, issues []model.Issue, now time.Time) error {
	if len(issues) == 0 {
		return nil
	}
	for i := range issues {
		if issues[i].ID == "" {
			issues[i].ID = uuid.NewString()
		}
		if issues[i].CreatedAt.IsZero() {
			issues[i].CreatedAt = now
		}
	}

	err := s.gw.AppendIssues(ctx, issues)
	if isMissingTable(err) {
		if err = s.gw.EnsureSchema(ctx); err == nil {
			err = s.gw.AppendIssues(ctx, issues)
		}
	}
	if err != nil {
		return fmt.Errorf("append issues: %w", err)
	}

	for _, issue := range issues {
		metrics.IssuesRecorded.WithLabelValues(string(issue.EntityType), string(issue.Type)).Inc()
	}
	return nil
}

// ListIssues returns one page of the audit log, newest first.
func (s *Service) ListIssues(ctx context.Context, f store.IssueFilter) (store.IssuePage, error) {
	f = f.Normalize()
	if f.Limit > MaxIssueLimit {
		f.Limit = MaxIssueLimit
	}
	page, err := s.gw.ListIssues(ctx, f)
	if isMissingTable(err) {
		return store.IssuePage{Issues: []model.Issue{}, Limit: f.Limit, Offset: f.Offset}, nil
	}
	if err != nil {
		return page, fmt.Errorf("list issues: %w", err)
	}
	return page, nil
}

// IssueSummary aggregates the whole audit log.
func (s *Service) IssueSummary(ctx context.Context) (model.IssueSummary, error) {
	summary, err := s.gw.IssueSummary(ctx)
	if isMissingTable(err) {
		return model.NewIssueSummary(), nil
	}
	if err != nil {
		return summary, fmt.Errorf("summarize issues: %w", err)
	}
	return summary, nil
}
