package quality

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/kobosync/internal/model"
	"github.com/JonMunkholm/kobosync/internal/record"
)

// Report is the outcome of one data-quality check.
type Report struct {
	Records int                `json:"records_checked"`
	Summary model.IssueSummary `json:"summary"`
	Issues  []model.Issue      `json:"issues"`
}

// CheckBatch evaluates every entity category over recs concurrently, one task
// per category, and joins them before assembling the report. Issues are
// ordered survey, location, client, surveyor, response regardless of which
// task finishes first.
func (v Validator) CheckBatch(ctx context.Context, recs []record.Record) (Report, error) {
	checks := []func([]record.Record) []model.Issue{
		v.Surveys,
		v.Locations,
		v.Clients,
		v.Surveyors,
		v.Responses,
	}
	results := make([][]model.Issue, len(checks))

	g, ctx := errgroup.WithContext(ctx)
	for i, check := range checks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = check(recs)
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	var issues []model.Issue
	for _, r := range results {
		issues = append(issues, r...)
	}

	return Report{
		Records: len(recs),
		Summary: Summarize(issues),
		Issues:  issues,
	}, nil
}

// Summarize counts issues in total, by issue type and by entity category.
func Summarize(issues []model.Issue) model.IssueSummary {
	s := model.NewIssueSummary()
	for _, is := range issues {
		s.Add(is.EntityType, is.Type)
	}
	return s
}
