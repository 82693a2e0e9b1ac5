package mapping

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/kobosync/internal/model"
	"github.com/JonMunkholm/kobosync/internal/record"
)

// cancelCheckEvery bounds how many records a task maps between context
// checks.
const cancelCheckEvery = 256

// Result is a mapped batch and the diagnostics raised while mapping it.
type Result struct {
	Batch       model.Batch
	Diagnostics []Diagnostic
}

// MapBatch maps recs with one task per entity category. The tasks share
// only the read-only input; each owns the slice it fills.
func (m Mapper) MapBatch(ctx context.Context, recs []record.Record) (Result, error) {
	var (
		b           model.Batch
		clientDiags []Diagnostic
		surveyDiags []Diagnostic
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for i, r := range recs {
			if err := checkCtx(ctx, i); err != nil {
				return err
			}
			if loc, ok := m.MapLocation(r); ok {
				b.Locations = append(b.Locations, loc)
			}
		}
		return nil
	})

	g.Go(func() error {
		for i, r := range recs {
			if err := checkCtx(ctx, i); err != nil {
				return err
			}
			if s, ok := m.MapSurveyor(r); ok {
				b.Surveyors = append(b.Surveyors, s)
			}
		}
		return nil
	})

	g.Go(func() error {
		for i, r := range recs {
			if err := checkCtx(ctx, i); err != nil {
				return err
			}
			c, d, ok := m.MapClient(r)
			clientDiags = append(clientDiags, d...)
			if ok {
				b.Clients = append(b.Clients, c)
			}
		}
		return nil
	})

	g.Go(func() error {
		for i, r := range recs {
			if err := checkCtx(ctx, i); err != nil {
				return err
			}
			s, d, ok := m.MapSurvey(r)
			surveyDiags = append(surveyDiags, d...)
			if ok {
				b.Surveys = append(b.Surveys, s)
			}
		}
		return nil
	})

	g.Go(func() error {
		for i, r := range recs {
			if err := checkCtx(ctx, i); err != nil {
				return err
			}
			if _, ok := r.ID(); !ok {
				continue
			}
			b.Responses = append(b.Responses, m.MapResponses(r)...)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	return Result{
		Batch:       b,
		Diagnostics: append(surveyDiags, clientDiags...),
	}, nil
}

func checkCtx(ctx context.Context, i int) error {
	if i%cancelCheckEvery != 0 {
		return nil
	}
	return ctx.Err()
}
