package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/kobosync/internal/model"
	"github.com/JonMunkholm/kobosync/internal/store"
)

// DailySurveyCounts returns surveys per survey date, oldest first.
func (s *Service) DailySurveyCounts(ctx context.Context) ([]model.DailyCount, error) {
	out, err := s.gw.DailySurveyCounts(ctx)
	if isMissingTable(err) {
		return []model.DailyCount{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("daily survey counts: %w", err)
	}
	return out, nil
}

// Demographics returns client counts by gender, ten-year age band and
// nationality.
func (s *Service) Demographics(ctx context.Context) ([]model.Demographic, error) {
	out, err := s.gw.Demographics(ctx)
	if isMissingTable(err) {
		return []model.Demographic{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("demographics: %w", err)
	}
	return out, nil
}

func isMissingTable(err error) bool {
	return err != nil && errors.Is(err, store.ErrMissingTable)
}
