package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/kobosync/internal/lock"
	"github.com/JonMunkholm/kobosync/internal/logging"
	"github.com/JonMunkholm/kobosync/internal/mapping"
	"github.com/JonMunkholm/kobosync/internal/metrics"
	"github.com/JonMunkholm/kobosync/internal/model"
	"github.com/JonMunkholm/kobosync/internal/quality"
	"github.com/JonMunkholm/kobosync/internal/record"
	"github.com/JonMunkholm/kobosync/internal/store"
)

// Mode selects full or incremental extraction.
type Mode string

const (
	ModeFull        Mode = "full"
	ModeIncremental Mode = "incremental"
)

// EntityCounts tallies what a pass did to one entity category.
type EntityCounts struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
}

// SyncResult summarizes one committed pass.
type SyncResult struct {
	PassID      string                             `json:"pass_id"`
	Mode        Mode                               `json:"mode"`
	Since       *time.Time                         `json:"since,omitempty"`
	Fetched     int                                `json:"records_fetched"`
	Processed   int                                `json:"records_processed"`
	Entities    map[model.EntityType]*EntityCounts `json:"entities"`
	Diagnostics []mapping.Diagnostic               `json:"diagnostics,omitempty"`
	Quality     *model.IssueSummary                `json:"quality,omitempty"`
	StartedAt   time.Time                          `json:"started_at"`
	DurationMS  int64                              `json:"duration_ms"`
}

// Totals sums inserted and updated rows over every entity category.
func (r *SyncResult) Totals() (inserted, updated int) {
	for _, c := range r.Entities {
		inserted += c.Inserted
		updated += c.Updated
	}
	return inserted, updated
}

func newEntityCounts() map[model.EntityType]*EntityCounts {
	out := make(map[model.EntityType]*EntityCounts, len(model.EntityTypes))
	for _, e := range model.EntityTypes {
		out[e] = &EntityCounts{}
	}
	return out
}

// FullSync fetches every submission and applies all of them.
func (s *Service) FullSync(ctx context.Context) (*SyncResult, error) {
	return s.runPass(ctx, ModeFull, nil)
}

// IncrementalSync fetches every submission and applies only those submitted
// strictly after the newest submission already stored. With nothing stored
// it applies everything, exactly like FullSync.
func (s *Service) IncrementalSync(ctx context.Context) (*SyncResult, error) {
	return s.runPass(ctx, ModeIncremental, nil)
}

// SyncRecords runs a pass over caller-supplied records instead of fetching.
func (s *Service) SyncRecords(ctx context.Context, mode Mode, recs []record.Record) (*SyncResult, error) {
	if recs == nil {
		recs = []record.Record{}
	}
	return s.runPass(ctx, mode, recs)
}

// runPass executes one pass under the pass lock. recs == nil means fetch.
func (s *Service) runPass(ctx context.Context, mode Mode, recs []record.Record) (result *SyncResult, err error) {
	start := time.Now()
	passID := uuid.NewString()
	logger := logging.WithFields(ctx, "pass_id", passID, "mode", string(mode), "trigger", string(TriggerFromContext(ctx)))

	defer func() {
		status := "success"
		if err != nil {
			status = "failure"
		}
		metrics.SyncPasses.WithLabelValues(string(mode), status).Inc()
		metrics.SyncDuration.WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())
	}()

	release, err := s.locker.Acquire(ctx, passLockName)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			return nil, fmt.Errorf("%w: %w", ErrPassInProgress, err)
		}
		return nil, fmt.Errorf("acquire pass lock: %w", err)
	}
	defer func() {
		if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
			logger.Warn("release pass lock failed", "error", rerr)
		}
	}()

	if s.syncTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, s.syncTimeout, ErrPassTimeout)
		defer cancel()

		passCtx := ctx
		defer func() {
			if err != nil && errors.Is(context.Cause(passCtx), ErrPassTimeout) && !errors.Is(err, ErrPassTimeout) {
				err = fmt.Errorf("%w: %w", ErrPassTimeout, err)
			}
		}()
	}

	logger.Info("sync pass started")

	if err := s.gw.EnsureSchema(ctx); err != nil {
		logger.Error("schema evolution failed", "error", err)
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	result = &SyncResult{
		PassID:    passID,
		Mode:      mode,
		StartedAt: start.UTC(),
		Entities:  newEntityCounts(),
	}

	if recs == nil {
		fetchStart := time.Now()
		recs, err = s.fetch(ctx)
		if err != nil {
			logger.Error("fetch failed", "error", err)
			return nil, err
		}
		logger.Info("fetched submissions",
			"records", len(recs),
			"duration_ms", time.Since(fetchStart).Milliseconds(),
		)
	}
	result.Fetched = len(recs)

	if mode == ModeIncremental {
		latest, found, err := s.gw.LatestSubmission(ctx)
		if err != nil {
			return nil, fmt.Errorf("read latest submission: %w", err)
		}
		if found {
			result.Since = &latest
			recs = SubmittedAfter(recs, latest)
			logger.Info("filtered to new submissions", "since", latest, "records", len(recs))
		}
	}
	result.Processed = len(recs)

	now := s.clock()
	mapped, report, err := s.prepare(ctx, now, recs)
	if err != nil {
		return nil, err
	}
	result.Diagnostics = mapped.Diagnostics
	logDiagnostics(logger, mapped.Diagnostics)

	applyStart := time.Now()
	err = store.WithTx(ctx, s.gw, func(tx store.Tx) error {
		// Restart counts: WithTx may run this function twice.
		result.Entities = newEntityCounts()
		return apply(ctx, tx, mapped.Batch, result.Entities)
	})
	if err != nil {
		logger.Error("sync pass rolled back", "error", err)
		return nil, fmt.Errorf("apply batch: %w", err)
	}
	recordApplied(result.Entities)

	inserted, updated := result.Totals()
	logger.Info("batch committed",
		"inserted", inserted,
		"updated", updated,
		"diagnostics", len(mapped.Diagnostics),
		"duration_ms", time.Since(applyStart).Milliseconds(),
	)

	if report != nil {
		if err := s.persistIssues(ctx, report.Issues, now); err != nil {
			return nil, err
		}
		result.Quality = &report.Summary
	}

	result.DurationMS = time.Since(start).Milliseconds()
	metrics.LastSyncSuccess.WithLabelValues(string(mode)).SetToCurrentTime()
	logger.Info("sync pass completed", "duration_ms", result.DurationMS)
	return result, nil
}

// prepare maps recs and, when enabled, validates them concurrently. Both
// read the same immutable batch.
func (s *Service) prepare(ctx context.Context, now time.Time, recs []record.Record) (mapping.Result, *quality.Report, error) {
	var (
		mapped mapping.Result
		report *quality.Report
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		mapped, err = mapping.New(now).MapBatch(gctx, recs)
		if err != nil {
			return fmt.Errorf("map batch: %w", err)
		}
		return nil
	})
	if s.qualityOnSync {
		g.Go(func() error {
			r, err := quality.NewValidator(now).CheckBatch(gctx, recs)
			if err != nil {
				return fmt.Errorf("check batch: %w", err)
			}
			report = &r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return mapping.Result{}, nil, err
	}
	return mapped, report, nil
}

// SubmittedAfter keeps records whose submission time parses and is strictly
// after since.
func SubmittedAfter(recs []record.Record, since time.Time) []record.Record {
	out := make([]record.Record, 0, len(recs))
	for _, r := range recs {
		ts, err := mapping.ParseTimestamp(r.String(record.KeySubmissionTime))
		if err != nil || !ts.Valid {
			continue
		}
		if ts.Time.After(since) {
			out = append(out, r)
		}
	}
	return out
}

// apply writes a mapped batch in dependency order: locations and surveyors,
// then clients, surveys and their responses.
func apply(ctx context.Context, tx store.Tx, b model.Batch, counts map[model.EntityType]*EntityCounts) error {
	for _, l := range firstByKey(b.Locations, func(l model.Location) string { return l.ID }) {
		if err := insertOnce(ctx, tx, store.Locations, store.LocationRow(l), counts[model.EntityLocation]); err != nil {
			return fmt.Errorf("location %q: %w", l.ID, err)
		}
	}

	for _, sv := range firstByKey(b.Surveyors, func(sv model.Surveyor) string { return sv.Name }) {
		if err := insertOnce(ctx, tx, store.Surveyors, store.SurveyorRow(sv), counts[model.EntitySurveyor]); err != nil {
			return fmt.Errorf("surveyor %q: %w", sv.Name, err)
		}
	}

	for _, c := range lastByKey(b.Clients, func(c model.Client) string { return c.ManifestID }) {
		err := upsert(ctx, tx, store.Clients, []any{c.ManifestID}, counts[model.EntityClient], func(v int64) []any {
			c.Version = v
			return store.ClientRow(c)
		})
		if err != nil {
			return fmt.Errorf("client %q: %w", c.ManifestID, err)
		}
	}

	for _, sv := range lastByKey(b.Surveys, func(sv model.Survey) string { return strconv.FormatInt(sv.ID, 10) }) {
		err := upsert(ctx, tx, store.Surveys, []any{sv.ID}, counts[model.EntitySurvey], func(v int64) []any {
			sv.Version = v
			return store.SurveyRow(sv)
		})
		if err != nil {
			return fmt.Errorf("survey %d: %w", sv.ID, err)
		}
	}

	responseKey := func(r model.Response) string {
		return mapping.ResponseKey(r.SurveyID, r.UniqueID, r.QuestionKey)
	}
	for _, r := range lastByKey(b.Responses, responseKey) {
		key := []any{r.SurveyID, r.UniqueID, r.QuestionKey}
		err := upsert(ctx, tx, store.Responses, key, counts[model.EntityResponse], func(v int64) []any {
			r.Version = v
			return store.ResponseRow(r)
		})
		if err != nil {
			return fmt.Errorf("response %s: %w", responseKey(r), err)
		}
	}
	return nil
}

// insertOnce creates row if its key is absent. Existing rows are left alone.
func insertOnce(ctx context.Context, tx store.Tx, t *store.Table, row []any, c *EntityCounts) error {
	inserted, err := tx.Insert(ctx, t, row)
	if err != nil {
		return err
	}
	if inserted {
		c.Inserted++
	} else {
		c.Unchanged++
	}
	return nil
}

// upsert writes the row built for the next version of key: 1 when absent,
// stored+1 otherwise.
func upsert(ctx context.Context, tx store.Tx, t *store.Table, key []any, c *EntityCounts, build func(version int64) []any) error {
	version, found, err := tx.Lookup(ctx, t, key)
	if err != nil {
		return err
	}
	next := int64(1)
	if found {
		next = version + 1
	}
	if err := tx.Upsert(ctx, t, build(next)); err != nil {
		return err
	}
	if found {
		c.Updated++
	} else {
		c.Inserted++
	}
	return nil
}

// firstByKey drops later duplicates, keeping input order.
func firstByKey[T any](items []T, key func(T) string) []T {
	seen := make(map[string]bool, len(items))
	out := make([]T, 0, len(items))
	for _, it := range items {
		k := key(it)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, it)
	}
	return out
}

// lastByKey keeps the last occurrence of each key at the position of its
// first occurrence.
func lastByKey[T any](items []T, key func(T) string) []T {
	pos := make(map[string]int, len(items))
	out := make([]T, 0, len(items))
	for _, it := range items {
		k := key(it)
		if i, ok := pos[k]; ok {
			out[i] = it
			continue
		}
		pos[k] = len(out)
		out = append(out, it)
	}
	return out
}

func recordApplied(counts map[model.EntityType]*EntityCounts) {
	for entity, c := range counts {
		metrics.RowsApplied.WithLabelValues(string(entity), "inserted").Add(float64(c.Inserted))
		metrics.RowsApplied.WithLabelValues(string(entity), "updated").Add(float64(c.Updated))
		metrics.RowsApplied.WithLabelValues(string(entity), "unchanged").Add(float64(c.Unchanged))
	}
}

func logDiagnostics(logger *slog.Logger, diags []mapping.Diagnostic) {
	for _, d := range diags {
		metrics.MappingDiagnostics.WithLabelValues(string(d.Field)).Inc()
		logger.Warn("mapping degraded field",
			"record_id", d.RecordID,
			"field", string(d.Field),
			"raw", d.Raw,
			"reason", d.Reason,
		)
	}
}
