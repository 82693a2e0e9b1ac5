// Package metrics holds the Prometheus collectors for fetch, sync and
// data-quality passes. Collectors register with the default registry on
// package init and are served by Handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Fetch
	FetchPages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kobosync_fetch_pages_total",
		Help: "Total number of submission pages fetched",
	})

	FetchRecords = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kobosync_fetch_records_total",
		Help: "Total number of submissions returned by completed fetches",
	})

	FetchRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kobosync_fetch_retries_total",
		Help: "Total number of whole-fetch retries after transport failures",
	})

	// Sync
	SyncPasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kobosync_sync_passes_total",
		Help: "Sync passes by mode and outcome",
	}, []string{"mode", "status"})

	SyncDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kobosync_sync_duration_seconds",
		Help:    "Wall time of sync passes",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"mode"})

	LastSyncSuccess = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "kobosync_last_sync_success_timestamp_seconds",
		Help: "Unix time of the last successful sync pass",
	}, []string{"mode"})

	RowsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kobosync_rows_applied_total",
		Help: "Entity rows applied by the sync engine, by entity and action",
	}, []string{"entity", "action"})

	MappingDiagnostics = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kobosync_mapping_diagnostics_total",
		Help: "Fields that degraded to an absent or unknown value during mapping",
	}, []string{"field"})

	// Data quality
	IssuesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kobosync_issues_recorded_total",
		Help: "Data-quality issues persisted, by entity and issue type",
	}, []string{"entity", "issue_type"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
