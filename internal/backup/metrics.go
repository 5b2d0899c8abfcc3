package backup

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduled_backup_runs_total",
			Help: "Total number of engine invocations",
		},
		[]string{"result"}, // "ok", "fatal"
	)

	SchedulesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduled_backup_schedules_total",
			Help: "Schedules processed, by outcome status",
		},
		[]string{"status"},
	)

	StageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduled_backup_stage_failures_total",
			Help: "Per-schedule failures by pipeline stage",
		},
		[]string{"stage"},
	)

	ScheduleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scheduled_backup_schedule_duration_seconds",
			Help:    "Wall time spent on one schedule",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	RowsExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduled_backup_rows_extracted_total",
			Help: "Rows read from source tables",
		},
		[]string{"table"},
	)

	ExtractionTruncations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduled_backup_extraction_truncations_total",
			Help: "Table extractions cut short by a read error",
		},
		[]string{"table"},
	)

	ArtifactBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scheduled_backup_artifact_bytes",
			Help:    "Size of uploaded artifacts",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 12),
		},
	)

	RetentionDeletions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduled_backup_retention_deletions_total",
			Help: "Ledger entries removed by retention",
		},
		[]string{"result"}, // "ok", "partial"
	)
)
