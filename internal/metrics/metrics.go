// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UploadsTotal counts upload attempts by outcome
	// (accepted, invalid, duplicate, error).
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_uploads_total",
			Help: "Total upload attempts by outcome",
		},
		[]string{"outcome"},
	)

	JobsFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_jobs_finished_total",
			Help: "Total processing runs by final job status",
		},
		[]string{"status"},
	)

	IssuesCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_issues_created_total",
			Help: "Total issues created by type",
		},
		[]string{"type"},
	)

	StagedRowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_staged_rows_total",
			Help: "Total staging rows inserted",
		},
	)

	ProcessingDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingest_processing_duration_seconds",
			Help:    "Duration of processing runs",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	// QueueDroppedTotal counts jobs the in-process pool refused because its
	// queue was full.
	QueueDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_local_queue_dropped_total",
			Help: "Jobs dropped by the in-process pool",
		},
	)
)
