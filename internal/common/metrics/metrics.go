// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_model_requests_total",
			Help: "Total number of search model requests by mode and outcome",
		},
		[]string{"model", "mode", "status"},
	)

	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "search_model_request_duration_seconds",
			Help:    "Duration of search model requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model", "mode"},
	)

	SearchDocumentsReturned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_model_documents_returned_total",
			Help: "Total number of documents returned by search models",
		},
		[]string{"model", "mode"},
	)

	ScanBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_model_scan_batches_total",
			Help: "Total number of batch requests issued by full scans",
		},
		[]string{"model"},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)
