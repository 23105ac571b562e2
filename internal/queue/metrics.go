package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapdocs_jobs_enqueued_total",
			Help: "Jobs added to a queue",
		},
		[]string{"queue", "job"},
	)

	jobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapdocs_jobs_processed_total",
			Help: "Job attempts by outcome (completed, retried, failed)",
		},
		[]string{"queue", "job", "outcome"},
	)

	jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snapdocs_job_duration_seconds",
			Help:    "Handler run time per attempt",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"queue", "job"},
	)

	queueJobs = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "snapdocs_queue_jobs",
			Help: "Jobs per queue and status at the last stats collection",
		},
		[]string{"queue", "status"},
	)
)

func recordCounts(queue string, c Counts) {
	queueJobs.WithLabelValues(queue, string(StatusWaiting)).Set(float64(c.Waiting))
	queueJobs.WithLabelValues(queue, string(StatusActive)).Set(float64(c.Active))
	queueJobs.WithLabelValues(queue, string(StatusCompleted)).Set(float64(c.Completed))
	queueJobs.WithLabelValues(queue, string(StatusFailed)).Set(float64(c.Failed))
}
