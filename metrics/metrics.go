package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SetupAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_setup_attempts_total",
			Help: "Total number of component and domain setup attempts by outcome",
		},
		[]string{"kind", "outcome"},
	)

	SetupRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_setup_retries_total",
			Help: "Total number of deferred not-ready retries scheduled",
		},
		[]string{"kind"},
	)

	SetupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "argus_setup_duration_seconds",
			Help:    "Time taken by setup routines",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	DomainsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "argus_domains_pruned_total",
			Help: "Total number of pending domains pruned for unsatisfied dependencies",
		},
	)

	WorkerPoolActiveWorkers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "argus_worker_pool_active_workers",
			Help: "Number of active workers per pool (-1 after a leaked shutdown)",
		},
		[]string{"pool"},
	)

	WorkerPoolQueueSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "argus_worker_pool_queue_size",
			Help: "Number of queued tasks per pool",
		},
		[]string{"pool"},
	)

	WorkerPoolTasksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_worker_pool_tasks_processed_total",
			Help: "Total number of tasks processed per pool",
		},
		[]string{"pool"},
	)
)
