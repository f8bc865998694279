package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ResourcesTotal is a snapshot of resource counts by driver and status,
	// refreshed by the Collector on each of its ticks.
	ResourcesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "poolkeeper_resources_total",
			Help: "Total number of resources by driver and status",
		},
		[]string{"driver", "status"},
	)

	PoolSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "poolkeeper_pool_size",
			Help: "Current pool population per driver",
		},
		[]string{"driver"},
	)

	UnusedSetSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "poolkeeper_unused_set_size",
			Help: "Current unused set size per driver and status",
		},
		[]string{"driver", "status"},
	)

	BalanceCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poolkeeper_balance_cycles_total",
			Help: "Total number of balance() cycles run per driver",
		},
		[]string{"driver"},
	)

	BalanceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "poolkeeper_balance_duration_seconds",
			Help:    "Time taken for one balance() cycle, per driver",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"driver"},
	)

	TasksPushedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poolkeeper_tasks_pushed_total",
			Help: "Total number of tasks pushed onto the queue by kind",
		},
		[]string{"kind"},
	)

	TasksFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poolkeeper_tasks_failed_total",
			Help: "Total number of tasks that ended in their fail_state, by kind",
		},
		[]string{"kind"},
	)

	TaskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "poolkeeper_task_duration_seconds",
			Help:    "Time taken for a worker to execute one task, by kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "poolkeeper_queue_depth",
			Help: "Number of tasks currently queued, awaiting a worker",
		},
	)

	ReaperDeletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "poolkeeper_reaper_deleted_total",
			Help: "Total number of resources removed from the store by the reaper",
		},
	)

	ReaperDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "poolkeeper_reaper_duration_seconds",
			Help:    "Time taken for one reaper sweep",
			Buckets: prometheus.DefBuckets,
		},
	)

	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poolkeeper_api_requests_total",
			Help: "Total number of API requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "poolkeeper_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(
		ResourcesTotal,
		PoolSize,
		UnusedSetSize,
		BalanceCyclesTotal,
		BalanceDuration,
		TasksPushedTotal,
		TasksFailedTotal,
		TaskDuration,
		QueueDepth,
		ReaperDeletedTotal,
		ReaperDuration,
		APIRequestsTotal,
		APIRequestDuration,
	)
}

// Handler returns the Prometheus HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations against a histogram.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time to a labeled histogram.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
