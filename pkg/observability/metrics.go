package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the clustering training service.
type Metrics struct {
	// Replicate / iteration metrics
	ReplicatesTotal  *prometheus.CounterVec
	IterationsTotal  prometheus.Counter
	TrainingDuration *prometheus.HistogramVec

	// Quality metrics
	EVAScore              prometheus.Gauge
	ClustersDroppedTotal  prometheus.Counter
	PostOptRemovalsTotal  prometheus.Counter

	// Job metrics
	ActiveJobs   prometheus.Gauge
	JobsTotal    *prometheus.CounterVec
	JobQueueSize prometheus.Gauge

	// Request metrics (REST surface, C13)
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestErrors   *prometheus.CounterVec

	// System metrics
	GoroutinesCount prometheus.Gauge
	MemoryUsage     prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		ReplicatesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mlclusters_replicates_total",
				Help: "Total number of replicates run, by outcome",
			},
			[]string{"outcome"},
		),
		IterationsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mlclusters_iterations_total",
				Help: "Total number of Lloyd-loop iterations executed across all replicates",
			},
		),
		TrainingDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mlclusters_training_duration_seconds",
				Help:    "Training run duration in seconds, by mode",
				Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"mode"},
		),

		EVAScore: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "mlclusters_eva_score",
				Help: "EVA score of the most recently completed training run",
			},
		),
		ClustersDroppedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mlclusters_clusters_dropped_total",
				Help: "Total number of clusters dropped for emptiness across all runs",
			},
		),
		PostOptRemovalsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mlclusters_post_opt_removals_total",
				Help: "Total number of clusters removed by the post-optimiser's greedy descent",
			},
		),

		ActiveJobs: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "mlclusters_active_jobs",
				Help: "Number of training jobs currently running",
			},
		),
		JobsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mlclusters_jobs_total",
				Help: "Total number of training jobs submitted, by terminal status",
			},
			[]string{"status"},
		),
		JobQueueSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "mlclusters_job_queue_size",
				Help: "Number of training jobs waiting to be admitted",
			},
		),

		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mlclusters_requests_total",
				Help: "Total number of HTTP requests by method and status",
			},
			[]string{"method", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mlclusters_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method"},
		),
		RequestErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mlclusters_request_errors_total",
				Help: "Total number of HTTP request errors by method and error type",
			},
			[]string{"method", "error_type"},
		),

		GoroutinesCount: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "mlclusters_goroutines",
				Help: "Current number of goroutines",
			},
		),
		MemoryUsage: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "mlclusters_memory_bytes",
				Help: "Memory usage in bytes",
			},
		),
	}

	return m
}

// RecordReplicate records the outcome of one replicate (e.g. "ok",
// "cancelled", "error") and the iterations it ran.
func (m *Metrics) RecordReplicate(outcome string, iterations int) {
	m.ReplicatesTotal.WithLabelValues(outcome).Inc()
	m.IterationsTotal.Add(float64(iterations))
}

// RecordTraining records the wall-clock duration of a completed training
// run, by mode ("full" or "minibatch").
func (m *Metrics) RecordTraining(mode string, duration time.Duration) {
	m.TrainingDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordEVA updates the most-recent-run EVA gauge.
func (m *Metrics) RecordEVA(score float64) {
	m.EVAScore.Set(score)
}

// RecordClustersDropped increments the empty-cluster drop counter.
func (m *Metrics) RecordClustersDropped(count int) {
	m.ClustersDroppedTotal.Add(float64(count))
}

// RecordPostOptRemovals increments the post-optimiser removal counter.
func (m *Metrics) RecordPostOptRemovals(count int) {
	m.PostOptRemovalsTotal.Add(float64(count))
}

// JobStarted increments the active-jobs gauge.
func (m *Metrics) JobStarted() {
	m.ActiveJobs.Inc()
}

// JobFinished decrements the active-jobs gauge and records a terminal
// status ("done", "failed", "cancelled").
func (m *Metrics) JobFinished(status string) {
	m.ActiveJobs.Dec()
	m.JobsTotal.WithLabelValues(status).Inc()
}

// RecordRequest records an HTTP request with duration and status.
func (m *Metrics) RecordRequest(method, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, status).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordError records an HTTP request error.
func (m *Metrics) RecordError(method, errorType string) {
	m.RequestErrors.WithLabelValues(method, errorType).Inc()
}

// UpdateGoroutineCount updates the goroutine-count gauge.
func (m *Metrics) UpdateGoroutineCount(count int) {
	m.GoroutinesCount.Set(float64(count))
}

// UpdateMemoryUsage updates the memory-usage gauge.
func (m *Metrics) UpdateMemoryUsage(bytes uint64) {
	m.MemoryUsage.Set(float64(bytes))
}
