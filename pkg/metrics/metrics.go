// Package metrics exposes the Prometheus collectors of the sync service. Every helper
// is safe to call on a nil *Metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cricmirror"

type Metrics struct {
	JobRuns          *prometheus.CounterVec
	JobDuration      *prometheus.HistogramVec
	JobSkipped       *prometheus.CounterVec
	DispatchDropped  *prometheus.CounterVec
	UpstreamRequests *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
	CircuitState     *prometheus.GaugeVec
	DocumentsWritten *prometheus.CounterVec
	PauseWindow      prometheus.Gauge
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
}

// New registers the collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		JobRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Job executions by terminal status.",
		}, []string{"job", "status"}),
		JobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Job execution time.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		}, []string{"job"}),
		JobSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_skipped_total",
			Help:      "Jobs dropped before execution.",
		}, []string{"job", "reason"}),
		DispatchDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_dropped_total",
			Help:      "Dispatches rejected because the worker pool was full.",
		}, []string{"job"}),
		UpstreamRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Cricbuzz API requests by route and outcome.",
		}, []string{"route", "outcome"}),
		UpstreamDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Cricbuzz API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		CircuitState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state: 0 closed, 1 half-open, 2 open.",
		}, []string{"name"}),
		DocumentsWritten: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_written_total",
			Help:      "Documents upserted into the document store.",
		}, []string{"collection"}),
		PauseWindow: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pause_window_active",
			Help:      "1 while the pause window suppresses background work.",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Admin API requests by route pattern and status code.",
		}, []string{"method", "route", "code"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Admin API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// NewUnregistered builds collectors on a private registry
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}

func (m *Metrics) ObserveJob(job, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.JobRuns.WithLabelValues(job, status).Inc()
	m.JobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *Metrics) JobSkip(job, reason string) {
	if m == nil {
		return
	}
	m.JobSkipped.WithLabelValues(job, reason).Inc()
}

func (m *Metrics) DispatchDrop(job string) {
	if m == nil {
		return
	}
	m.DispatchDropped.WithLabelValues(job).Inc()
}

func (m *Metrics) ObserveUpstream(route, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamRequests.WithLabelValues(route, outcome).Inc()
	m.UpstreamDuration.WithLabelValues(route).Observe(d.Seconds())
}

func (m *Metrics) SetCircuitState(name string, state float64) {
	if m == nil {
		return
	}
	m.CircuitState.WithLabelValues(name).Set(state)
}

func (m *Metrics) DocumentWritten(collection string) {
	if m == nil {
		return
	}
	m.DocumentsWritten.WithLabelValues(collection).Inc()
}

func (m *Metrics) SetPaused(paused bool) {
	if m == nil {
		return
	}
	if paused {
		m.PauseWindow.Set(1)
		return
	}
	m.PauseWindow.Set(0)
}

func (m *Metrics) ObserveHTTP(method, route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
