// Package metrics exposes Prometheus instruments for jobs, activity
// invocations and callbacks. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mediaflow"

// Metrics owns a private registry so tests and embedded use never collide
// with the global default registry.
type Metrics struct {
	registry *prometheus.Registry

	jobsSubmitted prometheus.Counter
	jobsFinished  *prometheus.CounterVec
	jobsRunning   prometheus.Gauge
	jobsQueued    prometheus.Gauge

	invocations        *prometheus.CounterVec
	invocationDuration *prometheus.HistogramVec
	retries            *prometheus.CounterVec

	callbacks *prometheus.CounterVec
}

// New registers every instrument on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		jobsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "jobs", Name: "submitted_total",
			Help: "Jobs accepted by the orchestrator.",
		}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "jobs", Name: "finished_total",
			Help: "Jobs that reached a terminal state, by state.",
		}, []string{"state"}),
		jobsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "jobs", Name: "running",
			Help: "Jobs currently staging or running tasks.",
		}),
		jobsQueued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "jobs", Name: "queued",
			Help: "Jobs waiting for a concurrency slot.",
		}),
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "activity", Name: "invocations_total",
			Help: "Activity step invocations, by outcome.",
		}, []string{"activity", "step", "outcome"}),
		invocationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "activity", Name: "invocation_seconds",
			Help:    "Wall time of activity step invocations including retries.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
		}, []string{"activity", "step"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "activity", Name: "retries_total",
			Help: "Attempts retried after a retryable failure.",
		}, []string{"activity", "step", "kind"}),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "callback", Name: "deliveries_total",
			Help: "Callback deliveries, by payload kind and outcome.",
		}, []string{"kind", "outcome"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.jobsSubmitted, m.jobsFinished, m.jobsRunning, m.jobsQueued,
		m.invocations, m.invocationDuration, m.retries, m.callbacks,
	)
	return m
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) JobSubmitted() {
	if m == nil {
		return
	}
	m.jobsSubmitted.Inc()
	m.jobsQueued.Inc()
}

func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.jobsQueued.Dec()
	m.jobsRunning.Inc()
}

// JobFinished records a terminal state. wasRunning is false for jobs that
// ended while still queued.
func (m *Metrics) JobFinished(state string, wasRunning bool) {
	if m == nil {
		return
	}
	if wasRunning {
		m.jobsRunning.Dec()
	} else {
		m.jobsQueued.Dec()
	}
	m.jobsFinished.WithLabelValues(state).Inc()
}

func (m *Metrics) ObserveInvocation(activity, step, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.invocations.WithLabelValues(activity, step, outcome).Inc()
	m.invocationDuration.WithLabelValues(activity, step).Observe(elapsed.Seconds())
}

func (m *Metrics) Retry(activity, step, kind string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(activity, step, kind).Inc()
}

func (m *Metrics) Callback(kind string, err error) {
	if m == nil {
		return
	}
	outcome := "delivered"
	if err != nil {
		outcome = "failed"
	}
	m.callbacks.WithLabelValues(kind, outcome).Inc()
}
