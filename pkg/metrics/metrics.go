package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "plantpal"

// Metrics groups the collectors exported on /metrics
type Metrics struct {
	RepositoryDuration *prometheus.HistogramVec
	RepositoryCalls    *prometheus.CounterVec
	TaskEvents         *prometheus.CounterVec
	OpenSessions       prometheus.Gauge
	RemindersSent      prometheus.Counter

	gatherer prometheus.Gatherer
}

// New registers the collectors on a fresh registry
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry registers the collectors on reg
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RepositoryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "repository",
			Name:      "call_duration_seconds",
			Help:      "Latency of task repository calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		RepositoryCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "repository",
			Name:      "calls_total",
			Help:      "Task repository calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		TaskEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_events_total",
			Help:      "Confirmed task lifecycle changes.",
		}, []string{"type"}),
		OpenSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_sessions",
			Help:      "Users with an open task store.",
		}),
		RemindersSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_sent_total",
			Help:      "Daily task reminders pushed to devices.",
		}),
		gatherer: reg,
	}
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
