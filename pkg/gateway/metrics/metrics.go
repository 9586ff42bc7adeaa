// Package metrics exposes Prometheus instrumentation for the gateway.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	registry *prometheus.Registry

	SessionsActive  prometheus.Gauge
	SessionsTotal   *prometheus.CounterVec
	SessionDuration prometheus.Histogram

	EventsTotal *prometheus.CounterVec

	ToolExecutionsTotal *prometheus.CounterVec
	ToolDuration        *prometheus.HistogramVec

	ContextConflictsTotal prometheus.Counter
}

// New creates a Metrics instance with all collectors registered on a
// private registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "pitchline"
	}

	registry := prometheus.NewRegistry()

	sessionsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_sessions_active",
			Help:      "Number of active live sessions",
		},
	)

	sessionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_sessions_total",
			Help:      "Total number of live sessions by close reason",
		},
		[]string{"reason"},
	)

	sessionDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "live_session_duration_seconds",
			Help:      "Live session duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)

	eventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_events_total",
			Help:      "Total live protocol events by type and direction",
		},
		[]string{"type", "direction"},
	)

	toolExecutionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_executions_total",
			Help:      "Total tool executions by tool and status",
		},
		[]string{"tool", "status"},
	)

	toolDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_duration_seconds",
			Help:      "Tool execution duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"tool"},
	)

	contextConflictsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "context_version_conflicts_total",
			Help:      "Total optimistic-concurrency conflicts on context writes",
		},
	)

	registry.MustRegister(
		sessionsActive,
		sessionsTotal,
		sessionDuration,
		eventsTotal,
		toolExecutionsTotal,
		toolDuration,
		contextConflictsTotal,
	)

	return &Metrics{
		registry:              registry,
		SessionsActive:        sessionsActive,
		SessionsTotal:         sessionsTotal,
		SessionDuration:       sessionDuration,
		EventsTotal:           eventsTotal,
		ToolExecutionsTotal:   toolExecutionsTotal,
		ToolDuration:          toolDuration,
		ContextConflictsTotal: contextConflictsTotal,
	}
}

// Handler serves the /metrics endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordSessionStart marks a live session as active.
func (m *Metrics) RecordSessionStart() {
	if m == nil {
		return
	}
	m.SessionsActive.Inc()
}

// RecordSessionEnd marks a live session as finished.
func (m *Metrics) RecordSessionEnd(reason string, duration time.Duration) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.SessionsActive.Dec()
	m.SessionsTotal.WithLabelValues(reason).Inc()
	m.SessionDuration.Observe(duration.Seconds())
}

// RecordEvent counts one protocol event. Direction is "in" for client
// frames and "out" for server events.
func (m *Metrics) RecordEvent(eventType, direction string) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(eventType, direction).Inc()
}

// RecordToolExecution records one completed tool run.
func (m *Metrics) RecordToolExecution(tool string, success, cached bool, duration time.Duration) {
	if m == nil {
		return
	}
	status := "error"
	switch {
	case cached:
		status = "cached"
	case success:
		status = "ok"
	}
	m.ToolExecutionsTotal.WithLabelValues(tool, status).Inc()
	if !cached {
		m.ToolDuration.WithLabelValues(tool).Observe(duration.Seconds())
	}
}

// RecordContextConflict counts one lost compare-and-swap on the
// intelligence context.
func (m *Metrics) RecordContextConflict() {
	if m == nil {
		return
	}
	m.ContextConflictsTotal.Inc()
}
