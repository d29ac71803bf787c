// Package metrics exposes Prometheus instrumentation for the triage
// pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline's counters. All methods are safe for
// concurrent use.
type Metrics struct {
	registry *prometheus.Registry

	alarmsReceived    *prometheus.CounterVec
	admissions        *prometheus.CounterVec
	investigations    *prometheus.CounterVec
	toolExecutions    *prometheus.CounterVec
	modelRetries      prometheus.Counter
	reportWrites      *prometheus.CounterVec
	investigationTime prometheus.Histogram
}

// New creates the metric set on its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		alarmsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "triage_alarms_received_total",
			Help: "Alarm events received, by state.",
		}, []string{"state"}),
		admissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "triage_admissions_total",
			Help: "Admission gate decisions.",
		}, []string{"decision"}),
		investigations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "triage_investigations_total",
			Help: "Investigations finished, by terminal status.",
		}, []string{"status"}),
		toolExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "triage_tool_executions_total",
			Help: "Sandbox tool executions, by outcome.",
		}, []string{"outcome"}),
		modelRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "triage_model_retries_total",
			Help: "Model calls retried after transient failures.",
		}),
		reportWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "triage_report_writes_total",
			Help: "Report store writes, by outcome.",
		}, []string{"outcome"}),
		investigationTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "triage_investigation_duration_seconds",
			Help:    "Wall-clock duration of finished investigations.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 11),
		}),
	}
}

// AlarmReceived records one inbound alarm event.
func (m *Metrics) AlarmReceived(state string) {
	m.alarmsReceived.WithLabelValues(state).Inc()
}

// AdmissionDecided records one admission gate decision.
func (m *Metrics) AdmissionDecided(admitted bool) {
	decision := "admitted"
	if !admitted {
		decision = "duplicate"
	}
	m.admissions.WithLabelValues(decision).Inc()
}

// InvestigationFinished records one terminal investigation status.
func (m *Metrics) InvestigationFinished(status string, seconds float64) {
	m.investigations.WithLabelValues(status).Inc()
	m.investigationTime.Observe(seconds)
}

// ToolExecuted records one sandbox execution.
func (m *Metrics) ToolExecuted(succeeded bool) {
	outcome := "success"
	if !succeeded {
		outcome = "failure"
	}
	m.toolExecutions.WithLabelValues(outcome).Inc()
}

// ModelRetried records one retried model call.
func (m *Metrics) ModelRetried() { m.modelRetries.Inc() }

// ReportWritten records one report store write.
func (m *Metrics) ReportWritten(succeeded bool) {
	outcome := "success"
	if !succeeded {
		outcome = "failure"
	}
	m.reportWrites.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for testing.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
