// Package metrics registers the Prometheus collectors for the validation
// engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	ValidationRuns    *prometheus.CounterVec
	ValidationSeconds prometheus.Histogram
	RuleSeconds       *prometheus.HistogramVec
	Findings          *prometheus.CounterVec
	LookupFailures    prometheus.Counter
	CorrectionsTotal  prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		ValidationRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "certus_validation_runs_total",
			Help: "Validation runs completed, labeled by resulting submission status",
		}, []string{"status"}),
		ValidationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "certus_validation_duration_seconds",
			Help:    "Wall time of full validation runs",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		RuleSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "certus_rule_duration_seconds",
			Help:    "Per-rule evaluation time, labeled by rule type",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"rule_type"}),
		Findings: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "certus_findings_total",
			Help: "Validation findings emitted, labeled by severity",
		}, []string{"severity"}),
		LookupFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certus_catalog_lookup_failures_total",
			Help: "Catalog or external lookups that failed or timed out",
		}),
		CorrectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certus_corrected_versions_total",
			Help: "Corrected submission versions created",
		}),
	}
}

// ObserveRun records one completed validation run.
func (m *Metrics) ObserveRun(status string, d time.Duration) {
	m.ValidationRuns.WithLabelValues(status).Inc()
	m.ValidationSeconds.Observe(d.Seconds())
}

// ObserveRule records one rule evaluation.
func (m *Metrics) ObserveRule(ruleType string, d time.Duration) {
	m.RuleSeconds.WithLabelValues(ruleType).Observe(d.Seconds())
}

// CountFinding records one emitted finding.
func (m *Metrics) CountFinding(severity string) {
	m.Findings.WithLabelValues(severity).Inc()
}

// IncrementLookupFailures records a failed or timed-out lookup.
func (m *Metrics) IncrementLookupFailures() {
	m.LookupFailures.Inc()
}

// IncrementCorrections records a corrected version creation.
func (m *Metrics) IncrementCorrections() {
	m.CorrectionsTotal.Inc()
}
