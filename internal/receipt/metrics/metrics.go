// Package metrics holds Prometheus instruments for the receipt pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are safe to use on a nil receiver, which records nothing.
type Metrics struct {
	Runs          *prometheus.CounterVec
	StepDuration  *prometheus.HistogramVec
	StepFailures  *prometheus.CounterVec
	EmailFallback *prometheus.CounterVec
	EventsDropped *prometheus.CounterVec
	SettingsState prometheus.Gauge
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "confreg_receipt_runs_total",
			Help: "Receipt pipeline runs by outcome (done, already_processed, not_found, locked, error)",
		}, []string{"outcome", "method"}),
		StepDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "confreg_receipt_step_duration_seconds",
			Help:    "Duration of each receipt pipeline step",
			Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"step"}),
		StepFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "confreg_receipt_step_failures_total",
			Help: "Failed receipt pipeline steps",
		}, []string{"step"}),
		EmailFallback: f.NewCounterVec(prometheus.CounterOpts{
			Name: "confreg_receipt_email_transport_fallback_total",
			Help: "Times the alternate SMTP transport was tried after the primary failed verification",
		}, []string{"from", "to"}),
		EventsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "confreg_receipt_events_dropped_total",
			Help: "Pipeline outcome events discarded without delivery",
		}, []string{"reason"}),
		SettingsState: f.NewGauge(prometheus.GaugeOpts{
			Name: "confreg_receipt_settings_breaker_open",
			Help: "1 while the CMS settings circuit breaker is open",
		}),
	}
}

func (m *Metrics) ObserveRun(outcome, method string) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(outcome, method).Inc()
}

func (m *Metrics) ObserveStep(step string, elapsed time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.StepDuration.WithLabelValues(step).Observe(elapsed.Seconds())
	if failed {
		m.StepFailures.WithLabelValues(step).Inc()
	}
}

func (m *Metrics) IncEmailFallback(from, to string) {
	if m == nil {
		return
	}
	m.EmailFallback.WithLabelValues(from, to).Inc()
}

func (m *Metrics) IncEventDropped(reason string) {
	if m == nil {
		return
	}
	m.EventsDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetSettingsBreaker(open bool) {
	if m == nil {
		return
	}
	if open {
		m.SettingsState.Set(1)
	} else {
		m.SettingsState.Set(0)
	}
}
