// Package metrics exposes Prometheus instrumentation for the usage gate.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the gate's collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	GateDecisions   *prometheus.CounterVec
	Fallbacks       *prometheus.CounterVec
	UsageIncrements *prometheus.CounterVec
	BackendLatency  *prometheus.HistogramVec
	ActiveSessions  prometheus.Gauge
	SubscriptionOps *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		GateDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mikasa_gate_decisions_total",
				Help: "Send decisions by result and deny reason",
			},
			[]string{"result", "reason"},
		),
		Fallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mikasa_gate_fallbacks_total",
				Help: "Backend failures converted to fail-open defaults, by operation",
			},
			[]string{"operation"}, // subscription, usage_read, usage_increment
		),
		UsageIncrements: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mikasa_usage_increments_total",
				Help: "Recorded messages by store and outcome",
			},
			[]string{"store", "outcome"},
		),
		BackendLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mikasa_backend_call_duration_seconds",
				Help:    "Duration of remote subscription and usage calls",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"operation"},
		),
		ActiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "mikasa_active_sessions",
				Help: "Session gates currently held in memory",
			},
		),
		SubscriptionOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mikasa_subscription_changes_total",
				Help: "Subscription changes by operation and plan",
			},
			[]string{"operation", "plan"},
		),
	}
}

func (m *Metrics) ObserveDecision(allowed bool, reason string) {
	if m == nil {
		return
	}
	result := "allow"
	if !allowed {
		result = "deny"
	}
	m.GateDecisions.WithLabelValues(result, reason).Inc()
}

func (m *Metrics) ObserveFallback(operation string) {
	if m == nil {
		return
	}
	m.Fallbacks.WithLabelValues(operation).Inc()
}

func (m *Metrics) ObserveIncrement(store string, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.UsageIncrements.WithLabelValues(store, outcome).Inc()
}

func (m *Metrics) ObserveLatency(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.BackendLatency.WithLabelValues(operation).Observe(seconds)
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

func (m *Metrics) ObserveSubscriptionChange(operation, plan string) {
	if m == nil {
		return
	}
	m.SubscriptionOps.WithLabelValues(operation, plan).Inc()
}
