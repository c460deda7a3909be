// Package metrics registers the Prometheus instruments exported by the core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the instrument set for the ledger and order lifecycle.
type Metrics struct {
	Registry *prometheus.Registry

	LedgerAppends        *prometheus.CounterVec
	VerificationFailures prometheus.Counter
	OrderTransitions     *prometheus.CounterVec
	GateRejections       *prometheus.CounterVec
	ExecutionLatency     prometheus.Histogram
}

// New creates and registers all instruments on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		LedgerAppends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tradecore",
			Subsystem: "ledger",
			Name:      "appends_total",
			Help:      "Ledger entries appended, by event type.",
		}, []string{"event_type"}),
		VerificationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tradecore",
			Subsystem: "ledger",
			Name:      "verification_failures_total",
			Help:      "Chain verification runs that found a broken link.",
		}),
		OrderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tradecore",
			Subsystem: "orders",
			Name:      "transitions_total",
			Help:      "Order state transitions, by resulting status.",
		}, []string{"status"}),
		GateRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tradecore",
			Subsystem: "compliance",
			Name:      "gate_rejections_total",
			Help:      "Orders rejected by the compliance gate, by rule code.",
		}, []string{"rule"}),
		ExecutionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tradecore",
			Subsystem: "orders",
			Name:      "execution_latency_seconds",
			Help:      "Queued-to-executed latency.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}

	reg.MustRegister(
		m.LedgerAppends,
		m.VerificationFailures,
		m.OrderTransitions,
		m.GateRejections,
		m.ExecutionLatency,
	)
	return m
}
