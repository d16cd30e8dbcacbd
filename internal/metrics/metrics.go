// Package metrics exposes prometheus instruments for transaction lifecycles.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"swapdesk/internal/lifecycle"
	"swapdesk/internal/model"
)

const namespace = "swapdesk"

// Metrics observes lifecycle transitions and terminal outcomes.
type Metrics struct {
	transitions *prometheus.CounterVec
	outcomes    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	inflight    *prometheus.GaugeVec
}

// New registers the lifecycle instruments on reg. A nil reg leaves them
// unregistered, which is what tests want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "transitions_total",
			Help:      "Lifecycle state transitions by intent kind and target state.",
		}, []string{"kind", "state"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "outcomes_total",
			Help:      "Terminal lifecycle outcomes by intent kind and failure cause.",
		}, []string{"kind", "outcome", "cause"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "duration_seconds",
			Help:      "Time from lifecycle start to terminal state.",
			Buckets:   []float64{1, 2, 5, 10, 15, 30, 60, 120, 300},
		}, []string{"kind", "outcome"}),
		inflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "inflight",
			Help:      "Lifecycles awaiting a signature or a receipt.",
		}, []string{"kind"}),
	}
	if reg != nil {
		reg.MustRegister(m.transitions, m.outcomes, m.duration, m.inflight)
	}
	return m
}

func (m *Metrics) OnTransition(slot string, kind model.IntentKind, from, to lifecycle.State) {
	m.transitions.WithLabelValues(string(kind), to.String()).Inc()
	switch {
	case from == lifecycle.Idle && to == lifecycle.AwaitingSignature:
		m.inflight.WithLabelValues(string(kind)).Inc()
	case from != lifecycle.Idle && to.Terminal():
		m.inflight.WithLabelValues(string(kind)).Dec()
	}
}

func (m *Metrics) OnConfirmed(e lifecycle.Event) {
	m.observe(e, "confirmed", "")
}

func (m *Metrics) OnFailed(e lifecycle.Event) {
	m.observe(e, "failed", Cause(e.Err))
}

func (m *Metrics) observe(e lifecycle.Event, outcome, cause string) {
	kind := string(e.Intent.Kind())
	m.outcomes.WithLabelValues(kind, outcome, cause).Inc()
	if !e.Started.IsZero() && e.Finished.After(e.Started) {
		m.duration.WithLabelValues(kind, outcome).Observe(e.Finished.Sub(e.Started).Seconds())
	}
}

// Cause maps a failure to a low-cardinality label.
func Cause(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, model.ErrSignatureRejected):
		return "rejected"
	case errors.Is(err, model.ErrExecutionReverted):
		return "reverted"
	case errors.Is(err, model.ErrReceiptTimeout):
		return "timeout"
	case errors.Is(err, model.ErrNetworkUnavailable):
		return "network"
	default:
		return "other"
	}
}
