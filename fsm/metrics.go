package fsm

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports Prometheus counters and histograms for the state
// machine's transition and handler activity. A nil *Metrics is valid and
// simply does nothing, so constructing a StateMachine without metrics
// stays cheap for tests.
type Metrics struct {
	transitions    *prometheus.CounterVec
	handlerErrors  *prometheus.CounterVec
	handleDuration prometheus.Histogram

	registerOnce sync.Once
}

// NewMetrics builds a Metrics instance registered against reg. If reg is
// nil, a private registry is created so callers that don't care about
// exposing /metrics still get working counters.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "botfsm_transitions_total",
			Help: "Number of state transitions completed, by source and destination state code.",
		}, []string{"from", "to"}),
		handlerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "botfsm_handler_errors_total",
			Help: "Number of application hook errors caught by the state machine, by state and hook kind.",
		}, []string{"state", "kind"}),
		handleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "botfsm_handle_action_duration_seconds",
			Help:    "Wall-clock duration of a single HandleAction call.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}),
	}
	reg.MustRegister(m.transitions, m.handlerErrors, m.handleDuration)
	return m
}

func (m *Metrics) observeTransition(from, to StateCode) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(from), string(to)).Inc()
}

func (m *Metrics) observeHandlerError(state StateCode, kind string) {
	if m == nil {
		return
	}
	m.handlerErrors.WithLabelValues(string(state), kind).Inc()
}

func (m *Metrics) observeDuration(seconds float64) {
	if m == nil {
		return
	}
	m.handleDuration.Observe(seconds)
}
