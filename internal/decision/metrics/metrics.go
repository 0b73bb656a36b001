package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for authorization decisions.
type Metrics struct {
	// Decision outcomes by outcome and resource
	DecisionOutcome *prometheus.CounterVec

	// Evaluation latency
	EvaluateLatency prometheus.Histogram
}

// New creates decision metrics registered with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		DecisionOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "backoffice_authz_decisions_total",
			Help: "Total authorization decisions by outcome and resource",
		}, []string{"outcome", "resource"}),

		EvaluateLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "backoffice_authz_evaluate_duration_seconds",
			Help:    "Duration of authorization decision evaluation",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),
	}
}

// IncrementOutcome records a decision outcome.
func (m *Metrics) IncrementOutcome(outcome, resource string) {
	if m != nil {
		m.DecisionOutcome.WithLabelValues(outcome, resource).Inc()
	}
}

// ObserveEvaluateLatency records the evaluation duration.
func (m *Metrics) ObserveEvaluateLatency(d time.Duration) {
	if m != nil {
		m.EvaluateLatency.Observe(d.Seconds())
	}
}
