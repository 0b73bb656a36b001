package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks feature flag evaluations.
type Metrics struct {
	Evaluations *prometheus.CounterVec
}

// New creates feature flag metrics registered with reg.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Evaluations: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "backoffice_feature_flag_evaluations_total",
			Help: "Total feature flag evaluations by flag and outcome",
		}, []string{"flag", "outcome"}),
	}
}

// IncrementEvaluation records one evaluation.
func (m *Metrics) IncrementEvaluation(flagID string, enabled bool) {
	if m == nil {
		return
	}
	outcome := "disabled"
	if enabled {
		outcome = "enabled"
	}
	m.Evaluations.WithLabelValues(flagID, outcome).Inc()
}
