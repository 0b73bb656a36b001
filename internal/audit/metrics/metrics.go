package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks recorded audit entries.
type Metrics struct {
	EntriesRecorded *prometheus.CounterVec
}

// New creates audit metrics registered with reg.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		EntriesRecorded: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "backoffice_audit_entries_total",
			Help: "Total audit entries recorded by action and status",
		}, []string{"action", "status"}),
	}
}

// IncrementRecorded counts one recorded entry.
func (m *Metrics) IncrementRecorded(action, status string) {
	if m != nil {
		m.EntriesRecorded.WithLabelValues(action, status).Inc()
	}
}
