package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks event publication and delivery failures.
type Metrics struct {
	Published       *prometheus.CounterVec
	HandlerFailures *prometheus.CounterVec
	DeadLetters     prometheus.Gauge
}

// New creates event bus metrics registered with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Published: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "backoffice_events_published_total",
			Help: "Total domain events published by name",
		}, []string{"event"}),
		HandlerFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "backoffice_event_handler_failures_total",
			Help: "Total failed event deliveries by event name",
		}, []string{"event"}),
		DeadLetters: factory.NewGauge(prometheus.GaugeOpts{
			Name: "backoffice_event_dead_letters",
			Help: "Current size of the dead-letter queue",
		}),
	}
}

func (m *Metrics) IncrementPublished(event string) {
	if m != nil {
		m.Published.WithLabelValues(event).Inc()
	}
}

func (m *Metrics) IncrementHandlerFailure(event string) {
	if m != nil {
		m.HandlerFailures.WithLabelValues(event).Inc()
	}
}

func (m *Metrics) SetDeadLetters(n int) {
	if m != nil {
		m.DeadLetters.Set(float64(n))
	}
}
