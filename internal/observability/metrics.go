package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
)

// Metrics exposes the billing pipeline counters.
type Metrics struct {
	webhookEvents *prometheus.CounterVec
	checkouts     *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		webhookEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lettercast",
			Subsystem: "billing",
			Name:      "webhook_events_total",
			Help:      "Webhook events by type and reconciliation outcome.",
		}, []string{"event_type", "outcome"}),
		checkouts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lettercast",
			Subsystem: "billing",
			Name:      "checkout_sessions_total",
			Help:      "Checkout session creations by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) RecordWebhookEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) RecordCheckout(result string) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(result).Inc()
}

// Module wires prometheus metrics.
var Module = fx.Module("observability",
	fx.Provide(NewMetrics),
)
