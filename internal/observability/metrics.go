package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the agent's Prometheus collectors.
type Metrics struct {
	Turns          *prometheus.CounterVec
	TurnLatency    prometheus.Histogram
	ActiveSessions prometheus.Gauge
	ProviderErrors *prometheus.CounterVec
	Deliveries     *prometheus.CounterVec
}

// NewMetrics registers the collectors on the given registerer (pass
// prometheus.DefaultRegisterer in main, a fresh registry in tests).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Turns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Name:      "turns_total",
			Help:      "Committed conversation turns by intent type and decision.",
		}, []string{"intent", "decision"}),
		TurnLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "concierge",
			Name:      "turn_duration_seconds",
			Help:      "End-to-end turn processing latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "concierge",
			Name:      "active_sessions",
			Help:      "Sessions currently resident in memory.",
		}),
		ProviderErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Name:      "provider_errors_total",
			Help:      "Failed tool calls by provider and failure class.",
		}, []string{"provider", "status"}),
		Deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concierge",
			Name:      "channel_deliveries_total",
			Help:      "Outbound reply deliveries by channel and outcome.",
		}, []string{"channel", "outcome"}),
	}
}
