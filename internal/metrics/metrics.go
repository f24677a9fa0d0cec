package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "theatre"

// Metrics holds the collectors shared by the gateway, the broadcaster and the command processor.
type Metrics struct {
	ActiveConnections   prometheus.Gauge
	RejectedConnections *prometheus.CounterVec
	Commands            *prometheus.CounterVec
	DroppedDeliveries   prometheus.Counter
	RelayedMessages     *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		ActiveConnections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections_active",
			Help:      "Number of websocket connections currently registered in a room.",
		}),
		RejectedConnections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_connections_rejected_total",
			Help:      "Connection attempts rejected before upgrade.",
		}, []string{"reason"}),
		Commands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Inbound room messages by kind and result.",
		}, []string{"kind", "result"}),
		DroppedDeliveries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_dropped_total",
			Help:      "Broadcast deliveries skipped because the recipient was closed or its queue was full.",
		}),
		RelayedMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_messages_total",
			Help:      "Messages exchanged with other processes over the relay channel.",
		}, []string{"direction"}),
	}
}
