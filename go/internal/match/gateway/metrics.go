package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "battlescore",
		Subsystem: "gateway",
		Name:      "connections",
		Help:      "Open websocket connections per audience.",
	}, []string{"audience"})
	broadcastsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "battlescore",
		Subsystem: "gateway",
		Name:      "broadcasts_dropped_total",
		Help:      "Events dropped because the broadcast queue was full.",
	})
)
