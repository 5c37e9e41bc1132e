package socket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	roomsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_rooms",
		Help: "Collaboration relay rooms with at least one peer.",
	})
	peersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_peers",
		Help: "Peers connected to the collaboration relay.",
	})
	updatesCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_updates_total",
		Help: "Updates forwarded by the collaboration relay.",
	})
)
