package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	readingsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_readings_ingested_total",
			Help: "Readings accepted into the canonical stream, by entry path.",
		},
		[]string{"source"},
	)
	payloadsDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_payloads_discarded_total",
			Help: "Inbound payloads dropped because they could not be parsed.",
		},
	)
	commandsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_commands_published_total",
			Help: "Operator commands republished to the device command topic.",
		},
	)
)
