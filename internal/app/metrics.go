package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricCallsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_calls_created_total",
		Help: "Call sessions created.",
	})

	metricCallsEnded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_calls_ended_total",
		Help: "Call sessions deactivated (end-call or expiry).",
	})

	metricCallsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_calls_expired_total",
		Help: "Joins rejected because the call TTL had elapsed.",
	})

	metricJoinsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_joins_accepted_total",
		Help: "Join handshakes admitted into a room.",
	})

	metricJoinsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_joins_rejected_total",
		Help: "Join handshakes rejected (not found, ended, expired, bad token).",
	})

	metricFramesRelayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_frames_relayed_total",
		Help: "Frames delivered to room members.",
	})

	metricConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_connections_open",
		Help: "Currently registered signal connections.",
	})
)
