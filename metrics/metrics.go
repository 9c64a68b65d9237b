// Package metrics holds the Prometheus collectors exported on /metrics
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regionchat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "regionchat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Session metrics
	SessionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "regionchat_sessions_started_total",
			Help: "Total group chat sessions started by local agents",
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "regionchat_active_sessions",
			Help: "Group chat sessions currently held in memory",
		},
	)

	MessagesRouted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regionchat_messages_routed_total",
			Help: "Session messages routed, by delivery path",
		},
		[]string{"path"}, // "local", "invitation" or "remote"
	)

	InboundEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regionchat_inbound_events_total",
			Help: "Session events received from other shards",
		},
		[]string{"dialog"},
	)

	// Gateway metrics
	ForwardsQueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "regionchat_forwards_queued_total",
			Help: "Messages handed to the forward queue",
		},
	)

	ForwardsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regionchat_forwards_dropped_total",
			Help: "Forwards dropped before reaching another shard",
		},
		[]string{"reason"}, // "queue_full" or "transfer_error"
	)

	EnqueueRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regionchat_enqueue_requests_total",
			Help: "Inbound event queue posts, by outcome",
		},
		[]string{"result"}, // "ok", "unauthorized", "malformed", "rejected"
	)

	// Housekeeping metrics
	EventsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "regionchat_events_evicted_total",
			Help: "Queued events evicted before delivery",
		},
	)

	TombstonesPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "regionchat_drop_tombstones_purged_total",
			Help: "Expired session drop tombstones removed",
		},
	)
)
