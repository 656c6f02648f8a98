package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connection metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_connections_active",
			Help: "Open WebSocket connections",
		},
	)

	ConnectionsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_connections_dropped_total",
			Help: "Connections closed because their send buffer was full",
		},
	)

	// Room metrics
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_commands_total",
			Help: "Inbound commands by type",
		},
		[]string{"type"},
	)

	RejectedCommands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_commands_rejected_total",
			Help: "Commands rejected with an error frame",
		},
		[]string{"code"},
	)

	MessagesStored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_messages_stored",
			Help: "Messages currently held by the room",
		},
	)

	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_rate_limit_hits_total",
			Help: "Sends rejected by the per-author throttle",
		},
	)

	// Infrastructure metrics
	PersistErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_persist_errors_total",
			Help: "Failed state save attempts",
		},
		[]string{"record"},
	)

	EventsExported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_events_exported_total",
			Help: "Room events handed to Kafka by outcome",
		},
		[]string{"outcome"},
	)

	VerifyRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_verify_requests_total",
			Help: "Bot verification requests by outcome",
		},
		[]string{"outcome"},
	)
)
