package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the watch party platform.
//
// Naming convention: namespace_subsystem_name
// - namespace: watchparty (application-level grouping)
// - subsystem: websocket, room, video, sfu, screenshare (feature-level grouping)
// - name: specific metric (connections_active, events_total, etc.)

var (
	ActiveWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "watchparty",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "watchparty",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active rooms",
	})

	RoomParticipants = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "watchparty",
		Subsystem: "room",
		Name:      "participants_count",
		Help:      "Number of participants in each room",
	}, []string{"room_id"})

	WebsocketEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "watchparty",
		Subsystem: "websocket",
		Name:      "events_total",
		Help:      "Total WebSocket events processed",
	}, []string{"event_type", "status"})

	MessageProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "watchparty",
		Subsystem: "websocket",
		Name:      "message_processing_seconds",
		Help:      "Time spent processing WebSocket messages",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"event_type"})

	VideoSeqAdvanced = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "watchparty",
		Subsystem: "video",
		Name:      "seq_advanced_total",
		Help:      "Total number of times a room's video state sequence advanced",
	}, []string{"room_id"})

	SFUConnectionAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "watchparty",
		Subsystem: "sfu",
		Name:      "connection_attempts_total",
		Help:      "Total SFU transport/producer/consumer connection attempts",
	}, []string{"stage", "status"})

	SFUActivePeers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "watchparty",
		Subsystem: "sfu",
		Name:      "peers_active",
		Help:      "Current number of active SFU peers across all rooms",
	})

	ScreenShareSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "watchparty",
		Subsystem: "screenshare",
		Name:      "sessions_active",
		Help:      "Current number of active screen-share sessions",
	})

	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "watchparty",
		Subsystem: "circuit_breaker",
		Name:      "state",
		Help:      "Current state of the circuit breaker (0: Closed, 1: Open, 2: Half-Open)",
	}, []string{"service"})

	CircuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "watchparty",
		Subsystem: "circuit_breaker",
		Name:      "failures_total",
		Help:      "Total requests rejected by the circuit breaker",
	}, []string{"service"})

	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "watchparty",
		Subsystem: "rate_limit",
		Name:      "exceeded_total",
		Help:      "Total number of requests that exceeded the rate limit",
	}, []string{"endpoint", "reason"})

	RateLimitRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "watchparty",
		Subsystem: "rate_limit",
		Name:      "requests_total",
		Help:      "Total number of requests checked against the rate limiter",
	}, []string{"endpoint"})

	RedisOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "watchparty",
		Subsystem: "redis",
		Name:      "operations_total",
		Help:      "Total number of Redis bus operations",
	}, []string{"operation", "status"})

	RedisOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "watchparty",
		Subsystem: "redis",
		Name:      "operation_duration_seconds",
		Help:      "Duration of Redis bus operations",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	CommentsProxyRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "watchparty",
		Subsystem: "comments_proxy",
		Name:      "requests_total",
		Help:      "Total comments proxy requests by cache outcome",
	}, []string{"outcome"})
)

func IncConnection() {
	ActiveWebSocketConnections.Inc()
}

func DecConnection() {
	ActiveWebSocketConnections.Dec()
}
