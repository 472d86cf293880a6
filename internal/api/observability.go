package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics with bounded cardinality (no per-player labels, to keep the
// series count fixed regardless of room population).
var (
	roomTickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "room_tick_duration_seconds",
		Help:    "Time spent running one simulation tick",
		Buckets: []float64{0.0005, 0.001, 0.002, 0.004, 0.008, 0.016, 0.033},
	})

	roomRateLimitedDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "room_rate_limited_drops_total",
		Help: "Input commands dropped by a session's token bucket",
	})

	roomRewindHistoryMiss = promauto.NewCounter(prometheus.CounterOpts{
		Name: "room_rewind_history_miss_total",
		Help: "Lag-compensated hit checks whose requested tick had already fallen out of the rewind history",
	})

	roomRewindDepth = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "room_rewind_depth",
		Help:    "Ticks rewound for lag-compensated hit validation",
		Buckets: []float64{0, 1, 2, 4, 8, 12, 16, 24, 32},
	})

	roomPlayersConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "room_players_connected",
		Help: "Currently connected players in the room",
	})

	// DoS detection metrics - use ONLY bounded label values
	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter or origin check",
	}, []string{"reason"}) // Bounded: "rate_limit", "origin", "ws_ip_limit", "ws_total_limit"

	// HTTP metrics with bounded labels
	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"}) // endpoint is path pattern, not full URL

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	// WebSocket metrics
	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "Total WebSocket messages sent",
	})
)

// RecordTick records one simulation tick's wall-clock duration.
func RecordTick(duration time.Duration) {
	roomTickDuration.Observe(duration.Seconds())
}

// RecordRateLimitedDrop increments the per-session token-bucket drop counter.
func RecordRateLimitedDrop() {
	roomRateLimitedDrops.Inc()
}

// RecordRewindHistoryMiss increments the rewind-history-miss counter.
func RecordRewindHistoryMiss() {
	roomRewindHistoryMiss.Inc()
}

// ObserveRewindDepth records one lag-compensated rewind's tick depth.
func ObserveRewindDepth(ticks float64) {
	roomRewindDepth.Observe(ticks)
}

// UpdatePlayersConnected updates the connected-player gauge.
func UpdatePlayersConnected(count int) {
	roomPlayersConnected.Set(float64(count))
}

// RecordConnectionRejected increments the rejection counter.
// reason must be one of: "rate_limit", "origin", "ws_ip_limit", "ws_total_limit"
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, http.StatusText(status)).Inc()
}

// UpdateWSConnections updates WebSocket connection count
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// IncrementWSMessages increments WebSocket message counter
func IncrementWSMessages() {
	wsMessagesTotal.Inc()
}
