package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the meeting service
type Metrics struct {
	// HTTP Request Metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// WebSocket Metrics
	websocketConnections   prometheus.Gauge
	websocketMessagesTotal *prometheus.CounterVec

	// Room Metrics
	roomsActive        prometheus.Gauge
	participantsActive prometheus.Gauge
	relaysDroppedTotal prometheus.Counter

	// Meeting Metrics
	meetingsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(serviceName string) *Metrics {
	return &Metrics{
		httpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "http_requests_total",
				Help:        "Total number of HTTP requests",
				ConstLabels: prometheus.Labels{"service": serviceName},
			},
			[]string{"method", "endpoint", "status"},
		),
		httpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "http_request_duration_seconds",
				Help:        "HTTP request latency in seconds",
				ConstLabels: prometheus.Labels{"service": serviceName},
				Buckets:     prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		httpRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name:        "http_requests_in_flight",
				Help:        "Number of HTTP requests currently being processed",
				ConstLabels: prometheus.Labels{"service": serviceName},
			},
		),
		websocketConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name:        "websocket_connections",
				Help:        "Number of active signaling WebSocket connections",
				ConstLabels: prometheus.Labels{"service": serviceName},
			},
		),
		websocketMessagesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "websocket_messages_total",
				Help:        "Total number of signaling messages by type",
				ConstLabels: prometheus.Labels{"service": serviceName},
			},
			[]string{"type"},
		),
		roomsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name:        "rooms_active",
				Help:        "Number of rooms with at least one connected participant",
				ConstLabels: prometheus.Labels{"service": serviceName},
			},
		),
		participantsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name:        "room_participants_active",
				Help:        "Total participants across all active rooms",
				ConstLabels: prometheus.Labels{"service": serviceName},
			},
		),
		relaysDroppedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name:        "signaling_relays_dropped_total",
				Help:        "Signaling messages dropped because the target was slow or gone",
				ConstLabels: prometheus.Labels{"service": serviceName},
			},
		),
		meetingsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "meetings_total",
				Help:        "Total number of meeting lifecycle transitions",
				ConstLabels: prometheus.Labels{"service": serviceName},
			},
			[]string{"status"},
		),
	}
}

// RecordHTTPRequest records an HTTP request with its outcome
func (m *Metrics) RecordHTTPRequest(method, endpoint string, status int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// IncrementHTTPRequestsInFlight increments the in-flight gauge
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	m.httpRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements the in-flight gauge
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	m.httpRequestsInFlight.Dec()
}

// IncWebsocketConnections increments the WebSocket connection gauge
func (m *Metrics) IncWebsocketConnections() {
	m.websocketConnections.Inc()
}

// DecWebsocketConnections decrements the WebSocket connection gauge
func (m *Metrics) DecWebsocketConnections() {
	m.websocketConnections.Dec()
}

// RecordWebsocketMessage counts one inbound signaling message
func (m *Metrics) RecordWebsocketMessage(messageType string) {
	m.websocketMessagesTotal.WithLabelValues(messageType).Inc()
}

// SetRoomsActive sets the active room gauge
func (m *Metrics) SetRoomsActive(n int) {
	m.roomsActive.Set(float64(n))
}

// SetParticipantsActive sets the active participant gauge
func (m *Metrics) SetParticipantsActive(n int) {
	m.participantsActive.Set(float64(n))
}

// RecordRelayDropped counts a dropped relay delivery
func (m *Metrics) RecordRelayDropped() {
	m.relaysDroppedTotal.Inc()
}

// RecordMeetingTransition counts a durable meeting status transition
func (m *Metrics) RecordMeetingTransition(status string) {
	m.meetingsTotal.WithLabelValues(status).Inc()
}
