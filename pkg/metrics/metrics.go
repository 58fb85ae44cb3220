package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	SessionsOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_sessions_online",
			Help: "Current number of registered live sessions",
		},
	)

	UsersOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_users_online",
			Help: "Current number of users with at least one live session",
		},
	)

	SessionsConnected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_sessions_connected_total",
			Help: "Total number of sessions that completed the connect handshake",
		},
	)

	// Delivery metrics
	MessagesAppended = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_appended_total",
			Help: "Total number of messages appended to chat logs",
		},
	)

	EventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_events_delivered_total",
			Help: "Total number of outbound events handed to session send queues",
		},
		[]string{"type"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_events_dropped_total",
			Help: "Total number of outbound events dropped on a full session queue",
		},
		[]string{"type"},
	)

	ReadReceipts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_read_receipts_total",
			Help: "Total number of read-receipt state changes broadcast",
		},
	)

	TypingEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_typing_events_total",
			Help: "Total number of typing indicator events relayed",
		},
	)

	// Directory metrics
	ChatsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_chats_created_total",
			Help: "Total number of chats created",
		},
		[]string{"type"},
	)

	// Error metrics
	EventErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_event_errors_total",
			Help: "Total number of inbound events rejected, by error code",
		},
		[]string{"code"},
	)

	// Storage write-behind metrics
	StorageNotifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_storage_notifications_total",
			Help: "Total number of persistence notifications, by backend and status",
		},
		[]string{"backend", "status"},
	)

	FeedBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_feed_batch_size",
			Help:    "Number of events in each mutation feed batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100},
		},
	)
)

// RecordDelivery increments the delivered counter for an event type
func RecordDelivery(eventType string) {
	EventsDelivered.WithLabelValues(eventType).Inc()
}

// RecordDrop increments the dropped counter for an event type
func RecordDrop(eventType string) {
	EventsDropped.WithLabelValues(eventType).Inc()
}

// RecordEventError increments the error counter for a code
func RecordEventError(code string) {
	EventErrors.WithLabelValues(code).Inc()
}

// RecordStorageNotification records a persistence notification outcome
func RecordStorageNotification(backend string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	StorageNotifications.WithLabelValues(backend, status).Inc()
}
