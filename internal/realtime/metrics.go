package realtime

import "github.com/prometheus/client_golang/prometheus"

var (
	// sessionsActive gauges currently admitted WebSocket sessions.
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_sessions_active",
			Help: "Current number of admitted chat WebSocket sessions.",
		},
	)

	// sessionsRejected counts admission failures by close code.
	sessionsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_sessions_rejected_total",
			Help: "Chat WebSocket admissions rejected, by close code.",
		},
		[]string{"code"},
	)

	// eventsPublished counts identifier-only events accepted by a broker.
	eventsPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_events_published_total",
			Help: "Total message events published to conversation groups.",
		},
	)

	// framesDelivered counts frames queued to a client socket.
	framesDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_frames_delivered_total",
			Help: "Total viewer-projected frames queued to WebSocket clients.",
		},
	)

	// framesDropped counts events that never reached a client, by reason.
	framesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_frames_dropped_total",
			Help: "Events dropped before reaching a client, by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(sessionsActive, sessionsRejected, eventsPublished, framesDelivered, framesDropped)
}
