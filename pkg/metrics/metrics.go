package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API client metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chitchat_client_api_requests_total",
			Help: "Total API requests issued by the client",
		},
		[]string{"endpoint", "status"}, // status is "error" for transport failures
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chitchat_client_api_request_duration_seconds",
			Help:    "API request duration seen by the client",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"endpoint"},
	)

	// Push channel metrics
	PushEventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chitchat_client_push_events_total",
			Help: "Total push events received, by event type",
		},
		[]string{"event"},
	)

	PushConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chitchat_client_push_connections",
			Help: "Open push channel connections",
		},
	)

	// State metrics
	StaleResultsDiscarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chitchat_client_stale_results_discarded_total",
			Help: "Fetch results dropped because a newer fetch was issued",
		},
		[]string{"operation"},
	)

	LiveMessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chitchat_client_live_messages_dropped_total",
			Help: "Live messages dropped because they belong to another conversation",
		},
	)

	// Dev server metrics
	DevServerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chitchat_devserver_http_requests_total",
			Help: "Total HTTP requests served by the dev server",
		},
		[]string{"method", "route", "status"},
	)

	DevServerSockets = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chitchat_devserver_sockets",
			Help: "Open websocket connections on the dev server",
		},
	)
)
