// Package metrics exposes the Prometheus collectors shared by the chatroom
// registry, broadcaster, router and connection handlers.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Session metrics
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_sessions_active",
		Help: "The current number of registered chat sessions.",
	})
	TotalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_sessions_total",
		Help: "The total number of sessions registered since start.",
	})
	SupersededSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_sessions_superseded_total",
		Help: "The total number of sessions replaced by a newer connection for the same user.",
	})

	// Fan-out metrics
	Broadcasts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_broadcasts_total",
		Help: "The total number of broadcast passes.",
	})
	Deliveries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_deliveries_total",
		Help: "The total number of events enqueued for a recipient.",
	})
	DeliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_delivery_failures_total",
		Help: "The total number of recipients pruned after a failed delivery.",
	})

	// Router metrics
	EventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_events_received_total",
		Help: "The total number of inbound events by type.",
	}, []string{"type"})
	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_events_dropped_total",
		Help: "The total number of inbound events dropped without side effect.",
	}, []string{"reason"})
	StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_store_errors_total",
		Help: "The total number of store operations that failed.",
	}, []string{"operation"})

	// Auth metrics
	AuthSuccess = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_auth_success_total",
		Help: "The total number of successful connection authentications.",
	})
	AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_auth_failures_total",
		Help: "The total number of rejected connection authentications.",
	}, []string{"reason"})
)

// Handler returns the HTTP handler serving the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
