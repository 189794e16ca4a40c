package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nox_ws_connections_active",
		Help: "Currently registered websocket connections.",
	})

	EventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nox_ws_events_received_total",
		Help: "Inbound websocket events by type.",
	}, []string{"event"})

	EventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nox_ws_events_emitted_total",
		Help: "Outbound websocket events by type.",
	}, []string{"event"})

	MessagesPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nox_messages_persisted_total",
		Help: "Messages written to the durable store.",
	})

	PersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nox_message_persist_failures_total",
		Help: "Durable writes that failed and rejected the send.",
	})
)

// Handler returns an http.Handler for Prometheus scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
