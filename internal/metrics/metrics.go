package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesIngested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "messages_ingested_total",
		Help: "Messages persisted, by sender type",
	}, []string{"sender_type"})

	MessagesDuplicate = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "messages_duplicate_total",
		Help: "Sends suppressed as duplicates of an earlier external_ref",
	})

	FanoutPublishFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fanout_publish_failures_total",
		Help: "Event publishes rejected by a realtime transport",
	}, []string{"transport"})

	PendingQueued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ws_pending_queued_total",
		Help: "Events queued for offline users",
	})

	Connections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ws_active_connections",
		Help: "Current active websocket connections",
	})
)

func init() {
	prometheus.MustRegister(MessagesIngested, MessagesDuplicate, FanoutPublishFailures, PendingQueued, Connections)
}

// Handler returns an http.Handler for Prometheus scraping
func Handler() http.Handler {
	return promhttp.Handler()
}
