// Package metrics registers the Prometheus collectors shared by the host.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "contentsnap"

var (
	// RouterRequests counts handled messages by context, action and outcome
	// ("ok", "error" or "unknown").
	RouterRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "router_requests_total",
		Help:      "Messages handled per context and action.",
	}, []string{"context", "action", "outcome"})

	// SummarizeCalls counts summarize attempts by outcome: "ok",
	// "validation", "unreachable" or "rejected".
	SummarizeCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "summarize_calls_total",
		Help:      "Summarization requests by outcome.",
	}, []string{"outcome"})

	// BridgePeers tracks connected WebSocket peers by role.
	BridgePeers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "bridge_peers",
		Help:      "Connected extension peers by role.",
	}, []string{"role"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
