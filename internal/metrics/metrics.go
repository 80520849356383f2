// Package metrics defines the Prometheus metrics for the agenda client.
// It is the single source of truth for metric names, labels, and help
// strings. Metrics register with the default registry via promauto; the
// watch command serves them when a metrics address is configured.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "agenda"

// RequestsTotal counts outbound API requests.
// Labels:
//   - method: HTTP method
//   - endpoint: templated path (e.g. "/events/{id}"), not the raw URL
//   - status: numeric HTTP status, or "error" on transport failure
var RequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_total",
		Help:      "Total number of requests issued to the backend API.",
	},
	[]string{"method", "endpoint", "status"},
)

// RequestDuration measures the round-trip time of outbound API requests.
var RequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "request_duration_seconds",
		Help:      "Round-trip duration of backend API requests.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "endpoint"},
)

// CacheLookupsTotal counts query cache lookups.
// Label:
//   - result: "hit" or "miss"
var CacheLookupsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Total number of query cache lookups, labelled by result.",
	},
	[]string{"result"},
)

// ForcedLogoutsTotal counts authentication rejections that cleared the session.
var ForcedLogoutsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "forced_logouts_total",
		Help:      "Total number of 401 responses that forced a logout.",
	},
)

// Handler returns the HTTP handler that exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
