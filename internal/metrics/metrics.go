// Package metrics exposes Prometheus counters for classification, lifecycle
// transitions and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	classificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "civic_classifications_total",
			Help: "Total number of complaint classifications",
		},
		[]string{"department", "priority", "source"},
	)

	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "civic_transitions_total",
			Help: "Total number of lifecycle actions by outcome",
		},
		[]string{"action", "outcome"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "civic_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "civic_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordClassification counts one prediction.
func RecordClassification(department, priority, source string) {
	classificationsTotal.WithLabelValues(department, priority, source).Inc()
}

// RecordTransition counts one lifecycle action.
func RecordTransition(action, outcome string) {
	transitionsTotal.WithLabelValues(action, outcome).Inc()
}

// RecordHTTPRequest counts one served request. endpoint should be the route
// pattern, not the raw path.
func RecordHTTPRequest(method, endpoint string, status int, d time.Duration) {
	if endpoint == "" {
		endpoint = "unknown"
	}
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint).Observe(d.Seconds())
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
