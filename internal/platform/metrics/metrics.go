package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds process-level HTTP metrics. Module metrics live with their modules.
type Metrics struct {
	HTTPLatency  *prometheus.HistogramVec
	HTTPRequests *prometheus.CounterVec
}

// New creates and registers the HTTP metrics.
func New() *Metrics {
	return &Metrics{
		HTTPLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ballotguard_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ballotguard_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"method", "route", "status"}),
	}
}

// ObserveHTTPLatency implements the request latency middleware observer.
func (m *Metrics) ObserveHTTPLatency(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPLatency.WithLabelValues(method, route).Observe(d.Seconds())
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
