package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestsTotal counts agent requests per route and response code.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nnctl",
			Subsystem: "agent",
			Name:      "requests_total",
			Help:      "Agent requests handled, by route and response code.",
		},
		[]string{"method", "route", "code"},
	)

	// HTTPRequestDuration covers the whole request, including any action it
	// triggered, so the upper buckets reach the safe-mode wait budget.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nnctl",
			Subsystem: "agent",
			Name:      "request_duration_seconds",
			Help:      "Agent request latency, by route.",
			Buckets:   []float64{0.005, 0.05, 0.5, 5, 30, 120, 600, 1200},
		},
		[]string{"method", "route"},
	)

	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "nnctl",
			Subsystem: "agent",
			Name:      "requests_in_flight",
			Help:      "Agent requests currently being served.",
		},
	)
)

func registerHTTPMetrics() error {
	return register(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		HTTPRequestsInFlight,
	)
}
