package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	ledgerCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "unibank",
			Subsystem: "gateway",
			Name:      "calls_total",
			Help:      "Calls made to the ledger service, by endpoint and outcome.",
		},
		[]string{"method", "endpoint", "outcome"},
	)

	ledgerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "unibank",
			Subsystem: "gateway",
			Name:      "call_duration_seconds",
			Help:      "Duration of calls to the ledger service.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"method", "endpoint"},
	)

	operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "unibank",
			Subsystem: "orchestrator",
			Name:      "operations_total",
			Help:      "Orchestrated operations, by name and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	serverRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "unibank",
			Subsystem: "ledger",
			Name:      "requests_total",
			Help:      "Requests handled by the reference ledger.",
		},
		[]string{"method", "route", "status"},
	)
)

func init() {
	Registry.MustRegister(
		ledgerCalls,
		ledgerDuration,
		operations,
		serverRequests,
		prometheus.NewGoCollector(),
	)
}

// ObserveLedgerCall records one gateway round trip.
func ObserveLedgerCall(method, endpoint, outcome string, elapsed time.Duration) {
	ledgerCalls.WithLabelValues(method, endpoint, outcome).Inc()
	ledgerDuration.WithLabelValues(method, endpoint).Observe(elapsed.Seconds())
}

// ObserveOperation records the outcome of an orchestrated operation.
func ObserveOperation(operation, outcome string) {
	operations.WithLabelValues(operation, outcome).Inc()
}

// ObserveServerRequest records a request served by the reference ledger.
func ObserveServerRequest(method, route, status string) {
	serverRequests.WithLabelValues(method, route, status).Inc()
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
