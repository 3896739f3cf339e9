// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	domain "marquee/internal/domain/consent"
)

// Read results for ConsentReadsTotal.
const (
	ReadFound  = "found"
	ReadAbsent = "absent"
	ReadStale  = "stale"
)

// Consent API Metrics
var (
	// ConsentDecisionsTotal counts saved decisions per category and outcome
	ConsentDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consent_decisions_total",
			Help: "Saved consent decisions by category and state (granted/denied)",
		},
		[]string{"category", "state"},
	)

	// ConsentRevocationsTotal counts DELETE /api/cookie-consent calls that succeeded
	ConsentRevocationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "consent_revocations_total",
			Help: "Total consent revocations",
		},
	)

	// ConsentReadsTotal counts GET /api/cookie-consent by result
	ConsentReadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consent_reads_total",
			Help: "Consent reads by result (found/absent/stale)",
		},
		[]string{"result"},
	)
)

// HTTP and Database Metrics
var (
	// HTTPRequestDuration tracks handler latency in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds by route pattern and status",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "route", "status"},
	)

	// DBQueryDuration tracks SQL latency in seconds
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database call duration in seconds by operation",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25},
		},
		[]string{"op"},
	)
)

// RecordDecision increments ConsentDecisionsTotal once per optional category.
func RecordDecision(d domain.Decision) {
	for _, c := range domain.Categories {
		state := "denied"
		if d.Granted(c) {
			state = "granted"
		}
		ConsentDecisionsTotal.WithLabelValues(string(c), state).Inc()
	}
}

// ObserveRequest records one request into HTTPRequestDuration.
func ObserveRequest(method, route string, status int, seconds float64) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(seconds)
}
