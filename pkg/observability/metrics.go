package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the authorization layer
type Metrics struct {
	// Authorization decisions, labeled by endpoint and outcome kind
	// (allowed, or the error kind that denied the request)
	AuthzDecisionsTotal *prometheus.CounterVec

	// Rate limiting
	RateLimitAllowedTotal  *prometheus.CounterVec
	RateLimitExceededTotal *prometheus.CounterVec
	RateLimitFailOpenTotal *prometheus.CounterVec

	// CSRF
	CSRFIssuedTotal    *prometheus.CounterVec
	CSRFValidatedTotal *prometheus.CounterVec
	CSRFRejectedTotal  *prometheus.CounterVec
	CSRFExemptTotal    prometheus.Counter

	// Resource permission checks, labeled by resource type and matched level
	PermissionChecksTotal *prometheus.CounterVec

	// Store latency
	StoreOperationDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeeper_authz_decisions_total",
				Help: "Authorization decisions by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		RateLimitAllowedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeeper_ratelimit_allowed_total",
				Help: "Requests admitted by the rate limiter, by category",
			},
			[]string{"category"},
		),
		RateLimitExceededTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeeper_ratelimit_exceeded_total",
				Help: "Requests rejected with RESOURCE_EXHAUSTED, by category",
			},
			[]string{"category"},
		),
		RateLimitFailOpenTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeeper_ratelimit_fail_open_total",
				Help: "Requests allowed because the counter store failed, by category",
			},
			[]string{"category"},
		),
		CSRFIssuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeeper_csrf_issued_total",
				Help: "CSRF tokens issued, by binding type (session or identity)",
			},
			[]string{"binding"},
		),
		CSRFValidatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeeper_csrf_validated_total",
				Help: "CSRF tokens successfully validated, by binding type",
			},
			[]string{"binding"},
		),
		CSRFRejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeeper_csrf_rejected_total",
				Help: "CSRF validation failures, by reason",
			},
			[]string{"reason"},
		),
		CSRFExemptTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gatekeeper_csrf_exempt_total",
				Help: "Requests that skipped CSRF checks via trusted client signature",
			},
		),
		PermissionChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeeper_permission_checks_total",
				Help: "Resource permission evaluations, by resource type and result",
			},
			[]string{"resource_type", "result"},
		),
		StoreOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gatekeeper_store_operation_duration_seconds",
				Help:    "Latency of counter/document store operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"store", "operation"},
		),
	}

	registry.MustRegister(
		m.AuthzDecisionsTotal,
		m.RateLimitAllowedTotal,
		m.RateLimitExceededTotal,
		m.RateLimitFailOpenTotal,
		m.CSRFIssuedTotal,
		m.CSRFValidatedTotal,
		m.CSRFRejectedTotal,
		m.CSRFExemptTotal,
		m.PermissionChecksTotal,
		m.StoreOperationDuration,
	)

	return m
}

// ObserveStoreOperation records the latency of one store call
func (m *Metrics) ObserveStoreOperation(store, operation string, start time.Time) {
	m.StoreOperationDuration.WithLabelValues(store, operation).Observe(time.Since(start).Seconds())
}

// Handler returns the HTTP handler serving the metrics endpoint
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
