package observability

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewMetricsRegisters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.RateLimitExceededTotal.WithLabelValues("auth").Inc()
	m.CSRFRejectedTotal.WithLabelValues("mismatch").Inc()
	m.CSRFExemptTotal.Inc()
	m.PermissionChecksTotal.WithLabelValues("event", "granted").Inc()
	m.ObserveStoreOperation("redis", "consume", time.Now().Add(-time.Millisecond))

	rec := httptest.NewRecorder()
	MetricsHandler(registry).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, metric := range []string{
		"gatekeeper_ratelimit_exceeded_total",
		"gatekeeper_csrf_rejected_total",
		"gatekeeper_csrf_exempt_total",
		"gatekeeper_permission_checks_total",
		"gatekeeper_store_operation_duration_seconds",
	} {
		if !strings.Contains(body, metric) {
			t.Errorf("metrics output missing %s", metric)
		}
	}
}

func TestNewMetricsDoubleRegisterPanics(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewMetrics(registry)

	defer func() {
		if recover() == nil {
			t.Error("registering the same metrics twice should panic")
		}
	}()
	NewMetrics(registry)
}
