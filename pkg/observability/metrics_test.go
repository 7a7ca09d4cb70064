package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	t.Run("creates and registers all metrics", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewMetrics(registry)

		if metrics.HTTPRequestsTotal == nil {
			t.Error("HTTPRequestsTotal is nil")
		}
		if metrics.StatusEvaluationsTotal == nil {
			t.Error("StatusEvaluationsTotal is nil")
		}
		if metrics.TenantsByStatus == nil {
			t.Error("TenantsByStatus is nil")
		}
		if metrics.WebhookEventsTotal == nil {
			t.Error("WebhookEventsTotal is nil")
		}
		if metrics.ReconcileDuration == nil {
			t.Error("ReconcileDuration is nil")
		}
		if metrics.IdempotencyHitsTotal == nil {
			t.Error("IdempotencyHitsTotal is nil")
		}
		if metrics.DBConnectionsActive == nil {
			t.Error("DBConnectionsActive is nil")
		}
	})

	t.Run("metrics appear in the registry", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewMetrics(registry)

		metrics.StatusEvaluationsTotal.WithLabelValues("PAID").Add(0)
		metrics.TenantsByStatus.WithLabelValues("BLOCKED").Set(0)
		metrics.WebhookEventsTotal.WithLabelValues("PAYMENT_RECEIVED", "applied").Add(0)
		metrics.DBConnectionsActive.Set(0)

		families, err := registry.Gather()
		if err != nil {
			t.Fatalf("Failed to gather metrics: %v", err)
		}

		names := make(map[string]bool)
		for _, family := range families {
			names[family.GetName()] = true
		}

		for _, name := range []string{
			"cobrador_status_evaluations_total",
			"cobrador_tenants_by_status",
			"cobrador_webhook_events_total",
			"cobrador_db_connections_active",
		} {
			if !names[name] {
				t.Errorf("Expected metric %s not found in registry", name)
			}
		}
	})

	t.Run("panics on duplicate registration", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		NewMetrics(registry)

		defer func() {
			if r := recover(); r == nil {
				t.Error("Expected panic on duplicate registration, but didn't panic")
			}
		}()
		NewMetrics(registry)
	})
}

func TestMetrics_WebhookMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.WebhookEventsTotal.WithLabelValues("PAYMENT_RECEIVED", "applied").Inc()
	metrics.WebhookEventsTotal.WithLabelValues("PAYMENT_RECEIVED", "ignored").Inc()

	expected := `
# HELP cobrador_webhook_events_total Payment webhook deliveries by event type and outcome
# TYPE cobrador_webhook_events_total counter
cobrador_webhook_events_total{event_type="PAYMENT_RECEIVED",outcome="applied"} 1
cobrador_webhook_events_total{event_type="PAYMENT_RECEIVED",outcome="ignored"} 1
`
	if err := testutil.CollectAndCompare(metrics.WebhookEventsTotal, strings.NewReader(expected)); err != nil {
		t.Errorf("Unexpected metric value: %v", err)
	}
}

func TestMetrics_TenantsByStatus(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.TenantsByStatus.WithLabelValues("PAST_DUE").Set(3)

	expected := `
# HELP cobrador_tenants_by_status Root tenants per billing status code, refreshed by the sweeper
# TYPE cobrador_tenants_by_status gauge
cobrador_tenants_by_status{code="PAST_DUE"} 3
`
	if err := testutil.CollectAndCompare(metrics.TenantsByStatus, strings.NewReader(expected)); err != nil {
		t.Errorf("Unexpected metric value: %v", err)
	}
}

func TestResponseWriter(t *testing.T) {
	t.Run("captures status code", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		rw := &responseWriter{ResponseWriter: recorder, statusCode: http.StatusOK}

		rw.WriteHeader(http.StatusCreated)

		if rw.statusCode != http.StatusCreated {
			t.Errorf("Expected status code %d, got %d", http.StatusCreated, rw.statusCode)
		}
		if recorder.Code != http.StatusCreated {
			t.Errorf("Expected recorder status code %d, got %d", http.StatusCreated, recorder.Code)
		}
	})

	t.Run("defaults to 200 status code", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		rw := &responseWriter{ResponseWriter: recorder, statusCode: http.StatusOK}

		rw.Write([]byte("test"))

		if rw.statusCode != http.StatusOK {
			t.Errorf("Expected default status code %d, got %d", http.StatusOK, rw.statusCode)
		}
	})
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	t.Run("records request counter and duration", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewMetrics(registry)

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		wrapped := HTTPMetricsMiddleware(metrics)(handler)

		req := httptest.NewRequest("GET", "/tenants/1/billing/status", nil)
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, req)

		expected := `
# HELP cobrador_http_requests_total Total number of HTTP requests
# TYPE cobrador_http_requests_total counter
cobrador_http_requests_total{method="GET",path="/tenants/1/billing/status",status="200"} 1
`
		if err := testutil.CollectAndCompare(metrics.HTTPRequestsTotal, strings.NewReader(expected)); err != nil {
			t.Errorf("Unexpected counter value: %v", err)
		}

		if count := testutil.CollectAndCount(metrics.HTTPRequestDuration); count != 1 {
			t.Errorf("Expected 1 duration metric, got %d", count)
		}
	})

	t.Run("records distinct status codes", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewMetrics(registry)
		middleware := HTTPMetricsMiddleware(metrics)

		for _, tc := range []struct {
			statusCode int
			path       string
		}{
			{http.StatusOK, "/ok"},
			{http.StatusPaymentRequired, "/blocked"},
			{http.StatusServiceUnavailable, "/error"},
		} {
			code := tc.statusCode
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(code)
			})
			req := httptest.NewRequest("GET", tc.path, nil)
			middleware(handler).ServeHTTP(httptest.NewRecorder(), req)
		}

		if count := testutil.CollectAndCount(metrics.HTTPRequestsTotal); count != 3 {
			t.Errorf("Expected 3 metrics, got %d", count)
		}
	})
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.TenantsByStatus.WithLabelValues("BLOCKED").Set(7)

	mux := http.NewServeMux()
	RegisterMetricsEndpoint(mux, registry)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `cobrador_tenants_by_status{code="BLOCKED"} 7`) {
		t.Error("Expected blocked tenant gauge in metrics output")
	}
	if !strings.Contains(body, "# HELP") || !strings.Contains(body, "# TYPE") {
		t.Error("Expected Prometheus exposition format markers")
	}
}
