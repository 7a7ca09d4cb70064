package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Billing status metrics
	StatusEvaluationsTotal *prometheus.CounterVec
	TenantsByStatus        *prometheus.GaugeVec
	SweepDuration          prometheus.Histogram

	// Webhook reconciliation metrics
	WebhookEventsTotal   *prometheus.CounterVec
	ReconcileDuration    prometheus.Histogram
	IdempotencyHitsTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cobrador_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cobrador_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		StatusEvaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cobrador_status_evaluations_total",
				Help: "Billing status evaluations by resulting code",
			},
			[]string{"code"},
		),
		TenantsByStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cobrador_tenants_by_status",
				Help: "Root tenants per billing status code, refreshed by the sweeper",
			},
			[]string{"code"},
		),
		SweepDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cobrador_sweep_duration_seconds",
				Help:    "Duration of a full billing status sweep",
				Buckets: []float64{.1, .5, 1, 5, 15, 60, 300},
			},
		),

		WebhookEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cobrador_webhook_events_total",
				Help: "Payment webhook deliveries by event type and outcome",
			},
			[]string{"event_type", "outcome"},
		),
		ReconcileDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cobrador_reconcile_duration_seconds",
				Help:    "Duration of a webhook reconciliation including persistence",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
		),
		IdempotencyHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cobrador_idempotency_hits_total",
				Help: "Duplicate webhook deliveries caught, by detection layer",
			},
			[]string{"layer"},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cobrador_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cobrador_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.StatusEvaluationsTotal,
		m.TenantsByStatus,
		m.SweepDuration,
		m.WebhookEventsTotal,
		m.ReconcileDuration,
		m.IdempotencyHitsTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			status := strconv.Itoa(rw.statusCode)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
