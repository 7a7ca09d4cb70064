package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/matrizhq/cobrador/pkg/billing"
	"github.com/matrizhq/cobrador/pkg/httputil"
	"github.com/matrizhq/cobrador/pkg/middleware"
	"github.com/matrizhq/cobrador/pkg/observability"
	"github.com/matrizhq/cobrador/pkg/payments"
	"github.com/matrizhq/cobrador/pkg/tenants"
)

// maxRequestBodyBytes caps API request bodies; tenant and seat payloads
// are tiny.
const maxRequestBodyBytes = 256 * 1024

// ServerConfig wires the HTTP server's collaborators
type ServerConfig struct {
	TenantService tenants.Service
	Resolver      *tenants.Resolver
	Pricing       *billing.PricingStore
	Webhooks      *payments.WebhookHandlers
	Gate          *middleware.BillingGate
	RateLimiter   *middleware.RateLimiter
	Logger        *observability.Logger
	Metrics       *observability.Metrics
}

// Server is the cobrador API server
type Server struct {
	router *mux.Router
	logger *observability.Logger
}

// NewServer builds the router and registers all handler groups
func NewServer(cfg ServerConfig) *Server {
	s := &Server{
		router: mux.NewRouter(),
		logger: cfg.Logger,
	}

	s.router.Use(mux.MiddlewareFunc(httputil.RequestIDMiddleware))
	s.router.Use(mux.MiddlewareFunc(httputil.LoggingMiddleware(cfg.Logger)))
	s.router.Use(mux.MiddlewareFunc(httputil.RecoveryMiddleware(cfg.Logger)))
	if cfg.Metrics != nil {
		s.router.Use(mux.MiddlewareFunc(observability.HTTPMetricsMiddleware(cfg.Metrics)))
	}
	s.router.Use(mux.MiddlewareFunc(httputil.MaxBytesMiddleware(maxRequestBodyBytes)))
	if cfg.Gate != nil {
		s.router.Use(mux.MiddlewareFunc(cfg.Gate.Handler))
	}

	NewTenantHandlers(cfg.TenantService, cfg.Resolver, cfg.Logger).RegisterRoutes(s.router)
	NewBillingHandlers(cfg.Resolver, cfg.Pricing, cfg.Logger).RegisterRoutes(s.router)

	if cfg.Webhooks != nil {
		webhook := http.Handler(http.HandlerFunc(cfg.Webhooks.HandleWebhook))
		if cfg.RateLimiter != nil {
			webhook = cfg.RateLimiter.Handler(cfg.Logger)(webhook)
		}
		s.router.Handle("/billing/webhook", webhook).Methods("POST")
	}

	return s
}

// Handler returns the root handler for the server
func (s *Server) Handler() http.Handler {
	return s.router
}
