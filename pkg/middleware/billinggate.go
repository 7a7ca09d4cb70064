package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/matrizhq/cobrador/pkg/billing"
	"github.com/matrizhq/cobrador/pkg/httputil"
	"github.com/matrizhq/cobrador/pkg/observability"
	"github.com/matrizhq/cobrador/pkg/tenants"
)

const (
	// TenantHeader identifies the calling tenant on gated routes
	TenantHeader = "X-Tenant-ID"
	// AlertHeader carries the billing status code when the tenant should see
	// a payment warning banner
	AlertHeader = "X-Billing-Alert"
)

// BillingGate enforces the billing state machine on API requests. Requests
// from blocked tenants get 402 before reaching any handler. A branch is
// evaluated through its responsible root.
type BillingGate struct {
	resolver *tenants.Resolver
	logger   *observability.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

// NewBillingGate creates a billing gate
func NewBillingGate(resolver *tenants.Resolver, logger *observability.Logger, metrics *observability.Metrics) *BillingGate {
	return &BillingGate{
		resolver: resolver,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// gateResponse is the 402 body: enough for a client to render the paywall
type gateResponse struct {
	Error   string         `json:"error"`
	Billing billing.Status `json:"billing"`
}

// Handler wraps an HTTP handler with the billing gate. Requests without a
// tenant header pass through untouched; webhook and health routes never
// carry one.
func (g *BillingGate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(TenantHeader)
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		tenantID, err := strconv.ParseInt(header, 10, 64)
		if err != nil || tenantID <= 0 {
			httputil.WriteBadRequest(w, "invalid tenant id")
			return
		}

		responsible, err := g.resolver.ResolveResponsible(r.Context(), tenantID)
		if err != nil {
			if tenants.IsNotFound(err) {
				httputil.WriteNotFoundError(w, "tenant not found")
				return
			}
			// Fail closed: an unreadable billing state must not grant access
			g.logger.WithError(err).WithField("tenant_id", tenantID).Error("billing gate resolution failed")
			httputil.WriteServiceUnavailable(w, "billing status unavailable")
			return
		}

		status := billing.Evaluate(responsible, g.now())
		if g.metrics != nil {
			g.metrics.StatusEvaluationsTotal.WithLabelValues(string(status.Code)).Inc()
		}

		if status.Blocked {
			httputil.WritePaymentRequired(w, gateResponse{
				Error:   status.Message,
				Billing: status,
			})
			return
		}

		if status.ShowAlert {
			w.Header().Set(AlertHeader, string(status.Code))
		}

		ctx := observability.WithTenantID(r.Context(), tenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
