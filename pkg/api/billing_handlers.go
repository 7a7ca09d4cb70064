package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/matrizhq/cobrador/pkg/billing"
	"github.com/matrizhq/cobrador/pkg/httputil"
	"github.com/matrizhq/cobrador/pkg/observability"
	"github.com/matrizhq/cobrador/pkg/tenants"
)

// BillingHandlers serves billing status and invoice reads. Both resolve the
// responsible tenant first: a branch's billing questions are answered by its
// root.
type BillingHandlers struct {
	resolver *tenants.Resolver
	pricing  *billing.PricingStore
	logger   *observability.Logger
	now      func() time.Time
}

// NewBillingHandlers creates billing handlers
func NewBillingHandlers(resolver *tenants.Resolver, pricing *billing.PricingStore, logger *observability.Logger) *BillingHandlers {
	return &BillingHandlers{
		resolver: resolver,
		pricing:  pricing,
		logger:   logger,
		now:      time.Now,
	}
}

// RegisterRoutes registers billing routes
func (h *BillingHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/tenants/{id}/billing/status", h.GetStatus).Methods("GET")
	router.HandleFunc("/tenants/{id}/billing/invoice", h.GetInvoice).Methods("GET")
}

// statusResponse names which tenant actually carries the subscription
type statusResponse struct {
	TenantID      int64          `json:"tenant_id"`
	ResponsibleID int64          `json:"responsible_id"`
	Billing       billing.Status `json:"billing"`
}

// remitContact is where the charge should be paid
type remitContact struct {
	PixKey          string `json:"pix_key,omitempty"`
	BillingWhatsapp string `json:"billing_whatsapp,omitempty"`
}

type invoiceTenant struct {
	ID     int64        `json:"id"`
	Name   string       `json:"name"`
	DueDay int          `json:"due_day"`
	Remit  remitContact `json:"remit"`
}

type invoiceResponse struct {
	Tenant  invoiceTenant   `json:"tenant"`
	Billing billing.Status  `json:"billing"`
	Invoice billing.Invoice `json:"invoice"`
}

func (h *BillingHandlers) writeBillingError(w http.ResponseWriter, err error) {
	if tenants.IsNotFound(err) {
		httputil.WriteNotFoundError(w, err.Error())
		return
	}
	h.logger.WithError(err).Error("billing read failed")
	httputil.WriteInternalError(w, err)
}

// GetStatus evaluates the billing state machine for a tenant
// GET /tenants/{id}/billing/status
func (h *BillingHandlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	responsible, err := h.resolver.ResolveResponsible(r.Context(), id)
	if err != nil {
		h.writeBillingError(w, err)
		return
	}

	httputil.WriteSuccess(w, statusResponse{
		TenantID:      id,
		ResponsibleID: responsible.ID,
		Billing:       billing.Evaluate(responsible, h.now()),
	})
}

// GetInvoice computes the current charge for a tenant's responsible root:
// seat counts aggregated across the whole tree, priced per the loaded table
// GET /tenants/{id}/billing/invoice
func (h *BillingHandlers) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	responsible, err := h.resolver.ResolveResponsible(r.Context(), id)
	if err != nil {
		h.writeBillingError(w, err)
		return
	}

	counts, err := h.resolver.AggregateSeats(r.Context(), responsible)
	if err != nil {
		h.writeBillingError(w, err)
		return
	}

	invoice, err := billing.ComputeInvoice(counts, h.pricing.Current())
	if err != nil {
		h.writeBillingError(w, err)
		return
	}

	httputil.WriteSuccess(w, invoiceResponse{
		Tenant: invoiceTenant{
			ID:     responsible.ID,
			Name:   responsible.Name,
			DueDay: responsible.DueDay,
			Remit: remitContact{
				PixKey:          responsible.PixKey,
				BillingWhatsapp: responsible.BillingWhatsapp,
			},
		},
		Billing: billing.Evaluate(responsible, h.now()),
		Invoice: invoice,
	})
}
