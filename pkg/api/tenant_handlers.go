package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/matrizhq/cobrador/pkg/httputil"
	"github.com/matrizhq/cobrador/pkg/observability"
	"github.com/matrizhq/cobrador/pkg/tenants"
)

// TenantHandlers handles tenant lifecycle, operator controls and seat
// membership
type TenantHandlers struct {
	service  tenants.Service
	resolver *tenants.Resolver
	logger   *observability.Logger
}

// NewTenantHandlers creates tenant handlers
func NewTenantHandlers(service tenants.Service, resolver *tenants.Resolver, logger *observability.Logger) *TenantHandlers {
	return &TenantHandlers{
		service:  service,
		resolver: resolver,
		logger:   logger,
	}
}

// RegisterRoutes registers tenant routes
func (h *TenantHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/tenants", h.CreateTenant).Methods("POST")
	router.HandleFunc("/tenants", h.ListRoots).Methods("GET")
	router.HandleFunc("/tenants/{id}", h.GetTenant).Methods("GET")
	router.HandleFunc("/tenants/{id}/branches", h.CreateBranch).Methods("POST")
	router.HandleFunc("/tenants/{id}/branches", h.ListBranches).Methods("GET")

	// Operator controls
	router.HandleFunc("/tenants/{id}/manual-status", h.SetManualStatus).Methods("PUT")
	router.HandleFunc("/tenants/{id}/billing-enabled", h.SetBillingEnabled).Methods("PUT")
	router.HandleFunc("/tenants/{id}/remit-contact", h.UpdateRemitContact).Methods("PUT")

	// Seats
	router.HandleFunc("/tenants/{id}/seats", h.AddSeat).Methods("POST")
	router.HandleFunc("/tenants/{id}/seats", h.ListSeats).Methods("GET")
	router.HandleFunc("/tenants/{id}/seats/{identity}", h.RemoveSeat).Methods("DELETE")
}

// writeTenantError maps domain errors onto status codes
func (h *TenantHandlers) writeTenantError(w http.ResponseWriter, err error) {
	switch {
	case tenants.IsValidation(err):
		httputil.WriteValidationError(w, err.Error())
	case tenants.IsNotFound(err):
		httputil.WriteNotFoundError(w, err.Error())
	default:
		h.logger.WithError(err).Error("tenant operation failed")
		httputil.WriteInternalError(w, err)
	}
}

// CreateTenant creates a root tenant
// POST /tenants
func (h *TenantHandlers) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var req tenants.CreateTenantRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	tenant, err := h.service.CreateTenant(&req)
	if err != nil {
		h.writeTenantError(w, err)
		return
	}
	httputil.WriteCreated(w, tenant)
}

// CreateBranch creates a branch under a root tenant
// POST /tenants/{id}/branches
func (h *TenantHandlers) CreateBranch(w http.ResponseWriter, r *http.Request) {
	parentID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req tenants.CreateTenantRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	branch, err := h.service.CreateBranch(parentID, &req)
	if err != nil {
		h.writeTenantError(w, err)
		return
	}
	httputil.WriteCreated(w, branch)
}

// GetTenant retrieves a tenant by ID
// GET /tenants/{id}
func (h *TenantHandlers) GetTenant(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	tenant, err := h.service.GetTenant(id)
	if err != nil {
		h.writeTenantError(w, err)
		return
	}
	httputil.WriteSuccess(w, tenant)
}

// ListRoots lists all root tenants
// GET /tenants
func (h *TenantHandlers) ListRoots(w http.ResponseWriter, r *http.Request) {
	roots, err := h.service.ListRoots()
	if err != nil {
		h.writeTenantError(w, err)
		return
	}
	httputil.WriteSuccess(w, roots)
}

// ListBranches lists the branches of a root tenant
// GET /tenants/{id}/branches
func (h *TenantHandlers) ListBranches(w http.ResponseWriter, r *http.Request) {
	parentID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	branches, err := h.service.ListBranches(parentID)
	if err != nil {
		h.writeTenantError(w, err)
		return
	}
	httputil.WriteSuccess(w, branches)
}

// SetManualStatus sets the operator override
// PUT /tenants/{id}/manual-status
func (h *TenantHandlers) SetManualStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Status tenants.ManualStatus `json:"status"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := h.service.SetManualStatus(id, req.Status); err != nil {
		h.writeTenantError(w, err)
		return
	}
	h.resolver.Invalidate(id)
	httputil.WriteNoContent(w)
}

// SetBillingEnabled toggles billing enforcement for a tenant
// PUT /tenants/{id}/billing-enabled
func (h *TenantHandlers) SetBillingEnabled(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Enabled == nil {
		httputil.WriteValidationError(w, "enabled is required")
		return
	}

	if err := h.service.SetBillingEnabled(id, *req.Enabled); err != nil {
		h.writeTenantError(w, err)
		return
	}
	h.resolver.Invalidate(id)
	httputil.WriteNoContent(w)
}

// UpdateRemitContact updates the pix key and billing whatsapp
// PUT /tenants/{id}/remit-contact
func (h *TenantHandlers) UpdateRemitContact(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req tenants.UpdateRemitContactRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := h.service.UpdateRemitContact(id, &req); err != nil {
		h.writeTenantError(w, err)
		return
	}
	h.resolver.Invalidate(id)
	httputil.WriteNoContent(w)
}

// AddSeat adds or re-roles a seat on a tenant
// POST /tenants/{id}/seats
func (h *TenantHandlers) AddSeat(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req tenants.AddSeatRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	seat, err := h.service.AddSeat(id, &req)
	if err != nil {
		h.writeTenantError(w, err)
		return
	}
	httputil.WriteCreated(w, seat)
}

// RemoveSeat removes a seat from a tenant
// DELETE /tenants/{id}/seats/{identity}
func (h *TenantHandlers) RemoveSeat(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	identity, ok := httputil.ParsePathStringOrError(w, r, "identity")
	if !ok {
		return
	}

	if err := h.service.RemoveSeat(id, identity); err != nil {
		h.writeTenantError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// ListSeats lists the seats of a tenant
// GET /tenants/{id}/seats
func (h *TenantHandlers) ListSeats(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	seats, err := h.service.ListSeats(id)
	if err != nil {
		h.writeTenantError(w, err)
		return
	}
	httputil.WriteSuccess(w, seats)
}
