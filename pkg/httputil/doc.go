// Package httputil provides shared HTTP utilities for the cobrador API:
// JSON response helpers, request parsing and the common middleware stack
// (request IDs, structured request logging, panic recovery, body limits).
//
// Handlers use the Write* helpers so every error body has the same
// {"error": "..."} shape:
//
//	func (h *Handlers) GetTenant(w http.ResponseWriter, r *http.Request) {
//		id, ok := httputil.ParsePathInt64OrError(w, r, "id")
//		if !ok {
//			return
//		}
//		tenant, err := h.service.GetTenant(id)
//		if tenants.IsNotFound(err) {
//			httputil.WriteNotFoundError(w, "tenant not found")
//			return
//		}
//		httputil.WriteSuccess(w, tenant)
//	}
package httputil
