// Package middleware provides the HTTP enforcement layer: the billing gate
// that turns a tenant's billing status into access control, and a Redis-backed
// rate limiter for the public webhook endpoint.
//
// The gate reads the tenant from the X-Tenant-ID header, resolves the
// responsible tenant (a branch defers to its root), evaluates the billing
// state machine and either passes the request through, attaches an
// X-Billing-Alert header, or answers 402 Payment Required:
//
//	gate := middleware.NewBillingGate(resolver, logger, metrics)
//	router.Use(gate.Handler)
package middleware
