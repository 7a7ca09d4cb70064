// Package billing derives the access state and the monthly invoice for a
// tenant from its persisted subscription clock fields.
//
// Evaluate and ComputeInvoice are pure functions of their inputs; nothing in
// this package writes to storage. The Sweeper re-evaluates every root tenant
// on a schedule so that blocked and past-due populations show up in metrics
// without waiting for a request to touch the tenant.
package billing
