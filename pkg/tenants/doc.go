// Package tenants manages the billable tenant hierarchy and seat membership.
//
// A tenant is either a root (matriz) or a branch (filial) whose ParentID points
// at a root. The hierarchy is exactly one level deep: branches cannot have
// branches of their own. Billing always targets the responsible tenant (the
// root of the hierarchy), which the Resolver locates for any tenant, and for
// which it aggregates seat counts across the whole root+branches set.
//
// The package owns the persisted subscription clock fields (trial window, paid
// window, due day, billing anchor) but contains no billing decisions; those
// live in pkg/billing, which reads these fields as pure inputs.
package tenants
