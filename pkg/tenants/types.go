package tenants

import (
	"errors"
	"fmt"
	"time"
)

// ManualStatus is the operator-controlled access override. It is orthogonal to
// the date-derived billing state: payment never clears a manual block.
type ManualStatus string

const (
	ManualStatusActive  ManualStatus = "ACTIVE"
	ManualStatusBlocked ManualStatus = "MANUALLY_BLOCKED"
)

// SeatRole tags a seat for pricing purposes
type SeatRole string

const (
	SeatRoleRegular SeatRole = "REGULAR"
	SeatRoleAdmin   SeatRole = "ADMIN_TIER"
)

// DefaultTrialDays is the free-access window granted at signup
const DefaultTrialDays = 14

// Tenant is the billable unit: a company (root) or one of its branches
type Tenant struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ParentID *int64 `json:"parent_id,omitempty"`

	// Subscription clock fields. Mutated only by the payment reconciler and
	// the operator endpoints; pkg/billing reads them as pure inputs.
	ManualStatus    ManualStatus `json:"manual_status"`
	BillingEnabled  bool         `json:"billing_enabled"`
	TrialUntil      *time.Time   `json:"trial_until,omitempty"`
	PaidUntil       *time.Time   `json:"paid_until,omitempty"`
	DueDay          int          `json:"due_day"`
	BillingAnchorAt time.Time    `json:"billing_anchor_at"`
	LastPaymentAt   *time.Time   `json:"last_payment_at,omitempty"`

	// Remit contacts, pass-through only
	PixKey          string `json:"pix_key,omitempty"`
	BillingWhatsapp string `json:"billing_whatsapp,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsRoot reports whether the tenant is financially responsible for itself
func (t *Tenant) IsRoot() bool {
	return t.ParentID == nil
}

// Seat is a user membership in a tenant. Identity is the stable person
// identifier used to deduplicate admin seats across branches.
type Seat struct {
	ID        int64     `json:"id"`
	TenantID  int64     `json:"tenant_id"`
	Identity  string    `json:"identity"`
	Role      SeatRole  `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// SeatCounts is the aggregate input to invoice computation. Regular seats are
// summed across the root and its branches; admin seats are counted once per
// distinct identity across the same set.
type SeatCounts struct {
	Regular int `json:"regular"`
	Admin   int `json:"admin"`
}

// ErrTenantNotFound indicates an unknown tenant id
var ErrTenantNotFound = errors.New("tenant not found")

// IsNotFound checks if an error is a tenant lookup miss
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTenantNotFound)
}

// ValidationError represents a rejected request (malformed hierarchy, bad
// seat role, negative values). It is never used for infrastructure failures.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation checks if an error is a validation rejection
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// CreateTenantRequest represents request to create a root tenant at signup
type CreateTenantRequest struct {
	Name            string `json:"name"`
	DueDay          int    `json:"due_day,omitempty"`
	PixKey          string `json:"pix_key,omitempty"`
	BillingWhatsapp string `json:"billing_whatsapp,omitempty"`
}

// UpdateRemitContactRequest represents request to update remit contacts
type UpdateRemitContactRequest struct {
	PixKey          *string `json:"pix_key,omitempty"`
	BillingWhatsapp *string `json:"billing_whatsapp,omitempty"`
}

// AddSeatRequest represents request to add a seat to a tenant
type AddSeatRequest struct {
	Identity string   `json:"identity"`
	Role     SeatRole `json:"role"`
}

// Service defines the interface for tenant and seat management
type Service interface {
	// Tenant lifecycle
	CreateTenant(req *CreateTenantRequest) (*Tenant, error)
	CreateBranch(parentID int64, req *CreateTenantRequest) (*Tenant, error)
	GetTenant(id int64) (*Tenant, error)
	ListRoots() ([]*Tenant, error)
	ListBranches(parentID int64) ([]*Tenant, error)

	// Operator controls
	SetManualStatus(id int64, status ManualStatus) error
	SetBillingEnabled(id int64, enabled bool) error
	UpdateRemitContact(id int64, req *UpdateRemitContactRequest) error

	// Seat membership
	AddSeat(tenantID int64, req *AddSeatRequest) (*Seat, error)
	RemoveSeat(tenantID int64, identity string) error
	ListSeats(tenantID int64) ([]*Seat, error)
}
