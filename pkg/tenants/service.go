package tenants

import (
	"database/sql"
	"fmt"
	"time"
)

// PostgresService implements the Service interface using PostgreSQL
type PostgresService struct {
	db        *sql.DB
	trialDays int
	now       func() time.Time
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{
		db:        db,
		trialDays: DefaultTrialDays,
		now:       time.Now,
	}
}

// SetTrialDays overrides the signup trial window (used by configuration)
func (s *PostgresService) SetTrialDays(days int) {
	if days > 0 {
		s.trialDays = days
	}
}

const tenantColumns = `id, name, parent_id, manual_status, billing_enabled, trial_until,
	       paid_until, due_day, billing_anchor_at, last_payment_at,
	       pix_key, billing_whatsapp, created_at, updated_at`

// CreateTenant creates a root tenant with a fresh trial window
func (s *PostgresService) CreateTenant(req *CreateTenantRequest) (*Tenant, error) {
	if req.Name == "" {
		return nil, &ValidationError{Field: "name", Reason: "must not be empty"}
	}

	now := s.now()
	trialUntil := now.AddDate(0, 0, s.trialDays)

	dueDay := req.DueDay
	if dueDay == 0 {
		dueDay = now.Day()
		if dueDay > 28 {
			dueDay = 28
		}
	}
	if dueDay < 1 || dueDay > 28 {
		return nil, &ValidationError{Field: "due_day", Reason: "must be between 1 and 28"}
	}

	tenant := &Tenant{
		Name:            req.Name,
		ManualStatus:    ManualStatusActive,
		BillingEnabled:  true,
		TrialUntil:      &trialUntil,
		DueDay:          dueDay,
		BillingAnchorAt: now,
		PixKey:          req.PixKey,
		BillingWhatsapp: req.BillingWhatsapp,
	}

	query := `
		INSERT INTO tenants (name, parent_id, manual_status, billing_enabled, trial_until,
		                     due_day, billing_anchor_at, pix_key, billing_whatsapp)
		VALUES ($1, NULL, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRow(query, tenant.Name, tenant.ManualStatus, tenant.BillingEnabled,
		tenant.TrialUntil, tenant.DueDay, tenant.BillingAnchorAt,
		tenant.PixKey, tenant.BillingWhatsapp).
		Scan(&tenant.ID, &tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}

	return tenant, nil
}

// CreateBranch creates a branch under a root tenant. The hierarchy is at most
// one level deep: attaching a branch to another branch is rejected.
func (s *PostgresService) CreateBranch(parentID int64, req *CreateTenantRequest) (*Tenant, error) {
	if req.Name == "" {
		return nil, &ValidationError{Field: "name", Reason: "must not be empty"}
	}

	parent, err := s.GetTenant(parentID)
	if err != nil {
		return nil, err
	}
	if !parent.IsRoot() {
		return nil, &ValidationError{Field: "parent_id", Reason: "parent is itself a branch; hierarchy depth is limited to one level"}
	}

	// Branches carry no clock fields of their own; the parent is the
	// financially responsible tenant.
	tenant := &Tenant{
		Name:            req.Name,
		ParentID:        &parent.ID,
		ManualStatus:    ManualStatusActive,
		BillingEnabled:  true,
		DueDay:          parent.DueDay,
		BillingAnchorAt: parent.BillingAnchorAt,
	}

	query := `
		INSERT INTO tenants (name, parent_id, manual_status, billing_enabled,
		                     due_day, billing_anchor_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err = s.db.QueryRow(query, tenant.Name, tenant.ParentID, tenant.ManualStatus,
		tenant.BillingEnabled, tenant.DueDay, tenant.BillingAnchorAt).
		Scan(&tenant.ID, &tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create branch: %w", err)
	}

	return tenant, nil
}

// GetTenant retrieves a tenant by ID
func (s *PostgresService) GetTenant(id int64) (*Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	tenant, err := scanTenant(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("tenant %d: %w", id, ErrTenantNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return tenant, nil
}

// ListRoots lists all root tenants
func (s *PostgresService) ListRoots() ([]*Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE parent_id IS NULL ORDER BY id`
	return s.queryTenants(query)
}

// ListBranches lists the branches of a root tenant
func (s *PostgresService) ListBranches(parentID int64) ([]*Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE parent_id = $1 ORDER BY id`
	return s.queryTenants(query, parentID)
}

func (s *PostgresService) queryTenants(query string, args ...interface{}) ([]*Tenant, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var out []*Tenant
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		out = append(out, tenant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tenants: %w", err)
	}
	return out, nil
}

// scanner abstracts *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTenant(row scanner) (*Tenant, error) {
	tenant := &Tenant{}
	var parentID sql.NullInt64
	var trialUntil, paidUntil, lastPaymentAt sql.NullTime
	var pixKey, billingWhatsapp sql.NullString

	err := row.Scan(
		&tenant.ID, &tenant.Name, &parentID, &tenant.ManualStatus, &tenant.BillingEnabled,
		&trialUntil, &paidUntil, &tenant.DueDay, &tenant.BillingAnchorAt, &lastPaymentAt,
		&pixKey, &billingWhatsapp, &tenant.CreatedAt, &tenant.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if parentID.Valid {
		tenant.ParentID = &parentID.Int64
	}
	if trialUntil.Valid {
		t := trialUntil.Time
		tenant.TrialUntil = &t
	}
	if paidUntil.Valid {
		t := paidUntil.Time
		tenant.PaidUntil = &t
	}
	if lastPaymentAt.Valid {
		t := lastPaymentAt.Time
		tenant.LastPaymentAt = &t
	}
	if pixKey.Valid {
		tenant.PixKey = pixKey.String
	}
	if billingWhatsapp.Valid {
		tenant.BillingWhatsapp = billingWhatsapp.String
	}

	return tenant, nil
}

// SetManualStatus applies or lifts the operator block
func (s *PostgresService) SetManualStatus(id int64, status ManualStatus) error {
	if status != ManualStatusActive && status != ManualStatusBlocked {
		return &ValidationError{Field: "manual_status", Reason: "unknown status"}
	}
	return s.execOnTenant(id, `UPDATE tenants SET manual_status = $1, updated_at = NOW() WHERE id = $2`, status)
}

// SetBillingEnabled toggles the billing kill switch. Disabled tenants are
// treated as always paid (internal/exempt accounts).
func (s *PostgresService) SetBillingEnabled(id int64, enabled bool) error {
	return s.execOnTenant(id, `UPDATE tenants SET billing_enabled = $1, updated_at = NOW() WHERE id = $2`, enabled)
}

// UpdateRemitContact updates the pass-through remit contact fields
func (s *PostgresService) UpdateRemitContact(id int64, req *UpdateRemitContactRequest) error {
	tenant, err := s.GetTenant(id)
	if err != nil {
		return err
	}

	pixKey := tenant.PixKey
	if req.PixKey != nil {
		pixKey = *req.PixKey
	}
	whatsapp := tenant.BillingWhatsapp
	if req.BillingWhatsapp != nil {
		whatsapp = *req.BillingWhatsapp
	}

	return s.execOnTenant(id, `UPDATE tenants SET pix_key = $1, billing_whatsapp = $2, updated_at = NOW() WHERE id = $3`, pixKey, whatsapp)
}

func (s *PostgresService) execOnTenant(id int64, query string, args ...interface{}) error {
	args = append(args, id)
	result, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update tenant: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("tenant %d: %w", id, ErrTenantNotFound)
	}
	return nil
}

// AddSeat adds a seat to a tenant. Re-adding the same identity updates its role.
func (s *PostgresService) AddSeat(tenantID int64, req *AddSeatRequest) (*Seat, error) {
	if req.Identity == "" {
		return nil, &ValidationError{Field: "identity", Reason: "must not be empty"}
	}
	if req.Role != SeatRoleRegular && req.Role != SeatRoleAdmin {
		return nil, &ValidationError{Field: "role", Reason: "must be REGULAR or ADMIN_TIER"}
	}

	if _, err := s.GetTenant(tenantID); err != nil {
		return nil, err
	}

	seat := &Seat{
		TenantID: tenantID,
		Identity: req.Identity,
		Role:     req.Role,
	}

	query := `
		INSERT INTO seats (tenant_id, identity, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, identity) DO UPDATE SET role = EXCLUDED.role
		RETURNING id, created_at
	`
	err := s.db.QueryRow(query, seat.TenantID, seat.Identity, seat.Role).
		Scan(&seat.ID, &seat.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to add seat: %w", err)
	}

	return seat, nil
}

// RemoveSeat removes a seat by identity
func (s *PostgresService) RemoveSeat(tenantID int64, identity string) error {
	result, err := s.db.Exec(`DELETE FROM seats WHERE tenant_id = $1 AND identity = $2`, tenantID, identity)
	if err != nil {
		return fmt.Errorf("failed to remove seat: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("seat %q on tenant %d: %w", identity, tenantID, ErrTenantNotFound)
	}
	return nil
}

// ListSeats lists the seats owned directly by a tenant
func (s *PostgresService) ListSeats(tenantID int64) ([]*Seat, error) {
	query := `SELECT id, tenant_id, identity, role, created_at FROM seats WHERE tenant_id = $1 ORDER BY id`
	rows, err := s.db.Query(query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list seats: %w", err)
	}
	defer rows.Close()

	var seats []*Seat
	for rows.Next() {
		seat := &Seat{}
		if err := rows.Scan(&seat.ID, &seat.TenantID, &seat.Identity, &seat.Role, &seat.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan seat: %w", err)
		}
		seats = append(seats, seat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate seats: %w", err)
	}
	return seats, nil
}
