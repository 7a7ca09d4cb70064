package tenants

import (
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*PostgresService, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	service := NewPostgresService(db)
	service.now = func() time.Time {
		return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	}
	return service, mock
}

func tenantRows(t *Tenant) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "name", "parent_id", "manual_status", "billing_enabled", "trial_until",
		"paid_until", "due_day", "billing_anchor_at", "last_payment_at",
		"pix_key", "billing_whatsapp", "created_at", "updated_at",
	})
	var parentID interface{}
	if t.ParentID != nil {
		parentID = *t.ParentID
	}
	var trialUntil, paidUntil, lastPaymentAt interface{}
	if t.TrialUntil != nil {
		trialUntil = *t.TrialUntil
	}
	if t.PaidUntil != nil {
		paidUntil = *t.PaidUntil
	}
	if t.LastPaymentAt != nil {
		lastPaymentAt = *t.LastPaymentAt
	}
	rows.AddRow(t.ID, t.Name, parentID, t.ManualStatus, t.BillingEnabled, trialUntil,
		paidUntil, t.DueDay, t.BillingAnchorAt, lastPaymentAt,
		t.PixKey, t.BillingWhatsapp, t.CreatedAt, t.UpdatedAt)
	return rows
}

func TestCreateTenant(t *testing.T) {
	t.Run("successful creation starts a trial", func(t *testing.T) {
		service, mock := newTestService(t)

		mock.ExpectQuery(`INSERT INTO tenants`).
			WithArgs("Acme Matriz", ManualStatusActive, true, sqlmock.AnyArg(), 10, sqlmock.AnyArg(), "acme@pix.br", "+5511999990000").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(int64(1), time.Now(), time.Now()))

		tenant, err := service.CreateTenant(&CreateTenantRequest{
			Name:            "Acme Matriz",
			DueDay:          10,
			PixKey:          "acme@pix.br",
			BillingWhatsapp: "+5511999990000",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), tenant.ID)
		assert.True(t, tenant.IsRoot())
		require.NotNil(t, tenant.TrialUntil)
		assert.Equal(t, time.Date(2024, 3, 29, 10, 0, 0, 0, time.UTC), *tenant.TrialUntil)
		assert.Nil(t, tenant.PaidUntil)
		assert.Equal(t, ManualStatusActive, tenant.ManualStatus)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing name is rejected", func(t *testing.T) {
		service, _ := newTestService(t)

		_, err := service.CreateTenant(&CreateTenantRequest{})
		assert.True(t, IsValidation(err))
	})

	t.Run("due day defaults to the signup day", func(t *testing.T) {
		service, mock := newTestService(t)

		mock.ExpectQuery(`INSERT INTO tenants`).
			WithArgs("Acme", ManualStatusActive, true, sqlmock.AnyArg(), 15, sqlmock.AnyArg(), "", "").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(int64(2), time.Now(), time.Now()))

		tenant, err := service.CreateTenant(&CreateTenantRequest{Name: "Acme"})
		require.NoError(t, err)
		assert.Equal(t, 15, tenant.DueDay)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("due day outside 1..28 is rejected", func(t *testing.T) {
		service, _ := newTestService(t)

		_, err := service.CreateTenant(&CreateTenantRequest{Name: "Acme", DueDay: 31})
		assert.True(t, IsValidation(err))
	})
}

func TestCreateBranch(t *testing.T) {
	anchor := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	root := &Tenant{ID: 1, Name: "Acme Matriz", ManualStatus: ManualStatusActive,
		BillingEnabled: true, DueDay: 10, BillingAnchorAt: anchor}

	t.Run("branch inherits the root billing clock", func(t *testing.T) {
		service, mock := newTestService(t)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT`)).
			WithArgs(int64(1)).
			WillReturnRows(tenantRows(root))
		mock.ExpectQuery(`INSERT INTO tenants`).
			WithArgs("Acme Filial SP", int64(1), ManualStatusActive, true, 10, anchor).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(int64(2), time.Now(), time.Now()))

		branch, err := service.CreateBranch(1, &CreateTenantRequest{Name: "Acme Filial SP"})
		require.NoError(t, err)
		assert.False(t, branch.IsRoot())
		assert.Equal(t, int64(1), *branch.ParentID)
		assert.Equal(t, 10, branch.DueDay)
		assert.Nil(t, branch.TrialUntil)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("branch of a branch is rejected", func(t *testing.T) {
		service, mock := newTestService(t)

		parentID := int64(1)
		branch := &Tenant{ID: 2, Name: "Acme Filial SP", ParentID: &parentID,
			ManualStatus: ManualStatusActive, BillingEnabled: true, DueDay: 10, BillingAnchorAt: anchor}

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT`)).
			WithArgs(int64(2)).
			WillReturnRows(tenantRows(branch))

		_, err := service.CreateBranch(2, &CreateTenantRequest{Name: "Acme Sub"})
		assert.True(t, IsValidation(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown parent", func(t *testing.T) {
		service, mock := newTestService(t)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT`)).
			WithArgs(int64(99)).
			WillReturnError(sql.ErrNoRows)

		_, err := service.CreateBranch(99, &CreateTenantRequest{Name: "Orphan"})
		assert.True(t, IsNotFound(err))
	})
}

func TestGetTenant(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		service, mock := newTestService(t)

		paidUntil := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
		stored := &Tenant{ID: 1, Name: "Acme", ManualStatus: ManualStatusActive,
			BillingEnabled: true, PaidUntil: &paidUntil, DueDay: 10,
			BillingAnchorAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			PixKey:          "acme@pix.br"}

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT`)).
			WithArgs(int64(1)).
			WillReturnRows(tenantRows(stored))

		tenant, err := service.GetTenant(1)
		require.NoError(t, err)
		assert.Equal(t, "Acme", tenant.Name)
		require.NotNil(t, tenant.PaidUntil)
		assert.Equal(t, paidUntil, *tenant.PaidUntil)
		assert.Equal(t, "acme@pix.br", tenant.PixKey)
	})

	t.Run("not found", func(t *testing.T) {
		service, mock := newTestService(t)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT`)).
			WithArgs(int64(42)).
			WillReturnError(sql.ErrNoRows)

		_, err := service.GetTenant(42)
		assert.True(t, IsNotFound(err))
	})
}

func TestSetManualStatus(t *testing.T) {
	t.Run("block", func(t *testing.T) {
		service, mock := newTestService(t)

		mock.ExpectExec(`UPDATE tenants SET manual_status`).
			WithArgs(ManualStatusBlocked, int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := service.SetManualStatus(1, ManualStatusBlocked)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown status rejected", func(t *testing.T) {
		service, _ := newTestService(t)

		err := service.SetManualStatus(1, ManualStatus("SUSPENDED"))
		assert.True(t, IsValidation(err))
	})

	t.Run("unknown tenant", func(t *testing.T) {
		service, mock := newTestService(t)

		mock.ExpectExec(`UPDATE tenants SET manual_status`).
			WithArgs(ManualStatusActive, int64(99)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := service.SetManualStatus(99, ManualStatusActive)
		assert.True(t, IsNotFound(err))
	})
}

func TestUpdateRemitContact(t *testing.T) {
	service, mock := newTestService(t)

	stored := &Tenant{ID: 1, Name: "Acme", ManualStatus: ManualStatusActive,
		BillingEnabled: true, DueDay: 10,
		BillingAnchorAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		PixKey:          "old@pix.br", BillingWhatsapp: "+5511988887777"}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT`)).
		WithArgs(int64(1)).
		WillReturnRows(tenantRows(stored))
	mock.ExpectExec(`UPDATE tenants SET pix_key`).
		WithArgs("new@pix.br", "+5511988887777", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	newKey := "new@pix.br"
	err := service.UpdateRemitContact(1, &UpdateRemitContactRequest{PixKey: &newKey})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeats(t *testing.T) {
	root := &Tenant{ID: 1, Name: "Acme", ManualStatus: ManualStatusActive,
		BillingEnabled: true, DueDay: 10,
		BillingAnchorAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}

	t.Run("add seat", func(t *testing.T) {
		service, mock := newTestService(t)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT`)).
			WithArgs(int64(1)).
			WillReturnRows(tenantRows(root))
		mock.ExpectQuery(`INSERT INTO seats`).
			WithArgs(int64(1), "maria@acme.com", SeatRoleAdmin).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).
				AddRow(int64(7), time.Now()))

		seat, err := service.AddSeat(1, &AddSeatRequest{Identity: "maria@acme.com", Role: SeatRoleAdmin})
		require.NoError(t, err)
		assert.Equal(t, int64(7), seat.ID)
		assert.Equal(t, SeatRoleAdmin, seat.Role)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("bad role rejected", func(t *testing.T) {
		service, _ := newTestService(t)

		_, err := service.AddSeat(1, &AddSeatRequest{Identity: "x@y.z", Role: SeatRole("OWNER")})
		assert.True(t, IsValidation(err))
	})

	t.Run("remove missing seat", func(t *testing.T) {
		service, mock := newTestService(t)

		mock.ExpectExec(`DELETE FROM seats`).
			WithArgs(int64(1), "gone@acme.com").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := service.RemoveSeat(1, "gone@acme.com")
		assert.True(t, IsNotFound(err))
	})

	t.Run("list seats", func(t *testing.T) {
		service, mock := newTestService(t)

		rows := sqlmock.NewRows([]string{"id", "tenant_id", "identity", "role", "created_at"}).
			AddRow(int64(1), int64(1), "joao@acme.com", SeatRoleRegular, time.Now()).
			AddRow(int64(2), int64(1), "maria@acme.com", SeatRoleAdmin, time.Now())
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, tenant_id, identity, role, created_at FROM seats`)).
			WithArgs(int64(1)).
			WillReturnRows(rows)

		seats, err := service.ListSeats(1)
		require.NoError(t, err)
		require.Len(t, seats, 2)
		assert.Equal(t, "joao@acme.com", seats[0].Identity)
		assert.Equal(t, SeatRoleAdmin, seats[1].Role)
	})
}
