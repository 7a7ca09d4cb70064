package tenants

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns the schema migrations in order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create tenants table",
			SQL: `
				CREATE TABLE IF NOT EXISTS tenants (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					parent_id BIGINT REFERENCES tenants(id) ON DELETE RESTRICT,
					manual_status VARCHAR(32) NOT NULL DEFAULT 'ACTIVE',
					billing_enabled BOOLEAN NOT NULL DEFAULT TRUE,
					trial_until TIMESTAMPTZ,
					paid_until TIMESTAMPTZ,
					due_day INT NOT NULL,
					billing_anchor_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					last_payment_at TIMESTAMPTZ,
					pix_key TEXT,
					billing_whatsapp TEXT,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_tenants_parent_id ON tenants(parent_id);
			`,
		},
		{
			Version:     2,
			Description: "Create seats table",
			SQL: `
				CREATE TABLE IF NOT EXISTS seats (
					id BIGSERIAL PRIMARY KEY,
					tenant_id BIGINT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					identity VARCHAR(255) NOT NULL,
					role VARCHAR(32) NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE(tenant_id, identity)
				);

				CREATE INDEX idx_seats_tenant_id ON seats(tenant_id);
			`,
		},
		{
			Version:     3,
			Description: "Create processed payment events table",
			SQL: `
				CREATE TABLE IF NOT EXISTS processed_payment_events (
					id BIGSERIAL PRIMARY KEY,
					payment_id VARCHAR(255) NOT NULL,
					event_type VARCHAR(64) NOT NULL,
					tenant_id BIGINT,
					received_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE(payment_id, event_type)
				);

				CREATE INDEX idx_processed_payment_events_tenant_id
					ON processed_payment_events(tenant_id);
			`,
		},
	}
}

// RunMigrations applies pending migrations, each in its own transaction
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tenant_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM tenant_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}
	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}
		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO tenant_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
