package payments

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/matrizhq/cobrador/pkg/observability"
)

const (
	// DefaultPaidExtension is how far one confirmed payment moves paidUntil
	DefaultPaidExtension = 30 * 24 * time.Hour

	// DefaultPersistTimeout bounds one persistence attempt; the provider's
	// delivery timeout is short, better to answer 503 and get a redelivery.
	DefaultPersistTimeout = 5 * time.Second

	defaultMaxAttempts  = 3
	defaultRetryBackoff = 100 * time.Millisecond
)

// cacheInvalidator drops stale tenant reads after a clock update
type cacheInvalidator interface {
	Invalidate(tenantID int64)
}

// ReconcilerConfig wires a Reconciler
type ReconcilerConfig struct {
	DB          *sql.DB
	Secret      string
	Idempotency IdempotencyStore
	Audit       *AuditTrail
	Logger      *observability.Logger
	Metrics     *observability.Metrics
	Cache       cacheInvalidator

	PaidExtension  time.Duration
	PersistTimeout time.Duration
}

// Reconciler applies payment webhook events to the tenant subscription clock
type Reconciler struct {
	db          *sql.DB
	secret      string
	idempotency IdempotencyStore
	audit       *AuditTrail
	logger      *observability.Logger
	metrics     *observability.Metrics
	cache       cacheInvalidator

	paidExtension  time.Duration
	persistTimeout time.Duration
	maxAttempts    int
	retryBackoff   time.Duration

	now func() time.Time
}

// NewReconciler creates a Reconciler from the given config
func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	if cfg.PaidExtension == 0 {
		cfg.PaidExtension = DefaultPaidExtension
	}
	if cfg.PersistTimeout == 0 {
		cfg.PersistTimeout = DefaultPersistTimeout
	}
	return &Reconciler{
		db:             cfg.DB,
		secret:         cfg.Secret,
		idempotency:    cfg.Idempotency,
		audit:          cfg.Audit,
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
		cache:          cfg.Cache,
		paidExtension:  cfg.PaidExtension,
		persistTimeout: cfg.PersistTimeout,
		maxAttempts:    defaultMaxAttempts,
		retryBackoff:   defaultRetryBackoff,
		now:            time.Now,
	}
}

// Reconcile processes one webhook delivery. The secret comparison happens
// before any I/O; unauthenticated callers learn nothing about tenants or
// payments.
func (r *Reconciler) Reconcile(ctx context.Context, event *Event, providedSecret string) (Outcome, error) {
	if subtle.ConstantTimeCompare([]byte(providedSecret), []byte(r.secret)) != 1 {
		return Outcome{}, ErrUnauthorized
	}

	started := r.now()
	outcome, err := r.reconcile(ctx, event)

	if r.metrics != nil {
		r.metrics.ReconcileDuration.Observe(time.Since(started).Seconds())
		label := string(outcome.Action)
		if err != nil {
			label = "error"
		}
		r.metrics.WebhookEventsTotal.WithLabelValues(string(event.Type), label).Inc()
	}
	return outcome, err
}

func (r *Reconciler) reconcile(ctx context.Context, event *Event) (Outcome, error) {
	if event.PaymentID == "" {
		return r.ignored(event, 0, "missing payment id"), nil
	}
	if !knownEventTypes[event.Type] {
		return r.ignored(event, 0, fmt.Sprintf("unknown event type %q", event.Type)), nil
	}

	tenantID, err := ParseExternalReference(event.ExternalReference)
	if err != nil {
		return r.ignored(event, 0, "unparseable external reference"), nil
	}

	// Redis fast path. Failures fall through to the durable gate.
	marked := false
	if r.idempotency != nil {
		fresh, err := r.idempotency.MarkIfNew(ctx, event.PaymentID, event.Type)
		if err != nil {
			r.logger.WithError(err).Warn("idempotency fast path unavailable, relying on durable gate")
		} else if !fresh {
			if r.metrics != nil {
				r.metrics.IdempotencyHitsTotal.WithLabelValues("redis").Inc()
			}
			return r.ignored(event, tenantID, "duplicate delivery"), nil
		} else {
			marked = true
		}
	}

	outcome, err := r.persistWithRetry(ctx, event, tenantID)
	if err != nil && marked {
		// Let the provider's redelivery through the fast path next time.
		if relErr := r.idempotency.Release(context.Background(), event.PaymentID, event.Type); relErr != nil {
			r.logger.WithError(relErr).Warn("failed to release idempotency mark")
		}
	}
	if err != nil {
		r.audit.Record(event, tenantID, Outcome{}, err)
		return Outcome{}, err
	}

	r.audit.Record(event, tenantID, outcome, nil)
	return outcome, nil
}

func (r *Reconciler) persistWithRetry(ctx context.Context, event *Event, tenantID int64) (Outcome, error) {
	var lastErr error
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Outcome{}, &RetryableError{Err: ctx.Err()}
			case <-time.After(r.retryBackoff << uint(attempt-1)):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, r.persistTimeout)
		outcome, err := r.persist(attemptCtx, event, tenantID)
		cancel()

		if err == nil {
			return outcome, nil
		}
		if !isRetryableDBError(err) {
			return Outcome{}, fmt.Errorf("failed to persist payment event: %w", err)
		}
		lastErr = err
		r.logger.WithError(err).WithField("attempt", attempt+1).Warn("payment event persistence failed, retrying")
	}
	return Outcome{}, &RetryableError{Err: lastErr}
}

// persist runs the atomic transition: lock the tenant chain, insert the
// dedup row, move the paid window.
func (r *Reconciler) persist(ctx context.Context, event *Event, tenantID int64) (Outcome, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	var parentID sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT id, parent_id FROM tenants WHERE id = $1 FOR UPDATE`, tenantID).
		Scan(&id, &parentID)
	if err == sql.ErrNoRows {
		return Outcome{Action: ActionIgnored, Reason: "unknown tenant"}, tx.Commit()
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to lock tenant: %w", err)
	}

	// A branch's payment credits the responsible root. Lock order is always
	// child then parent, so concurrent deliveries cannot deadlock.
	responsibleID := id
	if parentID.Valid {
		var rootID int64
		err = tx.QueryRowContext(ctx,
			`SELECT id FROM tenants WHERE id = $1 FOR UPDATE`, parentID.Int64).
			Scan(&rootID)
		if err == nil {
			responsibleID = rootID
		} else if err != sql.ErrNoRows {
			return Outcome{}, fmt.Errorf("failed to lock parent tenant: %w", err)
		}
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO processed_payment_events (payment_id, event_type, tenant_id, received_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (payment_id, event_type) DO NOTHING
	`, event.PaymentID, event.Type, responsibleID, r.now())
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to record payment event: %w", err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if inserted == 0 {
		if r.metrics != nil {
			r.metrics.IdempotencyHitsTotal.WithLabelValues("durable").Inc()
		}
		return Outcome{Action: ActionIgnored, Reason: "duplicate delivery"}, tx.Commit()
	}

	if event.Type.extendsCoverage() {
		now := r.now()
		paidUntil := now.Add(r.paidExtension)
		// manual_status stays untouched: payment never lifts an operator block
		_, err = tx.ExecContext(ctx, `
			UPDATE tenants SET paid_until = $1, last_payment_at = $2, updated_at = NOW()
			WHERE id = $3
		`, paidUntil, now, responsibleID)
		if err != nil {
			return Outcome{}, fmt.Errorf("failed to extend paid window: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Outcome{}, fmt.Errorf("failed to commit: %w", err)
	}

	if r.cache != nil {
		r.cache.Invalidate(tenantID)
		if responsibleID != tenantID {
			r.cache.Invalidate(responsibleID)
		}
	}

	if event.Type.extendsCoverage() {
		return Outcome{Action: ActionApplied, Reason: "paid window extended"}, nil
	}
	return Outcome{Action: ActionApplied, Reason: "recorded for audit"}, nil
}

func (r *Reconciler) ignored(event *Event, tenantID int64, reason string) Outcome {
	outcome := Outcome{Action: ActionIgnored, Reason: reason}
	r.audit.Record(event, tenantID, outcome, nil)
	return outcome
}

// isRetryableDBError classifies failures worth a redelivery: timeouts, dead
// connections and Postgres transaction-rollback conditions (deadlocks,
// serialization failures).
func isRetryableDBError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return strings.HasPrefix(string(pqErr.Code), "40")
	}
	return false
}
