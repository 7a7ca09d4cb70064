package payments

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EventType is the provider's event classification
type EventType string

const (
	EventPaymentReceived  EventType = "PAYMENT_RECEIVED"
	EventPaymentConfirmed EventType = "PAYMENT_CONFIRMED"
	EventPaymentOverdue   EventType = "PAYMENT_OVERDUE"
	EventPaymentRefunded  EventType = "PAYMENT_REFUNDED"
	EventPaymentDeleted   EventType = "PAYMENT_DELETED"
)

// knownEventTypes lists every type the reconciler understands. Anything else
// is acknowledged and ignored so the provider stops redelivering.
var knownEventTypes = map[EventType]bool{
	EventPaymentReceived:  true,
	EventPaymentConfirmed: true,
	EventPaymentOverdue:   true,
	EventPaymentRefunded:  true,
	EventPaymentDeleted:   true,
}

// extendsCoverage reports whether the event type moves the paid window
func (t EventType) extendsCoverage() bool {
	return t == EventPaymentReceived || t == EventPaymentConfirmed
}

// Event is one webhook delivery after parsing
type Event struct {
	Type              EventType `json:"type"`
	PaymentID         string    `json:"payment_id"`
	ExternalReference string    `json:"external_reference"`
	ReceivedAt        time.Time `json:"received_at"`
}

// Action is the reconciliation verdict for a delivery
type Action string

const (
	ActionApplied Action = "applied"
	ActionIgnored Action = "ignored"
)

// Outcome describes what the reconciler did with a delivery
type Outcome struct {
	Action Action `json:"action"`
	Reason string `json:"reason,omitempty"`
}

// ErrUnauthorized indicates a delivery with a missing or wrong shared secret
var ErrUnauthorized = errors.New("webhook secret mismatch")

// RetryableError wraps a persistence failure the provider should retry by
// redelivering; idempotency makes redelivery safe.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable: %v", e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable checks whether the error asks the provider to redeliver
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// ParseExternalReference extracts the tenant id from the provider-side
// reference. The charge flow writes "tenant_<id>"; a bare numeric id is
// accepted for manually created charges.
func ParseExternalReference(ref string) (int64, error) {
	ref = strings.TrimSpace(ref)
	ref = strings.TrimPrefix(ref, "tenant_")
	if ref == "" {
		return 0, fmt.Errorf("empty external reference")
	}
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("malformed external reference %q", ref)
	}
	return id, nil
}
