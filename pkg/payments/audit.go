package payments

import (
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AuditTrail writes one append-only JSON record per webhook delivery. It is
// the operator's reconciliation history: what arrived, what was done with it
// and why, independent of the service log level.
type AuditTrail struct {
	log *logrus.Logger
}

// NewAuditTrail creates an audit trail writing to the given output
func NewAuditTrail(output io.Writer) *AuditTrail {
	if output == nil {
		output = os.Stdout
	}
	log := logrus.New()
	log.SetOutput(output)
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)
	return &AuditTrail{log: log}
}

// Record writes one audit entry for a processed delivery
func (a *AuditTrail) Record(event *Event, tenantID int64, outcome Outcome, err error) {
	fields := logrus.Fields{
		"audit_id":           uuid.NewString(),
		"event_type":         string(event.Type),
		"payment_id":         event.PaymentID,
		"external_reference": event.ExternalReference,
		"action":             string(outcome.Action),
	}
	if tenantID != 0 {
		fields["tenant_id"] = tenantID
	}
	if outcome.Reason != "" {
		fields["reason"] = outcome.Reason
	}

	entry := a.log.WithFields(fields)
	if err != nil {
		entry.WithField("error", err.Error()).Error("payment event failed")
		return
	}
	entry.Info("payment event reconciled")
}
