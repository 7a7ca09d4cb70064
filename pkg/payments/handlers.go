package payments

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/matrizhq/cobrador/pkg/httputil"
	"github.com/matrizhq/cobrador/pkg/observability"
)

// SecretHeader carries the webhook authentication token
const SecretHeader = "asaas-access-token"

// maxWebhookBodyBytes caps the webhook payload size
const maxWebhookBodyBytes = 64 * 1024

// WebhookHandlers exposes the payment provider webhook endpoint
type WebhookHandlers struct {
	reconciler *Reconciler
	logger     *observability.Logger
}

// NewWebhookHandlers creates webhook handlers
func NewWebhookHandlers(reconciler *Reconciler, logger *observability.Logger) *WebhookHandlers {
	return &WebhookHandlers{
		reconciler: reconciler,
		logger:     logger,
	}
}

// RegisterRoutes registers webhook routes on the router
func (h *WebhookHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/billing/webhook", h.HandleWebhook).Methods("POST")
}

// webhookPayload mirrors the provider's delivery format
type webhookPayload struct {
	Event   string `json:"event"`
	Payment struct {
		ID                string `json:"id"`
		ExternalReference string `json:"externalReference"`
	} `json:"payment"`
}

// webhookResponse is what the provider sees; action and reason are for
// operators reading delivery logs.
type webhookResponse struct {
	OK     bool   `json:"ok"`
	Action string `json:"action,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// HandleWebhook processes one provider delivery.
// POST /billing/webhook
func (h *WebhookHandlers) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)

	var payload webhookPayload
	if err := httputil.ParseJSON(r, &payload); err != nil {
		// A malformed body will never parse on redelivery either. Answer 200
		// so the provider does not hammer the endpoint with a retry storm.
		h.logger.WithError(err).Warn("discarding malformed webhook payload")
		httputil.WriteSuccess(w, webhookResponse{OK: false, Reason: "malformed payload"})
		return
	}

	event := &Event{
		Type:              EventType(payload.Event),
		PaymentID:         payload.Payment.ID,
		ExternalReference: payload.Payment.ExternalReference,
		ReceivedAt:        time.Now(),
	}

	outcome, err := h.reconciler.Reconcile(r.Context(), event, r.Header.Get(SecretHeader))
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			httputil.WriteUnauthorized(w, "invalid webhook token")
			return
		}
		if IsRetryable(err) {
			httputil.WriteServiceUnavailable(w, "temporarily unable to process event, retry later")
			return
		}
		h.logger.WithError(err).WithField("payment_id", event.PaymentID).Error("webhook reconciliation failed")
		httputil.WriteInternalError(w, errors.New("failed to process payment event"))
		return
	}

	httputil.WriteSuccess(w, webhookResponse{
		OK:     true,
		Action: string(outcome.Action),
		Reason: outcome.Reason,
	})
}
