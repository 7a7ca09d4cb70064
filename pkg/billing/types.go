package billing

import "time"

// Phase distinguishes the trial window from the paid subscription
type Phase string

const (
	PhaseTrial        Phase = "TRIAL"
	PhaseSubscription Phase = "SUBSCRIPTION"
)

// Code is the externally visible billing status code
type Code string

const (
	CodeTrialActive Code = "TRIAL_ACTIVE"
	CodeTrialEnding Code = "TRIAL_ENDING"
	CodePaid        Code = "PAID"
	CodeDueSoon     Code = "DUE_SOON"
	CodePastDue     Code = "PAST_DUE"
	CodeBlocked     Code = "BLOCKED"
	CodeManualBlock Code = "MANUAL_BLOCK"
)

// Status is the full evaluation result for a tenant at a point in time
type Status struct {
	Phase               Phase      `json:"phase"`
	Code                Code       `json:"code"`
	Blocked             bool       `json:"blocked"`
	DueAt               *time.Time `json:"due_at,omitempty"`
	DaysRemaining       int        `json:"days_remaining"`
	PaidForCurrentCycle bool       `json:"paid_for_current_cycle"`
	Message             string     `json:"message"`
	ShowAlert           bool       `json:"show_alert"`
}

// statusMessages is the fixed per-code message table. Callers render these
// verbatim; there is no templating.
var statusMessages = map[Code]string{
	CodeTrialActive: "Período de avaliação ativo.",
	CodeTrialEnding: "Seu período de avaliação está terminando. Assine para continuar.",
	CodePaid:        "Assinatura em dia.",
	CodeDueSoon:     "Sua fatura vence em breve.",
	CodePastDue:     "Fatura vencida. Regularize o pagamento para evitar o bloqueio.",
	CodeBlocked:     "Acesso bloqueado por falta de pagamento.",
	CodeManualBlock: "Acesso bloqueado. Entre em contato com o suporte.",
}

// InvoiceLine is one seat tier of the invoice
type InvoiceLine struct {
	Count           int   `json:"count"`
	FreeAllowance   int   `json:"free_allowance"`
	BillableOverage int   `json:"billable_overage"`
	UnitPriceCents  int64 `json:"unit_price_cents"`
	SubtotalCents   int64 `json:"subtotal_cents"`
}

// Invoice is the computed monthly charge for a responsible tenant
type Invoice struct {
	BaseFeeCents int64       `json:"base_fee_cents"`
	Regular      InvoiceLine `json:"regular"`
	Admin        InvoiceLine `json:"admin"`
	TotalCents   int64       `json:"total_cents"`
}
