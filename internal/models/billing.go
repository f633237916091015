package models

import "time"

// ========================================
// Payment provider webhook ledger
// ========================================

// WebhookEventStatus is the processing state of a provider event.
type WebhookEventStatus string

const (
	WebhookEventPending   WebhookEventStatus = "pending"
	WebhookEventProcessed WebhookEventStatus = "processed"
	WebhookEventIgnored   WebhookEventStatus = "ignored"
	WebhookEventFailed    WebhookEventStatus = "failed"
)

// WebhookEvent is a ledger row keyed by the provider's event id.
type WebhookEvent struct {
	ID              string             `json:"id"`
	ProviderEventID string             `json:"provider_event_id"`
	EventType       string             `json:"event_type"`
	Status          WebhookEventStatus `json:"status"`
	CreatedAt       time.Time          `json:"created_at"`
	ProcessedAt     *time.Time         `json:"processed_at,omitempty"`
	ErrorMessage    *string            `json:"error_message,omitempty"`
}

// ========================================
// Billing payments
// ========================================

// PaymentStatus is the state of a checkout payment.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
	PaymentStatusExpired PaymentStatus = "expired"
)

// Terminal reports whether no further transition is allowed.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusPaid || s == PaymentStatusFailed || s == PaymentStatusExpired
}

// Setup fee defaults applied when the checkout session omits them.
const (
	DefaultSetupFeePlanID      = "setup_fee_999"
	DefaultSetupFeeAmountCents = 99900
	DefaultCurrency            = "usd"
)

// BillingPayment is one row per checkout session.
type BillingPayment struct {
	ID                      string        `json:"id"`
	OrgID                   *string       `json:"org_id,omitempty"`
	LeadID                  *int64        `json:"lead_id,omitempty"`
	StripeCheckoutSessionID string        `json:"stripe_checkout_session_id"`
	StripePaymentIntentID   *string       `json:"stripe_payment_intent_id,omitempty"`
	StripeCustomerID        *string       `json:"stripe_customer_id,omitempty"`
	AmountCents             int64         `json:"amount_cents"`
	Currency                string        `json:"currency"`
	Status                  PaymentStatus `json:"status"`
	PlanID                  string        `json:"plan_id"`
	Email                   *string       `json:"email,omitempty"`
	MetadataJSON            string        `json:"metadata_json,omitempty"`
	PaidAt                  *time.Time    `json:"paid_at,omitempty"`
	CreatedAt               time.Time     `json:"created_at"`
	UpdatedAt               time.Time     `json:"updated_at"`
}
