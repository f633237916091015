package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stripe/stripe-go/v78"

	"github.com/jmylchreest/erasure-api/internal/models"
	"github.com/jmylchreest/erasure-api/internal/repository"
)

// ErrBillingDisabled is returned when no payment provider key is configured.
var ErrBillingDisabled = errors.New("billing is not configured")

// CheckoutSessions is the subset of the Stripe checkout session client used here.
type CheckoutSessions interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// BillingConfig configures setup fee checkout.
type BillingConfig struct {
	SetupFeePriceID string // empty uses an inline price
	ClientURL       string
}

// CheckoutResult is returned after starting a checkout.
type CheckoutResult struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// CheckoutStatus reports where a checkout session stands.
type CheckoutStatus struct {
	SessionID   string               `json:"sessionId"`
	Status      models.PaymentStatus `json:"status"`
	AmountCents int64                `json:"amountCents"`
	Currency    string               `json:"currency"`
	Source      string               `json:"source"` // "ledger" or "provider"
}

// BillingService starts setup fee checkouts. Payment completion arrives
// through the webhook ledger.
type BillingService struct {
	cfg      BillingConfig
	sessions CheckoutSessions
	repos    *repository.Repositories
	logger   *slog.Logger
}

// NewBillingService creates a new billing service. sessions may be nil when
// billing is not configured.
func NewBillingService(cfg BillingConfig, sessions CheckoutSessions, repos *repository.Repositories, logger *slog.Logger) *BillingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BillingService{
		cfg:      cfg,
		sessions: sessions,
		repos:    repos,
		logger:   logger.With("component", "billing"),
	}
}

// IsEnabled reports whether checkout can be started.
func (s *BillingService) IsEnabled() bool {
	return s != nil && s.sessions != nil
}

// CreateSetupFeeCheckout opens a checkout session for the org's one-off
// setup fee and records a pending payment row for it.
func (s *BillingService) CreateSetupFeeCheckout(ctx context.Context, orgID, email string) (*CheckoutResult, error) {
	if !s.IsEnabled() {
		return nil, ErrBillingDisabled
	}

	org, err := s.repos.Org.GetByID(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load org: %w", err)
	}
	if org == nil {
		return nil, notFound("org")
	}
	if org.SetupFeePaidAt != nil {
		return nil, validationErrorf("setup fee already paid")
	}

	base := strings.TrimRight(s.cfg.ClientURL, "/")
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(base + "/billing/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(base + "/billing/cancel"),
	}
	params.Context = ctx
	if email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	params.AddMetadata("orgId", orgID)
	params.AddMetadata("planId", models.DefaultSetupFeePlanID)

	if s.cfg.SetupFeePriceID != "" {
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(s.cfg.SetupFeePriceID),
			Quantity: stripe.Int64(1),
		}}
	} else {
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(models.DefaultCurrency),
				UnitAmount: stripe.Int64(models.DefaultSetupFeeAmountCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Setup fee"),
				},
			},
			Quantity: stripe.Int64(1),
		}}
	}

	session, err := s.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	metadataJSON, _ := json.Marshal(map[string]string{
		"orgId":  orgID,
		"planId": models.DefaultSetupFeePlanID,
	})
	payment := &models.BillingPayment{
		ID:                      repository.PaymentIDForSession(session.ID),
		OrgID:                   &orgID,
		StripeCheckoutSessionID: session.ID,
		AmountCents:             models.DefaultSetupFeeAmountCents,
		Currency:                models.DefaultCurrency,
		Status:                  models.PaymentStatusPending,
		PlanID:                  models.DefaultSetupFeePlanID,
		MetadataJSON:            string(metadataJSON),
	}
	if email != "" {
		payment.Email = &email
	}
	if _, err := s.repos.Payment.Insert(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to record pending payment: %w", err)
	}

	s.logger.Info("setup fee checkout created", "org_id", orgID, "session_id", session.ID)

	return &CheckoutResult{SessionID: session.ID, URL: session.URL}, nil
}

// CheckoutStatus answers from the ledger first and only asks the provider
// when the session is unknown or still pending locally.
func (s *BillingService) CheckoutStatus(ctx context.Context, sessionID string) (*CheckoutStatus, error) {
	if sessionID == "" {
		return nil, validationErrorf("sessionId is required")
	}

	payment, err := s.repos.Payment.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	if payment != nil && payment.Status.Terminal() {
		return &CheckoutStatus{
			SessionID:   sessionID,
			Status:      payment.Status,
			AmountCents: payment.AmountCents,
			Currency:    payment.Currency,
			Source:      "ledger",
		}, nil
	}

	if !s.IsEnabled() {
		if payment == nil {
			return nil, notFound("checkout session")
		}
		return &CheckoutStatus{
			SessionID:   sessionID,
			Status:      payment.Status,
			AmountCents: payment.AmountCents,
			Currency:    payment.Currency,
			Source:      "ledger",
		}, nil
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	session, err := s.sessions.Get(sessionID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == 404 {
			return nil, notFound("checkout session")
		}
		return nil, fmt.Errorf("failed to fetch checkout session: %w", err)
	}

	return &CheckoutStatus{
		SessionID:   session.ID,
		Status:      providerPaymentStatus(session),
		AmountCents: session.AmountTotal,
		Currency:    strings.ToLower(string(session.Currency)),
		Source:      "provider",
	}, nil
}

func providerPaymentStatus(session *stripe.CheckoutSession) models.PaymentStatus {
	switch {
	case session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid:
		return models.PaymentStatusPaid
	case session.Status == stripe.CheckoutSessionStatusExpired:
		return models.PaymentStatusExpired
	default:
		return models.PaymentStatusPending
	}
}
