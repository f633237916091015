package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/jmylchreest/erasure-api/internal/metrics"
	"github.com/jmylchreest/erasure-api/internal/models"
	"github.com/jmylchreest/erasure-api/internal/repository"
)

const maxLedgerErrorMessage = 1000

// LedgerConfig configures webhook verification and redelivery policy.
type LedgerConfig struct {
	WebhookSecret string

	// RetryFailedEvents reopens a ledger row left failed by an earlier
	// delivery and runs the handler again. When false, any existing row
	// short-circuits to ignored.
	RetryFailedEvents bool
}

// HandleResult is the outcome of handling one provider event.
type HandleResult struct {
	AlreadyProcessed bool `json:"alreadyProcessed"`
}

// LedgerService applies payment provider events exactly once, keyed by the
// provider's event id.
type LedgerService struct {
	cfg      LedgerConfig
	events   repository.WebhookEventRepository
	payments repository.PaymentRepository
	orgs     repository.OrgRepository
	now      func() time.Time
	logger   *slog.Logger
}

// NewLedgerService creates a new webhook ledger service.
func NewLedgerService(cfg LedgerConfig, repos *repository.Repositories, logger *slog.Logger) *LedgerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerService{
		cfg:      cfg,
		events:   repos.WebhookEvent,
		payments: repos.Payment,
		orgs:     repos.Org,
		now:      time.Now,
		logger:   logger.With("component", "ledger"),
	}
}

// ConstructEvent verifies the signature over the exact raw body and parses the
// event. Events from an account pinned to another API version are accepted.
func (s *LedgerService) ConstructEvent(rawBody []byte, sigHeader string) (stripe.Event, error) {
	if s.cfg.WebhookSecret == "" {
		return stripe.Event{}, fmt.Errorf("%w: webhook secret not configured", ErrSignatureInvalid)
	}
	event, err := webhook.ConstructEventWithOptions(rawBody, sigHeader, s.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	return event, nil
}

// Handle records the event in the ledger and applies it. The pending row is
// written before any billing mutation. A handler failure marks the row failed
// and is returned so the transport can ask the provider to redeliver.
func (s *LedgerService) Handle(ctx context.Context, event stripe.Event) (*HandleResult, error) {
	eventType := string(event.Type)

	existing, err := s.events.GetByProviderID(ctx, event.ID)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		if !s.cfg.RetryFailedEvents || existing.Status != models.WebhookEventFailed {
			return s.ignore(ctx, event)
		}
		reopened, err := s.events.Reopen(ctx, event.ID)
		if err != nil {
			return nil, err
		}
		if !reopened {
			return s.ignore(ctx, event)
		}
		s.logger.Info("retrying previously failed event", "event_id", event.ID, "type", eventType)
	} else {
		inserted, err := s.events.Insert(ctx, &models.WebhookEvent{ProviderEventID: event.ID, EventType: eventType})
		if err != nil {
			return nil, err
		}
		if !inserted {
			return s.ignore(ctx, event)
		}
	}

	if err := s.apply(ctx, event); err != nil {
		msg := truncate(err.Error(), maxLedgerErrorMessage)
		if markErr := s.events.MarkStatus(ctx, event.ID, models.WebhookEventFailed, &msg); markErr != nil {
			s.logger.Error("failed to mark event failed", "event_id", event.ID, "error", markErr)
		}
		metrics.WebhookEventsTotal.WithLabelValues(string(models.WebhookEventFailed)).Inc()
		return nil, fmt.Errorf("failed to handle %s event %s: %w", eventType, event.ID, err)
	}

	if err := s.events.MarkStatus(ctx, event.ID, models.WebhookEventProcessed, nil); err != nil {
		return nil, err
	}
	metrics.WebhookEventsTotal.WithLabelValues(string(models.WebhookEventProcessed)).Inc()
	s.logger.Info("webhook event processed", "event_id", event.ID, "type", eventType)

	return &HandleResult{AlreadyProcessed: false}, nil
}

func (s *LedgerService) ignore(ctx context.Context, event stripe.Event) (*HandleResult, error) {
	if err := s.events.MarkStatus(ctx, event.ID, models.WebhookEventIgnored, nil); err != nil {
		return nil, err
	}
	metrics.WebhookEventsTotal.WithLabelValues(string(models.WebhookEventIgnored)).Inc()
	s.logger.Info("duplicate webhook event ignored", "event_id", event.ID, "type", event.Type)
	return &HandleResult{AlreadyProcessed: true}, nil
}

// apply routes the event to its billing handler. Unknown types are no-ops.
func (s *LedgerService) apply(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return fmt.Errorf("failed to unmarshal checkout session: %w", err)
		}
		if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			s.logger.Debug("checkout completed without payment", "session_id", session.ID, "payment_status", session.PaymentStatus)
			return nil
		}
		return s.applySetupFeePayment(ctx, &session)

	case "payment_intent.succeeded":
		// Recorded through checkout.session.completed.
		return nil

	case "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return fmt.Errorf("failed to unmarshal payment intent: %w", err)
		}
		n, err := s.payments.MarkFailedByPaymentIntent(ctx, pi.ID, s.now())
		if err != nil {
			return err
		}
		s.logger.Info("payment failed", "payment_intent_id", pi.ID, "rows", n)
		return nil

	case "checkout.session.expired":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return fmt.Errorf("failed to unmarshal checkout session: %w", err)
		}
		if session.ID == "" {
			return nil
		}
		n, err := s.payments.MarkExpired(ctx, session.ID, s.now())
		if err != nil {
			return err
		}
		s.logger.Info("checkout session expired", "session_id", session.ID, "rows", n)
		return nil

	default:
		s.logger.Debug("unhandled webhook event type", "type", event.Type)
		return nil
	}
}

// applySetupFeePayment records a paid checkout session and stamps the org's
// setup fee. A session already recorded as paid is left untouched.
func (s *LedgerService) applySetupFeePayment(ctx context.Context, session *stripe.CheckoutSession) error {
	if session.ID == "" {
		return nil
	}

	md := session.Metadata
	planID := md["planId"]
	if planID == "" {
		planID = models.DefaultSetupFeePlanID
	}
	orgID := md["orgId"]

	var leadID *int64
	if v, err := strconv.ParseInt(md["leadId"], 10, 64); err == nil {
		leadID = &v
	}

	email := session.CustomerEmail
	if email == "" && session.CustomerDetails != nil {
		email = session.CustomerDetails.Email
	}

	amount := session.AmountTotal
	if amount == 0 {
		amount = models.DefaultSetupFeeAmountCents
	}
	currency := strings.ToLower(string(session.Currency))
	if currency == "" {
		currency = models.DefaultCurrency
	}

	var intentID, customerID *string
	if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
		intentID = &session.PaymentIntent.ID
	}
	if session.Customer != nil && session.Customer.ID != "" {
		customerID = &session.Customer.ID
	}

	now := s.now().UTC()

	existing, err := s.payments.GetBySessionID(ctx, session.ID)
	if err != nil {
		return err
	}
	if existing != nil && existing.Status == models.PaymentStatusPaid {
		return nil
	}

	inserted := false
	if existing == nil {
		metadataJSON, _ := json.Marshal(md)
		payment := &models.BillingPayment{
			ID:                      repository.PaymentIDForSession(session.ID),
			LeadID:                  leadID,
			StripeCheckoutSessionID: session.ID,
			StripePaymentIntentID:   intentID,
			StripeCustomerID:        customerID,
			AmountCents:             amount,
			Currency:                currency,
			Status:                  models.PaymentStatusPaid,
			PlanID:                  planID,
			MetadataJSON:            string(metadataJSON),
			PaidAt:                  &now,
		}
		if orgID != "" {
			payment.OrgID = &orgID
		}
		if email != "" {
			payment.Email = &email
		}
		inserted, err = s.payments.Insert(ctx, payment)
		if err != nil {
			return err
		}
	}

	if !inserted {
		updated, err := s.payments.MarkPaid(ctx, session.ID, repository.PaidUpdate{
			PaymentIntentID: intentID,
			CustomerID:      customerID,
			AmountCents:     amount,
			At:              now,
		})
		if err != nil {
			return err
		}
		if !updated {
			return nil
		}
	}

	switch {
	case orgID != "":
		if err := s.orgs.MarkSetupFeePaid(ctx, orgID, now); err != nil {
			return fmt.Errorf("failed to stamp setup fee: %w", err)
		}
	case email != "":
		resolved, err := s.orgs.FindOrgIDByUserEmail(ctx, email)
		if err != nil {
			return err
		}
		if resolved == "" {
			s.logger.Warn("paid checkout has no resolvable org", "session_id", session.ID)
			break
		}
		if err := s.orgs.MarkSetupFeePaid(ctx, resolved, now); err != nil {
			return fmt.Errorf("failed to stamp setup fee: %w", err)
		}
		if err := s.payments.AttachOrg(ctx, session.ID, resolved); err != nil {
			return fmt.Errorf("failed to attach payment to org: %w", err)
		}
		orgID = resolved
	}

	s.logger.Info("setup fee paid",
		"session_id", session.ID,
		"org_id", orgID,
		"amount_cents", amount,
	)
	return nil
}
