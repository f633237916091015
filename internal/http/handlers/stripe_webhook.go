package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/stripe/stripe-go/v78"

	"github.com/jmylchreest/erasure-api/internal/logging"
	"github.com/jmylchreest/erasure-api/internal/service"
)

// EventLedger verifies and records payment provider events.
type EventLedger interface {
	ConstructEvent(rawBody []byte, sigHeader string) (stripe.Event, error)
	Handle(ctx context.Context, event stripe.Event) (*service.HandleResult, error)
}

// StripeWebhookHandler handles Stripe webhook events.
type StripeWebhookHandler struct {
	ledger EventLedger
	logger *slog.Logger
}

// NewStripeWebhookHandler creates a new Stripe webhook handler.
func NewStripeWebhookHandler(ledger EventLedger, logger *slog.Logger) *StripeWebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeWebhookHandler{
		ledger: ledger,
		logger: logger.With("component", "stripe_webhook"),
	}
}

// HandleWebhook processes incoming Stripe webhooks.
// This is a raw HTTP handler so the signature is checked against the exact bytes received.
func (h *StripeWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	const maxBodySize = 65536 // 64KB

	logger := logging.FromContext(r.Context(), h.logger)

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Error("failed to read webhook body", "error", err)
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	event, err := h.ledger.ConstructEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		logger.Warn("failed to verify webhook signature", "error", err)
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	res, err := h.ledger.Handle(r.Context(), event)
	if err != nil {
		// A 5xx makes the provider redeliver; the ledger decides whether a
		// redelivery is retried.
		logger.Error("failed to handle webhook event", "event_id", event.ID, "type", event.Type, "error", err)
		http.Error(w, "failed to handle event", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(res)
}
