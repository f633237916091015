package handlers

import (
	"context"

	"github.com/jmylchreest/erasure-api/internal/service"
)

// BillingHandler handles setup fee checkout endpoints.
type BillingHandler struct {
	billing *service.BillingService
}

// NewBillingHandler creates a new billing handler.
func NewBillingHandler(billing *service.BillingService) *BillingHandler {
	return &BillingHandler{billing: billing}
}

// CheckoutOutput represents a started checkout.
type CheckoutOutput struct {
	Body *service.CheckoutResult
}

// CreateCheckout starts a setup fee checkout for the caller's org.
func (h *BillingHandler) CreateCheckout(ctx context.Context, input *struct{}) (*CheckoutOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	res, err := h.billing.CreateSetupFeeCheckout(ctx, claims.OrgID, claims.Email)
	if err != nil {
		return nil, mapServiceError(ctx, "create checkout", err)
	}
	return &CheckoutOutput{Body: res}, nil
}

// CheckoutStatusInput identifies a checkout session.
type CheckoutStatusInput struct {
	SessionID string `query:"sessionId" required:"true" doc:"Checkout session ID"`
}

// CheckoutStatusOutput reports where a checkout stands.
type CheckoutStatusOutput struct {
	Body *service.CheckoutStatus
}

// CheckoutStatus reports a checkout session's payment status.
func (h *BillingHandler) CheckoutStatus(ctx context.Context, input *CheckoutStatusInput) (*CheckoutStatusOutput, error) {
	if _, err := requireUser(ctx); err != nil {
		return nil, err
	}
	status, err := h.billing.CheckoutStatus(ctx, input.SessionID)
	if err != nil {
		return nil, mapServiceError(ctx, "checkout status", err)
	}
	return &CheckoutStatusOutput{Body: status}, nil
}
