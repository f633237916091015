package handlers

import (
	"context"

	"github.com/jmylchreest/erasure-api/internal/delivery"
	"github.com/jmylchreest/erasure-api/internal/service"
)

// IntegrationHandler handles customer API integration endpoints.
type IntegrationHandler struct {
	integrations *service.IntegrationService
}

// NewIntegrationHandler creates a new integration handler.
func NewIntegrationHandler(integrations *service.IntegrationService) *IntegrationHandler {
	return &IntegrationHandler{integrations: integrations}
}

// ListIntegrationsOutput represents masked integrations.
type ListIntegrationsOutput struct {
	Body struct {
		Integrations []service.IntegrationView `json:"integrations" doc:"Credentials are never returned"`
	}
}

// ListIntegrations returns the org's customer API integrations.
func (h *IntegrationHandler) ListIntegrations(ctx context.Context, input *struct{}) (*ListIntegrationsOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	views, err := h.integrations.List(ctx, claims.OrgID)
	if err != nil {
		return nil, mapServiceError(ctx, "list integrations", err)
	}
	out := &ListIntegrationsOutput{}
	out.Body.Integrations = views
	return out, nil
}

// CreateIntegrationInput represents a new integration.
type CreateIntegrationInput struct {
	Body service.IntegrationInput
}

// IntegrationSecretOutput carries a one-time secret.
type IntegrationSecretOutput struct {
	Body *service.IntegrationCreated
}

// CreateIntegration stores an integration. A generated HMAC secret is
// returned in this response only.
func (h *IntegrationHandler) CreateIntegration(ctx context.Context, input *CreateIntegrationInput) (*IntegrationSecretOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	created, err := h.integrations.Create(ctx, claims.OrgID, input.Body)
	if err != nil {
		return nil, mapServiceError(ctx, "create integration", err)
	}
	return &IntegrationSecretOutput{Body: created}, nil
}

// IntegrationIDInput identifies an integration.
type IntegrationIDInput struct {
	ID string `path:"id" doc:"Integration ID"`
}

// IntegrationOutput represents one masked integration.
type IntegrationOutput struct {
	Body *service.IntegrationView
}

// GetIntegration returns one integration.
func (h *IntegrationHandler) GetIntegration(ctx context.Context, input *IntegrationIDInput) (*IntegrationOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	view, err := h.integrations.Get(ctx, claims.OrgID, input.ID)
	if err != nil {
		return nil, mapServiceError(ctx, "get integration", err)
	}
	return &IntegrationOutput{Body: view}, nil
}

// UpdateIntegrationInput represents an integration patch.
type UpdateIntegrationInput struct {
	ID   string `path:"id" doc:"Integration ID"`
	Body service.IntegrationPatch
}

// UpdateIntegration patches an integration.
func (h *IntegrationHandler) UpdateIntegration(ctx context.Context, input *UpdateIntegrationInput) (*IntegrationOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	view, err := h.integrations.Update(ctx, claims.OrgID, input.ID, input.Body)
	if err != nil {
		return nil, mapServiceError(ctx, "update integration", err)
	}
	return &IntegrationOutput{Body: view}, nil
}

// RotateSecret replaces an HMAC integration's shared secret.
func (h *IntegrationHandler) RotateSecret(ctx context.Context, input *IntegrationIDInput) (*IntegrationSecretOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	rotated, err := h.integrations.RotateSecret(ctx, claims.OrgID, input.ID)
	if err != nil {
		return nil, mapServiceError(ctx, "rotate secret", err)
	}
	return &IntegrationSecretOutput{Body: rotated}, nil
}

// DeleteIntegration removes an integration.
func (h *IntegrationHandler) DeleteIntegration(ctx context.Context, input *IntegrationIDInput) (*DeletedOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.integrations.Delete(ctx, claims.OrgID, input.ID); err != nil {
		return nil, mapServiceError(ctx, "delete integration", err)
	}
	return deleted(), nil
}

// ========================================
// Test calls
// ========================================

// DeliveryResultOutput represents the outcome of a test call.
type DeliveryResultOutput struct {
	Body *delivery.Result
}

// TestHealth calls the integration's health endpoint and records the outcome.
func (h *IntegrationHandler) TestHealth(ctx context.Context, input *IntegrationIDInput) (*DeliveryResultOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	res, err := h.integrations.TestHealth(ctx, claims.OrgID, input.ID)
	if err != nil {
		return nil, mapServiceError(ctx, "test health", err)
	}
	return &DeliveryResultOutput{Body: res}, nil
}

// TestStatusInput identifies an integration and an optional request to query.
type TestStatusInput struct {
	ID        string `path:"id" doc:"Integration ID"`
	RequestID string `query:"requestId" doc:"Request ID to query (optional)"`
}

// TestStatus calls the integration's status endpoint.
func (h *IntegrationHandler) TestStatus(ctx context.Context, input *TestStatusInput) (*DeliveryResultOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	var requestID *string
	if input.RequestID != "" {
		requestID = &input.RequestID
	}
	res, err := h.integrations.TestStatus(ctx, claims.OrgID, input.ID, requestID)
	if err != nil {
		return nil, mapServiceError(ctx, "test status", err)
	}
	return &DeliveryResultOutput{Body: res}, nil
}

// TestDelete sends a dry-run delete with a synthetic request id.
func (h *IntegrationHandler) TestDelete(ctx context.Context, input *IntegrationIDInput) (*DeliveryResultOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	res, err := h.integrations.TestDelete(ctx, claims.OrgID, input.ID)
	if err != nil {
		return nil, mapServiceError(ctx, "test delete", err)
	}
	return &DeliveryResultOutput{Body: res}, nil
}

// SummaryOutput represents the integration overview.
type SummaryOutput struct {
	Body *service.IntegrationSummary
}

// Summary reports configured channels and their most recent healthy signal.
func (h *IntegrationHandler) Summary(ctx context.Context, input *struct{}) (*SummaryOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	summary, err := h.integrations.Summary(ctx, claims.OrgID)
	if err != nil {
		return nil, mapServiceError(ctx, "integration summary", err)
	}
	return &SummaryOutput{Body: summary}, nil
}
