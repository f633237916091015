package handlers

import (
	"context"

	"github.com/jmylchreest/erasure-api/internal/models"
	"github.com/jmylchreest/erasure-api/internal/service"
)

// PolicyHandler handles cascade policy endpoints.
type PolicyHandler struct {
	policies *service.PolicyService
}

// NewPolicyHandler creates a new policy handler.
func NewPolicyHandler(policies *service.PolicyService) *PolicyHandler {
	return &PolicyHandler{policies: policies}
}

// ListPoliciesOutput represents the merged policy list.
type ListPoliciesOutput struct {
	Body struct {
		Policies []models.CascadePolicy `json:"policies" doc:"Legacy and v2 policies"`
	}
}

// ListPolicies returns both policy generations.
func (h *PolicyHandler) ListPolicies(ctx context.Context, input *struct{}) (*ListPoliciesOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	policies, err := h.policies.List(ctx, claims.OrgID)
	if err != nil {
		return nil, mapServiceError(ctx, "list policies", err)
	}
	out := &ListPoliciesOutput{}
	out.Body.Policies = policies
	return out, nil
}

// CreatePolicyInput represents a new policy.
type CreatePolicyInput struct {
	Body service.PolicyInput
}

// PolicyOutput represents a single policy.
type PolicyOutput struct {
	Body *models.CascadePolicy
}

// CreatePolicy stores a v2 policy.
func (h *PolicyHandler) CreatePolicy(ctx context.Context, input *CreatePolicyInput) (*PolicyOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	p, err := h.policies.Create(ctx, claims.OrgID, input.Body)
	if err != nil {
		return nil, mapServiceError(ctx, "create policy", err)
	}
	return &PolicyOutput{Body: p}, nil
}

// UpdatePolicyInput represents a policy patch.
type UpdatePolicyInput struct {
	ID   string `path:"id" doc:"Policy ID"`
	Body service.PolicyPatch
}

// UpdatePolicy patches a policy of either generation.
func (h *PolicyHandler) UpdatePolicy(ctx context.Context, input *UpdatePolicyInput) (*PolicyOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	p, err := h.policies.Update(ctx, claims.OrgID, input.ID, input.Body)
	if err != nil {
		return nil, mapServiceError(ctx, "update policy", err)
	}
	return &PolicyOutput{Body: p}, nil
}

// PolicyIDInput identifies a policy.
type PolicyIDInput struct {
	ID string `path:"id" doc:"Policy ID"`
}

// DeletedOutput acknowledges a delete.
type DeletedOutput struct {
	Body struct {
		Deleted bool `json:"deleted"`
	}
}

func deleted() *DeletedOutput {
	out := &DeletedOutput{}
	out.Body.Deleted = true
	return out
}

// DeletePolicy removes a policy of either generation.
func (h *PolicyHandler) DeletePolicy(ctx context.Context, input *PolicyIDInput) (*DeletedOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.policies.Delete(ctx, claims.OrgID, input.ID); err != nil {
		return nil, mapServiceError(ctx, "delete policy", err)
	}
	return deleted(), nil
}
