package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmylchreest/erasure-api/internal/models"
	"github.com/jmylchreest/erasure-api/internal/repository"
)

// PolicyService manages cascade policies across both storage generations.
// New policies are always written as v2.
type PolicyService struct {
	repos  *repository.Repositories
	logger *slog.Logger
}

// NewPolicyService creates a new policy service.
func NewPolicyService(repos *repository.Repositories, logger *slog.Logger) *PolicyService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PolicyService{
		repos:  repos,
		logger: logger.With("component", "policies"),
	}
}

// PolicyInput creates a v2 cascade policy.
type PolicyInput struct {
	PartnerID           string            `json:"partnerId" validate:"required"`
	TargetType          models.TargetType `json:"targetType" validate:"required,oneof=connector customer_api"`
	TargetID            string            `json:"targetId" validate:"required"`
	Mode                string            `json:"mode,omitempty" validate:"omitempty,max=40"`
	RetriesMax          *int              `json:"retriesMax,omitempty" validate:"omitempty,min=0,max=20"`
	BackoffMinutes      *int              `json:"backoffMinutes,omitempty" validate:"omitempty,min=1,max=10080"`
	SLADays             *int              `json:"slaDays,omitempty" validate:"omitempty,min=1,max=365"`
	AttestationRequired bool              `json:"attestationRequired,omitempty"`
	EscalationEmail     *string           `json:"escalationEmail,omitempty" validate:"omitempty,email"`
}

// PolicyPatch updates a policy; nil fields are left unchanged.
type PolicyPatch struct {
	PartnerID           *string            `json:"partnerId,omitempty"`
	TargetType          *models.TargetType `json:"targetType,omitempty" validate:"omitempty,oneof=connector customer_api"`
	TargetID            *string            `json:"targetId,omitempty"`
	Mode                *string            `json:"mode,omitempty" validate:"omitempty,max=40"`
	RetriesMax          *int               `json:"retriesMax,omitempty" validate:"omitempty,min=0,max=20"`
	BackoffMinutes      *int               `json:"backoffMinutes,omitempty" validate:"omitempty,min=1,max=10080"`
	SLADays             *int               `json:"slaDays,omitempty" validate:"omitempty,min=1,max=365"`
	AttestationRequired *bool              `json:"attestationRequired,omitempty"`
	EscalationEmail     *string            `json:"escalationEmail,omitempty" validate:"omitempty,email"`
}

// List returns the merged view of legacy and v2 policies.
func (s *PolicyService) List(ctx context.Context, orgID string) ([]models.CascadePolicy, error) {
	policies, err := s.repos.Policy.List(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	if policies == nil {
		policies = []models.CascadePolicy{}
	}
	return policies, nil
}

// Create writes a v2 policy after checking the partner and target exist.
func (s *PolicyService) Create(ctx context.Context, orgID string, in PolicyInput) (*models.CascadePolicy, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if err := s.checkPartner(ctx, orgID, in.PartnerID); err != nil {
		return nil, err
	}
	if err := s.checkTarget(ctx, orgID, in.TargetType, in.TargetID); err != nil {
		return nil, err
	}

	p := &models.CascadePolicy{
		OrgID:               orgID,
		PartnerID:           in.PartnerID,
		TargetType:          in.TargetType,
		TargetID:            in.TargetID,
		Mode:                models.DefaultPolicyMode,
		RetriesMax:          models.DefaultRetriesMax,
		BackoffMinutes:      models.DefaultBackoffMinutes,
		SLADays:             in.SLADays,
		AttestationRequired: in.AttestationRequired,
		EscalationEmail:     in.EscalationEmail,
		Generation:          models.PolicyGenerationV2,
	}
	if in.Mode != "" {
		p.Mode = in.Mode
	}
	if in.RetriesMax != nil {
		p.RetriesMax = *in.RetriesMax
	}
	if in.BackoffMinutes != nil {
		p.BackoffMinutes = *in.BackoffMinutes
	}

	if err := s.repos.Policy.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create policy: %w", err)
	}

	s.logger.Info("cascade policy created",
		"org_id", orgID,
		"policy_id", p.ID,
		"partner_id", p.PartnerID,
		"target_type", p.TargetType,
	)
	return p, nil
}

// Update applies a patch to whichever generation holds the policy.
func (s *PolicyService) Update(ctx context.Context, orgID, id string, patch PolicyPatch) (*models.CascadePolicy, error) {
	if err := validateInput(patch); err != nil {
		return nil, err
	}

	p, err := s.repos.Policy.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}
	if p == nil {
		return nil, notFound("policy")
	}

	if patch.TargetType != nil && *patch.TargetType != p.TargetType {
		if p.Generation == models.PolicyGenerationLegacy {
			return nil, validationErrorf("legacy policies can only target connectors")
		}
		p.TargetType = *patch.TargetType
	}
	if patch.PartnerID != nil && *patch.PartnerID != p.PartnerID {
		if err := s.checkPartner(ctx, orgID, *patch.PartnerID); err != nil {
			return nil, err
		}
		p.PartnerID = *patch.PartnerID
	}
	if patch.TargetID != nil {
		p.TargetID = *patch.TargetID
	}
	if patch.TargetType != nil || patch.TargetID != nil {
		if err := s.checkTarget(ctx, orgID, p.TargetType, p.TargetID); err != nil {
			return nil, err
		}
	}
	if patch.Mode != nil && *patch.Mode != "" {
		p.Mode = *patch.Mode
	}
	if patch.RetriesMax != nil {
		p.RetriesMax = *patch.RetriesMax
	}
	if patch.BackoffMinutes != nil {
		p.BackoffMinutes = *patch.BackoffMinutes
	}
	if patch.SLADays != nil {
		p.SLADays = patch.SLADays
	}
	if patch.AttestationRequired != nil {
		p.AttestationRequired = *patch.AttestationRequired
	}
	if patch.EscalationEmail != nil {
		p.EscalationEmail = patch.EscalationEmail
		if *patch.EscalationEmail == "" {
			p.EscalationEmail = nil
		}
	}

	if err := s.repos.Policy.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update policy: %w", err)
	}
	return p, nil
}

// Delete removes a policy from whichever generation holds it.
func (s *PolicyService) Delete(ctx context.Context, orgID, id string) error {
	deleted, err := s.repos.Policy.Delete(ctx, orgID, id)
	if err != nil {
		return fmt.Errorf("failed to delete policy: %w", err)
	}
	if !deleted {
		return notFound("policy")
	}
	return nil
}

func (s *PolicyService) checkPartner(ctx context.Context, orgID, partnerID string) error {
	partner, err := s.repos.Partner.GetByID(ctx, orgID, partnerID)
	if err != nil {
		return fmt.Errorf("failed to load partner: %w", err)
	}
	if partner == nil {
		return validationErrorf("partner %s does not exist", partnerID)
	}
	return nil
}

func (s *PolicyService) checkTarget(ctx context.Context, orgID string, targetType models.TargetType, targetID string) error {
	var exists bool
	switch targetType {
	case models.TargetTypeConnector:
		c, err := s.repos.Connector.GetByID(ctx, orgID, targetID)
		if err != nil {
			return fmt.Errorf("failed to load connector: %w", err)
		}
		exists = c != nil
	case models.TargetTypeCustomerAPI:
		i, err := s.repos.Integration.GetByID(ctx, orgID, targetID)
		if err != nil {
			return fmt.Errorf("failed to load integration: %w", err)
		}
		exists = i != nil
	default:
		return validationErrorf("targetType must be one of [connector customer_api]")
	}
	if !exists {
		return validationErrorf("%s target %s does not exist", targetType, targetID)
	}
	return nil
}
