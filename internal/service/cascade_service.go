package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jmylchreest/erasure-api/internal/metrics"
	"github.com/jmylchreest/erasure-api/internal/models"
	"github.com/jmylchreest/erasure-api/internal/repository"
)

// CascadeService fans a deletion request out to the delivery targets of every
// enabled partner policy.
type CascadeService struct {
	requests repository.RequestRepository
	policies repository.PolicyRepository
	jobs     repository.CascadeJobRepository
	audit    repository.AuditRepository
	logger   *slog.Logger
}

// NewCascadeService creates a new cascade service.
func NewCascadeService(repos *repository.Repositories, logger *slog.Logger) *CascadeService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CascadeService{
		requests: repos.Request,
		policies: repos.Policy,
		jobs:     repos.CascadeJob,
		audit:    repos.Audit,
		logger:   logger.With("component", "cascade"),
	}
}

// DispatchResult summarizes one dispatch call.
type DispatchResult struct {
	TasksCreated   int `json:"tasksCreated"`
	Partners       int `json:"partners"`
	LegacyPolicies int `json:"legacyPolicies"`
	V2Policies     int `json:"v2Policies"`
}

// Dispatch creates a PENDING cascade job for every (partner, target) pair
// resolved from the org's enabled policies. Existing jobs keep their status
// and attempts; only newly inserted rows are counted. Every call appends one
// CASCADING audit entry.
func (s *CascadeService) Dispatch(ctx context.Context, orgID, requestID, actorID string) (*DispatchResult, error) {
	req, err := s.requests.GetByID(ctx, orgID, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load request: %w", err)
	}
	if req == nil {
		return nil, notFound("request")
	}

	policies, err := s.policies.ListEnabled(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cascade policies: %w", err)
	}

	result := &DispatchResult{Partners: len(policies)}
	for _, p := range policies {
		switch p.Generation {
		case models.PolicyGenerationLegacy:
			result.LegacyPolicies++
		default:
			result.V2Policies++
		}

		job := &models.CascadeJob{
			OrgID:      orgID,
			RequestID:  requestID,
			PartnerID:  p.PartnerID,
			TargetType: p.TargetType,
			TargetID:   p.TargetID,
		}
		inserted, err := s.jobs.Upsert(ctx, job)
		if err != nil {
			return nil, err
		}
		if inserted {
			result.TasksCreated++
		}
	}

	if actorID == "" {
		actorID = models.ActorSystem
	}
	details, _ := json.Marshal(result)
	if err := s.audit.Append(ctx, &models.AuditEvent{
		OrgID:       orgID,
		RequestID:   requestID,
		Type:        models.AuditTypeCascading,
		Actor:       actorID,
		DetailsJSON: string(details),
	}); err != nil {
		return nil, fmt.Errorf("failed to write audit event: %w", err)
	}

	if result.TasksCreated > 0 && req.Status == models.RequestStatusReceived {
		if err := s.requests.UpdateStatus(ctx, orgID, requestID, models.RequestStatusCascading); err != nil {
			s.logger.Warn("failed to update request status", "request_id", requestID, "error", err)
		}
	}

	metrics.CascadeDispatchesTotal.Inc()
	metrics.CascadeJobsCreatedTotal.Add(float64(result.TasksCreated))

	s.logger.Info("cascade dispatched",
		"org_id", orgID,
		"request_id", requestID,
		"legacy_policies", result.LegacyPolicies,
		"v2_policies", result.V2Policies,
		"tasks_created", result.TasksCreated,
	)

	return result, nil
}

// DispatchForRequest runs an automated dispatch attributed to the system actor.
func (s *CascadeService) DispatchForRequest(ctx context.Context, orgID, requestID string) (*DispatchResult, error) {
	return s.Dispatch(ctx, orgID, requestID, models.ActorSystem)
}
