package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmylchreest/erasure-api/internal/models"
	"github.com/jmylchreest/erasure-api/internal/repository"
)

const (
	defaultRequestSystem = "drop"
	maxSystemLength      = 80
	maxMetaLength        = 50_000
	maxEventTypeLength   = 60
	maxActorLength       = 80
	maxEventDetails      = 100_000
)

// RequestService manages deletion requests. Only hashes of personal
// identifiers are accepted.
type RequestService struct {
	repos   *repository.Repositories
	cascade *CascadeService
	logger  *slog.Logger
}

// NewRequestService creates a new request service.
func NewRequestService(repos *repository.Repositories, cascade *CascadeService, logger *slog.Logger) *RequestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RequestService{
		repos:   repos,
		cascade: cascade,
		logger:  logger.With("component", "requests"),
	}
}

// CreateRequestInput is the payload for a new deletion request.
type CreateRequestInput struct {
	RequestRef   *string        `json:"requestRef,omitempty" validate:"omitempty,max=200"`
	SubjectHash  string         `json:"subjectHash" validate:"required,hex64"`
	PayloadHash  *string        `json:"payloadHash,omitempty" validate:"omitempty,hex64"`
	System       string         `json:"system,omitempty"`
	ReceivedAt   *time.Time     `json:"receivedAt,omitempty"`
	Meta         map[string]any `json:"meta,omitempty"`
	AutoDispatch bool           `json:"autoDispatch,omitempty"`
}

// CreateRequestResult is the stored request plus the dispatch summary when
// AutoDispatch was set.
type CreateRequestResult struct {
	Request  *models.DeletionRequest `json:"request"`
	Dispatch *DispatchResult         `json:"dispatch,omitempty"`
}

// Create stores a RECEIVED deletion request and writes its RECEIVED audit entry.
func (s *RequestService) Create(ctx context.Context, orgID string, in CreateRequestInput) (*CreateRequestResult, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	system := in.System
	if system == "" {
		system = defaultRequestSystem
	}
	system = truncate(system, maxSystemLength)

	req := &models.DeletionRequest{
		OrgID:       orgID,
		RequestRef:  in.RequestRef,
		SubjectHash: strings.ToLower(in.SubjectHash),
		System:      system,
		Status:      models.RequestStatusReceived,
	}
	if in.PayloadHash != nil {
		h := strings.ToLower(*in.PayloadHash)
		req.PayloadHash = &h
	}
	if in.ReceivedAt != nil {
		req.ReceivedAt = in.ReceivedAt.UTC()
	}
	if len(in.Meta) > 0 {
		meta, err := json.Marshal(in.Meta)
		if err != nil {
			return nil, validationErrorf("meta must be a JSON object")
		}
		req.MetaJSON = truncate(string(meta), maxMetaLength)
	}

	if err := s.repos.Request.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	details, _ := json.Marshal(map[string]any{"requestRef": in.RequestRef, "system": system})
	if err := s.repos.Audit.Append(ctx, &models.AuditEvent{
		OrgID:       orgID,
		RequestID:   req.ID,
		TS:          req.CreatedAt,
		Type:        models.AuditTypeReceived,
		Actor:       models.ActorSystem,
		DetailsJSON: string(details),
	}); err != nil {
		return nil, fmt.Errorf("failed to write audit event: %w", err)
	}

	s.logger.Info("deletion request received", "org_id", orgID, "request_id", req.ID, "system", system)

	result := &CreateRequestResult{Request: req}
	if in.AutoDispatch && s.cascade != nil {
		dispatch, err := s.cascade.DispatchForRequest(ctx, orgID, req.ID)
		if err != nil {
			return nil, err
		}
		result.Dispatch = dispatch
		req.Status = models.RequestStatusCascading
		if dispatch.TasksCreated == 0 {
			req.Status = models.RequestStatusReceived
		}
	}
	return result, nil
}

// RequestDetail is a request with its audit trail and cascade jobs.
type RequestDetail struct {
	Request  *models.DeletionRequest `json:"request"`
	Events   []*models.AuditEvent    `json:"events"`
	Cascades []*models.CascadeJob    `json:"cascades"`
}

// Get returns one request with its events and cascade jobs.
func (s *RequestService) Get(ctx context.Context, orgID, id string) (*RequestDetail, error) {
	req, err := s.repos.Request.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load request: %w", err)
	}
	if req == nil {
		return nil, notFound("request")
	}

	events, err := s.repos.Audit.List(ctx, orgID, id, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit events: %w", err)
	}
	jobs, err := s.repos.CascadeJob.ListByRequest(ctx, orgID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load cascade jobs: %w", err)
	}

	return &RequestDetail{Request: req, Events: events, Cascades: jobs}, nil
}

// List returns the org's 200 most recent requests.
func (s *RequestService) List(ctx context.Context, orgID string) ([]*models.DeletionRequest, error) {
	return s.repos.Request.List(ctx, orgID, 200)
}

// AppendEventInput is an operator-supplied audit entry.
type AppendEventInput struct {
	Type    string          `json:"type" validate:"required"`
	Actor   *string         `json:"actor,omitempty"`
	Details json.RawMessage `json:"details,omitempty"`
}

// AppendEvent adds an audit entry to a request. The actor defaults to the caller.
func (s *RequestService) AppendEvent(ctx context.Context, orgID, requestID, callerID string, in AppendEventInput) (*models.AuditEvent, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	req, err := s.repos.Request.GetByID(ctx, orgID, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load request: %w", err)
	}
	if req == nil {
		return nil, notFound("request")
	}

	actor := callerID
	if in.Actor != nil && *in.Actor != "" {
		actor = truncate(*in.Actor, maxActorLength)
	}

	event := &models.AuditEvent{
		OrgID:     orgID,
		RequestID: requestID,
		Type:      truncate(in.Type, maxEventTypeLength),
		Actor:     actor,
	}
	if len(in.Details) > 0 && string(in.Details) != "null" {
		event.DetailsJSON = truncate(string(in.Details), maxEventDetails)
	}
	if err := s.repos.Audit.Append(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to write audit event: %w", err)
	}
	return event, nil
}

// MatchedTargets counts the delivery targets configured for an org.
type MatchedTargets struct {
	Connectors   int `json:"connectors"`
	CustomerAPIs int `json:"customerApis"`
	Partners     int `json:"partners"`
}

// CascadeCandidate is one (partner, target) pair a dispatch would reach.
type CascadeCandidate struct {
	PartnerID      string                  `json:"partnerId"`
	PartnerName    string                  `json:"partnerName"`
	PartnerEnabled bool                    `json:"partnerEnabled"`
	TargetType     models.TargetType       `json:"targetType"`
	TargetID       string                  `json:"targetId"`
	Mode           string                  `json:"mode"`
	Generation     models.PolicyGeneration `json:"generation"`
}

// HashMatchResult reports what a request for a subject hash would reach.
type HashMatchResult struct {
	SubjectHash       string             `json:"subjectHash"`
	MatchedTargets    MatchedTargets     `json:"matchedTargets"`
	CascadeCandidates []CascadeCandidate `json:"cascadeCandidates"`
	Notes             []string           `json:"notes"`
}

// HashMatch validates a subject hash against the org's configured targets
// and policies. No lookup of personal data happens here.
func (s *RequestService) HashMatch(ctx context.Context, orgID, subjectHash string) (*HashMatchResult, error) {
	if !isHex64(subjectHash) {
		return nil, validationErrorf("subjectHash must be a 64-char hex SHA-256 value")
	}

	connectors, err := s.repos.Connector.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	integrations, err := s.repos.Integration.List(ctx, orgID)
	if err != nil {
		return nil, err
	}
	partners, err := s.repos.Partner.List(ctx, orgID)
	if err != nil {
		return nil, err
	}
	policies, err := s.repos.Policy.List(ctx, orgID)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*models.Partner, len(partners))
	enabled := 0
	for _, p := range partners {
		byID[p.ID] = p
		if p.Enabled {
			enabled++
		}
	}

	result := &HashMatchResult{
		SubjectHash: strings.ToLower(subjectHash),
		MatchedTargets: MatchedTargets{
			Connectors:   len(connectors),
			CustomerAPIs: len(integrations),
			Partners:     enabled,
		},
		CascadeCandidates: make([]CascadeCandidate, 0, len(policies)),
		Notes:             []string{},
	}
	for _, p := range policies {
		c := CascadeCandidate{
			PartnerID:  p.PartnerID,
			TargetType: p.TargetType,
			TargetID:   p.TargetID,
			Mode:       p.Mode,
			Generation: p.Generation,
		}
		if partner, ok := byID[p.PartnerID]; ok {
			c.PartnerName = partner.Name
			c.PartnerEnabled = partner.Enabled
		}
		result.CascadeCandidates = append(result.CascadeCandidates, c)
	}

	if len(connectors) == 0 && len(integrations) == 0 {
		result.Notes = append(result.Notes, "No connectors or customer APIs configured")
	}
	if len(policies) == 0 {
		result.Notes = append(result.Notes, "No cascade policies configured; no downstream targets will receive this request")
	}
	return result, nil
}
