package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmylchreest/erasure-api/internal/crypto"
	"github.com/jmylchreest/erasure-api/internal/models"
	"github.com/jmylchreest/erasure-api/internal/repository"
)

// Agent polling schedule handed out with the connector config.
const (
	agentPollIntervalHours = 24
	agentMaxDaysWithoutRun = 45
)

// AgentService serves the on-premise connector agents.
type AgentService struct {
	repos  *repository.Repositories
	now    func() time.Time
	logger *slog.Logger
}

// NewAgentService creates a new agent service.
func NewAgentService(repos *repository.Repositories, logger *slog.Logger) *AgentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AgentService{
		repos:  repos,
		now:    time.Now,
		logger: logger.With("component", "agent"),
	}
}

// Authenticate resolves a raw connector token. Returns nil for unknown or
// revoked tokens.
func (s *AgentService) Authenticate(ctx context.Context, token string) (*models.Connector, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	return s.repos.Connector.FindByTokenHash(ctx, crypto.HashToken(token))
}

// HeartbeatInput is sent periodically by each agent.
type HeartbeatInput struct {
	AgentVersion string `json:"agentVersion,omitempty"`
	DBType       string `json:"dbType,omitempty"`
}

// HeartbeatResult acknowledges a heartbeat.
type HeartbeatResult struct {
	OK         bool      `json:"ok"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Heartbeat marks the connector ONLINE.
func (s *AgentService) Heartbeat(ctx context.Context, c *models.Connector, in HeartbeatInput) (*HeartbeatResult, error) {
	now := s.now().UTC()
	if err := s.repos.Connector.RecordHeartbeat(ctx, c.OrgID, c.ID, truncate(in.AgentVersion, 40), now); err != nil {
		return nil, fmt.Errorf("failed to record heartbeat: %w", err)
	}
	s.logger.Debug("heartbeat", "connector_id", c.ID, "agent_version", in.AgentVersion)
	return &HeartbeatResult{OK: true, ReceivedAt: now}, nil
}

// AgentEvent is one event reported by an agent run.
type AgentEvent struct {
	Type        string          `json:"type"`
	RequestID   *string         `json:"requestId,omitempty"`
	RequestRef  *string         `json:"requestRef,omitempty"`
	SubjectHash *string         `json:"subjectHash,omitempty"`
	Matched     *bool           `json:"matched,omitempty"`
	MatchCount  *int            `json:"matchCount,omitempty"`
	RunID       *string         `json:"runId,omitempty"`
	Stats       json.RawMessage `json:"stats,omitempty"`
	Details     map[string]any  `json:"details,omitempty"`
}

// RecordEventsResult acknowledges an event batch.
type RecordEventsResult struct {
	OK       bool `json:"ok"`
	Received int  `json:"received"`
}

// RecordEvents appends one agent audit row per event. Events without a
// request id are filed under "system".
func (s *AgentService) RecordEvents(ctx context.Context, c *models.Connector, events []AgentEvent) (*RecordEventsResult, error) {
	ts := s.now().UTC()
	for _, ev := range events {
		if strings.TrimSpace(ev.Type) == "" {
			return nil, validationErrorf("event type is required")
		}

		requestID := models.ActorSystem
		switch {
		case ev.RequestID != nil && *ev.RequestID != "":
			requestID = *ev.RequestID
		case ev.RequestRef != nil && *ev.RequestRef != "":
			requestID = *ev.RequestRef
		}

		details := make(map[string]any, len(ev.Details)+5)
		for k, v := range ev.Details {
			details[k] = v
		}
		if ev.SubjectHash != nil {
			details["subjectHash"] = *ev.SubjectHash
		}
		if ev.Matched != nil {
			details["matched"] = *ev.Matched
		}
		if ev.MatchCount != nil {
			details["matchCount"] = *ev.MatchCount
		}
		if ev.RunID != nil {
			details["runId"] = *ev.RunID
		}
		if len(ev.Stats) > 0 && string(ev.Stats) != "null" {
			details["stats"] = ev.Stats
		}
		b, err := json.Marshal(details)
		if err != nil {
			return nil, validationErrorf("event details must be JSON")
		}

		if err := s.repos.Audit.Append(ctx, &models.AuditEvent{
			OrgID:       c.OrgID,
			RequestID:   requestID,
			TS:          ts,
			Type:        truncate(ev.Type, maxEventTypeLength),
			Actor:       models.ActorAgent,
			DetailsJSON: truncate(string(b), maxEventDetails),
		}); err != nil {
			return nil, fmt.Errorf("failed to write agent event: %w", err)
		}
	}

	s.logger.Info("agent events recorded", "connector_id", c.ID, "count", len(events))
	return &RecordEventsResult{OK: true, Received: len(events)}, nil
}

// AgentSchedule tells the agent how often to run.
type AgentSchedule struct {
	PollIntervalHours int `json:"pollIntervalHours"`
	MaxDaysWithoutRun int `json:"maxDaysWithoutRun"`
}

// AgentConfig is the configuration pulled by an agent.
type AgentConfig struct {
	Partners []*models.Partner      `json:"partners"`
	Policies []models.CascadePolicy `json:"policies"`
	Schedule AgentSchedule          `json:"schedule"`
}

// Config returns the policies targeting this connector and the enabled
// partners they reference.
func (s *AgentService) Config(ctx context.Context, c *models.Connector) (*AgentConfig, error) {
	policies, err := s.repos.Policy.ListForConnector(ctx, c.OrgID, c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load policies: %w", err)
	}
	enabled, err := s.repos.Partner.ListEnabled(ctx, c.OrgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load partners: %w", err)
	}

	referenced := make(map[string]bool, len(policies))
	for _, p := range policies {
		referenced[p.PartnerID] = true
	}

	cfg := &AgentConfig{
		Partners: []*models.Partner{},
		Policies: policies,
		Schedule: AgentSchedule{PollIntervalHours: agentPollIntervalHours, MaxDaysWithoutRun: agentMaxDaysWithoutRun},
	}
	if cfg.Policies == nil {
		cfg.Policies = []models.CascadePolicy{}
	}
	for _, p := range enabled {
		if referenced[p.ID] {
			cfg.Partners = append(cfg.Partners, p)
		}
	}
	return cfg, nil
}
