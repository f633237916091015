package handlers

import (
	"context"
	"encoding/json"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/erasure-api/internal/service"
)

// AgentHandler serves the on-premise connector agents.
type AgentHandler struct {
	agents *service.AgentService
}

// NewAgentHandler creates a new agent handler.
func NewAgentHandler(agents *service.AgentService) *AgentHandler {
	return &AgentHandler{agents: agents}
}

// HeartbeatInput represents an agent heartbeat.
type HeartbeatInput struct {
	Body service.HeartbeatInput
}

// HeartbeatOutput acknowledges a heartbeat.
type HeartbeatOutput struct {
	Body *service.HeartbeatResult
}

// Heartbeat marks the calling connector online.
func (h *AgentHandler) Heartbeat(ctx context.Context, input *HeartbeatInput) (*HeartbeatOutput, error) {
	c, err := requireConnector(ctx)
	if err != nil {
		return nil, err
	}
	res, err := h.agents.Heartbeat(ctx, c, input.Body)
	if err != nil {
		return nil, mapServiceError(ctx, "heartbeat", err)
	}
	return &HeartbeatOutput{Body: res}, nil
}

// AgentEventBody is one event in an agent batch.
type AgentEventBody struct {
	Type        string         `json:"type" minLength:"1" doc:"Event type"`
	RequestID   *string        `json:"requestId,omitempty"`
	RequestRef  *string        `json:"requestRef,omitempty"`
	SubjectHash *string        `json:"subjectHash,omitempty"`
	Matched     *bool          `json:"matched,omitempty"`
	MatchCount  *int           `json:"matchCount,omitempty"`
	RunID       *string        `json:"runId,omitempty"`
	Stats       map[string]any `json:"stats,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
}

// RecordEventsInput represents an agent event batch.
type RecordEventsInput struct {
	Body struct {
		Events []AgentEventBody `json:"events" maxItems:"500"`
	}
}

// RecordEventsOutput acknowledges an event batch.
type RecordEventsOutput struct {
	Body *service.RecordEventsResult
}

// RecordEvents appends the agent's events to the audit log.
func (h *AgentHandler) RecordEvents(ctx context.Context, input *RecordEventsInput) (*RecordEventsOutput, error) {
	c, err := requireConnector(ctx)
	if err != nil {
		return nil, err
	}

	events := make([]service.AgentEvent, 0, len(input.Body.Events))
	for _, ev := range input.Body.Events {
		out := service.AgentEvent{
			Type:        ev.Type,
			RequestID:   ev.RequestID,
			RequestRef:  ev.RequestRef,
			SubjectHash: ev.SubjectHash,
			Matched:     ev.Matched,
			MatchCount:  ev.MatchCount,
			RunID:       ev.RunID,
			Details:     ev.Details,
		}
		if ev.Stats != nil {
			raw, err := json.Marshal(ev.Stats)
			if err != nil {
				return nil, huma.Error400BadRequest("stats must be a JSON object")
			}
			out.Stats = raw
		}
		events = append(events, out)
	}

	res, err := h.agents.RecordEvents(ctx, c, events)
	if err != nil {
		return nil, mapServiceError(ctx, "record agent events", err)
	}
	return &RecordEventsOutput{Body: res}, nil
}

// AgentConfigOutput represents the configuration pulled by an agent.
type AgentConfigOutput struct {
	Body *service.AgentConfig
}

// Config returns the policies and partners relevant to the calling connector.
func (h *AgentHandler) Config(ctx context.Context, input *struct{}) (*AgentConfigOutput, error) {
	c, err := requireConnector(ctx)
	if err != nil {
		return nil, err
	}
	cfg, err := h.agents.Config(ctx, c)
	if err != nil {
		return nil, mapServiceError(ctx, "agent config", err)
	}
	return &AgentConfigOutput{Body: cfg}, nil
}
