package handlers

import (
	"context"
	"encoding/json"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/erasure-api/internal/models"
	"github.com/jmylchreest/erasure-api/internal/service"
)

// RequestHandler handles deletion request endpoints.
type RequestHandler struct {
	requests *service.RequestService
	cascade  *service.CascadeService
}

// NewRequestHandler creates a new request handler.
func NewRequestHandler(requests *service.RequestService, cascade *service.CascadeService) *RequestHandler {
	return &RequestHandler{requests: requests, cascade: cascade}
}

// CreateRequestInput represents a new deletion request.
type CreateRequestInput struct {
	Body service.CreateRequestInput
}

// CreateRequestOutput represents the stored request.
type CreateRequestOutput struct {
	Body *service.CreateRequestResult
}

// CreateRequest stores a deletion request and optionally dispatches it.
func (h *RequestHandler) CreateRequest(ctx context.Context, input *CreateRequestInput) (*CreateRequestOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	res, err := h.requests.Create(ctx, claims.OrgID, input.Body)
	if err != nil {
		return nil, mapServiceError(ctx, "create request", err)
	}
	return &CreateRequestOutput{Body: res}, nil
}

// ListRequestsOutput represents the request list.
type ListRequestsOutput struct {
	Body struct {
		Requests []*models.DeletionRequest `json:"requests" doc:"Newest first, at most 200"`
	}
}

// ListRequests returns the org's recent deletion requests.
func (h *RequestHandler) ListRequests(ctx context.Context, input *struct{}) (*ListRequestsOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	reqs, err := h.requests.List(ctx, claims.OrgID)
	if err != nil {
		return nil, mapServiceError(ctx, "list requests", err)
	}
	out := &ListRequestsOutput{}
	out.Body.Requests = reqs
	return out, nil
}

// RequestIDInput identifies a deletion request.
type RequestIDInput struct {
	ID string `path:"id" doc:"Request ID"`
}

// GetRequestOutput represents a request with its audit trail and cascades.
type GetRequestOutput struct {
	Body *service.RequestDetail
}

// GetRequest returns one request.
func (h *RequestHandler) GetRequest(ctx context.Context, input *RequestIDInput) (*GetRequestOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	detail, err := h.requests.Get(ctx, claims.OrgID, input.ID)
	if err != nil {
		return nil, mapServiceError(ctx, "get request", err)
	}
	return &GetRequestOutput{Body: detail}, nil
}

// AppendEventInput represents an operator-supplied audit entry.
type AppendEventInput struct {
	ID   string `path:"id" doc:"Request ID"`
	Body struct {
		Type    string         `json:"type" minLength:"1" maxLength:"60" doc:"Event type"`
		Actor   *string        `json:"actor,omitempty" doc:"Defaults to the caller"`
		Details map[string]any `json:"details,omitempty" doc:"Free-form details"`
	}
}

// AppendEventOutput represents the stored audit entry.
type AppendEventOutput struct {
	Body *models.AuditEvent
}

// AppendEvent adds an audit entry to a request.
func (h *RequestHandler) AppendEvent(ctx context.Context, input *AppendEventInput) (*AppendEventOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	in := service.AppendEventInput{Type: input.Body.Type, Actor: input.Body.Actor}
	if input.Body.Details != nil {
		raw, err := json.Marshal(input.Body.Details)
		if err != nil {
			return nil, huma.Error400BadRequest("details must be a JSON object")
		}
		in.Details = raw
	}

	event, err := h.requests.AppendEvent(ctx, claims.OrgID, input.ID, claims.UserID, in)
	if err != nil {
		return nil, mapServiceError(ctx, "append event", err)
	}
	return &AppendEventOutput{Body: event}, nil
}

// DispatchOutput represents a dispatch summary.
type DispatchOutput struct {
	Body *service.DispatchResult
}

// Dispatch fans a request out to its cascade targets.
func (h *RequestHandler) Dispatch(ctx context.Context, input *RequestIDInput) (*DispatchOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	res, err := h.cascade.Dispatch(ctx, claims.OrgID, input.ID, claims.UserID)
	if err != nil {
		return nil, mapServiceError(ctx, "dispatch", err)
	}
	return &DispatchOutput{Body: res}, nil
}

// HashMatchInput represents a hash match query.
type HashMatchInput struct {
	Body struct {
		SubjectHash string `json:"subjectHash" doc:"SHA-256 hex digest of the subject identifier"`
	}
}

// HashMatchOutput reports what a request for the hash would reach.
type HashMatchOutput struct {
	Body *service.HashMatchResult
}

// HashMatch previews cascade targets for a subject hash.
func (h *RequestHandler) HashMatch(ctx context.Context, input *HashMatchInput) (*HashMatchOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	res, err := h.requests.HashMatch(ctx, claims.OrgID, input.Body.SubjectHash)
	if err != nil {
		return nil, mapServiceError(ctx, "hash match", err)
	}
	return &HashMatchOutput{Body: res}, nil
}
