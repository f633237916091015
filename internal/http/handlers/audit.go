package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmylchreest/erasure-api/internal/models"
	"github.com/jmylchreest/erasure-api/internal/service"
)

// AuditHandler handles audit log endpoints.
type AuditHandler struct {
	audit *service.AuditService
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(audit *service.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// ListAuditInput represents an audit log query.
type ListAuditInput struct {
	RequestID string `query:"requestId" required:"true" doc:"Request ID"`
	Limit     int    `query:"limit" minimum:"0" maximum:"1000" default:"200" doc:"Maximum events"`
}

// ListAuditOutput represents audit events, oldest first.
type ListAuditOutput struct {
	Body struct {
		Events []*models.AuditEvent `json:"events"`
	}
}

// ListAudit returns a request's audit trail.
func (h *AuditHandler) ListAudit(ctx context.Context, input *ListAuditInput) (*ListAuditOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	events, err := h.audit.List(ctx, claims.OrgID, input.RequestID, input.Limit)
	if err != nil {
		return nil, mapServiceError(ctx, "list audit", err)
	}
	out := &ListAuditOutput{}
	out.Body.Events = events
	return out, nil
}

// ExportInput identifies the request to export.
type ExportInput struct {
	ID string `path:"id" doc:"Request ID"`
}

// ExportOutput is the evidence bundle as a JSON download.
type ExportOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	ArchiveKey         string `header:"X-Archive-Key" doc:"Object key of the archived copy, when storage is enabled"`
	ArchiveURL         string `header:"X-Archive-URL" doc:"Presigned download link for the archived copy"`
	Body               []byte
}

// Export builds and returns a request's evidence bundle.
func (h *AuditHandler) Export(ctx context.Context, input *ExportInput) (*ExportOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	export, err := h.audit.Export(ctx, claims.OrgID, input.ID, claims.UserID)
	if err != nil {
		return nil, mapServiceError(ctx, "export evidence", err)
	}
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return nil, mapServiceError(ctx, "encode evidence", err)
	}
	return &ExportOutput{
		ContentType:        "application/json",
		ContentDisposition: fmt.Sprintf(`attachment; filename="evidence-%s.json"`, input.ID),
		ArchiveKey:         export.ArchiveKey,
		ArchiveURL:         export.ArchiveURL,
		Body:               data,
	}, nil
}
