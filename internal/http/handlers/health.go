package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

// LivezOutput represents the liveness check response.
type LivezOutput struct {
	Body struct {
		Status string `json:"status" doc:"Always ok while the process serves requests"`
	}
}

// Livez reports that the process is up.
func Livez(ctx context.Context, input *struct{}) (*LivezOutput, error) {
	out := &LivezOutput{}
	out.Body.Status = "ok"
	return out, nil
}

// DBPinger is satisfied by *sql.DB.
type DBPinger interface {
	Ping() error
}

// ReadyzHandler reports readiness based on database reachability.
type ReadyzHandler struct {
	db DBPinger
}

// NewReadyzHandler creates a readiness handler.
func NewReadyzHandler(db DBPinger) *ReadyzHandler {
	return &ReadyzHandler{db: db}
}

// ReadyzOutput represents the readiness check response.
type ReadyzOutput struct {
	Body struct {
		Status string `json:"status" doc:"ok when the database answers"`
	}
}

// Readyz pings the database.
func (h *ReadyzHandler) Readyz(ctx context.Context, input *struct{}) (*ReadyzOutput, error) {
	if h.db == nil {
		return nil, huma.Error503ServiceUnavailable("database not configured")
	}
	if err := h.db.Ping(); err != nil {
		return nil, huma.Error503ServiceUnavailable("database unavailable")
	}
	out := &ReadyzOutput{}
	out.Body.Status = "ok"
	return out, nil
}
