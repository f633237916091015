package handlers

import (
	"context"

	"github.com/jmylchreest/erasure-api/internal/models"
	"github.com/jmylchreest/erasure-api/internal/service"
)

// DirectoryHandler handles partner and connector endpoints.
type DirectoryHandler struct {
	connectors *service.ConnectorService
}

// NewDirectoryHandler creates a new directory handler.
func NewDirectoryHandler(connectors *service.ConnectorService) *DirectoryHandler {
	return &DirectoryHandler{connectors: connectors}
}

// --- Partners ---

// ListPartnersOutput represents the partner list.
type ListPartnersOutput struct {
	Body struct {
		Partners []*models.Partner `json:"partners"`
	}
}

// ListPartners returns the org's partners.
func (h *DirectoryHandler) ListPartners(ctx context.Context, input *struct{}) (*ListPartnersOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	partners, err := h.connectors.ListPartners(ctx, claims.OrgID)
	if err != nil {
		return nil, mapServiceError(ctx, "list partners", err)
	}
	out := &ListPartnersOutput{}
	out.Body.Partners = partners
	return out, nil
}

// CreatePartnerInput represents a new partner.
type CreatePartnerInput struct {
	Body service.PartnerInput
}

// PartnerOutput represents one partner.
type PartnerOutput struct {
	Body *models.Partner
}

// CreatePartner stores a partner.
func (h *DirectoryHandler) CreatePartner(ctx context.Context, input *CreatePartnerInput) (*PartnerOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	p, err := h.connectors.CreatePartner(ctx, claims.OrgID, input.Body)
	if err != nil {
		return nil, mapServiceError(ctx, "create partner", err)
	}
	return &PartnerOutput{Body: p}, nil
}

// SetPartnerEnabledInput toggles a partner.
type SetPartnerEnabledInput struct {
	ID   string `path:"id" doc:"Partner ID"`
	Body struct {
		Enabled bool `json:"enabled" doc:"Disabled partners are skipped by dispatch"`
	}
}

// SetPartnerEnabled enables or disables a partner.
func (h *DirectoryHandler) SetPartnerEnabled(ctx context.Context, input *SetPartnerEnabledInput) (*PartnerOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	p, err := h.connectors.SetPartnerEnabled(ctx, claims.OrgID, input.ID, input.Body.Enabled)
	if err != nil {
		return nil, mapServiceError(ctx, "update partner", err)
	}
	return &PartnerOutput{Body: p}, nil
}

// --- Connectors ---

// ListConnectorsOutput represents the connector list.
type ListConnectorsOutput struct {
	Body struct {
		Connectors []*models.Connector `json:"connectors"`
	}
}

// ListConnectors returns the org's connectors.
func (h *DirectoryHandler) ListConnectors(ctx context.Context, input *struct{}) (*ListConnectorsOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	connectors, err := h.connectors.ListConnectors(ctx, claims.OrgID)
	if err != nil {
		return nil, mapServiceError(ctx, "list connectors", err)
	}
	out := &ListConnectorsOutput{}
	out.Body.Connectors = connectors
	return out, nil
}

// CreateConnectorInput represents a new connector.
type CreateConnectorInput struct {
	Body service.ConnectorInput
}

// ConnectorTokenOutput carries a freshly minted token, shown once.
type ConnectorTokenOutput struct {
	Body *service.ConnectorWithToken
}

// CreateConnector stores a connector and mints its token.
func (h *DirectoryHandler) CreateConnector(ctx context.Context, input *CreateConnectorInput) (*ConnectorTokenOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	c, err := h.connectors.CreateConnector(ctx, claims.OrgID, input.Body)
	if err != nil {
		return nil, mapServiceError(ctx, "create connector", err)
	}
	return &ConnectorTokenOutput{Body: c}, nil
}

// ConnectorIDInput identifies a connector.
type ConnectorIDInput struct {
	ID string `path:"id" doc:"Connector ID"`
}

// RotateConnectorToken revokes the connector's tokens and mints a new one.
func (h *DirectoryHandler) RotateConnectorToken(ctx context.Context, input *ConnectorIDInput) (*ConnectorTokenOutput, error) {
	claims, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	c, err := h.connectors.RotateToken(ctx, claims.OrgID, input.ID)
	if err != nil {
		return nil, mapServiceError(ctx, "rotate connector token", err)
	}
	return &ConnectorTokenOutput{Body: c}, nil
}
