package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmylchreest/erasure-api/internal/crypto"
	"github.com/jmylchreest/erasure-api/internal/models"
	"github.com/jmylchreest/erasure-api/internal/repository"
)

// connectorTokenPrefix marks connector tokens so they are recognisable in agent config files.
const connectorTokenPrefix = "ctk_"

// ConnectorService manages partners and on-premise connectors.
type ConnectorService struct {
	partners   repository.PartnerRepository
	connectors repository.ConnectorRepository
	logger     *slog.Logger
}

// NewConnectorService creates a new partner/connector service.
func NewConnectorService(repos *repository.Repositories, logger *slog.Logger) *ConnectorService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConnectorService{
		partners:   repos.Partner,
		connectors: repos.Connector,
		logger:     logger.With("component", "connectors"),
	}
}

// ========================================
// Partners
// ========================================

// PartnerInput creates a downstream partner.
type PartnerInput struct {
	Name        string `json:"name" validate:"required,max=120"`
	Type        string `json:"type,omitempty" validate:"omitempty,max=60"`
	EndpointURL string `json:"endpointUrl,omitempty" validate:"omitempty,url"`
	Enabled     *bool  `json:"enabled,omitempty"`
}

// CreatePartner stores a partner; partners are enabled unless stated otherwise.
func (s *ConnectorService) CreatePartner(ctx context.Context, orgID string, in PartnerInput) (*models.Partner, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	p := &models.Partner{
		OrgID:       orgID,
		Name:        strings.TrimSpace(in.Name),
		Type:        in.Type,
		EndpointURL: in.EndpointURL,
		Enabled:     in.Enabled == nil || *in.Enabled,
	}
	if err := s.partners.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create partner: %w", err)
	}
	s.logger.Info("partner created", "org_id", orgID, "partner_id", p.ID)
	return p, nil
}

// ListPartners returns every partner of the org.
func (s *ConnectorService) ListPartners(ctx context.Context, orgID string) ([]*models.Partner, error) {
	partners, err := s.partners.List(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list partners: %w", err)
	}
	if partners == nil {
		partners = []*models.Partner{}
	}
	return partners, nil
}

// SetPartnerEnabled toggles a partner. Disabled partners are skipped by dispatch.
func (s *ConnectorService) SetPartnerEnabled(ctx context.Context, orgID, id string, enabled bool) (*models.Partner, error) {
	updated, err := s.partners.SetEnabled(ctx, orgID, id, enabled)
	if err != nil {
		return nil, fmt.Errorf("failed to update partner: %w", err)
	}
	if !updated {
		return nil, notFound("partner")
	}
	return s.partners.GetByID(ctx, orgID, id)
}

// ========================================
// Connectors
// ========================================

// ConnectorInput creates a connector.
type ConnectorInput struct {
	Name string `json:"name" validate:"required,max=120"`
}

// ConnectorWithToken is returned once, when a token is minted.
type ConnectorWithToken struct {
	Connector *models.Connector `json:"connector"`
	Token     string            `json:"token"`
}

// CreateConnector stores a connector and mints its first token. Only the
// token hash is persisted.
func (s *ConnectorService) CreateConnector(ctx context.Context, orgID string, in ConnectorInput) (*ConnectorWithToken, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	c := &models.Connector{
		OrgID: orgID,
		Name:  strings.TrimSpace(in.Name),
	}
	if err := s.connectors.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create connector: %w", err)
	}
	token, err := s.mintToken(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("connector created", "org_id", orgID, "connector_id", c.ID)
	return &ConnectorWithToken{Connector: c, Token: token}, nil
}

// ListConnectors returns every connector of the org.
func (s *ConnectorService) ListConnectors(ctx context.Context, orgID string) ([]*models.Connector, error) {
	connectors, err := s.connectors.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list connectors: %w", err)
	}
	if connectors == nil {
		connectors = []*models.Connector{}
	}
	return connectors, nil
}

// RotateToken revokes the connector's active tokens and mints a new one.
func (s *ConnectorService) RotateToken(ctx context.Context, orgID, id string) (*ConnectorWithToken, error) {
	c, err := s.connectors.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load connector: %w", err)
	}
	if c == nil {
		return nil, notFound("connector")
	}

	revoked, err := s.connectors.RevokeTokens(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to revoke tokens: %w", err)
	}
	token, err := s.mintToken(ctx, c.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("connector token rotated", "org_id", orgID, "connector_id", c.ID, "revoked", revoked)
	return &ConnectorWithToken{Connector: c, Token: token}, nil
}

func (s *ConnectorService) mintToken(ctx context.Context, connectorID string) (string, error) {
	secret, err := crypto.GenerateSecret()
	if err != nil {
		return "", err
	}
	token := connectorTokenPrefix + secret
	if err := s.connectors.CreateToken(ctx, connectorID, crypto.HashToken(token)); err != nil {
		return "", fmt.Errorf("failed to store connector token: %w", err)
	}
	return token, nil
}
