package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/erasure-api/internal/models"
)

// SQLitePartnerRepository implements PartnerRepository for SQLite/libsql.
type SQLitePartnerRepository struct {
	db *sql.DB
}

// NewSQLitePartnerRepository creates a new SQLite partner repository.
func NewSQLitePartnerRepository(db *sql.DB) *SQLitePartnerRepository {
	return &SQLitePartnerRepository{db: db}
}

const partnerColumns = `id, org_id, name, type, endpoint_url, enabled, created_at`

// Create inserts a partner.
func (r *SQLitePartnerRepository) Create(ctx context.Context, p *models.Partner) error {
	if p.ID == "" {
		p.ID = ulid.Make().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO partners (`+partnerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.OrgID, p.Name, nullString(p.Type), nullString(p.EndpointURL), boolToInt(p.Enabled), formatTime(p.CreatedAt))
	return err
}

// GetByID retrieves a partner within an org.
func (r *SQLitePartnerRepository) GetByID(ctx context.Context, orgID, id string) (*models.Partner, error) {
	p, err := scanPartner(r.db.QueryRowContext(ctx, `
		SELECT `+partnerColumns+` FROM partners WHERE id = ? AND org_id = ?
	`, id, orgID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// List returns all of the org's partners by name.
func (r *SQLitePartnerRepository) List(ctx context.Context, orgID string) ([]*models.Partner, error) {
	return r.list(ctx, `
		SELECT `+partnerColumns+` FROM partners
		WHERE org_id = ?
		ORDER BY name
	`, orgID)
}

// ListEnabled returns the org's enabled partners by name.
func (r *SQLitePartnerRepository) ListEnabled(ctx context.Context, orgID string) ([]*models.Partner, error) {
	return r.list(ctx, `
		SELECT `+partnerColumns+` FROM partners
		WHERE org_id = ? AND enabled = 1
		ORDER BY name
	`, orgID)
}

// SetEnabled toggles whether a partner receives cascades.
func (r *SQLitePartnerRepository) SetEnabled(ctx context.Context, orgID, id string, enabled bool) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE partners SET enabled = ? WHERE id = ? AND org_id = ?`, boolToInt(enabled), id, orgID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *SQLitePartnerRepository) list(ctx context.Context, query string, args ...any) ([]*models.Partner, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var partners []*models.Partner
	for rows.Next() {
		p, err := scanPartner(rows)
		if err != nil {
			return nil, err
		}
		partners = append(partners, p)
	}
	return partners, rows.Err()
}

func scanPartner(s scanner) (*models.Partner, error) {
	var (
		p               models.Partner
		ptype, endpoint sql.NullString
		enabled         int
		createdAt       string
	)
	if err := s.Scan(&p.ID, &p.OrgID, &p.Name, &ptype, &endpoint, &enabled, &createdAt); err != nil {
		return nil, err
	}
	p.Type = ptype.String
	p.EndpointURL = endpoint.String
	p.Enabled = enabled == 1
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}

// SQLiteConnectorRepository implements ConnectorRepository for SQLite/libsql.
type SQLiteConnectorRepository struct {
	db *sql.DB
}

// NewSQLiteConnectorRepository creates a new SQLite connector repository.
func NewSQLiteConnectorRepository(db *sql.DB) *SQLiteConnectorRepository {
	return &SQLiteConnectorRepository{db: db}
}

const connectorColumns = `c.id, c.org_id, c.name, c.status, c.agent_version, c.last_heartbeat_at, c.created_at`

// Create inserts a connector.
func (r *SQLiteConnectorRepository) Create(ctx context.Context, c *models.Connector) error {
	if c.ID == "" {
		c.ID = ulid.Make().String()
	}
	if c.Status == "" {
		c.Status = models.ConnectorStatusPending
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO connectors (id, org_id, name, status, agent_version, last_heartbeat_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.OrgID, c.Name, string(c.Status), nullString(c.AgentVersion), nullTime(c.LastHeartbeatAt), formatTime(c.CreatedAt))
	return err
}

// GetByID retrieves a connector within an org.
func (r *SQLiteConnectorRepository) GetByID(ctx context.Context, orgID, id string) (*models.Connector, error) {
	c, err := scanConnector(r.db.QueryRowContext(ctx, `
		SELECT `+connectorColumns+` FROM connectors c WHERE c.id = ? AND c.org_id = ?
	`, id, orgID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

// ListByOrg returns all connectors of an org.
func (r *SQLiteConnectorRepository) ListByOrg(ctx context.Context, orgID string) ([]*models.Connector, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+connectorColumns+` FROM connectors c WHERE c.org_id = ? ORDER BY c.name
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var connectors []*models.Connector
	for rows.Next() {
		c, err := scanConnector(rows)
		if err != nil {
			return nil, err
		}
		connectors = append(connectors, c)
	}
	return connectors, rows.Err()
}

// CreateToken stores the hash of a new connector token.
func (r *SQLiteConnectorRepository) CreateToken(ctx context.Context, connectorID, tokenHash string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO connector_tokens (id, connector_id, token_hash, created_at)
		VALUES (?, ?, ?, ?)
	`, ulid.Make().String(), connectorID, tokenHash, formatTime(time.Now()))
	return err
}

// RevokeTokens revokes every active token of a connector.
func (r *SQLiteConnectorRepository) RevokeTokens(ctx context.Context, connectorID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE connector_tokens SET revoked_at = ? WHERE connector_id = ? AND revoked_at IS NULL
	`, formatTime(time.Now()), connectorID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// FindByTokenHash returns the connector owning a non-revoked token.
func (r *SQLiteConnectorRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*models.Connector, error) {
	c, err := scanConnector(r.db.QueryRowContext(ctx, `
		SELECT `+connectorColumns+`
		FROM connector_tokens ct
		JOIN connectors c ON c.id = ct.connector_id
		WHERE ct.token_hash = ? AND ct.revoked_at IS NULL
	`, tokenHash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

// RecordHeartbeat marks the connector online.
func (r *SQLiteConnectorRepository) RecordHeartbeat(ctx context.Context, orgID, id, agentVersion string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE connectors
		SET last_heartbeat_at = ?, agent_version = ?, status = ?
		WHERE id = ? AND org_id = ?
	`, formatTime(at), nullString(agentVersion), string(models.ConnectorStatusOnline), id, orgID)
	return err
}

func scanConnector(s scanner) (*models.Connector, error) {
	var (
		c             models.Connector
		status        string
		agentVersion  sql.NullString
		lastHeartbeat sql.NullString
		createdAt     string
	)
	if err := s.Scan(&c.ID, &c.OrgID, &c.Name, &status, &agentVersion, &lastHeartbeat, &createdAt); err != nil {
		return nil, err
	}
	c.Status = models.ConnectorStatus(status)
	c.AgentVersion = agentVersion.String
	c.LastHeartbeatAt = timePtr(lastHeartbeat)
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}
