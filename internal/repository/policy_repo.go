package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/erasure-api/internal/models"
)

// SQLitePolicyRepository implements PolicyRepository over cascade_policies
// (legacy, connector targets only) and cascade_policies_v2.
type SQLitePolicyRepository struct {
	db *sql.DB
}

// NewSQLitePolicyRepository creates a new SQLite cascade policy repository.
func NewSQLitePolicyRepository(db *sql.DB) *SQLitePolicyRepository {
	return &SQLitePolicyRepository{db: db}
}

const (
	legacyPolicySelect = `
		SELECT cp.id, cp.org_id, cp.partner_id, cp.connector_id, cp.mode, cp.retries_max,
			cp.backoff_minutes, cp.sla_days, cp.attestation_required, cp.escalation_email, cp.created_at
		FROM cascade_policies cp`

	v2PolicySelect = `
		SELECT cp.id, cp.org_id, cp.partner_id, cp.target_type, cp.target_id, cp.mode, cp.retries_max,
			cp.backoff_minutes, cp.sla_days, cp.attestation_required, cp.escalation_email, cp.created_at
		FROM cascade_policies_v2 cp`

	enabledPartnerJoin = ` JOIN partners p ON p.id = cp.partner_id AND p.enabled = 1`
)

// ListEnabled returns legacy then v2 policies whose partner is enabled.
func (r *SQLitePolicyRepository) ListEnabled(ctx context.Context, orgID string) ([]models.CascadePolicy, error) {
	return r.collect(ctx,
		legacyPolicySelect+enabledPartnerJoin+` WHERE cp.org_id = ? ORDER BY cp.created_at, cp.id`,
		v2PolicySelect+enabledPartnerJoin+` WHERE cp.org_id = ? ORDER BY cp.created_at, cp.id`,
		orgID,
	)
}

// List returns every policy of both generations.
func (r *SQLitePolicyRepository) List(ctx context.Context, orgID string) ([]models.CascadePolicy, error) {
	return r.collect(ctx,
		legacyPolicySelect+` WHERE cp.org_id = ? ORDER BY cp.created_at, cp.id`,
		v2PolicySelect+` WHERE cp.org_id = ? ORDER BY cp.created_at, cp.id`,
		orgID,
	)
}

// ListForConnector returns the policies that route to one connector.
func (r *SQLitePolicyRepository) ListForConnector(ctx context.Context, orgID, connectorID string) ([]models.CascadePolicy, error) {
	return r.collect(ctx,
		legacyPolicySelect+` WHERE cp.org_id = ? AND cp.connector_id = ? ORDER BY cp.created_at, cp.id`,
		v2PolicySelect+` WHERE cp.org_id = ? AND cp.target_type = 'connector' AND cp.target_id = ? ORDER BY cp.created_at, cp.id`,
		orgID, connectorID,
	)
}

// GetByID looks the id up in both generations.
func (r *SQLitePolicyRepository) GetByID(ctx context.Context, orgID, id string) (*models.CascadePolicy, error) {
	p, err := scanV2Policy(r.db.QueryRowContext(ctx, v2PolicySelect+` WHERE cp.id = ? AND cp.org_id = ?`, id, orgID))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	p, err = scanLegacyPolicy(r.db.QueryRowContext(ctx, legacyPolicySelect+` WHERE cp.id = ? AND cp.org_id = ?`, id, orgID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// FindForTarget returns the policy governing a (partner, target) pair.
func (r *SQLitePolicyRepository) FindForTarget(ctx context.Context, orgID, partnerID, targetID string) (*models.CascadePolicy, error) {
	p, err := scanV2Policy(r.db.QueryRowContext(ctx,
		v2PolicySelect+` WHERE cp.org_id = ? AND cp.partner_id = ? AND cp.target_id = ? ORDER BY cp.created_at LIMIT 1`,
		orgID, partnerID, targetID))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	p, err = scanLegacyPolicy(r.db.QueryRowContext(ctx,
		legacyPolicySelect+` WHERE cp.org_id = ? AND cp.partner_id = ? AND cp.connector_id = ? ORDER BY cp.created_at LIMIT 1`,
		orgID, partnerID, targetID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// Create inserts into the table matching p.Generation (v2 when unset).
func (r *SQLitePolicyRepository) Create(ctx context.Context, p *models.CascadePolicy) error {
	if p.ID == "" {
		p.ID = ulid.Make().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.Generation == "" {
		p.Generation = models.PolicyGenerationV2
	}
	return insertPolicy(ctx, r.db, p)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertPolicy(ctx context.Context, db execer, p *models.CascadePolicy) error {
	switch p.Generation {
	case models.PolicyGenerationLegacy:
		if p.TargetType != "" && p.TargetType != models.TargetTypeConnector {
			return fmt.Errorf("legacy policies only target connectors, got %q", p.TargetType)
		}
		p.TargetType = models.TargetTypeConnector
		_, err := db.ExecContext(ctx, `
			INSERT INTO cascade_policies (id, org_id, partner_id, connector_id, mode, retries_max,
				backoff_minutes, sla_days, attestation_required, escalation_email, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, p.ID, p.OrgID, p.PartnerID, p.TargetID, p.Mode, p.RetriesMax, p.BackoffMinutes,
			nullInt(p.SLADays), boolToInt(p.AttestationRequired), nullStringPtr(p.EscalationEmail), formatTime(p.CreatedAt))
		return err
	default:
		_, err := db.ExecContext(ctx, `
			INSERT INTO cascade_policies_v2 (id, org_id, partner_id, target_type, target_id, mode, retries_max,
				backoff_minutes, sla_days, attestation_required, escalation_email, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, p.ID, p.OrgID, p.PartnerID, string(p.TargetType), p.TargetID, p.Mode, p.RetriesMax, p.BackoffMinutes,
			nullInt(p.SLADays), boolToInt(p.AttestationRequired), nullStringPtr(p.EscalationEmail),
			formatTime(p.CreatedAt), formatTime(p.CreatedAt))
		return err
	}
}

// Update writes every mutable field back to the policy's own table.
func (r *SQLitePolicyRepository) Update(ctx context.Context, p *models.CascadePolicy) error {
	if p.Generation == models.PolicyGenerationLegacy {
		_, err := r.db.ExecContext(ctx, `
			UPDATE cascade_policies
			SET partner_id = ?, connector_id = ?, mode = ?, retries_max = ?, backoff_minutes = ?,
				sla_days = ?, attestation_required = ?, escalation_email = ?
			WHERE id = ? AND org_id = ?
		`, p.PartnerID, p.TargetID, p.Mode, p.RetriesMax, p.BackoffMinutes,
			nullInt(p.SLADays), boolToInt(p.AttestationRequired), nullStringPtr(p.EscalationEmail), p.ID, p.OrgID)
		return err
	}

	_, err := r.db.ExecContext(ctx, `
		UPDATE cascade_policies_v2
		SET partner_id = ?, target_type = ?, target_id = ?, mode = ?, retries_max = ?, backoff_minutes = ?,
			sla_days = ?, attestation_required = ?, escalation_email = ?, updated_at = ?
		WHERE id = ? AND org_id = ?
	`, p.PartnerID, string(p.TargetType), p.TargetID, p.Mode, p.RetriesMax, p.BackoffMinutes,
		nullInt(p.SLADays), boolToInt(p.AttestationRequired), nullStringPtr(p.EscalationEmail),
		formatTime(time.Now()), p.ID, p.OrgID)
	return err
}

// Delete removes the id from whichever generation holds it.
func (r *SQLitePolicyRepository) Delete(ctx context.Context, orgID, id string) (bool, error) {
	for _, table := range []string{"cascade_policies_v2", "cascade_policies"} {
		res, err := r.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ? AND org_id = ?`, id, orgID)
		if err != nil {
			return false, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return true, nil
		}
	}
	return false, nil
}

// ReplaceLegacy replaces the org's legacy policies.
func (r *SQLitePolicyRepository) ReplaceLegacy(ctx context.Context, orgID string, policies []*models.CascadePolicy) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cascade_policies WHERE org_id = ?`, orgID); err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, p := range policies {
		if p.ID == "" {
			p.ID = ulid.Make().String()
		}
		p.OrgID = orgID
		p.Generation = models.PolicyGenerationLegacy
		p.CreatedAt = now
		if err := insertPolicy(ctx, tx, p); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *SQLitePolicyRepository) collect(ctx context.Context, legacyQuery, v2Query string, args ...any) ([]models.CascadePolicy, error) {
	var policies []models.CascadePolicy

	for _, q := range []struct {
		query string
		scan  func(scanner) (*models.CascadePolicy, error)
	}{
		{legacyQuery, scanLegacyPolicy},
		{v2Query, scanV2Policy},
	} {
		rows, err := r.db.QueryContext(ctx, q.query, args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			p, err := q.scan(rows)
			if err != nil {
				_ = rows.Close()
				return nil, err
			}
			policies = append(policies, *p)
		}
		err = rows.Err()
		_ = rows.Close()
		if err != nil {
			return nil, err
		}
	}

	return policies, nil
}

func scanLegacyPolicy(s scanner) (*models.CascadePolicy, error) {
	var (
		p               models.CascadePolicy
		slaDays         sql.NullInt64
		attestation     int
		escalationEmail sql.NullString
		createdAt       string
	)
	err := s.Scan(&p.ID, &p.OrgID, &p.PartnerID, &p.TargetID, &p.Mode, &p.RetriesMax,
		&p.BackoffMinutes, &slaDays, &attestation, &escalationEmail, &createdAt)
	if err != nil {
		return nil, err
	}
	p.TargetType = models.TargetTypeConnector
	p.Generation = models.PolicyGenerationLegacy
	fillPolicy(&p, slaDays, attestation, escalationEmail, createdAt)
	return &p, nil
}

func scanV2Policy(s scanner) (*models.CascadePolicy, error) {
	var (
		p               models.CascadePolicy
		targetType      string
		slaDays         sql.NullInt64
		attestation     int
		escalationEmail sql.NullString
		createdAt       string
	)
	err := s.Scan(&p.ID, &p.OrgID, &p.PartnerID, &targetType, &p.TargetID, &p.Mode, &p.RetriesMax,
		&p.BackoffMinutes, &slaDays, &attestation, &escalationEmail, &createdAt)
	if err != nil {
		return nil, err
	}
	p.TargetType = models.TargetType(targetType)
	p.Generation = models.PolicyGenerationV2
	fillPolicy(&p, slaDays, attestation, escalationEmail, createdAt)
	return &p, nil
}

func fillPolicy(p *models.CascadePolicy, slaDays sql.NullInt64, attestation int, escalationEmail sql.NullString, createdAt string) {
	if slaDays.Valid {
		d := int(slaDays.Int64)
		p.SLADays = &d
	}
	p.AttestationRequired = attestation == 1
	p.EscalationEmail = stringPtr(escalationEmail)
	p.CreatedAt = parseTime(createdAt)
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
