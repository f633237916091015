package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/erasure-api/internal/models"
)

// SQLiteIntegrationRepository implements IntegrationRepository for SQLite/libsql.
type SQLiteIntegrationRepository struct {
	db *sql.DB
}

// NewSQLiteIntegrationRepository creates a new SQLite customer API integration repository.
func NewSQLiteIntegrationRepository(db *sql.DB) *SQLiteIntegrationRepository {
	return &SQLiteIntegrationRepository{db: db}
}

const integrationColumns = `id, org_id, name, base_url, health_path, status_path, delete_path, webhook_path,
	auth_type, shared_secret_encrypted, bearer_token_encrypted, headers_json, timeout_ms, retries,
	hmac_header_name, timestamp_header_name, replay_window_seconds,
	last_healthcheck_at, last_healthcheck_ok, last_healthcheck_status, last_healthcheck_error,
	created_at, updated_at`

// Create inserts an integration. Credentials must already be encrypted.
func (r *SQLiteIntegrationRepository) Create(ctx context.Context, in *models.CustomerAPIIntegration) error {
	if in.ID == "" {
		in.ID = ulid.Make().String()
	}
	now := time.Now().UTC()
	in.CreatedAt = now
	in.UpdatedAt = now

	headersJSON, err := marshalHeaders(in.Headers)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO customer_api_integrations (id, org_id, name, base_url, health_path, status_path, delete_path,
			webhook_path, auth_type, shared_secret_encrypted, bearer_token_encrypted, headers_json, timeout_ms,
			retries, hmac_header_name, timestamp_header_name, replay_window_seconds, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		in.ID, in.OrgID, in.Name, in.BaseURL, in.HealthPath, in.StatusPath, in.DeletePath,
		nullStringPtr(in.WebhookPath), string(in.AuthType), nullStringPtr(in.SharedSecretEncrypted),
		nullStringPtr(in.BearerTokenEncrypted), headersJSON, in.TimeoutMs, in.Retries,
		in.HMACHeaderName, in.TimestampHeaderName, in.ReplayWindowSeconds,
		formatTime(now), formatTime(now),
	)
	return err
}

// GetByID retrieves an integration within an org.
func (r *SQLiteIntegrationRepository) GetByID(ctx context.Context, orgID, id string) (*models.CustomerAPIIntegration, error) {
	in, err := scanIntegration(r.db.QueryRowContext(ctx, `
		SELECT `+integrationColumns+` FROM customer_api_integrations WHERE id = ? AND org_id = ?
	`, id, orgID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return in, err
}

// List returns an org's integrations by name.
func (r *SQLiteIntegrationRepository) List(ctx context.Context, orgID string) ([]*models.CustomerAPIIntegration, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+integrationColumns+` FROM customer_api_integrations WHERE org_id = ? ORDER BY name, id
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*models.CustomerAPIIntegration
	for rows.Next() {
		in, err := scanIntegration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// Update writes all configurable fields, including the encrypted credentials.
func (r *SQLiteIntegrationRepository) Update(ctx context.Context, in *models.CustomerAPIIntegration) error {
	headersJSON, err := marshalHeaders(in.Headers)
	if err != nil {
		return err
	}
	in.UpdatedAt = time.Now().UTC()

	_, err = r.db.ExecContext(ctx, `
		UPDATE customer_api_integrations
		SET name = ?, base_url = ?, health_path = ?, status_path = ?, delete_path = ?, webhook_path = ?,
			auth_type = ?, shared_secret_encrypted = ?, bearer_token_encrypted = ?, headers_json = ?,
			timeout_ms = ?, retries = ?, hmac_header_name = ?, timestamp_header_name = ?,
			replay_window_seconds = ?, updated_at = ?
		WHERE id = ? AND org_id = ?
	`,
		in.Name, in.BaseURL, in.HealthPath, in.StatusPath, in.DeletePath, nullStringPtr(in.WebhookPath),
		string(in.AuthType), nullStringPtr(in.SharedSecretEncrypted), nullStringPtr(in.BearerTokenEncrypted),
		headersJSON, in.TimeoutMs, in.Retries, in.HMACHeaderName, in.TimestampHeaderName,
		in.ReplayWindowSeconds, formatTime(in.UpdatedAt), in.ID, in.OrgID,
	)
	return err
}

// Delete removes an integration and with it the stored credentials.
func (r *SQLiteIntegrationRepository) Delete(ctx context.Context, orgID, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM customer_api_integrations WHERE id = ? AND org_id = ?`, id, orgID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// RecordHealthcheck stores the most recent healthcheck outcome.
func (r *SQLiteIntegrationRepository) RecordHealthcheck(ctx context.Context, orgID, id string, rec models.HealthcheckRecord) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE customer_api_integrations
		SET last_healthcheck_at = ?, last_healthcheck_ok = ?, last_healthcheck_status = ?,
			last_healthcheck_error = ?, updated_at = ?
		WHERE id = ? AND org_id = ?
	`, formatTime(rec.At), boolToInt(rec.OK), rec.Status, nullStringPtr(rec.Error), formatTime(rec.At), id, orgID)
	return err
}

func marshalHeaders(headers map[string]string) (sql.NullString, error) {
	if len(headers) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(headers)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func scanIntegration(s scanner) (*models.CustomerAPIIntegration, error) {
	var (
		in                   models.CustomerAPIIntegration
		webhookPath          sql.NullString
		authType             string
		secretEnc, bearerEnc sql.NullString
		headersJSON          sql.NullString
		lastAt, lastErr      sql.NullString
		lastOK, lastStatus   sql.NullInt64
		createdAt, updatedAt string
	)
	err := s.Scan(
		&in.ID, &in.OrgID, &in.Name, &in.BaseURL, &in.HealthPath, &in.StatusPath, &in.DeletePath, &webhookPath,
		&authType, &secretEnc, &bearerEnc, &headersJSON, &in.TimeoutMs, &in.Retries,
		&in.HMACHeaderName, &in.TimestampHeaderName, &in.ReplayWindowSeconds,
		&lastAt, &lastOK, &lastStatus, &lastErr,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	in.WebhookPath = stringPtr(webhookPath)
	in.AuthType = models.AuthType(authType)
	in.SharedSecretEncrypted = stringPtr(secretEnc)
	in.BearerTokenEncrypted = stringPtr(bearerEnc)
	if headersJSON.Valid {
		if err := json.Unmarshal([]byte(headersJSON.String), &in.Headers); err != nil {
			return nil, err
		}
	}
	in.LastHealthcheckAt = timePtr(lastAt)
	in.LastHealthcheckError = stringPtr(lastErr)
	if lastOK.Valid {
		ok := lastOK.Int64 == 1
		in.LastHealthcheckOK = &ok
	}
	if lastStatus.Valid {
		status := int(lastStatus.Int64)
		in.LastHealthcheckStatus = &status
	}
	in.CreatedAt = parseTime(createdAt)
	in.UpdatedAt = parseTime(updatedAt)
	return &in, nil
}
