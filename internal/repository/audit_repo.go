package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmylchreest/erasure-api/internal/models"
)

// SQLiteAuditRepository implements AuditRepository for SQLite/libsql.
type SQLiteAuditRepository struct {
	db *sql.DB
}

// NewSQLiteAuditRepository creates a new SQLite audit repository.
func NewSQLiteAuditRepository(db *sql.DB) *SQLiteAuditRepository {
	return &SQLiteAuditRepository{db: db}
}

// Append writes an audit event and sets its ID.
func (r *SQLiteAuditRepository) Append(ctx context.Context, e *models.AuditEvent) error {
	if e.TS.IsZero() {
		e.TS = time.Now().UTC()
	}
	return r.db.QueryRowContext(ctx, `
		INSERT INTO audit_events (org_id, request_id, ts, type, actor, details_json)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`, e.OrgID, e.RequestID, formatTime(e.TS), e.Type, e.Actor, nullString(e.DetailsJSON)).Scan(&e.ID)
}

// List returns an org's events oldest first, optionally for one request.
func (r *SQLiteAuditRepository) List(ctx context.Context, orgID, requestID string, limit int) ([]*models.AuditEvent, error) {
	if limit <= 0 {
		limit = 500
	}

	query := `SELECT id, org_id, request_id, ts, type, actor, details_json FROM audit_events WHERE org_id = ?`
	args := []any{orgID}
	if requestID != "" {
		query += ` AND request_id = ?`
		args = append(args, requestID)
	}
	query += ` ORDER BY id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var events []*models.AuditEvent
	for rows.Next() {
		var (
			e       models.AuditEvent
			ts      string
			details sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.OrgID, &e.RequestID, &ts, &e.Type, &e.Actor, &details); err != nil {
			return nil, err
		}
		e.TS = parseTime(ts)
		e.DetailsJSON = details.String
		events = append(events, &e)
	}
	return events, rows.Err()
}
