package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/erasure-api/internal/models"
)

// SQLiteRequestRepository implements RequestRepository for SQLite/libsql.
type SQLiteRequestRepository struct {
	db *sql.DB
}

// NewSQLiteRequestRepository creates a new SQLite deletion request repository.
func NewSQLiteRequestRepository(db *sql.DB) *SQLiteRequestRepository {
	return &SQLiteRequestRepository{db: db}
}

const requestColumns = `id, org_id, request_ref, subject_hash, payload_hash, system, status, received_at, meta_json, created_at`

// Create inserts a deletion request.
func (r *SQLiteRequestRepository) Create(ctx context.Context, req *models.DeletionRequest) error {
	if req.ID == "" {
		req.ID = ulid.Make().String()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	if req.ReceivedAt.IsZero() {
		req.ReceivedAt = req.CreatedAt
	}
	if req.Status == "" {
		req.Status = models.RequestStatusReceived
	}
	if req.System == "" {
		req.System = "drop"
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO deletion_requests (`+requestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		req.ID, req.OrgID, nullStringPtr(req.RequestRef), req.SubjectHash, nullStringPtr(req.PayloadHash),
		req.System, string(req.Status), formatTime(req.ReceivedAt), nullString(req.MetaJSON), formatTime(req.CreatedAt),
	)
	return err
}

// GetByID retrieves a request within an org.
func (r *SQLiteRequestRepository) GetByID(ctx context.Context, orgID, id string) (*models.DeletionRequest, error) {
	req, err := scanRequest(r.db.QueryRowContext(ctx, `
		SELECT `+requestColumns+` FROM deletion_requests WHERE id = ? AND org_id = ?
	`, id, orgID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return req, err
}

// List returns the newest requests of an org.
func (r *SQLiteRequestRepository) List(ctx context.Context, orgID string, limit int) ([]*models.DeletionRequest, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+requestColumns+` FROM deletion_requests
		WHERE org_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var requests []*models.DeletionRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// UpdateStatus sets a request's status.
func (r *SQLiteRequestRepository) UpdateStatus(ctx context.Context, orgID, id string, status models.RequestStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE deletion_requests SET status = ? WHERE id = ? AND org_id = ?
	`, string(status), id, orgID)
	return err
}

func scanRequest(s scanner) (*models.DeletionRequest, error) {
	var (
		req                     models.DeletionRequest
		requestRef, payloadHash sql.NullString
		metaJSON                sql.NullString
		status                  string
		receivedAt, createdAt   string
	)
	err := s.Scan(&req.ID, &req.OrgID, &requestRef, &req.SubjectHash, &payloadHash,
		&req.System, &status, &receivedAt, &metaJSON, &createdAt)
	if err != nil {
		return nil, err
	}
	req.RequestRef = stringPtr(requestRef)
	req.PayloadHash = stringPtr(payloadHash)
	req.MetaJSON = metaJSON.String
	req.Status = models.RequestStatus(status)
	req.ReceivedAt = parseTime(receivedAt)
	req.CreatedAt = parseTime(createdAt)
	return &req, nil
}
