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

// SQLiteCascadeJobRepository implements CascadeJobRepository for SQLite/libsql.
type SQLiteCascadeJobRepository struct {
	db *sql.DB
}

// NewSQLiteCascadeJobRepository creates a new SQLite cascade job repository.
func NewSQLiteCascadeJobRepository(db *sql.DB) *SQLiteCascadeJobRepository {
	return &SQLiteCascadeJobRepository{db: db}
}

// staleClaimError is recorded on jobs taken back from a lost claim.
const staleClaimError = "claim expired before delivery was recorded"

const cascadeJobColumns = `id, org_id, request_id, partner_id, target_type, target_id, status,
	attempts, last_error, next_attempt_at, created_at, updated_at`

// Upsert inserts a PENDING job, or refreshes updated_at on an existing
// (request, partner, target) triple. Status and attempts of an existing row
// are never touched. The RETURNING id equals the new id only on insert.
func (r *SQLiteCascadeJobRepository) Upsert(ctx context.Context, job *models.CascadeJob) (bool, error) {
	newID := ulid.Make().String()
	now := time.Now().UTC()

	var id string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO cascade_jobs (id, org_id, request_id, partner_id, target_type, target_id, status,
			attempts, last_error, next_attempt_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, NULL, NULL, ?, ?)
		ON CONFLICT(request_id, partner_id, target_id) DO UPDATE SET updated_at = excluded.updated_at
		RETURNING id
	`, newID, job.OrgID, job.RequestID, job.PartnerID, string(job.TargetType), job.TargetID,
		string(models.CascadeJobPending), formatTime(now), formatTime(now)).Scan(&id)
	if err != nil {
		return false, fmt.Errorf("failed to upsert cascade job: %w", err)
	}

	job.ID = id
	job.UpdatedAt = now
	inserted := id == newID
	if inserted {
		job.Status = models.CascadeJobPending
		job.Attempts = 0
		job.CreatedAt = now
	}
	return inserted, nil
}

// ListByRequest returns the jobs of one request.
func (r *SQLiteCascadeJobRepository) ListByRequest(ctx context.Context, orgID, requestID string) ([]*models.CascadeJob, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+cascadeJobColumns+` FROM cascade_jobs
		WHERE org_id = ? AND request_id = ?
		ORDER BY created_at, id
	`, orgID, requestID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var jobs []*models.CascadeJob
	for rows.Next() {
		job, err := scanCascadeJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ClaimDue atomically claims the oldest due PENDING job of a target type.
func (r *SQLiteCascadeJobRepository) ClaimDue(ctx context.Context, targetType models.TargetType, now time.Time) (*models.CascadeJob, error) {
	ts := formatTime(now)
	job, err := scanCascadeJob(r.db.QueryRowContext(ctx, `
		UPDATE cascade_jobs
		SET status = ?, attempts = attempts + 1, updated_at = ?
		WHERE id = (
			SELECT id FROM cascade_jobs
			WHERE status = ? AND target_type = ?
				AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
			ORDER BY updated_at, id
			LIMIT 1
		) AND status = ?
		RETURNING `+cascadeJobColumns,
		string(models.CascadeJobInProgress), ts,
		string(models.CascadeJobPending), string(targetType), ts,
		string(models.CascadeJobPending),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim cascade job: %w", err)
	}
	return job, nil
}

// Finish records the outcome of a delivery attempt.
func (r *SQLiteCascadeJobRepository) Finish(ctx context.Context, id string, status models.CascadeJobStatus, lastError *string, nextAttemptAt *time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE cascade_jobs
		SET status = ?, last_error = ?, next_attempt_at = ?, updated_at = ?
		WHERE id = ?
	`, string(status), nullStringPtr(lastError), nullTime(nextAttemptAt), formatTime(time.Now()), id)
	return err
}

// Requeue moves an IN_PROGRESS job back to PENDING. Jobs that already
// reached another status are left alone and false is returned.
func (r *SQLiteCascadeJobRepository) Requeue(ctx context.Context, id, lastError string, nextAttemptAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE cascade_jobs
		SET status = ?, last_error = ?, next_attempt_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(models.CascadeJobPending), lastError, formatTime(nextAttemptAt), formatTime(time.Now()),
		id, string(models.CascadeJobInProgress))
	if err != nil {
		return false, fmt.Errorf("failed to requeue cascade job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ReclaimStale returns IN_PROGRESS jobs of a target type whose claim is older
// than staleBefore to PENDING, making them due immediately.
func (r *SQLiteCascadeJobRepository) ReclaimStale(ctx context.Context, targetType models.TargetType, staleBefore time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE cascade_jobs
		SET status = ?, last_error = ?, next_attempt_at = NULL, updated_at = ?
		WHERE status = ? AND target_type = ? AND updated_at < ?
	`, string(models.CascadeJobPending), staleClaimError, formatTime(time.Now()),
		string(models.CascadeJobInProgress), string(targetType), formatTime(staleBefore))
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim stale cascade jobs: %w", err)
	}
	return res.RowsAffected()
}

func scanCascadeJob(s scanner) (*models.CascadeJob, error) {
	var (
		job                  models.CascadeJob
		targetType, status   string
		lastError, nextAt    sql.NullString
		createdAt, updatedAt string
	)
	err := s.Scan(&job.ID, &job.OrgID, &job.RequestID, &job.PartnerID, &targetType, &job.TargetID, &status,
		&job.Attempts, &lastError, &nextAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	job.TargetType = models.TargetType(targetType)
	job.Status = models.CascadeJobStatus(status)
	job.LastError = stringPtr(lastError)
	job.NextAttemptAt = timePtr(nextAt)
	job.CreatedAt = parseTime(createdAt)
	job.UpdatedAt = parseTime(updatedAt)
	return &job, nil
}
