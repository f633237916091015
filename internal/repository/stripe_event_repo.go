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

// SQLiteWebhookEventRepository implements WebhookEventRepository on the stripe_events table.
type SQLiteWebhookEventRepository struct {
	db *sql.DB
}

// NewSQLiteWebhookEventRepository creates a new SQLite webhook event ledger repository.
func NewSQLiteWebhookEventRepository(db *sql.DB) *SQLiteWebhookEventRepository {
	return &SQLiteWebhookEventRepository{db: db}
}

// GetByProviderID retrieves a ledger row by the provider's event id.
func (r *SQLiteWebhookEventRepository) GetByProviderID(ctx context.Context, providerEventID string) (*models.WebhookEvent, error) {
	var (
		event               models.WebhookEvent
		status, createdAt   string
		processedAt, errMsg sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, stripe_event_id, event_type, status, created_at, processed_at, error_message
		FROM stripe_events WHERE stripe_event_id = ?
	`, providerEventID).Scan(&event.ID, &event.ProviderEventID, &event.EventType, &status, &createdAt, &processedAt, &errMsg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get webhook event: %w", err)
	}

	event.Status = models.WebhookEventStatus(status)
	event.CreatedAt = parseTime(createdAt)
	event.ProcessedAt = timePtr(processedAt)
	event.ErrorMessage = stringPtr(errMsg)
	return &event, nil
}

// Insert records a pending event. Two concurrent deliveries of the same id
// race on the UNIQUE constraint; only one sees inserted=true.
func (r *SQLiteWebhookEventRepository) Insert(ctx context.Context, event *models.WebhookEvent) (bool, error) {
	if event.ID == "" {
		event.ID = ulid.Make().String()
	}
	event.Status = models.WebhookEventPending
	event.CreatedAt = time.Now().UTC()

	var id string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO stripe_events (id, stripe_event_id, event_type, status, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(stripe_event_id) DO NOTHING
		RETURNING id
	`, event.ID, event.ProviderEventID, event.EventType, string(event.Status), formatTime(event.CreatedAt)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert webhook event: %w", err)
	}
	return true, nil
}

// MarkStatus sets the terminal status of an event and stamps processed_at.
func (r *SQLiteWebhookEventRepository) MarkStatus(ctx context.Context, providerEventID string, status models.WebhookEventStatus, errorMessage *string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE stripe_events SET status = ?, processed_at = ?, error_message = ?
		WHERE stripe_event_id = ?
	`, string(status), formatTime(time.Now()), nullStringPtr(errorMessage), providerEventID)
	if err != nil {
		return fmt.Errorf("failed to mark webhook event %s: %w", status, err)
	}
	return nil
}

// Reopen moves a failed event back to pending so it can be handled again.
func (r *SQLiteWebhookEventRepository) Reopen(ctx context.Context, providerEventID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE stripe_events SET status = ?, processed_at = NULL, error_message = NULL
		WHERE stripe_event_id = ? AND status = ?
	`, string(models.WebhookEventPending), providerEventID, string(models.WebhookEventFailed))
	if err != nil {
		return false, fmt.Errorf("failed to reopen webhook event: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
