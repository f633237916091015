package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmylchreest/erasure-api/internal/models"
)

// SQLitePaymentRepository implements PaymentRepository for SQLite/libsql.
type SQLitePaymentRepository struct {
	db *sql.DB
}

// NewSQLitePaymentRepository creates a new SQLite billing payment repository.
func NewSQLitePaymentRepository(db *sql.DB) *SQLitePaymentRepository {
	return &SQLitePaymentRepository{db: db}
}

// PaymentIDForSession derives the payment row id from its checkout session.
func PaymentIDForSession(sessionID string) string {
	return sessionID + "_payment"
}

// GetBySessionID retrieves the payment for a checkout session.
func (r *SQLitePaymentRepository) GetBySessionID(ctx context.Context, sessionID string) (*models.BillingPayment, error) {
	var (
		p                                  models.BillingPayment
		orgID, intentID, customerID, email sql.NullString
		metadata, paidAt                   sql.NullString
		leadID                             sql.NullInt64
		status, createdAt, updatedAt       string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, org_id, lead_id, stripe_checkout_session_id, stripe_payment_intent_id, stripe_customer_id,
			amount_cents, currency, status, plan_id, email, metadata_json, paid_at, created_at, updated_at
		FROM billing_payments WHERE stripe_checkout_session_id = ?
	`, sessionID).Scan(&p.ID, &orgID, &leadID, &p.StripeCheckoutSessionID, &intentID, &customerID,
		&p.AmountCents, &p.Currency, &status, &p.PlanID, &email, &metadata, &paidAt, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	p.OrgID = stringPtr(orgID)
	if leadID.Valid {
		id := leadID.Int64
		p.LeadID = &id
	}
	p.StripePaymentIntentID = stringPtr(intentID)
	p.StripeCustomerID = stringPtr(customerID)
	p.Status = models.PaymentStatus(status)
	p.Email = stringPtr(email)
	p.MetadataJSON = metadata.String
	p.PaidAt = timePtr(paidAt)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

// Insert creates a payment row. A row for the same session is left as is.
func (r *SQLitePaymentRepository) Insert(ctx context.Context, p *models.BillingPayment) (bool, error) {
	if p.ID == "" {
		p.ID = PaymentIDForSession(p.StripeCheckoutSessionID)
	}
	if p.Currency == "" {
		p.Currency = models.DefaultCurrency
	}
	if p.PlanID == "" {
		p.PlanID = models.DefaultSetupFeePlanID
	}
	if p.Status == "" {
		p.Status = models.PaymentStatusPending
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	var leadID sql.NullInt64
	if p.LeadID != nil {
		leadID = sql.NullInt64{Int64: *p.LeadID, Valid: true}
	}

	var id string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO billing_payments (id, org_id, lead_id, stripe_checkout_session_id, stripe_payment_intent_id,
			stripe_customer_id, amount_cents, currency, status, plan_id, email, metadata_json, paid_at,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(stripe_checkout_session_id) DO NOTHING
		RETURNING id
	`,
		p.ID, nullStringPtr(p.OrgID), leadID, p.StripeCheckoutSessionID, nullStringPtr(p.StripePaymentIntentID),
		nullStringPtr(p.StripeCustomerID), p.AmountCents, p.Currency, string(p.Status), p.PlanID,
		nullStringPtr(p.Email), nullString(p.MetadataJSON), nullTime(p.PaidAt), formatTime(now), formatTime(now),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert payment: %w", err)
	}
	return true, nil
}

// MarkPaid transitions a payment to paid. Returns false if the row was
// already paid or does not exist.
func (r *SQLitePaymentRepository) MarkPaid(ctx context.Context, sessionID string, u PaidUpdate) (bool, error) {
	at := formatTime(u.At)
	res, err := r.db.ExecContext(ctx, `
		UPDATE billing_payments
		SET status = ?, paid_at = ?, updated_at = ?,
			stripe_payment_intent_id = COALESCE(?, stripe_payment_intent_id),
			stripe_customer_id = COALESCE(?, stripe_customer_id),
			amount_cents = ?
		WHERE stripe_checkout_session_id = ? AND status != ?
	`, string(models.PaymentStatusPaid), at, at, nullStringPtr(u.PaymentIntentID), nullStringPtr(u.CustomerID),
		u.AmountCents, sessionID, string(models.PaymentStatusPaid))
	if err != nil {
		return false, fmt.Errorf("failed to mark payment paid: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkFailedByPaymentIntent fails the pending payments of a payment intent.
func (r *SQLitePaymentRepository) MarkFailedByPaymentIntent(ctx context.Context, paymentIntentID string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE billing_payments SET status = ?, updated_at = ?
		WHERE stripe_payment_intent_id = ? AND status = ?
	`, string(models.PaymentStatusFailed), formatTime(at), paymentIntentID, string(models.PaymentStatusPending))
	if err != nil {
		return 0, fmt.Errorf("failed to mark payment failed: %w", err)
	}
	return res.RowsAffected()
}

// MarkExpired expires a pending payment for a checkout session. Paid, failed
// and already expired rows keep their status.
func (r *SQLitePaymentRepository) MarkExpired(ctx context.Context, sessionID string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE billing_payments SET status = ?, updated_at = ?
		WHERE stripe_checkout_session_id = ? AND status = ?
	`, string(models.PaymentStatusExpired), formatTime(at), sessionID,
		string(models.PaymentStatusPending))
	if err != nil {
		return 0, fmt.Errorf("failed to mark payment expired: %w", err)
	}
	return res.RowsAffected()
}

// AttachOrg links a payment to a tenant resolved after the fact.
func (r *SQLitePaymentRepository) AttachOrg(ctx context.Context, sessionID, orgID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE billing_payments SET org_id = ?, updated_at = ? WHERE stripe_checkout_session_id = ?
	`, orgID, formatTime(time.Now()), sessionID)
	return err
}
