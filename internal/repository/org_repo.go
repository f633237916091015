package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/erasure-api/internal/models"
)

// SQLiteOrgRepository implements OrgRepository for SQLite/libsql.
type SQLiteOrgRepository struct {
	db *sql.DB
}

// NewSQLiteOrgRepository creates a new SQLite org repository.
func NewSQLiteOrgRepository(db *sql.DB) *SQLiteOrgRepository {
	return &SQLiteOrgRepository{db: db}
}

// Create inserts an org.
func (r *SQLiteOrgRepository) Create(ctx context.Context, org *models.Org) error {
	if org.ID == "" {
		org.ID = ulid.Make().String()
	}
	if org.CreatedAt.IsZero() {
		org.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO orgs (id, name, setup_fee_paid_at, created_at)
		VALUES (?, ?, ?, ?)
	`, org.ID, org.Name, nullTime(org.SetupFeePaidAt), formatTime(org.CreatedAt))
	return err
}

// GetByID retrieves an org.
func (r *SQLiteOrgRepository) GetByID(ctx context.Context, id string) (*models.Org, error) {
	var (
		org       models.Org
		paidAt    sql.NullString
		createdAt string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, setup_fee_paid_at, created_at FROM orgs WHERE id = ?
	`, id).Scan(&org.ID, &org.Name, &paidAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	org.SetupFeePaidAt = timePtr(paidAt)
	org.CreatedAt = parseTime(createdAt)
	return &org, nil
}

// MarkSetupFeePaid stamps the org's setup fee payment time.
func (r *SQLiteOrgRepository) MarkSetupFeePaid(ctx context.Context, orgID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE orgs SET setup_fee_paid_at = ? WHERE id = ?`, formatTime(at), orgID)
	return err
}

// CreateUser inserts a user.
func (r *SQLiteOrgRepository) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = ulid.Make().String()
	}
	if user.Role == "" {
		user.Role = "MEMBER"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, org_id, email, role, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, user.ID, user.OrgID, strings.ToLower(user.Email), user.Role, formatTime(user.CreatedAt))
	return err
}

// FindOrgIDByUserEmail resolves an org through a member's email address.
func (r *SQLiteOrgRepository) FindOrgIDByUserEmail(ctx context.Context, email string) (string, error) {
	var orgID string
	err := r.db.QueryRowContext(ctx, `
		SELECT o.id FROM orgs o JOIN users u ON u.org_id = o.id
		WHERE u.email = ?
		LIMIT 1
	`, strings.ToLower(email)).Scan(&orgID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return orgID, err
}
