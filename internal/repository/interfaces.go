// Package repository defines repository interfaces for data access.
//
// Lookups return (nil, nil) when no row matches; callers decide whether that
// is a not-found error. Every tenant-owned query is scoped by org id.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmylchreest/erasure-api/internal/models"
)

// OrgRepository handles tenants and the users used for payment attribution.
type OrgRepository interface {
	Create(ctx context.Context, org *models.Org) error
	GetByID(ctx context.Context, id string) (*models.Org, error)
	MarkSetupFeePaid(ctx context.Context, orgID string, at time.Time) error
	CreateUser(ctx context.Context, user *models.User) error
	// FindOrgIDByUserEmail returns "" when no user has the email.
	FindOrgIDByUserEmail(ctx context.Context, email string) (string, error)
}

// PartnerRepository handles downstream partners.
type PartnerRepository interface {
	Create(ctx context.Context, partner *models.Partner) error
	GetByID(ctx context.Context, orgID, id string) (*models.Partner, error)
	List(ctx context.Context, orgID string) ([]*models.Partner, error)
	ListEnabled(ctx context.Context, orgID string) ([]*models.Partner, error)
	SetEnabled(ctx context.Context, orgID, id string, enabled bool) (bool, error)
}

// ConnectorRepository handles on-premise agents and their tokens.
type ConnectorRepository interface {
	Create(ctx context.Context, connector *models.Connector) error
	GetByID(ctx context.Context, orgID, id string) (*models.Connector, error)
	ListByOrg(ctx context.Context, orgID string) ([]*models.Connector, error)
	CreateToken(ctx context.Context, connectorID, tokenHash string) error
	RevokeTokens(ctx context.Context, connectorID string) (int64, error)
	// FindByTokenHash returns the connector owning a non-revoked token.
	FindByTokenHash(ctx context.Context, tokenHash string) (*models.Connector, error)
	RecordHeartbeat(ctx context.Context, orgID, id, agentVersion string, at time.Time) error
}

// RequestRepository handles deletion requests.
type RequestRepository interface {
	Create(ctx context.Context, req *models.DeletionRequest) error
	GetByID(ctx context.Context, orgID, id string) (*models.DeletionRequest, error)
	List(ctx context.Context, orgID string, limit int) ([]*models.DeletionRequest, error)
	UpdateStatus(ctx context.Context, orgID, id string, status models.RequestStatus) error
}

// PolicyRepository reads and writes both cascade policy generations and
// presents them as models.CascadePolicy.
type PolicyRepository interface {
	// ListEnabled returns policies of both generations whose partner is enabled.
	ListEnabled(ctx context.Context, orgID string) ([]models.CascadePolicy, error)
	List(ctx context.Context, orgID string) ([]models.CascadePolicy, error)
	ListForConnector(ctx context.Context, orgID, connectorID string) ([]models.CascadePolicy, error)
	GetByID(ctx context.Context, orgID, id string) (*models.CascadePolicy, error)
	// FindForTarget prefers a v2 policy over a legacy one for the same pair.
	FindForTarget(ctx context.Context, orgID, partnerID, targetID string) (*models.CascadePolicy, error)
	Create(ctx context.Context, policy *models.CascadePolicy) error
	Update(ctx context.Context, policy *models.CascadePolicy) error
	Delete(ctx context.Context, orgID, id string) (bool, error)
	// ReplaceLegacy swaps the org's legacy policy set in one transaction.
	ReplaceLegacy(ctx context.Context, orgID string, policies []*models.CascadePolicy) error
}

// CascadeJobRepository handles cascade delivery jobs.
type CascadeJobRepository interface {
	// Upsert inserts a PENDING job or, when the (request, partner, target)
	// triple exists, refreshes only updated_at. Reports whether a row was inserted.
	Upsert(ctx context.Context, job *models.CascadeJob) (bool, error)
	ListByRequest(ctx context.Context, orgID, requestID string) ([]*models.CascadeJob, error)
	// ClaimDue moves one due PENDING job of the given target type to
	// IN_PROGRESS and increments its attempts.
	ClaimDue(ctx context.Context, targetType models.TargetType, now time.Time) (*models.CascadeJob, error)
	Finish(ctx context.Context, id string, status models.CascadeJobStatus, lastError *string, nextAttemptAt *time.Time) error
	// Requeue moves an IN_PROGRESS job back to PENDING and reports whether it
	// did. Jobs already DONE or FAILED are not touched.
	Requeue(ctx context.Context, id, lastError string, nextAttemptAt time.Time) (bool, error)
	// ReclaimStale resets IN_PROGRESS jobs last updated before staleBefore
	// to PENDING and returns how many were reset.
	ReclaimStale(ctx context.Context, targetType models.TargetType, staleBefore time.Time) (int64, error)
}

// AuditRepository appends and reads audit events.
type AuditRepository interface {
	Append(ctx context.Context, event *models.AuditEvent) error
	// List returns events oldest first; requestID "" lists the whole org.
	List(ctx context.Context, orgID, requestID string, limit int) ([]*models.AuditEvent, error)
}

// IntegrationRepository handles customer API integrations.
type IntegrationRepository interface {
	Create(ctx context.Context, integration *models.CustomerAPIIntegration) error
	GetByID(ctx context.Context, orgID, id string) (*models.CustomerAPIIntegration, error)
	List(ctx context.Context, orgID string) ([]*models.CustomerAPIIntegration, error)
	Update(ctx context.Context, integration *models.CustomerAPIIntegration) error
	Delete(ctx context.Context, orgID, id string) (bool, error)
	RecordHealthcheck(ctx context.Context, orgID, id string, rec models.HealthcheckRecord) error
}

// WebhookEventRepository is the payment provider event ledger.
type WebhookEventRepository interface {
	GetByProviderID(ctx context.Context, providerEventID string) (*models.WebhookEvent, error)
	// Insert adds a pending row; returns false when the provider id already exists.
	Insert(ctx context.Context, event *models.WebhookEvent) (bool, error)
	MarkStatus(ctx context.Context, providerEventID string, status models.WebhookEventStatus, errorMessage *string) error
	// Reopen moves a failed row back to pending; returns false for any other status.
	Reopen(ctx context.Context, providerEventID string) (bool, error)
}

// PaymentRepository handles billing payments keyed by checkout session.
type PaymentRepository interface {
	GetBySessionID(ctx context.Context, sessionID string) (*models.BillingPayment, error)
	// Insert returns false when a row for the session already exists.
	Insert(ctx context.Context, payment *models.BillingPayment) (bool, error)
	// MarkPaid transitions a non-paid row to paid; a paid row is left untouched.
	MarkPaid(ctx context.Context, sessionID string, update PaidUpdate) (bool, error)
	MarkFailedByPaymentIntent(ctx context.Context, paymentIntentID string, at time.Time) (int64, error)
	MarkExpired(ctx context.Context, sessionID string, at time.Time) (int64, error)
	AttachOrg(ctx context.Context, sessionID, orgID string) error
}

// PaidUpdate carries the fields refreshed when a payment becomes paid.
type PaidUpdate struct {
	PaymentIntentID *string
	CustomerID      *string
	AmountCents     int64
	At              time.Time
}

// Repositories holds all repository instances.
type Repositories struct {
	Org          OrgRepository
	Partner      PartnerRepository
	Connector    ConnectorRepository
	Request      RequestRepository
	Policy       PolicyRepository
	CascadeJob   CascadeJobRepository
	Audit        AuditRepository
	Integration  IntegrationRepository
	WebhookEvent WebhookEventRepository
	Payment      PaymentRepository
}

// NewRepositories creates all repositories for SQLite/libsql.
func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Org:          NewSQLiteOrgRepository(db),
		Partner:      NewSQLitePartnerRepository(db),
		Connector:    NewSQLiteConnectorRepository(db),
		Request:      NewSQLiteRequestRepository(db),
		Policy:       NewSQLitePolicyRepository(db),
		CascadeJob:   NewSQLiteCascadeJobRepository(db),
		Audit:        NewSQLiteAuditRepository(db),
		Integration:  NewSQLiteIntegrationRepository(db),
		WebhookEvent: NewSQLiteWebhookEventRepository(db),
		Payment:      NewSQLitePaymentRepository(db),
	}
}
