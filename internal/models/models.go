// Package models defines the domain models for the application.
// Tenants are orgs; every tenant-owned row carries an OrgID and all queries are
// scoped by it.
package models

import (
	"time"
)

// Audit actors that are not user ids.
const (
	ActorSystem = "system"
	ActorAgent  = "agent"
)

// Org is a tenant.
type Org struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	SetupFeePaidAt *time.Time `json:"setup_fee_paid_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// User is a member of an org. Users are provisioned by the identity layer;
// this service only reads them (email lookup for payment attribution).
type User struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Partner is a downstream system that receives cascaded deletion requests.
type Partner struct {
	ID          string    `json:"id"`
	OrgID       string    `json:"org_id"`
	Name        string    `json:"name"`
	Type        string    `json:"type,omitempty"`
	EndpointURL string    `json:"endpoint_url,omitempty"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"created_at"`
}

// ConnectorStatus is the last known state of an on-premise agent.
type ConnectorStatus string

const (
	ConnectorStatusPending ConnectorStatus = "PENDING"
	ConnectorStatusOnline  ConnectorStatus = "ONLINE"
	ConnectorStatusOffline ConnectorStatus = "OFFLINE"
)

// Connector is a customer-operated agent that matches subject hashes locally.
type Connector struct {
	ID              string          `json:"id"`
	OrgID           string          `json:"org_id"`
	Name            string          `json:"name"`
	Status          ConnectorStatus `json:"status"`
	AgentVersion    string          `json:"agent_version,omitempty"`
	LastHeartbeatAt *time.Time      `json:"last_heartbeat_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// RequestStatus is the lifecycle state of a deletion request.
type RequestStatus string

const (
	RequestStatusReceived  RequestStatus = "RECEIVED"
	RequestStatusCascading RequestStatus = "CASCADING"
	RequestStatusCompleted RequestStatus = "COMPLETED"
)

// DeletionRequest is a privacy deletion request. Only hashes of personal
// identifiers are stored.
type DeletionRequest struct {
	ID          string        `json:"id"`
	OrgID       string        `json:"org_id"`
	RequestRef  *string       `json:"request_ref,omitempty"`
	SubjectHash string        `json:"subject_hash"`
	PayloadHash *string       `json:"payload_hash,omitempty"`
	System      string        `json:"system"`
	Status      RequestStatus `json:"status"`
	ReceivedAt  time.Time     `json:"received_at"`
	MetaJSON    string        `json:"meta_json,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Audit event types written by this service.
const (
	AuditTypeReceived         = "RECEIVED"
	AuditTypeCascading        = "CASCADING"
	AuditTypeCascadeDelivered = "CASCADE_DELIVERED"
	AuditTypeCascadeFailed    = "CASCADE_FAILED"
	AuditTypeEvidenceExported = "EVIDENCE_EXPORTED"
)

// AuditEvent is an append-only audit trail entry.
type AuditEvent struct {
	ID          int64     `json:"id"`
	OrgID       string    `json:"org_id"`
	RequestID   string    `json:"request_id"`
	TS          time.Time `json:"ts"`
	Type        string    `json:"type"`
	Actor       string    `json:"actor"`
	DetailsJSON string    `json:"details_json,omitempty"`
}
