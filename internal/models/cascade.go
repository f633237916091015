package models

import "time"

// TargetType is the kind of delivery target a cascade policy points at.
type TargetType string

const (
	TargetTypeConnector   TargetType = "connector"
	TargetTypeCustomerAPI TargetType = "customer_api"
)

// Valid reports whether t is a known target type.
func (t TargetType) Valid() bool {
	return t == TargetTypeConnector || t == TargetTypeCustomerAPI
}

// PolicyGeneration records which table a policy was read from.
type PolicyGeneration string

const (
	// PolicyGenerationLegacy rows live in cascade_policies and always target a connector.
	PolicyGenerationLegacy PolicyGeneration = "legacy"
	// PolicyGenerationV2 rows live in cascade_policies_v2 with an explicit target type.
	PolicyGenerationV2 PolicyGeneration = "v2"
)

// Policy defaults.
const (
	DefaultPolicyMode     = "AUTO"
	DefaultRetriesMax     = 3
	DefaultBackoffMinutes = 60
)

// CascadePolicy maps a partner to a delivery target. Both storage generations
// are read into this one shape.
type CascadePolicy struct {
	ID                  string           `json:"id"`
	OrgID               string           `json:"org_id"`
	PartnerID           string           `json:"partner_id"`
	TargetType          TargetType       `json:"target_type"`
	TargetID            string           `json:"target_id"`
	Mode                string           `json:"mode"`
	RetriesMax          int              `json:"retries_max"`
	BackoffMinutes      int              `json:"backoff_minutes"`
	SLADays             *int             `json:"sla_days,omitempty"`
	AttestationRequired bool             `json:"attestation_required"`
	EscalationEmail     *string          `json:"escalation_email,omitempty"`
	Generation          PolicyGeneration `json:"generation"`
	CreatedAt           time.Time        `json:"created_at"`
}

// CascadeJobStatus is the delivery state of a cascade job.
type CascadeJobStatus string

const (
	CascadeJobPending    CascadeJobStatus = "PENDING"
	CascadeJobInProgress CascadeJobStatus = "IN_PROGRESS"
	CascadeJobDone       CascadeJobStatus = "DONE"
	CascadeJobFailed     CascadeJobStatus = "FAILED"
)

// CascadeJob is one (request, partner, target) delivery obligation.
type CascadeJob struct {
	ID            string           `json:"id"`
	OrgID         string           `json:"org_id"`
	RequestID     string           `json:"request_id"`
	PartnerID     string           `json:"partner_id"`
	TargetType    TargetType       `json:"target_type"`
	TargetID      string           `json:"target_id"`
	Status        CascadeJobStatus `json:"status"`
	Attempts      int              `json:"attempts"`
	LastError     *string          `json:"last_error,omitempty"`
	NextAttemptAt *time.Time       `json:"next_attempt_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}
