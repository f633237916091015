package models

import "time"

// AuthType selects how outbound calls to a customer API are authenticated.
type AuthType string

const (
	AuthTypeNone   AuthType = "NONE"
	AuthTypeHMAC   AuthType = "HMAC"
	AuthTypeBearer AuthType = "BEARER"
)

// Customer API defaults.
const (
	DefaultHealthPath          = "/deleteactpro/health"
	DefaultDeletePath          = "/deleteactpro/delete"
	DefaultStatusPath          = "/deleteactpro/status"
	DefaultTimeoutMs           = 8000
	DefaultRetries             = 2
	DefaultSignatureHeader     = "X-DAP-Signature"
	DefaultTimestampHeader     = "X-DAP-Timestamp"
	DefaultReplayWindowSeconds = 300
)

// CustomerAPIIntegration is a customer-hosted endpoint the platform calls
// directly. Credentials are only ever stored encrypted.
type CustomerAPIIntegration struct {
	ID                    string            `json:"id"`
	OrgID                 string            `json:"org_id"`
	Name                  string            `json:"name"`
	BaseURL               string            `json:"base_url"`
	HealthPath            string            `json:"health_path"`
	StatusPath            string            `json:"status_path"`
	DeletePath            string            `json:"delete_path"`
	WebhookPath           *string           `json:"webhook_path,omitempty"`
	AuthType              AuthType          `json:"auth_type"`
	SharedSecretEncrypted *string           `json:"-"`
	BearerTokenEncrypted  *string           `json:"-"`
	Headers               map[string]string `json:"headers,omitempty"`
	TimeoutMs             int               `json:"timeout_ms"`
	Retries               int               `json:"retries"`
	HMACHeaderName        string            `json:"hmac_header_name"`
	TimestampHeaderName   string            `json:"timestamp_header_name"`
	ReplayWindowSeconds   int               `json:"replay_window_seconds"`
	LastHealthcheckAt     *time.Time        `json:"last_healthcheck_at,omitempty"`
	LastHealthcheckOK     *bool             `json:"last_healthcheck_ok,omitempty"`
	LastHealthcheckStatus *int              `json:"last_healthcheck_status,omitempty"`
	LastHealthcheckError  *string           `json:"last_healthcheck_error,omitempty"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

// HealthcheckRecord is the outcome of the most recent healthcheck.
type HealthcheckRecord struct {
	At     time.Time
	OK     bool
	Status int
	Error  *string
}
