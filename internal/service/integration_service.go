package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jmylchreest/erasure-api/internal/crypto"
	"github.com/jmylchreest/erasure-api/internal/delivery"
	"github.com/jmylchreest/erasure-api/internal/models"
	"github.com/jmylchreest/erasure-api/internal/repository"
	"github.com/jmylchreest/erasure-api/internal/signing"
)

// Delete test calls never carry a real subject.
const (
	testDeleteMode        = "DRY_RUN"
	testDeleteSubjectHash = "0000000000000000000000000000000000000000000000000000000000000000"
)

// IntegrationService manages customer API integrations and their credentials.
type IntegrationService struct {
	repo   repository.IntegrationRepository
	repos  *repository.Repositories
	vault  *crypto.Vault
	client *delivery.Client
	logger *slog.Logger
}

// NewIntegrationService creates a new integration service. A nil vault leaves
// credential operations failing with crypto.ErrConfiguration.
func NewIntegrationService(repos *repository.Repositories, vault *crypto.Vault, client *delivery.Client, logger *slog.Logger) *IntegrationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IntegrationService{
		repo:   repos.Integration,
		repos:  repos,
		vault:  vault,
		client: client,
		logger: logger.With("component", "integrations"),
	}
}

// IntegrationView is the masked representation returned to operators.
type IntegrationView struct {
	*models.CustomerAPIIntegration
	HasSecret      bool `json:"hasSecret"`
	HasBearerToken bool `json:"hasBearerToken"`
}

// IntegrationCreated carries a generated HMAC secret. It is only ever
// returned once.
type IntegrationCreated struct {
	Integration  IntegrationView `json:"integration"`
	SharedSecret string          `json:"sharedSecret,omitempty"`
}

// IntegrationInput creates a customer API integration.
type IntegrationInput struct {
	Name                string            `json:"name" validate:"required,max=120"`
	BaseURL             string            `json:"baseUrl" validate:"required,http_url,max=500"`
	HealthPath          string            `json:"healthPath,omitempty" validate:"omitempty,max=200"`
	StatusPath          string            `json:"statusPath,omitempty" validate:"omitempty,max=200"`
	DeletePath          string            `json:"deletePath,omitempty" validate:"omitempty,max=200"`
	WebhookPath         *string           `json:"webhookPath,omitempty" validate:"omitempty,max=200"`
	AuthType            models.AuthType   `json:"authType" validate:"required,oneof=NONE HMAC BEARER"`
	SharedSecret        string            `json:"sharedSecret,omitempty"`
	BearerToken         string            `json:"bearerToken,omitempty"`
	Headers             map[string]string `json:"headers,omitempty"`
	TimeoutMs           *int              `json:"timeoutMs,omitempty" validate:"omitempty,min=500,max=60000"`
	Retries             *int              `json:"retries,omitempty" validate:"omitempty,min=0,max=5"`
	HMACHeaderName      string            `json:"hmacHeaderName,omitempty" validate:"omitempty,max=60"`
	TimestampHeaderName string            `json:"timestampHeaderName,omitempty" validate:"omitempty,max=60"`
	ReplayWindowSeconds *int              `json:"replayWindowSeconds,omitempty" validate:"omitempty,min=60,max=3600"`
}

// IntegrationPatch updates an integration; nil fields are left unchanged.
// A new SharedSecret or BearerToken is re-encrypted.
type IntegrationPatch struct {
	Name                *string            `json:"name,omitempty" validate:"omitempty,min=1,max=120"`
	BaseURL             *string            `json:"baseUrl,omitempty" validate:"omitempty,http_url,max=500"`
	HealthPath          *string            `json:"healthPath,omitempty" validate:"omitempty,max=200"`
	StatusPath          *string            `json:"statusPath,omitempty" validate:"omitempty,max=200"`
	DeletePath          *string            `json:"deletePath,omitempty" validate:"omitempty,max=200"`
	WebhookPath         *string            `json:"webhookPath,omitempty" validate:"omitempty,max=200"`
	AuthType            *models.AuthType   `json:"authType,omitempty" validate:"omitempty,oneof=NONE HMAC BEARER"`
	SharedSecret        *string            `json:"sharedSecret,omitempty" validate:"omitempty,min=1"`
	BearerToken         *string            `json:"bearerToken,omitempty" validate:"omitempty,min=1"`
	Headers             *map[string]string `json:"headers,omitempty"`
	TimeoutMs           *int               `json:"timeoutMs,omitempty" validate:"omitempty,min=500,max=60000"`
	Retries             *int               `json:"retries,omitempty" validate:"omitempty,min=0,max=5"`
	HMACHeaderName      *string            `json:"hmacHeaderName,omitempty" validate:"omitempty,max=60"`
	TimestampHeaderName *string            `json:"timestampHeaderName,omitempty" validate:"omitempty,max=60"`
	ReplayWindowSeconds *int               `json:"replayWindowSeconds,omitempty" validate:"omitempty,min=60,max=3600"`
}

// ========================================
// CRUD
// ========================================

// Create stores an integration with its credentials encrypted. HMAC
// integrations without a supplied secret get a generated one.
func (s *IntegrationService) Create(ctx context.Context, orgID string, in IntegrationInput) (*IntegrationCreated, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.AuthType == models.AuthTypeBearer && in.BearerToken == "" {
		return nil, validationErrorf("bearerToken is required for BEARER")
	}

	integration := &models.CustomerAPIIntegration{
		OrgID:               orgID,
		Name:                strings.TrimSpace(in.Name),
		BaseURL:             in.BaseURL,
		HealthPath:          orDefault(in.HealthPath, models.DefaultHealthPath),
		StatusPath:          orDefault(in.StatusPath, models.DefaultStatusPath),
		DeletePath:          orDefault(in.DeletePath, models.DefaultDeletePath),
		WebhookPath:         in.WebhookPath,
		AuthType:            in.AuthType,
		Headers:             in.Headers,
		TimeoutMs:           intOrDefault(in.TimeoutMs, models.DefaultTimeoutMs),
		Retries:             intOrDefault(in.Retries, models.DefaultRetries),
		HMACHeaderName:      orDefault(in.HMACHeaderName, models.DefaultSignatureHeader),
		TimestampHeaderName: orDefault(in.TimestampHeaderName, models.DefaultTimestampHeader),
		ReplayWindowSeconds: intOrDefault(in.ReplayWindowSeconds, models.DefaultReplayWindowSeconds),
	}

	var generated string
	switch in.AuthType {
	case models.AuthTypeHMAC:
		secret := in.SharedSecret
		if secret == "" {
			var err error
			if secret, err = crypto.GenerateSecret(); err != nil {
				return nil, err
			}
			generated = secret
		}
		enc, err := s.vault.Encrypt(secret)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt shared secret: %w", err)
		}
		integration.SharedSecretEncrypted = &enc
	case models.AuthTypeBearer:
		enc, err := s.vault.Encrypt(in.BearerToken)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt bearer token: %w", err)
		}
		integration.BearerTokenEncrypted = &enc
	}

	if err := s.repo.Create(ctx, integration); err != nil {
		return nil, fmt.Errorf("failed to create integration: %w", err)
	}

	s.logger.Info("customer API integration created",
		"org_id", orgID,
		"integration_id", integration.ID,
		"auth_type", integration.AuthType,
	)
	return &IntegrationCreated{Integration: maskIntegration(integration), SharedSecret: generated}, nil
}

// Get returns the masked view of one integration.
func (s *IntegrationService) Get(ctx context.Context, orgID, id string) (*IntegrationView, error) {
	integration, err := s.load(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	view := maskIntegration(integration)
	return &view, nil
}

// List returns masked views of every integration of the org.
func (s *IntegrationService) List(ctx context.Context, orgID string) ([]IntegrationView, error) {
	integrations, err := s.repo.List(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list integrations: %w", err)
	}
	views := make([]IntegrationView, 0, len(integrations))
	for _, integration := range integrations {
		views = append(views, maskIntegration(integration))
	}
	return views, nil
}

// Update applies a patch. Switching to HMAC or BEARER requires the matching
// credential to be present afterwards.
func (s *IntegrationService) Update(ctx context.Context, orgID, id string, patch IntegrationPatch) (*IntegrationView, error) {
	if err := validateInput(patch); err != nil {
		return nil, err
	}
	integration, err := s.load(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		integration.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.BaseURL != nil {
		integration.BaseURL = *patch.BaseURL
	}
	if patch.HealthPath != nil {
		integration.HealthPath = orDefault(*patch.HealthPath, models.DefaultHealthPath)
	}
	if patch.StatusPath != nil {
		integration.StatusPath = orDefault(*patch.StatusPath, models.DefaultStatusPath)
	}
	if patch.DeletePath != nil {
		integration.DeletePath = orDefault(*patch.DeletePath, models.DefaultDeletePath)
	}
	if patch.WebhookPath != nil {
		integration.WebhookPath = patch.WebhookPath
		if *patch.WebhookPath == "" {
			integration.WebhookPath = nil
		}
	}
	if patch.AuthType != nil {
		integration.AuthType = *patch.AuthType
	}
	if patch.Headers != nil {
		integration.Headers = *patch.Headers
	}
	if patch.TimeoutMs != nil {
		integration.TimeoutMs = *patch.TimeoutMs
	}
	if patch.Retries != nil {
		integration.Retries = *patch.Retries
	}
	if patch.HMACHeaderName != nil {
		integration.HMACHeaderName = orDefault(*patch.HMACHeaderName, models.DefaultSignatureHeader)
	}
	if patch.TimestampHeaderName != nil {
		integration.TimestampHeaderName = orDefault(*patch.TimestampHeaderName, models.DefaultTimestampHeader)
	}
	if patch.ReplayWindowSeconds != nil {
		integration.ReplayWindowSeconds = *patch.ReplayWindowSeconds
	}

	if patch.SharedSecret != nil {
		enc, err := s.vault.Encrypt(*patch.SharedSecret)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt shared secret: %w", err)
		}
		integration.SharedSecretEncrypted = &enc
	}
	if patch.BearerToken != nil {
		enc, err := s.vault.Encrypt(*patch.BearerToken)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt bearer token: %w", err)
		}
		integration.BearerTokenEncrypted = &enc
	}

	switch integration.AuthType {
	case models.AuthTypeHMAC:
		if integration.SharedSecretEncrypted == nil {
			return nil, validationErrorf("sharedSecret is required for HMAC")
		}
	case models.AuthTypeBearer:
		if integration.BearerTokenEncrypted == nil {
			return nil, validationErrorf("bearerToken is required for BEARER")
		}
	}

	if err := s.repo.Update(ctx, integration); err != nil {
		return nil, fmt.Errorf("failed to update integration: %w", err)
	}
	view := maskIntegration(integration)
	return &view, nil
}

// RotateSecret replaces an HMAC integration's shared secret and returns the
// new secret once.
func (s *IntegrationService) RotateSecret(ctx context.Context, orgID, id string) (*IntegrationCreated, error) {
	integration, err := s.load(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if integration.AuthType != models.AuthTypeHMAC {
		return nil, validationErrorf("only HMAC integrations have a shared secret")
	}

	secret, err := crypto.GenerateSecret()
	if err != nil {
		return nil, err
	}
	enc, err := s.vault.Encrypt(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt shared secret: %w", err)
	}
	integration.SharedSecretEncrypted = &enc
	if err := s.repo.Update(ctx, integration); err != nil {
		return nil, fmt.Errorf("failed to update integration: %w", err)
	}

	s.logger.Info("shared secret rotated", "org_id", orgID, "integration_id", id)
	return &IntegrationCreated{Integration: maskIntegration(integration), SharedSecret: secret}, nil
}

// Delete removes an integration together with its encrypted credentials.
func (s *IntegrationService) Delete(ctx context.Context, orgID, id string) error {
	deleted, err := s.repo.Delete(ctx, orgID, id)
	if err != nil {
		return fmt.Errorf("failed to delete integration: %w", err)
	}
	if !deleted {
		return notFound("integration")
	}
	s.logger.Info("customer API integration deleted", "org_id", orgID, "integration_id", id)
	return nil
}

// ========================================
// Test calls
// ========================================

// TestHealth calls the health endpoint and records the outcome on the row.
func (s *IntegrationService) TestHealth(ctx context.Context, orgID, id string) (*delivery.Result, error) {
	integration, err := s.load(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	target, err := integrationTarget(s.vault, integration, integration.HealthPath)
	if err != nil {
		return nil, err
	}

	res := s.client.HealthCheck(ctx, target)

	rec := models.HealthcheckRecord{At: time.Now().UTC(), OK: res.OK, Status: res.StatusCode}
	if !res.OK && res.Message != "" {
		msg := res.Message
		rec.Error = &msg
	}
	if err := s.repo.RecordHealthcheck(ctx, orgID, id, rec); err != nil {
		s.logger.Warn("failed to record healthcheck", "integration_id", id, "error", err)
	}
	return &res, nil
}

// TestStatus calls the status endpoint, optionally for one request id.
func (s *IntegrationService) TestStatus(ctx context.Context, orgID, id string, requestID *string) (*delivery.Result, error) {
	integration, err := s.load(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	target, err := integrationTarget(s.vault, integration, integration.StatusPath)
	if err != nil {
		return nil, err
	}
	res := s.client.StatusCheck(ctx, target, requestID)
	return &res, nil
}

// TestDelete sends a dry-run delete with a throwaway request id and an
// all-zero subject hash.
func (s *IntegrationService) TestDelete(ctx context.Context, orgID, id string) (*delivery.Result, error) {
	integration, err := s.load(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	target, err := integrationTarget(s.vault, integration, integration.DeletePath)
	if err != nil {
		return nil, err
	}
	res := s.client.DeleteCall(ctx, target, delivery.DeletePayload{
		RequestID:   "test-" + uuid.NewString(),
		SubjectHash: testDeleteSubjectHash,
		Mode:        testDeleteMode,
		Source:      delivery.Source,
	})
	return &res, nil
}

// ========================================
// Summary
// ========================================

// IntegrationMode describes which delivery channels an org has configured.
type IntegrationMode string

const (
	IntegrationModeNone         IntegrationMode = "NONE"
	IntegrationModeAgent        IntegrationMode = "AGENT"
	IntegrationModeCustomerAPIs IntegrationMode = "CUSTOMER_APIS"
	IntegrationModeHybrid       IntegrationMode = "HYBRID"
)

// IntegrationSummary is the onboarding overview of connectors and customer APIs.
type IntegrationSummary struct {
	Connectors               int             `json:"connectors"`
	CustomerAPIs             int             `json:"customerApis"`
	ModeDetected             IntegrationMode `json:"modeDetected"`
	LastOnlineConnectorAt    *time.Time      `json:"lastOnlineConnectorAt"`
	LastHealthyCustomerAPIAt *time.Time      `json:"lastHealthyCustomerApiAt"`
}

// Summary reports configured channels and their most recent healthy signal.
func (s *IntegrationService) Summary(ctx context.Context, orgID string) (*IntegrationSummary, error) {
	connectors, err := s.repos.Connector.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	integrations, err := s.repo.List(ctx, orgID)
	if err != nil {
		return nil, err
	}

	sum := &IntegrationSummary{Connectors: len(connectors), CustomerAPIs: len(integrations)}
	switch {
	case sum.Connectors > 0 && sum.CustomerAPIs > 0:
		sum.ModeDetected = IntegrationModeHybrid
	case sum.Connectors > 0:
		sum.ModeDetected = IntegrationModeAgent
	case sum.CustomerAPIs > 0:
		sum.ModeDetected = IntegrationModeCustomerAPIs
	default:
		sum.ModeDetected = IntegrationModeNone
	}

	for _, c := range connectors {
		if c.LastHeartbeatAt != nil && (sum.LastOnlineConnectorAt == nil || c.LastHeartbeatAt.After(*sum.LastOnlineConnectorAt)) {
			sum.LastOnlineConnectorAt = c.LastHeartbeatAt
		}
	}
	for _, i := range integrations {
		if i.LastHealthcheckOK == nil || !*i.LastHealthcheckOK || i.LastHealthcheckAt == nil {
			continue
		}
		if sum.LastHealthyCustomerAPIAt == nil || i.LastHealthcheckAt.After(*sum.LastHealthyCustomerAPIAt) {
			sum.LastHealthyCustomerAPIAt = i.LastHealthcheckAt
		}
	}
	return sum, nil
}

func (s *IntegrationService) load(ctx context.Context, orgID, id string) (*models.CustomerAPIIntegration, error) {
	integration, err := s.repo.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load integration: %w", err)
	}
	if integration == nil {
		return nil, notFound("integration")
	}
	return integration, nil
}

// integrationTarget decrypts the integration's credential and builds a
// delivery target for one of its paths.
func integrationTarget(vault *crypto.Vault, in *models.CustomerAPIIntegration, path string) (delivery.Target, error) {
	cred := signing.Credential{
		AuthType:        in.AuthType,
		Headers:         in.Headers,
		SignatureHeader: in.HMACHeaderName,
		TimestampHeader: in.TimestampHeaderName,
	}

	switch in.AuthType {
	case models.AuthTypeHMAC:
		if in.SharedSecretEncrypted == nil {
			return delivery.Target{}, validationErrorf("integration has no shared secret")
		}
		secret, err := vault.Decrypt(*in.SharedSecretEncrypted)
		if err != nil {
			return delivery.Target{}, err
		}
		cred.Secret = secret
	case models.AuthTypeBearer:
		if in.BearerTokenEncrypted == nil {
			return delivery.Target{}, validationErrorf("integration has no bearer token")
		}
		token, err := vault.Decrypt(*in.BearerTokenEncrypted)
		if err != nil {
			return delivery.Target{}, err
		}
		cred.BearerToken = token
	}

	return delivery.Target{
		BaseURL:    in.BaseURL,
		Path:       path,
		Credential: cred,
		Timeout:    time.Duration(in.TimeoutMs) * time.Millisecond,
		Retries:    in.Retries,
	}, nil
}

func maskIntegration(in *models.CustomerAPIIntegration) IntegrationView {
	return IntegrationView{
		CustomerAPIIntegration: in,
		HasSecret:              in.SharedSecretEncrypted != nil,
		HasBearerToken:         in.BearerTokenEncrypted != nil,
	}
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func intOrDefault(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}
