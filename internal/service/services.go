// Package service contains the business logic layer.
// Every operation is scoped to an org id supplied by the transport layer
// from the authenticated principal.
package service

import (
	"fmt"
	"log/slog"

	"github.com/stripe/stripe-go/v78/client"

	"github.com/jmylchreest/erasure-api/internal/config"
	"github.com/jmylchreest/erasure-api/internal/crypto"
	"github.com/jmylchreest/erasure-api/internal/delivery"
	"github.com/jmylchreest/erasure-api/internal/repository"
	"github.com/jmylchreest/erasure-api/internal/signing"
)

// Services holds all service instances.
type Services struct {
	Request     *RequestService
	Cascade     *CascadeService
	Delivery    *CascadeDeliveryService
	Policy      *PolicyService
	Connector   *ConnectorService
	Integration *IntegrationService
	Agent       *AgentService
	Audit       *AuditService
	Storage     *StorageService
	Billing     *BillingService
	Ledger      *LedgerService
}

// NewServices creates all service instances.
func NewServices(cfg *config.Config, repos *repository.Repositories, logger *slog.Logger) (*Services, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// Vault is optional; without it credential operations report a configuration error
	var vault *crypto.Vault
	if cfg.VaultEnabled() {
		var err error
		vault, err = crypto.NewVault(cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create vault: %w", err)
		}
	} else {
		logger.Warn("no encryption key configured - customer API credentials will be unavailable")
	}

	storageSvc, err := NewStorageService(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage service: %w", err)
	}

	deliveryClient := delivery.NewClient(signing.NewSigner(), logger)

	cascadeSvc := NewCascadeService(repos, logger)

	var sessions CheckoutSessions
	if cfg.StripeEnabled() {
		sc := &client.API{}
		sc.Init(cfg.StripeSecretKey, nil)
		sessions = sc.CheckoutSessions
	} else {
		logger.Warn("stripe not configured - setup fee checkout unavailable")
	}

	return &Services{
		Request:     NewRequestService(repos, cascadeSvc, logger),
		Cascade:     cascadeSvc,
		Delivery:    NewCascadeDeliveryService(repos, vault, deliveryClient, logger),
		Policy:      NewPolicyService(repos, logger),
		Connector:   NewConnectorService(repos, logger),
		Integration: NewIntegrationService(repos, vault, deliveryClient, logger),
		Agent:       NewAgentService(repos, logger),
		Audit:       NewAuditService(repos, storageSvc, logger),
		Storage:     storageSvc,
		Billing: NewBillingService(BillingConfig{
			SetupFeePriceID: cfg.StripeSetupFeePriceID,
			ClientURL:       cfg.ClientURL,
		}, sessions, repos, logger),
		Ledger: NewLedgerService(LedgerConfig{
			WebhookSecret:     cfg.StripeWebhookSecret,
			RetryFailedEvents: cfg.WebhookRetryFailedEvents,
		}, repos, logger),
	}, nil
}
