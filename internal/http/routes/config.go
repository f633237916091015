package routes

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/erasure-api/internal/http/mw"
	"github.com/jmylchreest/erasure-api/internal/version"
)

// NewHumaConfig creates the shared Huma configuration for the API.
// This includes API metadata, security schemes, and tag definitions.
func NewHumaConfig(baseURL string) huma.Config {
	cfg := huma.DefaultConfig("Erasure API", version.Get().Short())
	cfg.Info.Description = "Records privacy deletion requests and cascades them to partner systems."

	// No $schema links in responses
	cfg.CreateHooks = nil

	if baseURL != "" {
		cfg.Servers = []*huma.Server{
			{URL: baseURL, Description: "API Server"},
		}
	}

	cfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		mw.SecurityScheme: {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
			Description:  "Tenant access token carrying sub, org_id and role claims.",
		},
		mw.ConnectorSecurityScheme: {
			Type:        "http",
			Scheme:      "bearer",
			Description: "Connector agent token issued when the connector is created or rotated.",
		},
	}

	cfg.Tags = []*huma.Tag{
		{Name: "Requests", Description: "Deletion requests, audit entries and dispatch", Extensions: map[string]any{"x-displayName": "Requests"}},
		{Name: "Policies", Description: "Cascade policies", Extensions: map[string]any{"x-displayName": "Policies"}},
		{Name: "Integrations", Description: "Customer API integrations and test calls", Extensions: map[string]any{"x-displayName": "Integrations"}},
		{Name: "Directory", Description: "Partners and connectors", Extensions: map[string]any{"x-displayName": "Directory"}},
		{Name: "Agent", Description: "Endpoints called by on-premise connector agents", Extensions: map[string]any{"x-displayName": "Agent"}},
		{Name: "Audit", Description: "Audit trail and evidence export", Extensions: map[string]any{"x-displayName": "Audit"}},
		{Name: "Billing", Description: "Setup fee checkout", Extensions: map[string]any{"x-displayName": "Billing"}},
	}

	return cfg
}
