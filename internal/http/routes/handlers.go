// Package routes provides shared route registration for the Erasure API.
// This allows both the main server and the OpenAPI generator to use
// the same route definitions, so the served API and the generated document match.
package routes

import (
	"context"

	"github.com/jmylchreest/erasure-api/internal/http/handlers"
	"github.com/jmylchreest/erasure-api/internal/service"
)

// Handlers aggregates all handlers for route registration.
type Handlers struct {
	// Kubernetes health checks (hidden from docs)
	Livez  func(ctx context.Context, input *struct{}) (*handlers.LivezOutput, error)
	Readyz func(ctx context.Context, input *struct{}) (*handlers.ReadyzOutput, error)

	Request     *handlers.RequestHandler
	Policy      *handlers.PolicyHandler
	Integration *handlers.IntegrationHandler
	Directory   *handlers.DirectoryHandler
	Agent       *handlers.AgentHandler
	Audit       *handlers.AuditHandler
	Billing     *handlers.BillingHandler
}

// NewHandlers builds the handlers over the given services.
func NewHandlers(svc *service.Services, db handlers.DBPinger) *Handlers {
	return &Handlers{
		Livez:       handlers.Livez,
		Readyz:      handlers.NewReadyzHandler(db).Readyz,
		Request:     handlers.NewRequestHandler(svc.Request, svc.Cascade),
		Policy:      handlers.NewPolicyHandler(svc.Policy),
		Integration: handlers.NewIntegrationHandler(svc.Integration),
		Directory:   handlers.NewDirectoryHandler(svc.Connector),
		Agent:       handlers.NewAgentHandler(svc.Agent),
		Audit:       handlers.NewAuditHandler(svc.Audit),
		Billing:     handlers.NewBillingHandler(svc.Billing),
	}
}
