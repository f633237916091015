package routes

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/erasure-api/internal/auth"
	"github.com/jmylchreest/erasure-api/internal/http/mw"
)

// Register registers all API routes with the given Huma API instance.
// The raw payment webhook and /metrics are mounted on the router directly.
func Register(api huma.API, h *Handlers) {
	// Kubernetes health checks (hidden from docs - internal use only)
	mw.HiddenGet(api, "/healthz", h.Livez)
	mw.HiddenGet(api, "/readyz", h.Readyz)

	// =========================================================================
	// Tenant Routes (require bearer auth)
	// =========================================================================

	// --- Requests ---
	mw.ProtectedPost(api, "/api/requests", h.Request.CreateRequest,
		mw.WithTags("Requests"),
		mw.WithSummary("Create deletion request"),
		mw.WithDescription("Stores a deletion request for a subject hash. Set autoDispatch to fan it out immediately."),
		mw.WithOperationID("createRequest"),
		mw.WithStatus(http.StatusCreated))
	mw.ProtectedGet(api, "/api/requests", h.Request.ListRequests,
		mw.WithTags("Requests"),
		mw.WithSummary("List deletion requests"),
		mw.WithOperationID("listRequests"))
	mw.ProtectedGet(api, "/api/requests/{id}", h.Request.GetRequest,
		mw.WithTags("Requests"),
		mw.WithSummary("Get deletion request"),
		mw.WithOperationID("getRequest"))
	mw.ProtectedPost(api, "/api/requests/{id}/events", h.Request.AppendEvent,
		mw.WithTags("Requests"),
		mw.WithSummary("Append audit event"),
		mw.WithOperationID("appendRequestEvent"),
		mw.WithStatus(http.StatusCreated))
	mw.ProtectedPost(api, "/api/requests/{id}/dispatch", h.Request.Dispatch,
		mw.WithTags("Requests"),
		mw.WithSummary("Dispatch cascade"),
		mw.WithDescription("Creates one cascade job per partner and target. Safe to repeat; only new jobs are counted."),
		mw.WithOperationID("dispatchRequest"),
		mw.WithRoles(auth.RoleOwner, auth.RoleAdmin))
	mw.ProtectedPost(api, "/api/hash-match", h.Request.HashMatch,
		mw.WithTags("Requests"),
		mw.WithSummary("Preview cascade targets for a subject hash"),
		mw.WithOperationID("hashMatch"))

	// --- Policies ---
	mw.ProtectedGet(api, "/api/policies", h.Policy.ListPolicies,
		mw.WithTags("Policies"),
		mw.WithSummary("List cascade policies"),
		mw.WithOperationID("listPolicies"))
	mw.ProtectedPost(api, "/api/policies", h.Policy.CreatePolicy,
		mw.WithTags("Policies"),
		mw.WithSummary("Create cascade policy"),
		mw.WithOperationID("createPolicy"),
		mw.WithStatus(http.StatusCreated))
	mw.ProtectedPatch(api, "/api/policies/{id}", h.Policy.UpdatePolicy,
		mw.WithTags("Policies"),
		mw.WithSummary("Update cascade policy"),
		mw.WithOperationID("updatePolicy"))
	mw.ProtectedDelete(api, "/api/policies/{id}", h.Policy.DeletePolicy,
		mw.WithTags("Policies"),
		mw.WithSummary("Delete cascade policy"),
		mw.WithOperationID("deletePolicy"))

	// --- Integrations ---
	mw.ProtectedGet(api, "/api/integrations", h.Integration.ListIntegrations,
		mw.WithTags("Integrations"),
		mw.WithSummary("List customer API integrations"),
		mw.WithOperationID("listIntegrations"))
	mw.ProtectedPost(api, "/api/integrations", h.Integration.CreateIntegration,
		mw.WithTags("Integrations"),
		mw.WithSummary("Create customer API integration"),
		mw.WithDescription("A generated HMAC secret is returned in this response only."),
		mw.WithOperationID("createIntegration"),
		mw.WithStatus(http.StatusCreated),
		mw.WithRoles(auth.RoleOwner, auth.RoleAdmin))
	mw.ProtectedGet(api, "/api/integrations/summary", h.Integration.Summary,
		mw.WithTags("Integrations"),
		mw.WithSummary("Integration overview"),
		mw.WithOperationID("integrationSummary"))
	mw.ProtectedGet(api, "/api/integrations/{id}", h.Integration.GetIntegration,
		mw.WithTags("Integrations"),
		mw.WithSummary("Get customer API integration"),
		mw.WithOperationID("getIntegration"))
	mw.ProtectedPatch(api, "/api/integrations/{id}", h.Integration.UpdateIntegration,
		mw.WithTags("Integrations"),
		mw.WithSummary("Update customer API integration"),
		mw.WithOperationID("updateIntegration"),
		mw.WithRoles(auth.RoleOwner, auth.RoleAdmin))
	mw.ProtectedDelete(api, "/api/integrations/{id}", h.Integration.DeleteIntegration,
		mw.WithTags("Integrations"),
		mw.WithSummary("Delete customer API integration"),
		mw.WithOperationID("deleteIntegration"),
		mw.WithRoles(auth.RoleOwner, auth.RoleAdmin))
	mw.ProtectedPost(api, "/api/integrations/{id}/rotate-secret", h.Integration.RotateSecret,
		mw.WithTags("Integrations"),
		mw.WithSummary("Rotate HMAC secret"),
		mw.WithOperationID("rotateIntegrationSecret"),
		mw.WithRoles(auth.RoleOwner, auth.RoleAdmin))
	mw.ProtectedPost(api, "/api/integrations/{id}/test/health", h.Integration.TestHealth,
		mw.WithTags("Integrations"),
		mw.WithSummary("Call the health endpoint"),
		mw.WithOperationID("testIntegrationHealth"))
	mw.ProtectedPost(api, "/api/integrations/{id}/test/status", h.Integration.TestStatus,
		mw.WithTags("Integrations"),
		mw.WithSummary("Call the status endpoint"),
		mw.WithOperationID("testIntegrationStatus"))
	mw.ProtectedPost(api, "/api/integrations/{id}/test/delete", h.Integration.TestDelete,
		mw.WithTags("Integrations"),
		mw.WithSummary("Send a dry-run delete"),
		mw.WithOperationID("testIntegrationDelete"))

	// --- Partners & connectors ---
	mw.ProtectedGet(api, "/api/partners", h.Directory.ListPartners,
		mw.WithTags("Directory"),
		mw.WithSummary("List partners"),
		mw.WithOperationID("listPartners"))
	mw.ProtectedPost(api, "/api/partners", h.Directory.CreatePartner,
		mw.WithTags("Directory"),
		mw.WithSummary("Create partner"),
		mw.WithOperationID("createPartner"),
		mw.WithStatus(http.StatusCreated))
	mw.ProtectedPatch(api, "/api/partners/{id}", h.Directory.SetPartnerEnabled,
		mw.WithTags("Directory"),
		mw.WithSummary("Enable or disable partner"),
		mw.WithOperationID("setPartnerEnabled"))
	mw.ProtectedGet(api, "/api/connectors", h.Directory.ListConnectors,
		mw.WithTags("Directory"),
		mw.WithSummary("List connectors"),
		mw.WithOperationID("listConnectors"))
	mw.ProtectedPost(api, "/api/connectors", h.Directory.CreateConnector,
		mw.WithTags("Directory"),
		mw.WithSummary("Create connector"),
		mw.WithDescription("The connector token is returned in this response only."),
		mw.WithOperationID("createConnector"),
		mw.WithStatus(http.StatusCreated),
		mw.WithRoles(auth.RoleOwner, auth.RoleAdmin))
	mw.ProtectedPost(api, "/api/connectors/{id}/rotate-token", h.Directory.RotateConnectorToken,
		mw.WithTags("Directory"),
		mw.WithSummary("Rotate connector token"),
		mw.WithOperationID("rotateConnectorToken"),
		mw.WithRoles(auth.RoleOwner, auth.RoleAdmin))

	// --- Audit ---
	mw.ProtectedGet(api, "/api/audit", h.Audit.ListAudit,
		mw.WithTags("Audit"),
		mw.WithSummary("List audit events"),
		mw.WithOperationID("listAudit"))
	mw.ProtectedGet(api, "/api/requests/{id}/export", h.Audit.Export,
		mw.WithTags("Audit"),
		mw.WithSummary("Export evidence bundle"),
		mw.WithOperationID("exportEvidence"))

	// --- Billing ---
	mw.ProtectedPost(api, "/api/billing/checkout", h.Billing.CreateCheckout,
		mw.WithTags("Billing"),
		mw.WithSummary("Start setup fee checkout"),
		mw.WithOperationID("createCheckout"),
		mw.WithRoles(auth.RoleOwner))
	mw.ProtectedGet(api, "/api/billing/checkout-status", h.Billing.CheckoutStatus,
		mw.WithTags("Billing"),
		mw.WithSummary("Get checkout status"),
		mw.WithOperationID("getCheckoutStatus"))

	// =========================================================================
	// Agent Routes (require connector token)
	// =========================================================================

	mw.AgentPost(api, "/api/agent/heartbeat", h.Agent.Heartbeat,
		mw.WithTags("Agent"),
		mw.WithSummary("Agent heartbeat"),
		mw.WithOperationID("agentHeartbeat"))
	mw.AgentPost(api, "/api/agent/events", h.Agent.RecordEvents,
		mw.WithTags("Agent"),
		mw.WithSummary("Report agent events"),
		mw.WithOperationID("agentEvents"))
	mw.AgentGet(api, "/api/agent/config", h.Agent.Config,
		mw.WithTags("Agent"),
		mw.WithSummary("Get agent configuration"),
		mw.WithOperationID("agentConfig"))
}
