package mw

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/erasure-api/internal/auth"
	"github.com/jmylchreest/erasure-api/internal/logging"
	"github.com/jmylchreest/erasure-api/internal/models"
)

// Security scheme names used in OpenAPI.
const (
	// SecurityScheme is the tenant JWT scheme.
	SecurityScheme = "bearerAuth"
	// ConnectorSecurityScheme is the connector agent token scheme.
	ConnectorSecurityScheme = "connectorToken"
)

// OperationMetadataKey is the key for storing additional operation requirements.
type OperationMetadataKey string

// MetaKeyRequireRoles is the metadata key for the roles allowed to call an operation.
const MetaKeyRequireRoles OperationMetadataKey = "requireRoles"

// TokenVerifier validates tenant access tokens.
type TokenVerifier interface {
	VerifyToken(token string) (*auth.Claims, error)
}

// ConnectorAuthenticator resolves a raw connector token. It returns nil for
// unknown or revoked tokens.
type ConnectorAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*models.Connector, error)
}

// HumaAuthConfig holds dependencies for the Huma auth middleware.
type HumaAuthConfig struct {
	Verifier   TokenVerifier
	Connectors ConnectorAuthenticator
}

// HumaAuth returns a Huma middleware that handles authentication based on operation security.
// It checks ctx.Operation().Security to determine which scheme, if any, applies.
func HumaAuth(api huma.API, cfg HumaAuthConfig) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op == nil {
			next(ctx)
			return
		}

		switch {
		case operationUsesScheme(op, SecurityScheme):
			authenticateUser(api, cfg, ctx, next)
		case operationUsesScheme(op, ConnectorSecurityScheme):
			authenticateConnector(api, cfg, ctx, next)
		default:
			next(ctx)
		}
	}
}

func authenticateUser(api huma.API, cfg HumaAuthConfig, ctx huma.Context, next func(huma.Context)) {
	authHeader := ctx.Header("Authorization")
	if authHeader == "" {
		huma.WriteErr(api, ctx, http.StatusUnauthorized, "missing authorization header")
		return
	}
	if cfg.Verifier == nil {
		huma.WriteErr(api, ctx, http.StatusUnauthorized, "invalid token")
		return
	}

	tokenClaims, err := cfg.Verifier.VerifyToken(bearerToken(authHeader))
	if err != nil {
		slog.Debug("auth validation failed", "error", err)
		huma.WriteErr(api, ctx, http.StatusUnauthorized, "invalid token")
		return
	}

	claims := &UserClaims{
		UserID: tokenClaims.Subject,
		OrgID:  tokenClaims.OrgID,
		Email:  tokenClaims.Email,
		Role:   tokenClaims.Role,
	}

	if roles := requiredRoles(ctx.Operation()); len(roles) > 0 && !claims.HasRole(roles...) {
		slog.Debug("role check failed", "user_id", claims.UserID, "role", claims.Role, "required", roles)
		huma.WriteErr(api, ctx, http.StatusForbidden, "forbidden")
		return
	}

	newCtx := WithUserClaims(ctx.Context(), claims)
	newCtx = logging.WithOrgID(newCtx, claims.OrgID)
	next(huma.WithContext(ctx, newCtx))
}

func authenticateConnector(api huma.API, cfg HumaAuthConfig, ctx huma.Context, next func(huma.Context)) {
	token := bearerToken(ctx.Header("Authorization"))
	if token == "" {
		huma.WriteErr(api, ctx, http.StatusUnauthorized, "missing connector token")
		return
	}
	if cfg.Connectors == nil {
		huma.WriteErr(api, ctx, http.StatusUnauthorized, "invalid connector token")
		return
	}

	connector, err := cfg.Connectors.Authenticate(ctx.Context(), token)
	if err != nil {
		slog.Error("connector lookup failed", "error", err)
		huma.WriteErr(api, ctx, http.StatusInternalServerError, "failed to authenticate connector")
		return
	}
	if connector == nil {
		huma.WriteErr(api, ctx, http.StatusUnauthorized, "invalid connector token")
		return
	}

	newCtx := WithConnector(ctx.Context(), connector)
	newCtx = logging.WithOrgID(newCtx, connector.OrgID)
	next(huma.WithContext(ctx, newCtx))
}

// operationUsesScheme checks if the operation lists scheme in its security requirements.
func operationUsesScheme(op *huma.Operation, scheme string) bool {
	for _, secReq := range op.Security {
		if _, ok := secReq[scheme]; ok {
			return true
		}
	}
	return false
}

// requiredRoles returns the roles from operation metadata.
func requiredRoles(op *huma.Operation) []string {
	if op == nil || op.Metadata == nil {
		return nil
	}
	if val, ok := op.Metadata[string(MetaKeyRequireRoles)]; ok {
		if roles, ok := val.([]string); ok {
			return roles
		}
	}
	return nil
}
