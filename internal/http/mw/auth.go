// Package mw contains HTTP middleware for the erasure-api.
package mw

import (
	"context"
	"strings"

	"github.com/jmylchreest/erasure-api/internal/models"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// UserClaimsKey is the context key for tenant user claims.
	UserClaimsKey ContextKey = "user_claims"
	// ConnectorKey is the context key for the authenticated connector agent.
	ConnectorKey ContextKey = "connector"
)

// UserClaims is the authenticated tenant user.
type UserClaims struct {
	UserID string // sub claim
	OrgID  string
	Email  string
	Role   string
}

// HasRole reports whether the user holds any of roles. An empty list allows
// every role.
func (c *UserClaims) HasRole(roles ...string) bool {
	if c == nil {
		return false
	}
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if strings.EqualFold(c.Role, r) {
			return true
		}
	}
	return false
}

// GetUserClaims retrieves user claims from context.
func GetUserClaims(ctx context.Context) *UserClaims {
	claims, ok := ctx.Value(UserClaimsKey).(*UserClaims)
	if !ok {
		return nil
	}
	return claims
}

// WithUserClaims returns a context carrying claims.
func WithUserClaims(ctx context.Context, claims *UserClaims) context.Context {
	return context.WithValue(ctx, UserClaimsKey, claims)
}

// GetConnector retrieves the authenticated connector from context.
func GetConnector(ctx context.Context) *models.Connector {
	c, ok := ctx.Value(ConnectorKey).(*models.Connector)
	if !ok {
		return nil
	}
	return c
}

// WithConnector returns a context carrying the connector.
func WithConnector(ctx context.Context, c *models.Connector) context.Context {
	return context.WithValue(ctx, ConnectorKey, c)
}

// bearerToken extracts the token from an Authorization header value. A bare
// token without the scheme is accepted.
func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}
