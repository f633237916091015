// Package handlers contains HTTP handlers for the API.
package handlers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/erasure-api/internal/crypto"
	"github.com/jmylchreest/erasure-api/internal/http/mw"
	"github.com/jmylchreest/erasure-api/internal/logging"
	"github.com/jmylchreest/erasure-api/internal/models"
	"github.com/jmylchreest/erasure-api/internal/service"
)

// requireUser returns the authenticated tenant user.
func requireUser(ctx context.Context) (*mw.UserClaims, error) {
	claims := mw.GetUserClaims(ctx)
	if claims == nil || claims.OrgID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}
	return claims, nil
}

// requireConnector returns the authenticated connector agent.
func requireConnector(ctx context.Context) (*models.Connector, error) {
	c := mw.GetConnector(ctx)
	if c == nil {
		return nil, huma.Error401Unauthorized("invalid connector token")
	}
	return c, nil
}

// mapServiceError converts a service error into an API error. Unexpected
// errors are logged and reported without detail.
func mapServiceError(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, service.ErrValidation):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, crypto.ErrConfiguration):
		return huma.Error503ServiceUnavailable("encryption key not configured")
	case errors.Is(err, crypto.ErrDecryption):
		return huma.Error500InternalServerError("decryption failed (check ENCRYPTION_KEY)")
	case errors.Is(err, service.ErrBillingDisabled), errors.Is(err, service.ErrStorageDisabled):
		return huma.Error503ServiceUnavailable(err.Error())
	}

	logging.FromContext(ctx, slog.Default()).Error(op+" failed", "error", err)
	return huma.Error500InternalServerError("internal error")
}
