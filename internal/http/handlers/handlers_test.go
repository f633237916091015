package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/erasure-api/internal/crypto"
	"github.com/jmylchreest/erasure-api/internal/http/mw"
	"github.com/jmylchreest/erasure-api/internal/service"
)

// ========================================
// mapServiceError Tests
// ========================================

func TestMapServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"not found", fmt.Errorf("request %w", service.ErrNotFound), http.StatusNotFound, "request not found"},
		{"validation", fmt.Errorf("%w: bad hash", service.ErrValidation), http.StatusBadRequest, "validation failed: bad hash"},
		{"vault unconfigured", fmt.Errorf("wrap: %w", crypto.ErrConfiguration), http.StatusServiceUnavailable, "encryption key not configured"},
		{"decryption", crypto.ErrDecryption, http.StatusInternalServerError, "decryption failed (check ENCRYPTION_KEY)"},
		{"billing disabled", service.ErrBillingDisabled, http.StatusServiceUnavailable, service.ErrBillingDisabled.Error()},
		{"storage disabled", service.ErrStorageDisabled, http.StatusServiceUnavailable, service.ErrStorageDisabled.Error()},
		{"unexpected", errors.New("sqlite: disk I/O error"), http.StatusInternalServerError, "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapServiceError(context.Background(), "test", tt.err)

			var se huma.StatusError
			if !errors.As(got, &se) {
				t.Fatalf("mapServiceError() = %T, want huma.StatusError", got)
			}
			if se.GetStatus() != tt.wantStatus {
				t.Errorf("status = %d, want %d", se.GetStatus(), tt.wantStatus)
			}
			var model *huma.ErrorModel
			if errors.As(got, &model) && model.Detail != tt.wantMsg {
				t.Errorf("detail = %q, want %q", model.Detail, tt.wantMsg)
			}
		})
	}
}

// ========================================
// Principal Tests
// ========================================

func TestRequireUser(t *testing.T) {
	if _, err := requireUser(context.Background()); err == nil {
		t.Error("expected error without claims")
	}
	ctx := mw.WithUserClaims(context.Background(), &mw.UserClaims{UserID: "user_1"})
	if _, err := requireUser(ctx); err == nil {
		t.Error("expected error for claims without org")
	}
	ctx = mw.WithUserClaims(context.Background(), &mw.UserClaims{UserID: "user_1", OrgID: "org_1"})
	claims, err := requireUser(ctx)
	if err != nil || claims.OrgID != "org_1" {
		t.Errorf("requireUser() = %+v, %v", claims, err)
	}
}

func TestRequireConnector(t *testing.T) {
	if _, err := requireConnector(context.Background()); err == nil {
		t.Error("expected error without connector")
	}
}
