package mw

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jmylchreest/erasure-api/internal/logging"
)

func TestCorrelationID(t *testing.T) {
	tests := []struct {
		name     string
		inbound  string
		wantSame bool
	}{
		{"missing header generates", "", false},
		{"valid header kept", "abc-123", true},
		{"max length kept", strings.Repeat("a", 64), true},
		{"too long replaced", strings.Repeat("a", 65), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			handler := CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = logging.GetCorrelationID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.inbound != "" {
				req.Header.Set(CorrelationHeader, tt.inbound)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			echoed := rec.Header().Get(CorrelationHeader)
			if echoed != seen {
				t.Errorf("echoed %q, context %q", echoed, seen)
			}
			if tt.wantSame && echoed != tt.inbound {
				t.Errorf("correlation id = %q, want %q", echoed, tt.inbound)
			}
			if !tt.wantSame && len(echoed) != 16 {
				t.Errorf("generated id = %q, want 16 hex chars", echoed)
			}
		})
	}
}
