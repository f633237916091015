package mw

import (
	"net/http"
	"strings"

	"github.com/jmylchreest/erasure-api/internal/version"
)

// APIVersion sets X-API-Version on every response. Responses under /api/
// additionally get Cache-Control: no-store since they carry tenant data.
func APIVersion() func(http.Handler) http.Handler {
	apiVersion := version.Get().Short()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-API-Version", apiVersion)
			if strings.HasPrefix(r.URL.Path, "/api/") {
				w.Header().Set("Cache-Control", "no-store")
			}
			next.ServeHTTP(w, r)
		})
	}
}
