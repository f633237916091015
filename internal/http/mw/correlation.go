package mw

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/jmylchreest/erasure-api/internal/logging"
)

// CorrelationHeader carries the request correlation id in both directions.
const CorrelationHeader = "X-Correlation-ID"

const maxCorrelationIDLen = 64

// CorrelationID accepts an inbound correlation id of 1 to 64 characters or
// generates one, echoes it on the response and attaches it to the context
// so logging.FromContext picks it up.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(CorrelationHeader)
		if id == "" || len(id) > maxCorrelationIDLen {
			id = newCorrelationID()
		}
		w.Header().Set(CorrelationHeader, id)
		ctx := logging.WithCorrelationID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newCorrelationID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
