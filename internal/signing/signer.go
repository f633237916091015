// Package signing builds authentication headers for outbound calls to
// customer-hosted endpoints.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/jmylchreest/erasure-api/internal/models"
)

var (
	ErrSignatureExpired  = errors.New("signature timestamp outside replay window")
	ErrSignatureMismatch = errors.New("signature mismatch")
)

// DefaultReplayWindow is the freshness window receivers are expected to enforce.
const DefaultReplayWindow = 5 * time.Minute

// Credential is the decrypted authentication material for one integration.
// It lives only for the duration of a call and is never persisted.
type Credential struct {
	AuthType        models.AuthType
	Secret          string // HMAC shared secret
	BearerToken     string
	Headers         map[string]string // static headers sent on every call
	SignatureHeader string
	TimestampHeader string
}

// Signer creates authentication headers for outbound requests.
type Signer struct {
	now func() time.Time
}

// NewSigner creates a signer using the wall clock.
func NewSigner() *Signer {
	return &Signer{now: time.Now}
}

// NewSignerWithClock creates a signer with an injected clock.
func NewSignerWithClock(now func() time.Time) *Signer {
	return &Signer{now: now}
}

// BuildAuthHeaders returns the headers for a single attempt. HMAC timestamps
// are generated on every call, so headers must not be reused across retries.
// method and url are not part of the signed message.
func (s *Signer) BuildAuthHeaders(cred Credential, method, url string, body []byte) map[string]string {
	headers := make(map[string]string, len(cred.Headers)+2)
	for k, v := range cred.Headers {
		headers[k] = v
	}

	switch cred.AuthType {
	case models.AuthTypeBearer:
		headers["Authorization"] = "Bearer " + cred.BearerToken
	case models.AuthTypeHMAC:
		timestamp := strconv.FormatInt(s.now().Unix(), 10)
		headers[headerOr(cred.TimestampHeader, models.DefaultTimestampHeader)] = timestamp
		headers[headerOr(cred.SignatureHeader, models.DefaultSignatureHeader)] = Sign(cred.Secret, timestamp, body)
	}

	return headers
}

// Sign computes hex(HMAC-SHA256(secret, timestamp || body)).
func Sign(secret, timestamp string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(timestamp))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// Verify checks a signature the way a receiving customer endpoint should:
// the timestamp must be within window of now and the signature must match
// the exact body bytes.
func Verify(secret, timestamp, signature string, body []byte, window time.Duration, now time.Time) error {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrSignatureMismatch
	}
	age := now.Sub(time.Unix(ts, 0))
	if age < 0 {
		age = -age
	}
	if age > window {
		return ErrSignatureExpired
	}

	expected := Sign(secret, timestamp, body)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return ErrSignatureMismatch
	}
	return nil
}

func headerOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
