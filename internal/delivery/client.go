// Package delivery performs authenticated outbound calls to customer-hosted
// endpoints and folds every outcome into a Result.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/erasure-api/internal/metrics"
	"github.com/jmylchreest/erasure-api/internal/signing"
	"github.com/jmylchreest/erasure-api/internal/version"
)

const (
	// DefaultTimeout bounds a single attempt when the target does not set one.
	DefaultTimeout = 8 * time.Second

	// Source identifies this service in outbound payloads.
	Source = "erasure-api"

	maxResponseSample = 500
	maxErrorMessage   = 200
)

// CallType names the customer API operation being invoked.
type CallType string

const (
	CallHealth CallType = "health"
	CallStatus CallType = "status"
	CallDelete CallType = "delete"
)

// Target describes where and how to call a customer endpoint.
type Target struct {
	BaseURL    string
	Path       string
	Credential signing.Credential
	Timeout    time.Duration
	Retries    int
}

// Result is the normalized outcome of a call. StatusCode 0 means the request
// never produced an HTTP response (DNS, connect, TLS or timeout).
type Result struct {
	OK             bool   `json:"ok"`
	StatusCode     int    `json:"statusCode"`
	LatencyMs      int64  `json:"latencyMs"`
	Endpoint       string `json:"endpoint"`
	Message        string `json:"message,omitempty"`
	ResponseSample string `json:"responseSample,omitempty"`
}

// DeletePayload is the body of a delete call. SubjectHash is a SHA-256 hex
// digest; raw identifiers are never sent.
type DeletePayload struct {
	RequestID   string `json:"requestId"`
	SubjectHash string `json:"subjectHash"`
	Mode        string `json:"mode"`
	Source      string `json:"source"`
}

type statusPayload struct {
	RequestID *string `json:"requestId"`
	Source    string  `json:"source"`
}

// Client calls customer endpoints with per-attempt timeouts and retries on
// transport failures only.
type Client struct {
	http   *http.Client
	signer *signing.Signer
	logger *slog.Logger
}

// NewClient creates a delivery client with its own HTTP client.
func NewClient(signer *signing.Signer, logger *slog.Logger) *Client {
	return NewClientWithHTTP(&http.Client{}, signer, logger)
}

// NewClientWithHTTP creates a delivery client over the given HTTP client.
// Timeouts are applied per attempt, so httpClient.Timeout should be zero.
func NewClientWithHTTP(httpClient *http.Client, signer *signing.Signer, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if signer == nil {
		signer = signing.NewSigner()
	}
	return &Client{
		http:   httpClient,
		signer: signer,
		logger: logger.With("component", "delivery"),
	}
}

// HealthCheck issues GET <base><healthPath> with an empty body.
func (c *Client) HealthCheck(ctx context.Context, t Target) Result {
	return c.Do(ctx, CallHealth, t, http.MethodGet, nil)
}

// StatusCheck issues GET <base><statusPath> carrying an optional request id.
func (c *Client) StatusCheck(ctx context.Context, t Target, requestID *string) Result {
	body, _ := json.Marshal(statusPayload{RequestID: requestID, Source: Source})
	return c.Do(ctx, CallStatus, t, http.MethodGet, body)
}

// DeleteCall issues POST <base><deletePath> with the delete payload.
func (c *Client) DeleteCall(ctx context.Context, t Target, payload DeletePayload) Result {
	if payload.Source == "" {
		payload.Source = Source
	}
	body, _ := json.Marshal(payload)
	return c.Do(ctx, CallDelete, t, http.MethodPost, body)
}

// Do performs the call. HTTP responses of any status are returned as-is
// without retrying; transport failures are retried up to t.Retries more
// times with no delay. Do never returns an error.
func (c *Client) Do(ctx context.Context, call CallType, t Target, method string, body []byte) Result {
	endpoint := JoinURL(t.BaseURL, t.Path)
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	retries := t.Retries
	if retries < 0 {
		retries = 0
	}

	var (
		result   Result
		attempts int
	)
	for attempt := 1; attempt <= retries+1; attempt++ {
		attempts = attempt
		var retryable bool
		result, retryable = c.attempt(ctx, call, t.Credential, method, endpoint, body, timeout)
		if !retryable {
			return result
		}
		c.logger.Warn("delivery: attempt failed",
			"call", call,
			"endpoint", endpoint,
			"attempt", attempt,
			"latency_ms", result.LatencyMs,
			"error", result.Message,
		)
		if ctx.Err() != nil {
			break
		}
	}

	c.logger.Error("delivery: giving up after transport failures",
		"call", call,
		"endpoint", endpoint,
		"attempts", attempts,
	)
	return result
}

// attempt performs one HTTP exchange. The second return value reports a
// transport failure eligible for retry.
func (c *Client) attempt(ctx context.Context, call CallType, cred signing.Credential, method, endpoint string, body []byte, timeout time.Duration) (Result, bool) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		// A malformed URL fails identically on every attempt.
		return Result{Endpoint: endpoint, Message: truncate(err.Error(), maxErrorMessage)}, false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.Get().UserAgent())
	for k, v := range c.signer.BuildAuthHeaders(cred, method, endpoint, body) {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		elapsed := time.Since(start)
		metrics.DeliveryAttemptsTotal.WithLabelValues(string(call), metrics.OutcomeTransportError).Inc()
		metrics.DeliveryLatency.WithLabelValues(string(call)).Observe(elapsed.Seconds())
		return Result{
			Endpoint:  endpoint,
			LatencyMs: elapsed.Milliseconds(),
			Message:   truncate(err.Error(), maxErrorMessage),
		}, true
	}
	defer resp.Body.Close()

	// Read enough bytes for 500 characters of multi-byte text.
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseSample*4))
	elapsed := time.Since(start)

	result := Result{
		OK:         resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode: resp.StatusCode,
		LatencyMs:  elapsed.Milliseconds(),
		Endpoint:   endpoint,
	}
	if readErr == nil {
		result.ResponseSample = truncate(string(raw), maxResponseSample)
	}

	outcome := metrics.OutcomeSuccess
	if !result.OK {
		outcome = metrics.OutcomeHTTPError
		result.Message = "HTTP " + strconv.Itoa(resp.StatusCode)
	}
	metrics.DeliveryAttemptsTotal.WithLabelValues(string(call), outcome).Inc()
	metrics.DeliveryLatency.WithLabelValues(string(call)).Observe(elapsed.Seconds())

	return result, false
}

// JoinURL joins base and path with exactly one slash between them.
func JoinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
