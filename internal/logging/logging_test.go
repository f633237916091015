package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

// ========================================
// Context Key Tests
// ========================================

func TestContextKeys(t *testing.T) {
	if CorrelationIDKey != "log_correlation_id" {
		t.Errorf("CorrelationIDKey = %q, want %q", CorrelationIDKey, "log_correlation_id")
	}
	if OrgIDKey != "log_org_id" {
		t.Errorf("OrgIDKey = %q, want %q", OrgIDKey, "log_org_id")
	}
}

func TestContextKey_Uniqueness(t *testing.T) {
	ctx := context.WithValue(context.Background(), CorrelationIDKey, "typed-value")

	// Go's context compares key type and value, so a raw string must not match.
	if v := ctx.Value("log_correlation_id"); v != nil {
		t.Error("raw string key should not match ContextKey type")
	}
	if v := ctx.Value(CorrelationIDKey); v != "typed-value" {
		t.Errorf("typed key value = %v, want %q", v, "typed-value")
	}
}

// ========================================
// Getter Tests
// ========================================

func TestGetCorrelationID(t *testing.T) {
	tests := []struct {
		name     string
		ctx      context.Context
		expected string
	}{
		{"with id", WithCorrelationID(context.Background(), "abc123"), "abc123"},
		{"without id", context.Background(), ""},
		{"empty id", WithCorrelationID(context.Background(), ""), ""},
		{"wrong type", context.WithValue(context.Background(), CorrelationIDKey, 12345), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCorrelationID(tt.ctx); got != tt.expected {
				t.Errorf("GetCorrelationID() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestGetOrgID(t *testing.T) {
	tests := []struct {
		name     string
		ctx      context.Context
		expected string
	}{
		{"with org", WithOrgID(context.Background(), "org_1"), "org_1"},
		{"without org", context.Background(), ""},
		{"wrong type", context.WithValue(context.Background(), OrgIDKey, struct{}{}), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetOrgID(tt.ctx); got != tt.expected {
				t.Errorf("GetOrgID() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestContextOverwrite(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "first")
	ctx = WithCorrelationID(ctx, "second")

	if got := GetCorrelationID(ctx); got != "second" {
		t.Errorf("GetCorrelationID() = %q, want %q", got, "second")
	}
}

// ========================================
// FromContext Tests
// ========================================

func TestFromContext_NilContext(t *testing.T) {
	logger := slog.Default()
	if got := FromContext(nil, logger); got != logger {
		t.Error("FromContext with nil context should return original logger")
	}
}

func TestFromContext_NoAttributes(t *testing.T) {
	logger := slog.Default()
	if got := FromContext(context.Background(), logger); got != logger {
		t.Error("FromContext without attributes should return original logger")
	}
}

func TestFromContext_WithAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Format: "json", Output: &buf})

	ctx := WithOrgID(WithCorrelationID(context.Background(), "corr-1"), "org-9")
	FromContext(ctx, logger).Info("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if entry["correlation_id"] != "corr-1" {
		t.Errorf("correlation_id = %v, want corr-1", entry["correlation_id"])
	}
	if entry["org_id"] != "org-9" {
		t.Errorf("org_id = %v, want org-9", entry["org_id"])
	}
}

// ========================================
// parseLogLevel Tests
// ========================================

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{" debug ", slog.LevelDebug},

		{"info", slog.LevelInfo},
		{"", slog.LevelInfo}, // default

		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},

		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},

		{"invalid", slog.LevelInfo},
		{"trace", slog.LevelInfo}, // unsupported, default
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLogLevel(tt.input); got != tt.expected {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

// ========================================
// New Logger Tests
// ========================================

func TestNew_Formats(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		New(Options{Format: "json", Output: &buf}).Info("msg", "k", "v")
		if !strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
			t.Errorf("expected JSON output, got %q", buf.String())
		}
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		New(Options{Format: "text", Output: &buf}).Info("msg", "k", "v")
		if !strings.Contains(buf.String(), "k=v") {
			t.Errorf("expected text output, got %q", buf.String())
		}
	})

	t.Run("non-tty writer defaults to json", func(t *testing.T) {
		var buf bytes.Buffer
		New(Options{Output: &buf}).Info("msg")
		if !strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
			t.Errorf("expected JSON output, got %q", buf.String())
		}
	})
}

func TestNew_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: "warn", Format: "json", Output: &buf})

	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn level, got %q", buf.String())
	}
	logger.Warn("shown")
	if buf.Len() == 0 {
		t.Error("warn should be logged at warn level")
	}
}

func TestSetDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := SetDefault(Options{Format: "json", Output: &buf})
	if logger == nil {
		t.Fatal("SetDefault() should return a logger")
	}
	if slog.Default() != logger {
		t.Error("slog.Default() should be the logger returned by SetDefault()")
	}
}
