package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

// ========================================
// Helper Functions Tests
// ========================================

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_GET_ENV", "test_value")
	defer os.Unsetenv("TEST_GET_ENV")

	t.Run("existing env var", func(t *testing.T) {
		if got := getEnv("TEST_GET_ENV", "default"); got != "test_value" {
			t.Errorf("getEnv() = %q, want %q", got, "test_value")
		}
	})

	t.Run("missing env var", func(t *testing.T) {
		if got := getEnv("TEST_MISSING_VAR", "default_value"); got != "default_value" {
			t.Errorf("getEnv() = %q, want %q", got, "default_value")
		}
	})

	t.Run("empty env var", func(t *testing.T) {
		os.Setenv("TEST_EMPTY_VAR", "")
		defer os.Unsetenv("TEST_EMPTY_VAR")

		if got := getEnv("TEST_EMPTY_VAR", "default"); got != "default" {
			t.Errorf("getEnv() = %q, want %q (empty should use default)", got, "default")
		}
	})
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		def      int
		expected int
	}{
		{"valid integer", "42", 0, 42},
		{"invalid integer", "not-a-number", 99, 99},
		{"missing", "", 100, 100},
		{"negative integer", "-5", 0, -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_INT", tt.value)
			if got := getEnvInt("TEST_INT", tt.def); got != tt.expected {
				t.Errorf("getEnvInt() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		value    string
		def      bool
		expected bool
	}{
		{"true", false, true},
		{"TRUE", false, true},
		{"1", false, true},
		{"yes", false, true},
		{"false", true, false},
		{"0", true, false},
		{"no", true, false},
		{"anything", true, false},
		{"", true, true},
		{"", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("TEST_BOOL", tt.value)
			if got := getEnvBool("TEST_BOOL", tt.def); got != tt.expected {
				t.Errorf("getEnvBool(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.expected)
			}
		})
	}
}

func TestParseEnvDuration(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		t.Setenv("TEST_DURATION", "90s")
		got, err := parseEnvDuration("TEST_DURATION", time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != 90*time.Second {
			t.Errorf("parseEnvDuration() = %v, want 90s", got)
		}
	})

	t.Run("missing uses default", func(t *testing.T) {
		t.Setenv("TEST_DURATION", "")
		got, err := parseEnvDuration("TEST_DURATION", 5*time.Minute)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != 5*time.Minute {
			t.Errorf("parseEnvDuration() = %v, want 5m", got)
		}
	})

	t.Run("invalid is an error", func(t *testing.T) {
		t.Setenv("TEST_DURATION", "soon")
		if _, err := parseEnvDuration("TEST_DURATION", time.Second); err == nil {
			t.Error("expected error for malformed duration")
		}
	})
}

func TestGetEnvSlice(t *testing.T) {
	t.Run("comma separated with spaces", func(t *testing.T) {
		t.Setenv("TEST_SLICE", "http://a.test, http://b.test ,,")
		got := getEnvSlice("TEST_SLICE", nil)
		if len(got) != 2 || got[0] != "http://a.test" || got[1] != "http://b.test" {
			t.Errorf("getEnvSlice() = %v", got)
		}
	})

	t.Run("missing uses default", func(t *testing.T) {
		t.Setenv("TEST_SLICE", "")
		got := getEnvSlice("TEST_SLICE", []string{"x"})
		if len(got) != 1 || got[0] != "x" {
			t.Errorf("getEnvSlice() = %v, want [x]", got)
		}
	})
}

func TestGetEnvWithFallback(t *testing.T) {
	t.Run("primary wins", func(t *testing.T) {
		t.Setenv("TEST_PRIMARY", "p")
		t.Setenv("TEST_FALLBACK", "f")
		if got := getEnvWithFallback("TEST_PRIMARY", "TEST_FALLBACK", "d"); got != "p" {
			t.Errorf("got %q, want p", got)
		}
	})

	t.Run("fallback used", func(t *testing.T) {
		t.Setenv("TEST_PRIMARY", "")
		t.Setenv("TEST_FALLBACK", "f")
		if got := getEnvWithFallback("TEST_PRIMARY", "TEST_FALLBACK", "d"); got != "f" {
			t.Errorf("got %q, want f", got)
		}
	})

	t.Run("default used", func(t *testing.T) {
		t.Setenv("TEST_PRIMARY", "")
		t.Setenv("TEST_FALLBACK", "")
		if got := getEnvWithFallback("TEST_PRIMARY", "TEST_FALLBACK", "d"); got != "d" {
			t.Errorf("got %q, want d", got)
		}
	})
}

// ========================================
// Load Tests
// ========================================

// clearEnv blanks every variable Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "BASE_URL", "CLIENT_URL", "APP_ENV", "DATABASE_URL", "TURSO_URL", "TURSO_AUTH_TOKEN",
		"ENCRYPTION_KEY", "APP_ENCRYPTION_KEY", "JWT_SECRET",
		"STRIPE_SECRET_KEY", "STRIPE_WEBHOOK_SECRET", "STRIPE_SETUP_FEE_PRICE_ID", "WEBHOOK_RETRY_FAILED_EVENTS",
		"CORS_ORIGINS", "STORAGE_ENABLED", "STORAGE_ENDPOINT", "STORAGE_REGION", "STORAGE_BUCKET",
		"STORAGE_ACCESS_KEY_ID", "STORAGE_SECRET_ACCESS_KEY",
		"WORKER_ENABLED", "WORKER_POLL_INTERVAL", "WORKER_CONCURRENCY", "WORKER_SHUTDOWN_GRACE_PERIOD",
		"LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != 4242 {
		t.Errorf("Port = %d, want 4242", cfg.Port)
	}
	if cfg.DatabaseURL != "file:erasure.db" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.VaultEnabled() {
		t.Error("vault should be disabled without ENCRYPTION_KEY")
	}
	if cfg.WebhookRetryFailedEvents {
		t.Error("WebhookRetryFailedEvents should default to false")
	}
	if !cfg.WorkerEnabled || cfg.WorkerConcurrency != 2 || cfg.WorkerPollInterval != 10*time.Second {
		t.Errorf("worker defaults = %v/%d/%v", cfg.WorkerEnabled, cfg.WorkerConcurrency, cfg.WorkerPollInterval)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != cfg.ClientURL {
		t.Errorf("CORSOrigins = %v, want [%s]", cfg.CORSOrigins, cfg.ClientURL)
	}
	if cfg.StorageEnabled {
		t.Error("storage should be disabled by default")
	}
}

func TestLoad_EncryptionKey(t *testing.T) {
	tests := []struct {
		name    string
		primary string
		legacy  string
		wantErr bool
		wantKey string
	}{
		{"absent is allowed", "", "", false, ""},
		{"short is rejected", "too-short", "", true, ""},
		{"valid primary", strings.Repeat("k", 32), "", false, strings.Repeat("k", 32)},
		{"legacy fallback", "", strings.Repeat("l", 40), false, strings.Repeat("l", 40)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("ENCRYPTION_KEY", tt.primary)
			t.Setenv("APP_ENCRYPTION_KEY", tt.legacy)

			cfg, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.EncryptionKey != tt.wantKey {
				t.Errorf("EncryptionKey = %q, want %q", cfg.EncryptionKey, tt.wantKey)
			}
		})
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("WORKER_POLL_INTERVAL", "every-now-and-then")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for malformed WORKER_POLL_INTERVAL")
	}
	if !strings.Contains(err.Error(), "WORKER_POLL_INTERVAL") {
		t.Errorf("error should name the variable, got %v", err)
	}
}

func TestLoad_ProductionRequiresJWTSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without JWT_SECRET in production")
	}

	t.Setenv("JWT_SECRET", "prod-secret")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.IsProduction() {
		t.Error("IsProduction() = false, want true")
	}
}

func TestLoad_Storage(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_ENABLED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.StorageEnabled {
		t.Error("storage needs a bucket to be enabled")
	}

	t.Setenv("STORAGE_BUCKET", "evidence")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.StorageEnabled || cfg.StorageRegion != "auto" {
		t.Errorf("storage = %v region %q", cfg.StorageEnabled, cfg.StorageRegion)
	}
}

func TestConfig_StripeEnabled(t *testing.T) {
	if (&Config{}).StripeEnabled() {
		t.Error("StripeEnabled() = true without a secret key")
	}
	if !(&Config{StripeSecretKey: "sk_test"}).StripeEnabled() {
		t.Error("StripeEnabled() = false with a secret key")
	}
}
