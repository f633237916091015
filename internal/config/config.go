// Package config handles application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// MinEncryptionKeyLength mirrors the vault's operator key requirement.
const MinEncryptionKeyLength = 32

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port        int
	BaseURL     string
	ClientURL   string
	Environment string // "development" or "production"

	// Database
	DatabaseURL    string
	TursoURL       string // optional embedded replica primary
	TursoAuthToken string

	// Credential vault operator key; empty disables credential operations.
	EncryptionKey string

	// Authentication
	JWTSecret string

	// Stripe
	StripeSecretKey          string
	StripeWebhookSecret      string
	StripeSetupFeePriceID    string
	WebhookRetryFailedEvents bool

	// CORS
	CORSOrigins []string

	// Object Storage (S3-compatible) for evidence exports
	StorageEnabled   bool
	StorageEndpoint  string
	StorageRegion    string
	StorageBucket    string
	StorageAccessKey string
	StorageSecretKey string

	// Worker
	WorkerEnabled             bool
	WorkerPollInterval        time.Duration // How often to poll for due cascade jobs (default 10s)
	WorkerConcurrency         int           // Number of concurrent delivery loops (default 2)
	WorkerStaleAfter          time.Duration // IN_PROGRESS jobs older than this are reclaimed (0 = worker default)
	WorkerShutdownGracePeriod time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables. Malformed values are
// collected and returned together.
func Load() (*Config, error) {
	var errs []error

	cfg := &Config{
		Port:        getEnvInt("PORT", 4242),
		BaseURL:     getEnv("BASE_URL", "http://localhost:4242"),
		ClientURL:   getEnv("CLIENT_URL", "http://localhost:5173"),
		Environment: strings.ToLower(getEnv("APP_ENV", "development")),

		DatabaseURL:    getEnv("DATABASE_URL", "file:erasure.db"),
		TursoURL:       getEnv("TURSO_URL", ""),
		TursoAuthToken: getEnv("TURSO_AUTH_TOKEN", ""),

		EncryptionKey: getEnvWithFallback("ENCRYPTION_KEY", "APP_ENCRYPTION_KEY", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),

		StripeSecretKey:          getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret:      getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripeSetupFeePriceID:    getEnv("STRIPE_SETUP_FEE_PRICE_ID", ""),
		WebhookRetryFailedEvents: getEnvBool("WEBHOOK_RETRY_FAILED_EVENTS", false),

		StorageEndpoint:  getEnv("STORAGE_ENDPOINT", ""),
		StorageRegion:    getEnv("STORAGE_REGION", "auto"),
		StorageBucket:    getEnv("STORAGE_BUCKET", ""),
		StorageAccessKey: getEnv("STORAGE_ACCESS_KEY_ID", ""),
		StorageSecretKey: getEnv("STORAGE_SECRET_ACCESS_KEY", ""),

		WorkerEnabled:     getEnvBool("WORKER_ENABLED", true),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 2),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", ""),
	}

	cfg.CORSOrigins = getEnvSlice("CORS_ORIGINS", []string{cfg.ClientURL})

	// Storage needs an explicit switch plus a bucket
	cfg.StorageEnabled = getEnvBool("STORAGE_ENABLED", false) && cfg.StorageBucket != ""

	var err error
	if cfg.WorkerPollInterval, err = parseEnvDuration("WORKER_POLL_INTERVAL", 10*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.WorkerStaleAfter, err = parseEnvDuration("WORKER_STALE_AFTER", 0); err != nil {
		errs = append(errs, err)
	}
	if cfg.WorkerShutdownGracePeriod, err = parseEnvDuration("WORKER_SHUTDOWN_GRACE_PERIOD", 30*time.Second); err != nil {
		errs = append(errs, err)
	}

	if err := cfg.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	var errs []error
	if c.EncryptionKey != "" && len(c.EncryptionKey) < MinEncryptionKeyLength {
		errs = append(errs, fmt.Errorf("ENCRYPTION_KEY must be at least %d characters", MinEncryptionKeyLength))
	}
	if c.IsProduction() && c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required in production"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d is out of range", c.Port))
	}
	if c.WorkerConcurrency < 1 {
		errs = append(errs, errors.New("WORKER_CONCURRENCY must be at least 1"))
	}
	if c.WorkerPollInterval <= 0 {
		errs = append(errs, errors.New("WORKER_POLL_INTERVAL must be positive"))
	}
	if c.WorkerStaleAfter < 0 {
		errs = append(errs, errors.New("WORKER_STALE_AFTER must not be negative"))
	}
	return errors.Join(errs...)
}

// IsProduction returns true outside development.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// VaultEnabled returns true if an encryption key is configured.
func (c *Config) VaultEnabled() bool {
	return c.EncryptionKey != ""
}

// StripeEnabled returns true if the payment provider is configured.
func (c *Config) StripeEnabled() bool {
	return c.StripeSecretKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "true" || lower == "1" || lower == "yes"
	}
	return defaultValue
}

// parseEnvDuration returns an error for a set but malformed duration rather
// than silently using the default.
func parseEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, value)
	}
	return d, nil
}

func getEnvSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvWithFallback(primary, fallback, defaultValue string) string {
	if value := os.Getenv(primary); value != "" {
		return value
	}
	if value := os.Getenv(fallback); value != "" {
		return value
	}
	return defaultValue
}
