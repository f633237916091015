// Package logging provides a configured slog logger with:
// - TTY detection for human-readable vs JSON output
// - an explicit format override (text/json)
// - level selection (debug/info/warn/error)
// - source file:line info with shortened relative paths at debug level
// - request-scoped attributes carried on the context
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Options selects the handler format and level. Empty values fall back to
// TTY detection and info level.
type Options struct {
	Level  string
	Format string
	Output io.Writer
}

// New creates a new configured logger.
// Format is determined by:
// 1. opts.Format (text/json)
// 2. TTY detection (text for TTY, JSON otherwise)
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	useText := format == "text"
	if format == "" {
		if f, ok := out.(*os.File); ok {
			useText = isatty(f)
		}
	}

	level := parseLogLevel(opts.Level)

	// Get working directory for relative path calculation
	wd, _ := os.Getwd()

	hopts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.SourceKey {
				if src, ok := a.Value.Any().(*slog.Source); ok {
					if rel, err := filepath.Rel(wd, src.File); err == nil {
						src.File = rel
					} else {
						src.File = filepath.Base(src.File)
					}
				}
			}
			return a
		},
	}

	var handler slog.Handler
	if useText {
		handler = slog.NewTextHandler(out, hopts)
	} else {
		handler = slog.NewJSONHandler(out, hopts)
	}
	return slog.New(handler)
}

// SetDefault creates a new logger and sets it as the default slog logger.
// Returns the created logger for additional use.
func SetDefault(opts Options) *slog.Logger {
	logger := New(opts)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// isatty returns true if the file is a terminal.
func isatty(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// ========================================
// Context attributes
// ========================================

// ContextKey is the type of the logging context keys.
type ContextKey string

const (
	// CorrelationIDKey holds the inbound request's correlation id.
	CorrelationIDKey ContextKey = "log_correlation_id"
	// OrgIDKey holds the authenticated tenant.
	OrgIDKey         ContextKey = "log_org_id"
)

// WithCorrelationID returns a context carrying the correlation id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, id)
}

// WithOrgID returns a context carrying the org id.
func WithOrgID(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, OrgIDKey, orgID)
}

// GetCorrelationID returns the correlation id, or "" when absent.
func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return id
	}
	return ""
}

// GetOrgID returns the org id, or "" when absent.
func GetOrgID(ctx context.Context) string {
	if id, ok := ctx.Value(OrgIDKey).(string); ok {
		return id
	}
	return ""
}

// FromContext returns logger enriched with the context's correlation and org
// ids. A nil logger falls back to slog.Default().
func FromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if ctx == nil {
		return logger
	}
	if id := GetCorrelationID(ctx); id != "" {
		logger = logger.With("correlation_id", id)
	}
	if orgID := GetOrgID(ctx); orgID != "" {
		logger = logger.With("org_id", orgID)
	}
	return logger
}
