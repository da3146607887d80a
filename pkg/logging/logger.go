// Package logging provides structured JSON logging for the lander server and
// tools, with correlation IDs carried through context.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

// LevelEnv names the environment variable that selects the log level.
const LevelEnv = "LANDER_LOG_LEVEL"

// Logger wraps slog.Logger with context-aware helpers.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a JSON logger on stdout. The level comes from
// LANDER_LOG_LEVEL (DEBUG, INFO, WARN, ERROR) and defaults to INFO.
func NewLogger() *Logger {
	return NewLoggerWithWriter(os.Stdout, getLogLevelFromEnv())
}

// NewLoggerWithWriter creates a JSON logger writing to w at the given level.
func NewLoggerWithWriter(w io.Writer, level slog.Level) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: sanitizeAttributes,
	})
	return &Logger{slog.New(handler)}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return NewLoggerWithWriter(io.Discard, slog.LevelError+4)
}

// With returns a logger that adds args to every entry.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{l.Logger.With(args...)}
}

// ForSession returns a logger tagged with a session and profile.
func (l *Logger) ForSession(sessionID, profile string) *Logger {
	return l.With("session_id", sessionID, "profile", profile)
}

// LogWithContext logs msg, adding the context's correlation ID when present.
func (l *Logger) LogWithContext(ctx context.Context, level slog.Level, msg string, args ...any) {
	if correlationID := GetCorrelationID(ctx); correlationID != "" {
		args = append(args, "correlation_id", correlationID)
	}
	l.Log(ctx, level, msg, args...)
}

// Info logs an informational message with context.
func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.LogWithContext(ctx, slog.LevelInfo, msg, args...)
}

// Warn logs a warning message with context.
func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.LogWithContext(ctx, slog.LevelWarn, msg, args...)
}

// Error logs an error message with context.
func (l *Logger) Error(ctx context.Context, msg string, err error, args ...any) {
	if err != nil {
		args = append(args, "error", err.Error())
	}
	l.LogWithContext(ctx, slog.LevelError, msg, args...)
}

// Debug logs a debug message with context.
func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.LogWithContext(ctx, slog.LevelDebug, msg, args...)
}

type correlationIDKey struct{}

// WithCorrelationID stores a correlation ID in ctx, generating one when id is empty.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	if correlationID == "" {
		correlationID = GenerateCorrelationID()
	}
	return context.WithValue(ctx, correlationIDKey{}, correlationID)
}

// GetCorrelationID returns the context's correlation ID, or "".
func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey{}).(string); ok {
		return id
	}
	return ""
}

// GenerateCorrelationID returns a new random UUID string.
func GenerateCorrelationID() string {
	return uuid.NewString()
}

func getLogLevelFromEnv() slog.Level {
	return ParseLevel(os.Getenv(LevelEnv))
}

// ParseLevel maps a level name to a slog level, defaulting to INFO.
func ParseLevel(name string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var sensitiveKeys = []string{
	"password", "passwd", "pwd",
	"token", "auth", "secret",
	"private", "cookie", "api_key",
}

// sanitizeAttributes masks attributes whose key looks like a credential.
func sanitizeAttributes(groups []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	for _, sensitive := range sensitiveKeys {
		if strings.Contains(key, sensitive) {
			return slog.Attr{Key: a.Key, Value: slog.StringValue("[REDACTED]")}
		}
	}
	return a
}

// WrapError wraps err with a formatted context message. It returns nil for a nil err.
func WrapError(err error, context string, args ...any) error {
	if err == nil {
		return nil
	}
	if len(args) > 0 {
		context = fmt.Sprintf(context, args...)
	}
	return fmt.Errorf("%s: %w", context, err)
}
