package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// TracedLogger is a structured logger with automatic trace correlation.
// It wraps slog.Logger and adds the component name, the request id and the
// OpenTelemetry trace and span ids found in the context.
type TracedLogger struct {
	logger          *slog.Logger
	component       string
	redactSensitive bool
}

// NewTracedLogger creates a new TracedLogger with the specified handler.
//
// Parameters:
//   - handler: The slog.Handler to use for formatting and outputting logs
//   - component: The name of the component producing logs
func NewTracedLogger(handler slog.Handler, component string) *TracedLogger {
	return &TracedLogger{
		logger:          slog.New(handler),
		component:       component,
		redactSensitive: true,
	}
}

// NewLogger builds a TracedLogger writing to w according to cfg.
func NewLogger(cfg LoggingConfig, w io.Writer) (*TracedLogger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "json":
		handler = NewJSONHandler(w, level)
	case "text":
		handler = NewTextHandler(w, level)
	default:
		return nil, fmt.Errorf("invalid log format: %s (must be json or text)", cfg.Format)
	}
	return NewTracedLogger(handler, "cogex-adapter"), nil
}

// NopLogger returns a logger that discards everything.
func NopLogger() *TracedLogger {
	return NewTracedLogger(slog.NewTextHandler(io.Discard, nil), "")
}

// Named returns a copy of the logger tagged with a different component name.
func (l *TracedLogger) Named(component string) *TracedLogger {
	cp := *l
	cp.component = component
	return &cp
}

// With returns a copy of the logger that adds args to every entry.
func (l *TracedLogger) With(args ...any) *TracedLogger {
	cp := *l
	if l.redactSensitive {
		args = redactSensitiveData(args)
	}
	cp.logger = l.logger.With(args...)
	return &cp
}

// Slog returns the underlying slog.Logger.
func (l *TracedLogger) Slog() *slog.Logger {
	return l.logger
}

// Enabled reports whether entries at level would be written.
func (l *TracedLogger) Enabled(ctx context.Context, level slog.Level) bool {
	return l.logger.Enabled(ctx, level)
}

// Debug logs a debug-level message with automatic trace correlation.
// Debug logs include all fields without redaction.
func (l *TracedLogger) Debug(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).Debug(msg, args...)
}

// Info logs an info-level message with automatic trace correlation.
// Sensitive data in args is redacted at info level and above.
func (l *TracedLogger) Info(ctx context.Context, msg string, args ...any) {
	if l.redactSensitive {
		args = redactSensitiveData(args)
	}
	l.WithContext(ctx).Info(msg, args...)
}

// Warn logs a warning-level message with automatic trace correlation.
func (l *TracedLogger) Warn(ctx context.Context, msg string, args ...any) {
	if l.redactSensitive {
		args = redactSensitiveData(args)
	}
	l.WithContext(ctx).Warn(msg, args...)
}

// Error logs an error-level message with automatic trace correlation.
func (l *TracedLogger) Error(ctx context.Context, msg string, args ...any) {
	if l.redactSensitive {
		args = redactSensitiveData(args)
	}
	l.WithContext(ctx).Error(msg, args...)
}

// WithContext creates a new slog.Logger with correlation fields added:
// component, request_id, and trace_id/span_id from the active span.
func (l *TracedLogger) WithContext(ctx context.Context) *slog.Logger {
	logger := l.logger

	if l.component != "" {
		logger = logger.With(slog.String("component", l.component))
	}
	if id := RequestIDFromContext(ctx); id != "" {
		logger = logger.With(slog.String("request_id", id))
	}

	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if spanCtx.IsValid() {
		logger = logger.With(
			slog.String("trace_id", spanCtx.TraceID().String()),
			slog.String("span_id", spanCtx.SpanID().String()),
		)
	}

	return logger
}

// ParseLevel converts a level name (debug, info, warn, error) to slog.Level.
// The empty string means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", s)
	}
}

// NewJSONHandler creates a new JSON log handler with the specified output and level.
func NewJSONHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
}

// NewTextHandler creates a new text log handler with the specified output and level.
func NewTextHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})
}

// sensitiveFields are normalized (lower case, no underscores) key names
// whose values never reach the log output.
var sensitiveFields = map[string]bool{
	"password":      true,
	"apikey":        true,
	"secret":        true,
	"token":         true,
	"credential":    true,
	"authorization": true,
}

// redactSensitiveData replaces the values of sensitive keys with "[REDACTED]".
func redactSensitiveData(args []any) []any {
	if len(args)%2 != 0 {
		return args
	}

	var redacted []any
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		if sensitiveFields[strings.ToLower(strings.ReplaceAll(key, "_", ""))] {
			if redacted == nil {
				redacted = make([]any, len(args))
				copy(redacted, args)
			}
			redacted[i+1] = "[REDACTED]"
		}
	}
	if redacted == nil {
		return args
	}
	return redacted
}
