package observability

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/scriptassembler/internal/logfields"
)

// LogContext holds structured logging context information for an assembly session.
type LogContext struct {
	SessionID string
	Stage     string
	Unit      string
	Artifact  string
}

type logContextKeyType string

const logContextKey logContextKeyType = "log-context"

// WithSessionID adds a session ID to the context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	lc := extractLogContext(ctx)
	lc.SessionID = sessionID
	return context.WithValue(ctx, logContextKey, lc)
}

// WithStage adds a stage name to the context.
func WithStage(ctx context.Context, stage string) context.Context {
	lc := extractLogContext(ctx)
	lc.Stage = stage
	return context.WithValue(ctx, logContextKey, lc)
}

// WithUnit adds a build unit name to the context.
func WithUnit(ctx context.Context, unit string) context.Context {
	lc := extractLogContext(ctx)
	lc.Unit = unit
	return context.WithValue(ctx, logContextKey, lc)
}

// WithArtifact adds an artifact name to the context.
func WithArtifact(ctx context.Context, artifact string) context.Context {
	lc := extractLogContext(ctx)
	lc.Artifact = artifact
	return context.WithValue(ctx, logContextKey, lc)
}

func extractLogContext(ctx context.Context) LogContext {
	if lc, ok := ctx.Value(logContextKey).(LogContext); ok {
		return lc
	}
	return LogContext{}
}

func getLogAttrs(ctx context.Context) []slog.Attr {
	lc := extractLogContext(ctx)
	attrs := []slog.Attr{}

	if lc.SessionID != "" {
		attrs = append(attrs, logfields.Session(lc.SessionID))
	}
	if lc.Stage != "" {
		attrs = append(attrs, logfields.Stage(lc.Stage))
	}
	if lc.Artifact != "" {
		attrs = append(attrs, logfields.Artifact(lc.Artifact))
	}
	if lc.Unit != "" {
		attrs = append(attrs, logfields.Unit(lc.Unit))
	}

	return attrs
}

// InfoContext logs an info message with context information.
func InfoContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	logAttrs(ctx, slog.LevelInfo, msg, attrs)
}

// WarnContext logs a warning message with context information.
func WarnContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	logAttrs(ctx, slog.LevelWarn, msg, attrs)
}

// ErrorContext logs an error message with context information.
func ErrorContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	logAttrs(ctx, slog.LevelError, msg, attrs)
}

// DebugContext logs a debug message with context information.
func DebugContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	logAttrs(ctx, slog.LevelDebug, msg, attrs)
}

func logAttrs(ctx context.Context, level slog.Level, msg string, attrs []slog.Attr) {
	all := append(getLogAttrs(ctx), attrs...)
	slog.LogAttrs(ctx, level, msg, all...)
}

// GetContext returns the structured log context from the provided context.
func GetContext(ctx context.Context) LogContext {
	return extractLogContext(ctx)
}
