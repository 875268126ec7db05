// Package observability holds the logger, trace ids and prometheus metrics.
package observability

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/config"
)

type ctxKey string

const (
	traceIDKey   ctxKey = "trace_id"
	sessionIDKey ctxKey = "session_id"
	principalKey ctxKey = "principal"
)

// redactedAttrs never reach the log output in clear text.
var redactedAttrs = map[string]struct{}{
	"api_key":       {},
	"authorization": {},
	"x-api-key":     {},
}

func NewLogger(cfg config.Config, writer io.Writer) *slog.Logger {
	if writer == nil {
		writer = io.Discard
	}
	opts := &slog.HandlerOptions{Level: cfg.Observability.LogLevel, ReplaceAttr: redact}
	var handler slog.Handler
	if cfg.Observability.LogJSON {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}
	return slog.New(handler).With(
		slog.String("service", cfg.Service.Name),
		slog.String("profile", string(cfg.Profile)),
	)
}

func redact(_ []string, attr slog.Attr) slog.Attr {
	if _, ok := redactedAttrs[strings.ToLower(attr.Key)]; ok && attr.Value.String() != "" {
		return slog.String(attr.Key, "[redacted]")
	}
	return attr
}

func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

func TraceIDFromContext(ctx context.Context) string {
	value, ok := ctx.Value(traceIDKey).(string)
	if !ok {
		return ""
	}
	return value
}

func ContextWithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

func SessionIDFromContext(ctx context.Context) string {
	value, _ := ctx.Value(sessionIDKey).(string)
	return value
}

// ContextWithPrincipal records the authenticated caller for request logs.
func ContextWithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}

func PrincipalFromContext(ctx context.Context) string {
	value, _ := ctx.Value(principalKey).(string)
	return value
}

// RequestLogger scopes base to the trace, caller and chat session carried by
// ctx.
func RequestLogger(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	logger := base.With(slog.String("trace_id", TraceIDFromContext(ctx)))
	if principal := PrincipalFromContext(ctx); principal != "" {
		logger = logger.With(slog.String("principal", principal))
	}
	if sessionID := SessionIDFromContext(ctx); sessionID != "" {
		logger = logger.With(slog.String("session_id", sessionID))
	}
	return logger
}
