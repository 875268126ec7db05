package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/observability"
)

type contextKey struct{}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	ctx = context.WithValue(ctx, contextKey{}, identity)
	return observability.ContextWithPrincipal(ctx, identity.Principal)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(contextKey{}).(Identity)
	return identity, ok
}

// Middleware resolves the caller from X-API-Key or a bearer token and stores
// the identity on the request context.
func Middleware(logger *slog.Logger, validator APIKeyValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey, source := credential(r)
			if apiKey == "" {
				reject(w, r, http.StatusUnauthorized, observability.AuthMissingKey, "missing API key")
				return
			}
			identity, ok := validator.Validate(r.Context(), apiKey)
			if !ok {
				observability.RequestLogger(r.Context(), logger).WarnContext(r.Context(), "authentication failed",
					slog.String("credential", source),
					slog.String("route", r.Method+" "+r.URL.Path),
				)
				reject(w, r, http.StatusUnauthorized, observability.AuthInvalidKey, "invalid API key")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// RequireRole rejects authenticated callers without role. Requests with no
// identity pass through, which is the case when auth is disabled.
func RequireRole(role string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identity, ok := IdentityFromContext(r.Context()); ok && !identity.HasRole(role) {
			reject(w, r, http.StatusForbidden, observability.AuthForbidden, "role "+role+" is required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// credential returns the presented key and the header it came from. The
// bearer scheme name is case-insensitive.
func credential(r *http.Request) (string, string) {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key, "x-api-key"
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(token), "bearer"
	}
	return "", ""
}

func reject(w http.ResponseWriter, r *http.Request, status int, reason, message string) {
	observability.ObserveAuthRejection(reason)
	code := "UNAUTHORIZED"
	if status == http.StatusForbidden {
		code = "FORBIDDEN"
	}
	w.Header().Set("Content-Type", "application/json")
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="insightgpt"`)
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  false,
		"context":    map[string]any{"reason": reason},
		"trace_id":   observability.TraceIDFromContext(r.Context()),
	})
}
