// Package api exposes the analytics agent over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/auth"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/config"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/insights"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/observability"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/orchestrator"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/report"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/schema"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/session"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/storage"
)

type ReadinessCheck func(ctx context.Context) error

// ChatHandler answers one chat message. *orchestrator.Router implements it.
type ChatHandler interface {
	Handle(ctx context.Context, message string) (orchestrator.Response, error)
}

// ReportPublisher uploads and serves compiled reports. *report.Publisher
// implements it.
type ReportPublisher interface {
	Publish(ctx context.Context, name string) (insights.Publication, error)
	List(ctx context.Context) ([]report.Published, error)
	Open(ctx context.Context, day, name string) (io.ReadCloser, storage.ObjectInfo, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Chat              ChatHandler
	Sessions          *session.Registry
	Journal           insights.Journal
	Publisher         ReportPublisher
	Schema            *schema.Descriptor
	Now               func() time.Time
}

func (d Dependencies) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	routes := protectedRoutes(cfg, deps)
	protected := http.NewServeMux()
	for _, rt := range routes {
		protected.Handle(rt.pattern, auth.RequireRole(rt.role, rt.handler))
	}

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	for _, rt := range routes {
		mux.Handle(rt.pattern, protectedHandler)
	}

	return observability.TraceMiddleware(observability.Instrument(deps.Logger)(mux))
}

type route struct {
	pattern string
	role    string
	handler http.HandlerFunc
}

// protectedRoutes need an API key when auth is required. Clearing the journal
// is admin only.
func protectedRoutes(cfg config.Config, deps Dependencies) []route {
	bind := func(fn func(Dependencies, http.ResponseWriter, *http.Request)) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) { fn(deps, w, r) }
	}
	return []route{
		{"GET /v1/schema", auth.RoleAnalyst, bind(handleSchema)},
		{"POST /v1/chat", auth.RoleAnalyst, bind(handleChat)},
		{"GET /v1/sessions/{id}/history", auth.RoleAnalyst, bind(handleGetHistory)},
		{"DELETE /v1/sessions/{id}/history", auth.RoleAnalyst, bind(handleClearHistory)},
		{"POST /v1/insights", auth.RoleAnalyst, bind(handleSaveInsight)},
		{"GET /v1/insights", auth.RoleAnalyst, bind(handleListInsights)},
		{"DELETE /v1/insights", auth.RoleAdmin, bind(handleClearInsights)},
		{"GET /v1/report", auth.RoleAnalyst, func(w http.ResponseWriter, r *http.Request) { handleReport(cfg, deps, w, r) }},
		{"POST /v1/report/publish", auth.RoleAnalyst, bind(handlePublishReport)},
		{"GET /v1/reports", auth.RoleAnalyst, bind(handleListReports)},
		{"GET /v1/reports/{day}/{name}", auth.RoleAnalyst, bind(handleDownloadReport)},
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// CheckStore fails when the analytical store cannot be reached.
func CheckStore(store pinger) ReadinessCheck {
	return func(ctx context.Context) error {
		if store == nil {
			return errors.New("analytical store is not configured")
		}
		if err := store.Ping(ctx); err != nil {
			return fmt.Errorf("analytical store: %w", err)
		}
		return nil
	}
}

func CheckSchema(desc *schema.Descriptor) ReadinessCheck {
	return func(_ context.Context) error {
		if desc == nil || desc.Empty() {
			return schema.ErrDescriptorNotFound
		}
		return nil
	}
}

// CheckJournal pings journals that support it and accepts the rest.
func CheckJournal(journal insights.Journal) ReadinessCheck {
	return func(ctx context.Context) error {
		checker, ok := journal.(healthChecker)
		if !ok {
			return nil
		}
		return checker.HealthCheck(ctx)
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, into any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	return decoder.Decode(into)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeMarkdown(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
