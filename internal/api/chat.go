package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/generation"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/nl2sql"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/observability"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/orchestrator"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/query"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/schema"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/session"
)

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID string              `json:"session_id"`
	Turn      int                 `json:"turn"`
	Markdown  string              `json:"markdown"`
	Extras    orchestrator.Extras `json:"extras"`
}

type historyResponse struct {
	SessionID string         `json:"session_id"`
	Turns     []session.Turn `json:"turns"`
}

func handleChat(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Chat == nil || deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CHAT_NOT_CONFIGURED", "chat dependencies are not configured", false, nil)
		return
	}

	var request chatRequest
	if err := decodeJSON(w, r, &request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid chat request body", false, map[string]any{"details": err.Error()})
		return
	}
	message := strings.TrimSpace(request.Message)
	if message == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "MESSAGE_REQUIRED", "message is required", false, nil)
		return
	}

	sessionID, history, err := deps.Sessions.Open(strings.TrimSpace(request.SessionID))
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_SESSION_ID", err.Error(), false, nil)
		return
	}

	ctx := observability.ContextWithSessionID(r.Context(), sessionID)
	response, err := deps.Chat.Handle(ctx, message)
	if err != nil {
		status, code, retryable := classifyChatError(err)
		observability.RequestLogger(ctx, deps.Logger).ErrorContext(ctx, "chat message failed",
			slog.String("error_code", code),
			slog.Any("error", err),
		)
		writeError(r.Context(), w, status, code, err.Error(), retryable, map[string]any{"session_id": sessionID})
		return
	}

	history.Append(session.Turn{
		Question: message,
		Markdown: response.Markdown,
		Extras:   response.Extras,
		At:       deps.now().UTC(),
	})
	writeJSON(w, http.StatusOK, chatResponse{
		SessionID: sessionID,
		Turn:      history.Len(),
		Markdown:  response.Markdown,
		Extras:    response.Extras,
	})
}

func classifyChatError(err error) (status int, code string, retryable bool) {
	switch {
	case errors.Is(err, orchestrator.ErrEmptyMessage), errors.Is(err, nl2sql.ErrEmptyQuestion):
		return http.StatusBadRequest, "MESSAGE_REQUIRED", false
	case errors.Is(err, schema.ErrDescriptorNotFound):
		return http.StatusServiceUnavailable, "SCHEMA_NOT_FOUND", false
	case errors.Is(err, query.ErrStoreNotFound):
		return http.StatusServiceUnavailable, "STORE_NOT_FOUND", false
	case errors.Is(err, generation.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "GENERATION_TIMEOUT", true
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "REQUEST_CANCELLED", true
	default:
		return http.StatusBadGateway, "GENERATION_FAILED", true
	}
}

func handleGetHistory(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	history, id, ok := lookupSession(deps, w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{SessionID: id, Turns: history.Turns()})
}

func handleClearHistory(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	_, id, ok := lookupSession(deps, w, r)
	if !ok {
		return
	}
	deps.Sessions.Clear(id)
	writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "cleared": true})
}

func lookupSession(deps Dependencies, w http.ResponseWriter, r *http.Request) (*session.History, string, bool) {
	if deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SESSIONS_NOT_CONFIGURED", "session registry is not configured", false, nil)
		return nil, "", false
	}
	id := r.PathValue("id")
	if err := session.ValidateID(id); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_SESSION_ID", err.Error(), false, nil)
		return nil, "", false
	}
	history, ok := deps.Sessions.Get(id)
	if !ok {
		writeError(r.Context(), w, http.StatusNotFound, "SESSION_NOT_FOUND", "session not found", false, map[string]any{"session_id": id})
		return nil, "", false
	}
	return history, id, true
}
