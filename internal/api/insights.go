package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/insights"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/observability"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/orchestrator"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/report"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/session"
)

// saveInsightRequest either names a session, whose latest successful answer
// is saved, or carries the insight fields directly.
type saveInsightRequest struct {
	SessionID  string `json:"session_id"`
	Question   string `json:"question"`
	Summary    string `json:"summary"`
	SQL        string `json:"sql"`
	SampleRows int    `json:"sample_rows"`
}

type insightsResponse struct {
	Count    int               `json:"count"`
	Insights []insights.Record `json:"insights"`
}

func handleSaveInsight(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Journal == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "JOURNAL_NOT_CONFIGURED", "insight journal is not configured", false, nil)
		return
	}
	var request saveInsightRequest
	if err := decodeJSON(w, r, &request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid insight request body", false, map[string]any{"details": err.Error()})
		return
	}

	var record insights.Record
	source := observability.SourceExplicit
	sessionID := strings.TrimSpace(request.SessionID)
	switch {
	case sessionID != "":
		if deps.Sessions == nil {
			writeError(r.Context(), w, http.StatusNotImplemented, "SESSIONS_NOT_CONFIGURED", "session registry is not configured", false, nil)
			return
		}
		if err := session.ValidateID(sessionID); err != nil {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_SESSION_ID", err.Error(), false, nil)
			return
		}
		history, ok := deps.Sessions.Get(sessionID)
		if !ok {
			writeError(r.Context(), w, http.StatusNotFound, "SESSION_NOT_FOUND", "session not found", false, map[string]any{"session_id": sessionID})
			return
		}
		turn, ok := latestAnswer(history.Turns())
		if !ok {
			writeError(r.Context(), w, http.StatusConflict, "NO_ANSWER_TO_SAVE", "session has no successful analytics answer", false, map[string]any{"session_id": sessionID})
			return
		}
		rows := 0
		if turn.Extras.Result != nil {
			rows = turn.Extras.Result.RowCount()
		}
		source = observability.SourceSession
		record = insights.NewRecord(turn.Question, report.Summarize(turn.Extras.Result, turn.Question), turn.Extras.SQL, rows, deps.now())
	case strings.TrimSpace(request.Question) != "":
		record = insights.NewRecord(request.Question, request.Summary, request.SQL, request.SampleRows, deps.now())
	default:
		writeError(r.Context(), w, http.StatusBadRequest, "INSIGHT_REQUIRED", "session_id or question is required", false, nil)
		return
	}

	saved, err := deps.Journal.Add(r.Context(), record)
	if err != nil {
		if errors.Is(err, insights.ErrEmptyQuestion) {
			writeError(r.Context(), w, http.StatusBadRequest, "INSIGHT_REQUIRED", err.Error(), false, nil)
			return
		}
		logFailure(deps, r, "save insight failed", err)
		writeError(r.Context(), w, http.StatusInternalServerError, "JOURNAL_WRITE_FAILED", err.Error(), true, nil)
		return
	}
	observability.ObserveInsightSaved(source)
	writeJSON(w, http.StatusCreated, saved)
}

// latestAnswer returns the newest sql_query turn that executed without error.
func latestAnswer(turns []session.Turn) (session.Turn, bool) {
	for i := len(turns) - 1; i >= 0; i-- {
		turn := turns[i]
		if turn.Extras.Intent == orchestrator.IntentSQLQuery && turn.Extras.SQL != "" && turn.Extras.Error == "" {
			return turn, true
		}
	}
	return session.Turn{}, false
}

func handleListInsights(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Journal == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "JOURNAL_NOT_CONFIGURED", "insight journal is not configured", false, nil)
		return
	}
	records, err := deps.Journal.List(r.Context())
	if err != nil {
		logFailure(deps, r, "list insights failed", err)
		writeError(r.Context(), w, http.StatusInternalServerError, "JOURNAL_READ_FAILED", err.Error(), true, nil)
		return
	}
	writeJSON(w, http.StatusOK, insightsResponse{Count: len(records), Insights: records})
}

func handleClearInsights(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Journal == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "JOURNAL_NOT_CONFIGURED", "insight journal is not configured", false, nil)
		return
	}
	if err := deps.Journal.Clear(r.Context()); err != nil {
		logFailure(deps, r, "clear insights failed", err)
		writeError(r.Context(), w, http.StatusInternalServerError, "JOURNAL_WRITE_FAILED", err.Error(), true, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cleared": true})
}

func logFailure(deps Dependencies, r *http.Request, msg string, err error) {
	observability.RequestLogger(r.Context(), deps.Logger).ErrorContext(r.Context(), msg, slog.Any("error", err))
}
