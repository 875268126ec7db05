package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/config"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/report"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/storage"
)

type publishRequest struct {
	Name string `json:"name"`
}

func handleReport(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Journal == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "JOURNAL_NOT_CONFIGURED", "insight journal is not configured", false, nil)
		return
	}
	records, err := deps.Journal.List(r.Context())
	if err != nil {
		logFailure(deps, r, "compile report failed", err)
		writeError(r.Context(), w, http.StatusInternalServerError, "JOURNAL_READ_FAILED", err.Error(), true, nil)
		return
	}
	title := cfg.Reports.Title
	if override := strings.TrimSpace(r.URL.Query().Get("title")); override != "" {
		title = override
	}
	author := cfg.Reports.Author
	if override := strings.TrimSpace(r.URL.Query().Get("author")); override != "" {
		author = override
	}
	markdown := report.InsightsToMarkdown(records, title, author)
	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, http.StatusOK, map[string]any{"markdown": markdown, "insight_count": len(records)})
		return
	}
	writeMarkdown(w, http.StatusOK, markdown)
}

func handlePublishReport(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !publisherConfigured(deps, w, r) {
		return
	}
	var request publishRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &request); err != nil {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid publish request body", false, map[string]any{"details": err.Error()})
			return
		}
	}
	pub, err := deps.Publisher.Publish(r.Context(), request.Name)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, pub)
	case errors.Is(err, report.ErrNothingToPublish):
		writeError(r.Context(), w, http.StatusConflict, "NO_INSIGHTS", err.Error(), false, nil)
	case errors.Is(err, storage.ErrInvalidReportKey):
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REPORT_NAME", err.Error(), false, nil)
	default:
		logFailure(deps, r, "publish report failed", err)
		writeError(r.Context(), w, http.StatusBadGateway, "PUBLISH_FAILED", err.Error(), true, nil)
	}
}

func handleListReports(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !publisherConfigured(deps, w, r) {
		return
	}
	reports, err := deps.Publisher.List(r.Context())
	if err != nil {
		logFailure(deps, r, "list reports failed", err)
		writeError(r.Context(), w, http.StatusBadGateway, "REPORT_STORE_UNAVAILABLE", err.Error(), true, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports, "count": len(reports)})
}

func handleDownloadReport(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !publisherConfigured(deps, w, r) {
		return
	}
	day, name := r.PathValue("day"), r.PathValue("name")
	body, info, err := deps.Publisher.Open(r.Context(), day, name)
	switch {
	case errors.Is(err, storage.ErrInvalidReportKey):
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REPORT_KEY", err.Error(), false, nil)
		return
	case errors.Is(err, storage.ErrObjectNotFound):
		writeError(r.Context(), w, http.StatusNotFound, "REPORT_NOT_FOUND", "report not found", false, map[string]any{"day": day, "name": name})
		return
	case err != nil:
		logFailure(deps, r, "open report failed", err)
		writeError(r.Context(), w, http.StatusBadGateway, "REPORT_STORE_UNAVAILABLE", err.Error(), true, nil)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	if info.ETag != "" {
		w.Header().Set("ETag", strconv.Quote(strings.Trim(info.ETag, `"`)))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		logFailure(deps, r, "stream report failed", err)
	}
}

func publisherConfigured(deps Dependencies, w http.ResponseWriter, r *http.Request) bool {
	if deps.Publisher != nil {
		return true
	}
	writeError(r.Context(), w, http.StatusNotImplemented, "REPORTS_NOT_CONFIGURED", "report publishing is not enabled", false, nil)
	return false
}
