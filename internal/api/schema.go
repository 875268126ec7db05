package api

import (
	"bytes"
	"net/http"

	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/schema"
)

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Schema == nil || deps.Schema.Empty() {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "SCHEMA_NOT_FOUND", schema.ErrDescriptorNotFound.Error(), false, nil)
		return
	}
	if r.URL.Query().Get("format") == "markdown" {
		var buf bytes.Buffer
		if err := schema.WriteMarkdown(&buf, *deps.Schema); err != nil {
			writeError(r.Context(), w, http.StatusInternalServerError, "SCHEMA_RENDER_FAILED", err.Error(), false, nil)
			return
		}
		writeMarkdown(w, http.StatusOK, buf.String())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tables": len(deps.Schema.Tables),
		"schema": *deps.Schema,
	})
}
