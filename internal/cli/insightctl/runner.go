// Package insightctl is the command line client for the InsightGPT API.
package insightctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Options struct {
	BaseURL    string
	APIKey     string
	SessionID  string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

// OptionsFromEnv reads INSIGHTGPT_API_URL, INSIGHTGPT_API_KEY,
// INSIGHTGPT_SESSION_ID and INSIGHTGPT_CLI_TIMEOUT. A malformed timeout is
// reported to warn and left at the default.
func OptionsFromEnv(lookup func(string) (string, bool), warn io.Writer) Options {
	get := func(key string) string {
		value, _ := lookup(key)
		return strings.TrimSpace(value)
	}
	opts := Options{
		BaseURL:   get("INSIGHTGPT_API_URL"),
		APIKey:    get("INSIGHTGPT_API_KEY"),
		SessionID: get("INSIGHTGPT_SESSION_ID"),
	}
	if raw := get("INSIGHTGPT_CLI_TIMEOUT"); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil || timeout <= 0 {
			if warn != nil {
				_, _ = fmt.Fprintf(warn, "ignoring INSIGHTGPT_CLI_TIMEOUT %q\n", raw)
			}
		} else {
			opts.Timeout = timeout
		}
	}
	return opts
}

type request struct {
	method string
	path   string
	body   any
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("insightctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "InsightGPT API base URL")
	apiKey := fs.String("api-key", defaults.APIKey, "API key for authenticated requests")
	sessionID := fs.String("session", defaults.SessionID, "chat session id")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 60*time.Second), "HTTP timeout (e.g. 60s)")
	asJSON := fs.Bool("json", false, "print raw JSON instead of markdown where both exist")
	title := fs.String("title", "", "report title override")
	author := fs.String("author", "", "report author override")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	command := strings.TrimSpace(fs.Arg(0))
	rest := fs.Args()[1:]
	session := strings.TrimSpace(*sessionID)
	markdownOut := false

	var req request
	switch command {
	case "health":
		req = request{method: http.MethodGet, path: "/v1/health"}
	case "ready":
		req = request{method: http.MethodGet, path: "/v1/ready"}
	case "schema":
		req = request{method: http.MethodGet, path: "/v1/schema"}
		if !*asJSON {
			req.path += "?format=markdown"
		}
	case "ask":
		message := strings.TrimSpace(strings.Join(rest, " "))
		if message == "" {
			_, _ = fmt.Fprintln(stderr, "ask requires a message")
			return 2
		}
		req = request{method: http.MethodPost, path: "/v1/chat", body: map[string]string{"session_id": session, "message": message}}
		markdownOut = !*asJSON
	case "history", "clear-history":
		if session == "" {
			_, _ = fmt.Fprintf(stderr, "%s requires -session\n", command)
			return 2
		}
		req = request{method: http.MethodGet, path: "/v1/sessions/" + url.PathEscape(session) + "/history"}
		if command == "clear-history" {
			req.method = http.MethodDelete
		}
	case "save-insight":
		if session == "" {
			_, _ = fmt.Fprintln(stderr, "save-insight requires -session")
			return 2
		}
		req = request{method: http.MethodPost, path: "/v1/insights", body: map[string]string{"session_id": session}}
	case "insights":
		req = request{method: http.MethodGet, path: "/v1/insights"}
	case "clear-insights":
		req = request{method: http.MethodDelete, path: "/v1/insights"}
	case "report":
		query := url.Values{}
		if strings.TrimSpace(*title) != "" {
			query.Set("title", strings.TrimSpace(*title))
		}
		if strings.TrimSpace(*author) != "" {
			query.Set("author", strings.TrimSpace(*author))
		}
		if *asJSON {
			query.Set("format", "json")
		}
		req = request{method: http.MethodGet, path: "/v1/report"}
		if encoded := query.Encode(); encoded != "" {
			req.path += "?" + encoded
		}
	case "publish":
		req = request{method: http.MethodPost, path: "/v1/report/publish"}
		if len(rest) > 0 {
			req.body = map[string]string{"name": strings.TrimSpace(rest[0])}
		}
	case "reports":
		req = request{method: http.MethodGet, path: "/v1/reports"}
	case "fetch-report":
		if len(rest) != 2 {
			_, _ = fmt.Fprintln(stderr, "fetch-report requires <day> <name>")
			return 2
		}
		req = request{method: http.MethodGet, path: "/v1/reports/" + url.PathEscape(rest[0]) + "/" + url.PathEscape(rest[1])}
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}

	endpoint := strings.TrimRight(*baseURL, "/") + req.path
	code, responseBody, err := doRequest(ctx, client, req.method, endpoint, *apiKey, req.body)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if markdownOut {
		if printChat(stdout, stderr, responseBody) {
			return 0
		}
	}
	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

// printChat writes the answer markdown to stdout and the session id to
// stderr so that stdout stays pipeable.
func printChat(stdout, stderr io.Writer, raw []byte) bool {
	var resp struct {
		SessionID string `json:"session_id"`
		Turn      int    `json:"turn"`
		Markdown  string `json:"markdown"`
		Extras    struct {
			Result *struct {
				Columns []string `json:"columns"`
				Rows    [][]any  `json:"rows"`
			} `json:"result"`
		} `json:"extras"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil || resp.SessionID == "" {
		return false
	}
	_, _ = fmt.Fprintln(stdout, resp.Markdown)
	if result := resp.Extras.Result; result != nil {
		_, _ = fmt.Fprintln(stdout)
		_, _ = fmt.Fprintln(stdout, strings.Join(result.Columns, "\t"))
		for _, row := range result.Rows {
			cells := make([]string, len(row))
			for i, cell := range row {
				cells[i] = fmt.Sprint(cell)
			}
			_, _ = fmt.Fprintln(stdout, strings.Join(cells, "\t"))
		}
	}
	_, _ = fmt.Fprintf(stderr, "session %s turn %d\n", resp.SessionID, resp.Turn)
	return true
}

func doRequest(ctx context.Context, client *http.Client, method, url, apiKey string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(apiKey) != "" {
		req.Header.Set("X-API-Key", strings.TrimSpace(apiKey))
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, raw, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: insightctl [flags] <command> [args]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health              GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready               GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  schema              GET /v1/schema")
	_, _ = fmt.Fprintln(w, "  ask <message>       POST /v1/chat")
	_, _ = fmt.Fprintln(w, "  history             GET /v1/sessions/{id}/history")
	_, _ = fmt.Fprintln(w, "  clear-history       DELETE /v1/sessions/{id}/history")
	_, _ = fmt.Fprintln(w, "  save-insight        POST /v1/insights")
	_, _ = fmt.Fprintln(w, "  insights            GET /v1/insights")
	_, _ = fmt.Fprintln(w, "  clear-insights      DELETE /v1/insights")
	_, _ = fmt.Fprintln(w, "  report              GET /v1/report")
	_, _ = fmt.Fprintln(w, "  publish [name]      POST /v1/report/publish")
	_, _ = fmt.Fprintln(w, "  reports             GET /v1/reports")
	_, _ = fmt.Fprintln(w, "  fetch-report <day> <name>")
	_, _ = fmt.Fprintln(w, "                      GET /v1/reports/{day}/{name}")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
