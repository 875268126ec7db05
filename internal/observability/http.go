package observability

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	traceHeader     = "X-Trace-ID"
	maxTraceIDBytes = 128
)

// TraceMiddleware adopts the caller's X-Trace-ID or mints one, and echoes it
// on the response.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := strings.TrimSpace(r.Header.Get(traceHeader))
		if traceID == "" || len(traceID) > maxTraceIDBytes {
			traceID = newTraceID()
		}
		w.Header().Set(traceHeader, traceID)
		next.ServeHTTP(w, r.WithContext(ContextWithTraceID(r.Context(), traceID)))
	})
}

// Instrument counts and times every request by route pattern and, when logger
// is set, writes one access line. Probes log at debug and server errors at
// warn.
func Instrument(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			elapsed := time.Since(start)

			// The mux fills r.Pattern while serving, so read it afterwards.
			route := routeLabel(r)
			status := strconv.Itoa(rec.status)
			httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
			httpRequestDurationSeconds.WithLabelValues(r.Method, route, status).Observe(elapsed.Seconds())

			if logger == nil {
				return
			}
			logger.LogAttrs(r.Context(), accessLevel(r.Method, route, rec.status), "http_request",
				slog.String("trace_id", TraceIDFromContext(r.Context())),
				slog.String("method", r.Method),
				slog.String("route", route),
				slog.Int("status", rec.status),
				slog.Int64("duration_ms", elapsed.Milliseconds()),
				slog.Int("bytes", rec.bytes),
			)
		})
	}
}

func accessLevel(method, route string, status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelWarn
	case method == http.MethodGet && (route == "/v1/health" || route == "/v1/ready" || route == "/v1/metrics"):
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

type responseRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (r *responseRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(body []byte) (int, error) {
	r.wroteHeader = true
	n, err := r.ResponseWriter.Write(body)
	r.bytes += n
	return n, err
}

// routeLabel is the mux pattern without its method, so path values such as
// session ids never become label values.
func routeLabel(r *http.Request) string {
	if r.Pattern != "" {
		if _, path, ok := strings.Cut(r.Pattern, " "); ok {
			return path
		}
		return r.Pattern
	}
	if strings.HasPrefix(r.URL.Path, "/v1/sessions/") {
		return "/v1/sessions/{id}/history"
	}
	if strings.HasPrefix(r.URL.Path, "/v1/reports/") {
		return "/v1/reports/{day}/{name}"
	}
	return "unmatched"
}

func newTraceID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 16)
	}
	return hex.EncodeToString(buf)
}
