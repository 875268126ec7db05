package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Agent outcomes recorded by ObserveAgentOutcome.
const (
	OutcomeOK       = "ok"
	OutcomeBlocked  = "blocked"
	OutcomeError    = "error"
	OutcomeRepaired = "repaired"
)

var (
	intentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insightgpt_intents_total",
			Help: "Classified chat messages by intent label.",
		},
		[]string{"intent"},
	)
	agentOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insightgpt_agent_outcomes_total",
			Help: "Analytics questions by final outcome.",
		},
		[]string{"outcome"},
	)
	repairAttemptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "insightgpt_repair_attempts_total",
			Help: "Total number of repair regenerations after a failed execution.",
		},
	)
	generationLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "insightgpt_generation_latency_seconds",
			Help:    "Text generation call latency by model and result.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		},
		[]string{"model", "result"},
	)
	generationFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insightgpt_generation_fallbacks_total",
			Help: "Times a model was skipped because it was unavailable.",
		},
		[]string{"model"},
	)
	insightsSavedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insightgpt_insights_saved_total",
			Help: "Insights appended to the journal by source.",
		},
		[]string{"source"},
	)
	reportsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insightgpt_reports_published_total",
			Help: "Report uploads to the object store by result.",
		},
		[]string{"result"},
	)
	authRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insightgpt_auth_rejections_total",
			Help: "Requests refused by API key authentication by reason.",
		},
		[]string{"reason"},
	)
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insightgpt_http_requests_total",
			Help: "HTTP requests by method, route pattern and status.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "insightgpt_http_request_duration_seconds",
			Help:    "HTTP request latency by route. Chat requests include model calls.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "route", "status"},
	)
	storeQueryLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "insightgpt_store_query_latency_seconds",
			Help:    "Analytical store query latency by result.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		intentsTotal,
		agentOutcomesTotal,
		repairAttemptsTotal,
		generationLatencySeconds,
		generationFallbacksTotal,
		storeQueryLatencySeconds,
		insightsSavedTotal,
		reportsPublishedTotal,
		authRejectionsTotal,
		httpRequestsTotal,
		httpRequestDurationSeconds,
	)
}

// RegisterSessionGauge exports the live session count. Call it once per
// process with the registry's Count.
func RegisterSessionGauge(count func() int) error {
	return prometheus.Register(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "insightgpt_sessions_active",
			Help: "Chat sessions that have not expired.",
		},
		func() float64 { return float64(count()) },
	))
}

func ObserveIntent(intent string) {
	intentsTotal.WithLabelValues(intent).Inc()
}

func ObserveAgentOutcome(outcome string) {
	agentOutcomesTotal.WithLabelValues(outcome).Inc()
}

func IncrementRepairAttempts() {
	repairAttemptsTotal.Inc()
}

func ObserveGeneration(model string, err error, elapsed time.Duration) {
	generationLatencySeconds.WithLabelValues(model, resultLabel(err)).Observe(elapsed.Seconds())
}

func IncrementGenerationFallback(model string) {
	generationFallbacksTotal.WithLabelValues(model).Inc()
}

func ObserveStoreQuery(err error, elapsed time.Duration) {
	storeQueryLatencySeconds.WithLabelValues(resultLabel(err)).Observe(elapsed.Seconds())
}

// Insight sources recorded by ObserveInsightSaved.
const (
	SourceSession  = "session"
	SourceExplicit = "explicit"
)

func ObserveInsightSaved(source string) {
	insightsSavedTotal.WithLabelValues(source).Inc()
}

func ObserveReportPublished(err error) {
	reportsPublishedTotal.WithLabelValues(resultLabel(err)).Inc()
}

// Reasons recorded by ObserveAuthRejection.
const (
	AuthMissingKey = "missing_key"
	AuthInvalidKey = "invalid_key"
	AuthForbidden  = "forbidden"
)

func ObserveAuthRejection(reason string) {
	authRejectionsTotal.WithLabelValues(reason).Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
