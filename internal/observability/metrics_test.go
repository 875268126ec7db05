package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestObserveAgentOutcomeCountsByLabel(t *testing.T) {
	before := counterValue(t, agentOutcomesTotal.WithLabelValues(OutcomeBlocked))
	ObserveAgentOutcome(OutcomeBlocked)
	ObserveAgentOutcome(OutcomeBlocked)
	after := counterValue(t, agentOutcomesTotal.WithLabelValues(OutcomeBlocked))
	if after-before != 2 {
		t.Fatalf("blocked delta = %v, want 2", after-before)
	}
}

func TestObserveIntentAndRepairCounters(t *testing.T) {
	beforeIntent := counterValue(t, intentsTotal.WithLabelValues("translate"))
	beforeRepair := counterValue(t, repairAttemptsTotal)
	ObserveIntent("translate")
	IncrementRepairAttempts()
	if got := counterValue(t, intentsTotal.WithLabelValues("translate")) - beforeIntent; got != 1 {
		t.Fatalf("intent delta = %v", got)
	}
	if got := counterValue(t, repairAttemptsTotal) - beforeRepair; got != 1 {
		t.Fatalf("repair delta = %v", got)
	}
}

func TestResultLabel(t *testing.T) {
	if got := resultLabel(nil); got != "ok" {
		t.Fatalf("resultLabel(nil) = %q", got)
	}
	if got := resultLabel(errors.New("boom")); got != "error" {
		t.Fatalf("resultLabel(err) = %q", got)
	}
	ObserveGeneration("gemini-2.5-flash", nil, 10*time.Millisecond)
	ObserveStoreQuery(errors.New("boom"), time.Millisecond)
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestInsightAndReportCounters(t *testing.T) {
	before := counterValue(t, insightsSavedTotal.WithLabelValues(SourceSession))
	ObserveInsightSaved(SourceSession)
	if got := counterValue(t, insightsSavedTotal.WithLabelValues(SourceSession)) - before; got != 1 {
		t.Fatalf("insights delta = %v", got)
	}
	beforeErr := counterValue(t, reportsPublishedTotal.WithLabelValues("error"))
	ObserveReportPublished(errors.New("bucket missing"))
	if got := counterValue(t, reportsPublishedTotal.WithLabelValues("error")) - beforeErr; got != 1 {
		t.Fatalf("report error delta = %v", got)
	}
}

func TestRegisterSessionGaugeRejectsDuplicate(t *testing.T) {
	if err := RegisterSessionGauge(func() int { return 3 }); err != nil {
		t.Fatalf("RegisterSessionGauge() error = %v", err)
	}
	if err := RegisterSessionGauge(func() int { return 3 }); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestObserveAuthRejection(t *testing.T) {
	before := counterValue(t, authRejectionsTotal.WithLabelValues(AuthInvalidKey))
	ObserveAuthRejection(AuthInvalidKey)
	if got := counterValue(t, authRejectionsTotal.WithLabelValues(AuthInvalidKey)) - before; got != 1 {
		t.Fatalf("invalid key delta = %v", got)
	}
}
