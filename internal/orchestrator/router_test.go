package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/generation"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/nl2sql"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/query"
)

type fakeAsker struct {
	answer nl2sql.Answer
	err    error
	calls  []string
}

func (f *fakeAsker) Ask(_ context.Context, question string) (nl2sql.Answer, error) {
	f.calls = append(f.calls, question)
	return f.answer, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandleExplainTermSeedsGlossary(t *testing.T) {
	gen := generation.Texts("explain_term", "  AOV is revenue divided by orders.  ")
	asker := &fakeAsker{}
	resp, err := NewRouter(gen, asker, discardLogger()).Handle(context.Background(), "What does AOV mean?")
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if resp.Markdown != "AOV is revenue divided by orders." || resp.Extras.Intent != IntentExplainTerm || resp.Insight != nil {
		t.Fatalf("resp = %#v", resp)
	}
	if !strings.HasSuffix(gen.Prompts()[1], "\n\nSeed context: Average order value = total revenue / number of orders.") {
		t.Fatalf("explain prompt = %q", gen.Prompts()[1])
	}
	if len(asker.calls) != 0 {
		t.Fatal("agent should not be called")
	}
}

func TestHandleSQLSuccessMarkdown(t *testing.T) {
	result := &query.Result{Columns: []string{"n"}, Rows: [][]any{{int64(99441)}}}
	asker := &fakeAsker{answer: nl2sql.Answer{SQL: "SELECT COUNT(*) AS n FROM orders", Result: result, Attempts: 1}}
	resp, err := NewRouter(generation.Texts("sql_query"), asker, discardLogger()).Handle(context.Background(), "How many orders?")
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	want := "**Answer based on the data:**\n\nShowing top rows below.\n\n**SQL used:**\n```sql\nSELECT COUNT(*) AS n FROM orders\n```"
	if resp.Markdown != want {
		t.Fatalf("markdown = %q", resp.Markdown)
	}
	if resp.Extras.Result != result || resp.Extras.Error != "" || resp.Insight.RowCount() != 1 {
		t.Fatalf("resp = %#v", resp)
	}
}

func TestHandleSQLErrorMarkdown(t *testing.T) {
	asker := &fakeAsker{answer: nl2sql.Answer{
		SQL:      "SELECT foo FROM orders",
		Err:      &nl2sql.ExecutionError{Message: "column foo not found"},
		Attempts: 1,
	}}
	resp, err := NewRouter(generation.Texts("sql_query"), asker, discardLogger()).Handle(context.Background(), "foo?")
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	want := "**I tried to run SQL but hit an error:**\n\n```\ncolumn foo not found\n```\n\n**Generated SQL:**\n```sql\nSELECT foo FROM orders\n```"
	if resp.Markdown != want {
		t.Fatalf("markdown = %q", resp.Markdown)
	}
	if resp.Insight.Error != "column foo not found" || resp.Extras.Result != nil {
		t.Fatalf("resp = %#v", resp)
	}
}

func TestHandlePropagatesAgentErrors(t *testing.T) {
	asker := &fakeAsker{err: nl2sql.ErrStoreNotFound}
	_, err := NewRouter(generation.Texts("sql_query"), asker, discardLogger()).Handle(context.Background(), "q")
	if !errors.Is(err, nl2sql.ErrStoreNotFound) {
		t.Fatalf("Handle() error = %v", err)
	}
}

func TestHandleClassificationFailure(t *testing.T) {
	gen := generation.NewScripted(generation.Reply{Err: errors.New("unavailable")})
	_, err := NewRouter(gen, &fakeAsker{}, discardLogger()).Handle(context.Background(), "q")
	var classErr *ClassificationError
	if !errors.As(err, &classErr) {
		t.Fatalf("Handle() error = %v", err)
	}
}
