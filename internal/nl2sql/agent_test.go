package nl2sql

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/generation"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/query"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/schema"
)

type fakeExecutor struct {
	calls   []string
	results []execReply
}

type execReply struct {
	result query.Result
	err    error
}

func (f *fakeExecutor) Execute(_ context.Context, sql string) (query.Result, error) {
	f.calls = append(f.calls, sql)
	if len(f.results) == 0 {
		return query.Result{}, errors.New("unexpected execute")
	}
	reply := f.results[0]
	f.results = f.results[1:]
	return reply.result, reply.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAgent(gen generation.Generator, exec query.Executor, retry bool) *Agent {
	return NewAgent(testDescriptor(), gen, exec, Options{Retry: retry}, discardLogger())
}

func paymentRows() query.Result {
	return query.Result{
		Columns: []string{"payment_type", "cnt"},
		Rows:    [][]any{{"credit_card", int64(76795)}, {"boleto", int64(19784)}},
	}
}

func TestAskHappyPath(t *testing.T) {
	gen := generation.Texts("```sql\nSELECT payment_type, COUNT(*) AS cnt FROM payments GROUP BY 1 ORDER BY cnt DESC;\n```")
	exec := &fakeExecutor{results: []execReply{{result: paymentRows()}}}

	answer, err := newTestAgent(gen, exec, true).Ask(context.Background(), "Share of payment types by count")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if !answer.OK() || answer.RowCount() != 2 || answer.Attempts != 1 || answer.Repaired {
		t.Fatalf("answer = %#v", answer)
	}
	if answer.SQL != "SELECT payment_type, COUNT(*) AS cnt FROM payments GROUP BY 1 ORDER BY cnt DESC;" {
		t.Fatalf("SQL = %q", answer.SQL)
	}
	if gen.Calls() != 1 || len(exec.calls) != 1 {
		t.Fatalf("generate calls = %d, execute calls = %d", gen.Calls(), len(exec.calls))
	}
	if !strings.Contains(gen.Prompts()[0], "Q: Share of payment types by count\nSQL:") {
		t.Fatal("prompt is missing the question")
	}
}

func TestAskBlocksUnsafeStatementWithoutExecuting(t *testing.T) {
	gen := generation.Texts("DROP TABLE orders;")
	exec := &fakeExecutor{}

	answer, err := newTestAgent(gen, exec, true).Ask(context.Background(), "delete everything")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if !answer.Blocked || answer.ErrorMessage() != BlockedMessage {
		t.Fatalf("answer = %#v", answer)
	}
	if !errors.Is(answer.Err, ErrUnsafeStatement) {
		t.Fatalf("Err = %v", answer.Err)
	}
	if answer.SQL != "DROP TABLE orders;" || answer.Result != nil {
		t.Fatalf("answer = %#v", answer)
	}
	if len(exec.calls) != 0 || gen.Calls() != 1 {
		t.Fatalf("execute calls = %d, generate calls = %d", len(exec.calls), gen.Calls())
	}
}

func TestAskRepairSucceeds(t *testing.T) {
	gen := generation.Texts(
		"SELECT product_category FROM products",
		"```sql\nSELECT product_category_name FROM products\n```",
	)
	exec := &fakeExecutor{results: []execReply{
		{err: errors.New(`Binder Error: Referenced column "product_category" not found`)},
		{result: query.Result{Columns: []string{"product_category_name"}, Rows: [][]any{{"beleza_saude"}}}},
	}}

	answer, err := newTestAgent(gen, exec, true).Ask(context.Background(), "list categories")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if !answer.OK() || !answer.Repaired || answer.Attempts != 2 {
		t.Fatalf("answer = %#v", answer)
	}
	if answer.SQL != "SELECT product_category_name FROM products" {
		t.Fatalf("SQL = %q", answer.SQL)
	}
	prompts := gen.Prompts()
	if len(prompts) != 2 {
		t.Fatalf("prompts = %d", len(prompts))
	}
	if !strings.HasSuffix(prompts[1], "\n\nError:\nBinder Error: Referenced column \"product_category\" not found\nFix SQL only:") {
		t.Fatalf("repair prompt tail = %q", prompts[1][len(prompts[1])-100:])
	}
	if !strings.HasPrefix(prompts[1], prompts[0]) {
		t.Fatal("repair prompt should extend the original prompt")
	}
}

func TestAskRepairIsBoundedToOneAttempt(t *testing.T) {
	gen := generation.Texts("SELECT a FROM orders", "SELECT b FROM orders", "SELECT c FROM orders")
	exec := &fakeExecutor{results: []execReply{
		{err: errors.New("no column a")},
		{err: errors.New("no column b")},
		{result: paymentRows()},
	}}

	answer, err := newTestAgent(gen, exec, true).Ask(context.Background(), "q")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if gen.Calls() != 2 || len(exec.calls) != 2 {
		t.Fatalf("generate calls = %d, execute calls = %d", gen.Calls(), len(exec.calls))
	}
	if answer.OK() || answer.Attempts != 2 || answer.SQL != "SELECT b FROM orders" {
		t.Fatalf("answer = %#v", answer)
	}
	var execErr *ExecutionError
	if !errors.As(answer.Err, &execErr) || execErr.Message != "no column b" {
		t.Fatalf("Err = %v", answer.Err)
	}
}

func TestAskUnsafeRepairKeepsOriginalError(t *testing.T) {
	gen := generation.Texts("SELECT a FROM orders", "DELETE FROM orders")
	exec := &fakeExecutor{results: []execReply{{err: errors.New("no column a")}}}

	answer, err := newTestAgent(gen, exec, true).Ask(context.Background(), "q")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer.SQL != "SELECT a FROM orders" || answer.ErrorMessage() != "no column a" || answer.Blocked {
		t.Fatalf("answer = %#v", answer)
	}
	if answer.Attempts != 1 || answer.Repaired || len(exec.calls) != 1 {
		t.Fatalf("answer = %#v, execute calls = %d", answer, len(exec.calls))
	}
}

func TestAskRepairGenerationErrorKeepsOriginalError(t *testing.T) {
	gen := generation.NewScripted(
		generation.Reply{Text: "SELECT a FROM orders"},
		generation.Reply{Err: errors.New("503 from model")},
	)
	exec := &fakeExecutor{results: []execReply{{err: errors.New("no column a")}}}

	answer, err := newTestAgent(gen, exec, true).Ask(context.Background(), "q")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer.SQL != "SELECT a FROM orders" || answer.ErrorMessage() != "no column a" {
		t.Fatalf("answer = %#v", answer)
	}
}

func TestAskWithoutRetryReportsFirstError(t *testing.T) {
	gen := generation.Texts("SELECT a FROM orders")
	exec := &fakeExecutor{results: []execReply{{err: errors.New("no column a")}}}

	answer, err := newTestAgent(gen, exec, false).Ask(context.Background(), "q")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if gen.Calls() != 1 || answer.ErrorMessage() != "no column a" {
		t.Fatalf("answer = %#v, calls = %d", answer, gen.Calls())
	}
}

func TestAskDoesNotRepairTimeouts(t *testing.T) {
	gen := generation.Texts("SELECT * FROM items, orders")
	exec := &fakeExecutor{results: []execReply{{err: query.ErrTimeout}}}

	answer, err := newTestAgent(gen, exec, true).Ask(context.Background(), "q")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if gen.Calls() != 1 || !errors.Is(answer.Err, query.ErrTimeout) {
		t.Fatalf("answer = %#v, calls = %d", answer, gen.Calls())
	}
}

func TestAskPropagatesFirstGenerationError(t *testing.T) {
	boom := errors.New("connection refused")
	gen := generation.NewScripted(generation.Reply{Err: boom})
	exec := &fakeExecutor{}

	_, err := newTestAgent(gen, exec, true).Ask(context.Background(), "q")
	if !errors.Is(err, boom) {
		t.Fatalf("Ask() error = %v", err)
	}
	if len(exec.calls) != 0 {
		t.Fatal("executor should not run")
	}
}

func TestAskPreconditions(t *testing.T) {
	gen := generation.Texts("SELECT 1")

	empty := NewAgent(schema.Descriptor{}, gen, &fakeExecutor{}, Options{}, discardLogger())
	if _, err := empty.Ask(context.Background(), "q"); !errors.Is(err, schema.ErrDescriptorNotFound) {
		t.Fatalf("Ask() error = %v", err)
	}

	noStore := NewAgent(testDescriptor(), gen, nil, Options{}, discardLogger())
	if _, err := noStore.Ask(context.Background(), "q"); !errors.Is(err, ErrStoreNotFound) {
		t.Fatalf("Ask() error = %v", err)
	}

	if _, err := newTestAgent(gen, &fakeExecutor{}, true).Ask(context.Background(), "  "); !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("Ask() error = %v", err)
	}
	if gen.Calls() != 0 {
		t.Fatalf("generation should not run before preconditions pass, calls = %d", gen.Calls())
	}
}
