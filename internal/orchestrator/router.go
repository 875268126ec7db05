package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/generation"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/nl2sql"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/observability"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/query"
)

// Asker answers analytics questions. *nl2sql.Agent implements it.
type Asker interface {
	Ask(ctx context.Context, question string) (nl2sql.Answer, error)
}

type Extras struct {
	Intent     Intent        `json:"intent"`
	SQL        string        `json:"sql,omitempty"`
	Result     *query.Result `json:"result,omitempty"`
	Error      string        `json:"error,omitempty"`
	Blocked    bool          `json:"blocked,omitempty"`
	Repaired   bool          `json:"repaired,omitempty"`
	TargetLang string        `json:"target_lang,omitempty"`
}

// InsightTuple is what the journal needs to record a SQL answer.
type InsightTuple struct {
	Question string
	SQL      string
	Result   *query.Result
	Error    string
}

func (t InsightTuple) RowCount() int {
	if t.Result == nil {
		return 0
	}
	return t.Result.RowCount()
}

type Response struct {
	Markdown string
	Extras   Extras
	// Insight is set only for sql_query responses.
	Insight *InsightTuple
}

type Router struct {
	gen    generation.Generator
	agent  Asker
	logger *slog.Logger
}

func NewRouter(gen generation.Generator, agent Asker, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{gen: gen, agent: agent, logger: logger}
}

func (r *Router) Classify(ctx context.Context, message string) (Intent, error) {
	return Classify(ctx, r.gen, message)
}

func (r *Router) Handle(ctx context.Context, message string) (Response, error) {
	intent, err := r.Classify(ctx, message)
	if err != nil {
		return Response{}, err
	}
	observability.ObserveIntent(string(intent))
	observability.RequestLogger(ctx, r.logger).InfoContext(ctx, "message classified", slog.String("intent", string(intent)))

	switch intent {
	case IntentExplainTerm:
		return r.explain(ctx, message)
	case IntentTranslate:
		return r.translate(ctx, message)
	default:
		return r.analyze(ctx, message)
	}
}

func (r *Router) explain(ctx context.Context, message string) (Response, error) {
	text, err := r.gen.Generate(ctx, explainPrompt(message))
	if err != nil {
		return Response{}, fmt.Errorf("explain term: %w", err)
	}
	return Response{
		Markdown: strings.TrimSpace(text),
		Extras:   Extras{Intent: IntentExplainTerm},
	}, nil
}

func (r *Router) translate(ctx context.Context, message string) (Response, error) {
	language := targetLanguage(message)
	text, err := r.gen.Generate(ctx, translatePrompt(message, language))
	if err != nil {
		return Response{}, fmt.Errorf("translate: %w", err)
	}
	return Response{
		Markdown: strings.TrimSpace(text),
		Extras:   Extras{Intent: IntentTranslate, TargetLang: language},
	}, nil
}

func (r *Router) analyze(ctx context.Context, message string) (Response, error) {
	if r.agent == nil {
		return Response{}, fmt.Errorf("analytics agent is not configured")
	}
	answer, err := r.agent.Ask(ctx, message)
	if err != nil {
		return Response{}, err
	}

	extras := Extras{
		Intent:   IntentSQLQuery,
		SQL:      answer.SQL,
		Blocked:  answer.Blocked,
		Repaired: answer.Repaired,
	}
	tuple := &InsightTuple{Question: message, SQL: answer.SQL}
	if answer.OK() {
		extras.Result = answer.Result
		tuple.Result = answer.Result
		return Response{Markdown: SuccessMarkdown(answer.SQL), Extras: extras, Insight: tuple}, nil
	}

	extras.Error = answer.ErrorMessage()
	tuple.Error = extras.Error
	return Response{Markdown: ErrorMarkdown(extras.Error, answer.SQL), Extras: extras, Insight: tuple}, nil
}

func SuccessMarkdown(sql string) string {
	return "**Answer based on the data:**\n\nShowing top rows below.\n\n**SQL used:**\n```sql\n" + sql + "\n```"
}

func ErrorMarkdown(errText, sql string) string {
	return "**I tried to run SQL but hit an error:**\n\n```\n" + errText + "\n```\n\n**Generated SQL:**\n```sql\n" + sql + "\n```"
}
