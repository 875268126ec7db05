package nl2sql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/generation"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/observability"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/query"
	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/schema"
)

// BlockedMessage is what users see when a generated statement fails
// validation.
const BlockedMessage = "Unsafe SQL blocked"

var (
	ErrStoreNotFound = query.ErrStoreNotFound
	ErrEmptyQuestion = errors.New("question is required")
)

// ExecutionError carries the store's error text verbatim. That text is fed
// back to the model on repair.
type ExecutionError struct {
	Message string
	Cause   error
}

func (e *ExecutionError) Error() string {
	return e.Message
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Answer is the outcome of one question. Exactly one of Result and Err is set.
type Answer struct {
	Question string
	SQL      string
	Result   *query.Result
	Err      error
	Blocked  bool
	Attempts int
	Repaired bool
}

func (a Answer) OK() bool {
	return a.Err == nil && a.Result != nil
}

func (a Answer) ErrorMessage() string {
	switch {
	case a.Blocked:
		return BlockedMessage
	case a.Err != nil:
		return a.Err.Error()
	default:
		return ""
	}
}

func (a Answer) RowCount() int {
	if a.Result == nil {
		return 0
	}
	return a.Result.RowCount()
}

type Options struct {
	// Retry allows one repair round after a failed execution.
	Retry bool
}

type Agent struct {
	desc     schema.Descriptor
	gen      generation.Generator
	executor query.Executor
	opts     Options
	logger   *slog.Logger
}

func NewAgent(desc schema.Descriptor, gen generation.Generator, executor query.Executor, opts Options, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{desc: desc, gen: gen, executor: executor, opts: opts, logger: logger}
}

func (a *Agent) Descriptor() schema.Descriptor {
	return a.desc
}

// Ask generates, validates and executes a statement for question. Returned
// errors are infrastructure failures; a blocked or failed statement is
// reported inside the Answer.
func (a *Agent) Ask(ctx context.Context, question string) (Answer, error) {
	if strings.TrimSpace(question) == "" {
		return Answer{}, ErrEmptyQuestion
	}
	if a.desc.Empty() {
		return Answer{}, schema.ErrDescriptorNotFound
	}
	if a.executor == nil {
		return Answer{}, ErrStoreNotFound
	}
	if a.gen == nil {
		return Answer{}, fmt.Errorf("generator is required")
	}
	log := observability.RequestLogger(ctx, a.logger)

	raw, err := a.gen.Generate(ctx, BuildPrompt(a.desc, question, ""))
	if err != nil {
		return Answer{}, fmt.Errorf("generate sql: %w", err)
	}
	sqlText := Extract(raw)
	answer := Answer{Question: question, SQL: sqlText}

	if err := ValidateStatement(sqlText); err != nil {
		log.WarnContext(ctx, "generated statement blocked", slog.String("reason", err.Error()), slog.Bool("blocked", true))
		observability.ObserveAgentOutcome(observability.OutcomeBlocked)
		answer.Blocked = true
		answer.Err = err
		return answer, nil
	}

	result, execErr := a.executor.Execute(ctx, sqlText)
	answer.Attempts = 1
	if execErr == nil {
		answer.Result = &result
		log.InfoContext(ctx, "statement executed", slog.Int("attempt", 1), slog.Int("rows", result.RowCount()))
		observability.ObserveAgentOutcome(observability.OutcomeOK)
		return answer, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return answer, fmt.Errorf("execute sql: %w", ctxErr)
	}
	answer.Err = &ExecutionError{Message: execErr.Error(), Cause: execErr}
	log.InfoContext(ctx, "statement failed", slog.Int("attempt", 1), slog.String("error", execErr.Error()))

	// Timed-out statements get no repair round.
	if !a.opts.Retry || errors.Is(execErr, query.ErrTimeout) {
		observability.ObserveAgentOutcome(observability.OutcomeError)
		return answer, nil
	}
	return a.repair(ctx, log, answer), nil
}

// repair runs the single repair round. The original statement and error stand
// unless the repaired statement is safe and gets executed.
func (a *Agent) repair(ctx context.Context, log *slog.Logger, original Answer) Answer {
	observability.IncrementRepairAttempts()

	raw, err := a.gen.Generate(ctx, BuildPrompt(a.desc, original.Question, original.Err.Error()))
	if err != nil {
		log.WarnContext(ctx, "repair generation failed", slog.String("error", err.Error()))
		observability.ObserveAgentOutcome(observability.OutcomeError)
		return original
	}
	repairedSQL := Extract(raw)
	if err := ValidateStatement(repairedSQL); err != nil {
		log.WarnContext(ctx, "repaired statement blocked", slog.String("reason", err.Error()))
		observability.ObserveAgentOutcome(observability.OutcomeError)
		return original
	}

	answer := Answer{Question: original.Question, SQL: repairedSQL, Attempts: 2, Repaired: true}
	result, execErr := a.executor.Execute(ctx, repairedSQL)
	if execErr != nil {
		answer.Err = &ExecutionError{Message: execErr.Error(), Cause: execErr}
		log.InfoContext(ctx, "repaired statement failed", slog.Int("attempt", 2), slog.String("error", execErr.Error()))
		observability.ObserveAgentOutcome(observability.OutcomeError)
		return answer
	}
	answer.Result = &result
	log.InfoContext(ctx, "repaired statement executed", slog.Int("attempt", 2), slog.Int("rows", result.RowCount()))
	observability.ObserveAgentOutcome(observability.OutcomeRepaired)
	return answer
}
