// Package orchestrator routes a chat message to the analytics agent, the
// glossary explainer or the translator.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/generation"
)

type Intent string

const (
	IntentSQLQuery    Intent = "sql_query"
	IntentExplainTerm Intent = "explain_term"
	IntentTranslate   Intent = "translate"
)

var ErrEmptyMessage = errors.New("message is required")

// ClassificationError means the model could not be reached to classify a
// message. There is no local fallback.
type ClassificationError struct {
	Err error
}

func (e *ClassificationError) Error() string {
	return "classify intent: " + e.Err.Error()
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}

const intentInstruction = `Classify the user's message into one of:
- sql_query: They want analytics against the e-commerce database (tables like orders, items, products).
- explain_term: They asked to explain a commerce/logistics term (e.g., freight value, AOV, lead time).
- translate: They asked to translate a phrase to/from English.

Return only the label: sql_query OR explain_term OR translate.
`

func intentPrompt(message string) string {
	return fmt.Sprintf("%s\n\nUser: %s\nLabel:", intentInstruction, message)
}

func Classify(ctx context.Context, gen generation.Generator, message string) (Intent, error) {
	if strings.TrimSpace(message) == "" {
		return "", ErrEmptyMessage
	}
	text, err := gen.Generate(ctx, intentPrompt(message))
	if err != nil {
		return "", &ClassificationError{Err: err}
	}
	return ParseIntent(text), nil
}

// ParseIntent accepts an exact label first and otherwise falls back to
// keyword containment, defaulting to sql_query.
func ParseIntent(text string) Intent {
	label := strings.ToLower(strings.TrimSpace(text))
	label = strings.Trim(label, "\"'`")
	label = strings.TrimSpace(strings.TrimSuffix(label, "."))
	switch Intent(label) {
	case IntentSQLQuery, IntentExplainTerm, IntentTranslate:
		return Intent(label)
	}

	lowered := strings.ToLower(text)
	switch {
	case strings.Contains(lowered, "translate"):
		return IntentTranslate
	case strings.Contains(lowered, "explain"):
		return IntentExplainTerm
	default:
		return IntentSQLQuery
	}
}
