// Package generation talks to hosted language models and hides model
// selection behind a single Generate call.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/observability"
)

var (
	ErrModelNotFound = errors.New("model not found")
	ErrTimeout       = errors.New("generation timed out")
	ErrEmptyResponse = errors.New("empty generation response")
)

// Client performs one completion against a named model.
type Client interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// Generator produces text for a prompt. It is the only dependency the agent
// and the intent router have on the model service.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// FallbackGenerator tries the primary model and then each fallback model in
// order. It moves on only when the model is unavailable.
type FallbackGenerator struct {
	client  Client
	models  []string
	timeout time.Duration
	logger  *slog.Logger
}

func NewFallbackGenerator(client Client, primary string, fallbacks []string, timeout time.Duration, logger *slog.Logger) (*FallbackGenerator, error) {
	if client == nil {
		return nil, fmt.Errorf("generation client is required")
	}
	primary = strings.TrimSpace(primary)
	if primary == "" {
		return nil, fmt.Errorf("primary model is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	seen := map[string]struct{}{primary: {}}
	models := []string{primary}
	for _, model := range fallbacks {
		model = strings.TrimSpace(model)
		if model == "" {
			continue
		}
		if _, dup := seen[model]; dup {
			continue
		}
		seen[model] = struct{}{}
		models = append(models, model)
	}
	return &FallbackGenerator{client: client, models: models, timeout: timeout, logger: logger}, nil
}

func (g *FallbackGenerator) Models() []string {
	out := make([]string, len(g.models))
	copy(out, g.models)
	return out
}

func (g *FallbackGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for i, model := range g.models {
		text, err := g.call(ctx, model, prompt)
		if err == nil {
			return text, nil
		}
		if !errors.Is(err, ErrModelNotFound) {
			return "", err
		}
		lastErr = err
		observability.IncrementGenerationFallback(model)
		if i+1 < len(g.models) {
			g.logger.WarnContext(ctx, "generation model unavailable, falling back",
				slog.String("trace_id", observability.TraceIDFromContext(ctx)),
				slog.String("model", model),
				slog.String("next_model", g.models[i+1]),
			)
		}
	}
	return "", fmt.Errorf("no configured model is available: %w", lastErr)
}

func (g *FallbackGenerator) call(ctx context.Context, model, prompt string) (string, error) {
	callCtx := ctx
	cancel := func() {}
	if g.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
	}
	defer cancel()

	start := time.Now()
	text, err := g.client.Generate(callCtx, model, prompt)
	observability.ObserveGeneration(model, err, time.Since(start))
	if err != nil {
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: model %s after %s", ErrTimeout, model, g.timeout)
		}
		return "", fmt.Errorf("generate with %s: %w", model, err)
	}
	return text, nil
}
