// Package gemini calls the Gemini generateContent REST API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/generation"
)

const DefaultBaseURL = "https://generativelanguage.googleapis.com"

type Config struct {
	BaseURL     string
	APIKey      string
	Temperature float64
	Timeout     time.Duration
}

type Client struct {
	baseURL     string
	apiKey      string
	temperature float64
	client      *http.Client
}

func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:     baseURL,
		apiKey:      strings.TrimSpace(cfg.APIKey),
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: timeout},
	}, nil
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (c *Client) Generate(ctx context.Context, model, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents:         []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{Temperature: c.temperature},
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate payload: %w", err)
	}

	endpoint := c.baseURL + "/v1beta/models/" + url.PathEscape(model) + ":generateContent"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request generate content: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read generate response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", statusError(model, resp.StatusCode, raw)
	}

	var parsed generateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	if len(parsed.Candidates) == 0 {
		if parsed.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("%w: prompt blocked (%s)", generation.ErrEmptyResponse, parsed.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("%w: no candidates", generation.ErrEmptyResponse)
	}

	var text strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("%w: candidate has no text (finish reason %s)", generation.ErrEmptyResponse, parsed.Candidates[0].FinishReason)
	}
	return text.String(), nil
}

func statusError(model string, status int, raw []byte) error {
	var parsed apiError
	_ = json.Unmarshal(raw, &parsed)
	message := parsed.Error.Message
	if message == "" {
		message = strings.TrimSpace(string(raw))
	}
	if status == http.StatusNotFound || parsed.Error.Status == "NOT_FOUND" {
		return fmt.Errorf("%w: %s: %s", generation.ErrModelNotFound, model, message)
	}
	return fmt.Errorf("generate content failed status=%d body=%s", status, message)
}
