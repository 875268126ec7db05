// Package openai calls an OpenAI compatible chat completions endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sUhAs1011/maersk-olist-analytics-agent/internal/generation"
)

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
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:      strings.TrimSpace(cfg.APIKey),
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: timeout},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

// Generate sends the prompt as a single user message. Prompts already carry
// their own instructions so no system message is added.
func (c *Client) Generate(ctx context.Context, model, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request chat completion: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", statusError(model, resp.StatusCode, rawRespBody)
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		return "", fmt.Errorf("decode chat completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: no chat completion choices", generation.ErrEmptyResponse)
	}
	content := parsed.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%w: empty message content", generation.ErrEmptyResponse)
	}
	return content, nil
}

func statusError(model string, status int, raw []byte) error {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	_ = json.Unmarshal(raw, &parsed)
	if status == http.StatusNotFound || parsed.Error.Code == "model_not_found" {
		return fmt.Errorf("%w: %s: %s", generation.ErrModelNotFound, model, parsed.Error.Message)
	}
	return fmt.Errorf("chat completion failed status=%d body=%s", status, string(raw))
}
