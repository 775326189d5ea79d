// Cadence - AI-Assisted Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

// Package llm talks to the generative AI vendor and validates what
// comes back.
//
// The client speaks the chat-completions wire protocol over the
// configured base URL with a hard per-request timeout; every call goes
// through the orchestrator's circuit breaker group, so this package
// never retries on its own. Rate-limit classification happens here at
// the vendor boundary: quota failures surface as *RateLimitError and
// everything else as *VendorError, so raw vendor errors never cross
// into the pipeline.
package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cadence/internal/config"
	"github.com/tomtom215/cadence/internal/logging"
	"github.com/tomtom215/cadence/internal/metrics"
)

// Tier selects the model used for a generation.
const (
	TierStandard  = "standard"
	TierLightning = "lightning"
)

// Generator is the generation surface the orchestrator consumes.
type Generator interface {
	Generate(ctx context.Context, op, tier, prompt string) (string, error)
}

// Client is the HTTP client for the generative AI vendor.
type Client struct {
	baseURL        string
	apiKey         string
	model          string
	modelLightning string
	maxTokens      int
	httpClient     *http.Client
}

// NewClient creates a vendor client from config. The HTTP client
// carries the hard request timeout; callers add context deadlines on
// top when they need tighter bounds.
func NewClient(cfg *config.LLMConfig) *Client {
	return &Client{
		baseURL:        cfg.BaseURL,
		apiKey:         cfg.APIKey,
		model:          cfg.Model,
		modelLightning: cfg.ModelLightning,
		maxTokens:      cfg.MaxTokens,
		httpClient:     &http.Client{Timeout: cfg.Timeout},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Generate sends one prompt and returns the raw text completion.
// op names the logical operation for metrics; tier picks the model.
func (c *Client) Generate(ctx context.Context, op, tier, prompt string) (string, error) {
	model := c.model
	if tier == TierLightning && c.modelLightning != "" {
		model = c.modelLightning
	}

	start := time.Now()
	text, err := c.complete(ctx, model, prompt)
	metrics.RecordLLMCall(op, model, time.Since(start), errType(err))
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("operation", op).Str("model", model).Msg("vendor call failed")
		return "", err
	}

	logging.Ctx(ctx).Debug().
		Str("operation", op).
		Str("model", model).
		Dur("duration", time.Since(start)).
		Int("response_bytes", len(text)).
		Msg("vendor call completed")
	return text, nil
}

func (c *Client) complete(ctx context.Context, model, prompt string) (string, error) {
	payload := chatRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   c.maxTokens,
		Temperature: 0.7,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return "", fmt.Errorf("llm: failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", &buf)
	if err != nil {
		return "", fmt.Errorf("llm: failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Transport errors can also be quota responses from proxies.
		if rl := classifyRateLimit(0, err.Error(), 0); rl != nil {
			return "", rl
		}
		return "", &VendorError{StatusCode: 0, Body: Truncate(err.Error())}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &VendorError{StatusCode: resp.StatusCode, Body: "failed to read response body"}
	}

	if resp.StatusCode != http.StatusOK {
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		if rl := classifyRateLimit(resp.StatusCode, string(body), retryAfter); rl != nil {
			return "", rl
		}
		return "", &VendorError{StatusCode: resp.StatusCode, Body: Truncate(string(body))}
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &VendorError{StatusCode: resp.StatusCode, Body: Truncate(string(body))}
	}
	if parsed.Error != nil {
		if rl := classifyRateLimit(resp.StatusCode, parsed.Error.Message, 0); rl != nil {
			return "", rl
		}
		return "", &VendorError{StatusCode: resp.StatusCode, Body: Truncate(parsed.Error.Message)}
	}
	if len(parsed.Choices) == 0 {
		return "", &VendorError{StatusCode: resp.StatusCode, Body: "empty choices in response"}
	}

	return parsed.Choices[0].Message.Content, nil
}

// parseRetryAfter handles the delay-seconds form of the Retry-After
// header. The HTTP-date form is rare on AI vendors and ignored.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	secs, err := strconv.Atoi(value)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func errType(err error) string {
	switch {
	case err == nil:
		return ""
	case IsRateLimit(err):
		return "rate_limit"
	default:
		return "vendor"
	}
}
