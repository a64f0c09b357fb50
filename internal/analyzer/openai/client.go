// Package openai implements the paid analysis tier: a GPT-4 security audit
// via the OpenAI chat completions API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/auditgate-platform/auditgate/internal/analyzer"
)

const (
	// DefaultBaseURL is the chat completions endpoint.
	DefaultBaseURL = "https://api.openai.com/v1/chat/completions"
	// DefaultModel is the model used when none is configured.
	DefaultModel = "gpt-4"

	// usdPerThousandTokens approximates GPT-4 cost.
	usdPerThousandTokens = 0.03
	// defaultSOLUSDRate converts the USD cost to SOL for budget tracking.
	defaultSOLUSDRate = 165.0
	// maxSourceBytes truncates oversized contract source before prompting.
	maxSourceBytes = 100 * 1024
)

const systemPrompt = "You are an expert smart contract security auditor."

const promptTemplate = `Analyze the following contract for security vulnerabilities.

Contract Address: %s
Contract Code:
%s

Provide a structured security audit report with:
1. Critical Issues (if any)
2. Medium Issues (if any)
3. Low-Risk Findings (if any)
4. Overall Risk Score (1-10)
5. Recommendations

Be concise but thorough.`

// Sentinel errors for upstream failure classes. All are expected failures
// from the pipeline's point of view and map to its analysis-failed outcome.
var (
	ErrRateLimited  = errors.New("openai: rate limited")
	ErrUnavailable  = errors.New("openai: service unavailable")
	ErrUnauthorized = errors.New("openai: authentication failed")
)

// Config holds client settings. Zero values fall back to defaults.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float64
	SOLUSDRate  float64
	MaxRetries  int
	RetryDelay  time.Duration
	Timeout     time.Duration
}

// Client is the paid analyzer. It is safe for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
}

// New creates a Client. The API key is required.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2000
	}
	if cfg.SOLUSDRate == 0 {
		cfg.SOLUSDRate = defaultSOLUSDRate
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Name implements analyzer.Analyzer.
func (c *Client) Name() string { return "llm" }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
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
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Analyze implements analyzer.Analyzer. The returned cost is the estimated
// token spend converted to SOL.
func (c *Client) Analyze(ctx context.Context, req analyzer.Request) (*analyzer.Result, error) {
	if req.Subject == "" {
		return nil, fmt.Errorf("openai: empty subject")
	}

	source := req.Source
	if source == "" {
		source = fmt.Sprintf("[Contract fetched from chain: %s]", req.Subject)
	}
	if len(source) > maxSourceBytes {
		slog.Warn("contract source too large, truncating", "subject", req.Subject, "bytes", len(source))
		source = source[:maxSourceBytes] + "\n[... truncated]"
	}

	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf(promptTemplate, req.Subject, source)},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling chat request: %w", err)
	}

	resp, err := c.executeWithRetry(ctx, body)
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: response carried no choices")
	}

	tokens := resp.Usage.TotalTokens
	costUSD := float64(tokens) / 1000 * usdPerThousandTokens
	costSOL := costUSD / c.cfg.SOLUSDRate
	findings := resp.Choices[0].Message.Content

	slog.Info("llm audit completed",
		"subject", req.Subject,
		"tokens", tokens,
		"cost_usd", costUSD,
	)

	return &analyzer.Result{
		RiskScore:  extractRiskScore(findings),
		Findings:   findings,
		TokensUsed: tokens,
		CostSOL:    costSOL,
	}, nil
}

func (c *Client) executeWithRetry(ctx context.Context, body []byte) (*chatResponse, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.cfg.RetryDelay * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := c.doRequest(ctx, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !errors.Is(err, ErrRateLimited) && !errors.Is(err, ErrUnavailable) {
			return nil, err
		}
		slog.Warn("llm request failed, retrying", "attempt", attempt+1, "error", err)
	}
	return nil, fmt.Errorf("openai: retries exhausted: %w", lastErr)
}

func (c *Client) doRequest(ctx context.Context, body []byte) (*chatResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer httpResp.Body.Close()

	switch {
	case httpResp.StatusCode == http.StatusOK:
	case httpResp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case httpResp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case httpResp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, httpResp.StatusCode)
	default:
		payload, _ := io.ReadAll(io.LimitReader(httpResp.Body, 1024))
		return nil, fmt.Errorf("openai: unexpected status %d: %s", httpResp.StatusCode, payload)
	}

	var resp chatResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decoding chat response: %w", err)
	}
	return &resp, nil
}
