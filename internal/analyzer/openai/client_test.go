package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditgate-platform/auditgate/internal/analyzer"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		RetryDelay: time.Millisecond,
	})
	require.NoError(t, err)
	return c
}

func completionResponse(content string, tokens int) map[string]any {
	return map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
		"usage": map[string]any{"total_tokens": tokens},
	}
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestAnalyze_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Contains(t, req.Messages[1].Content, "contract-addr")

		json.NewEncoder(w).Encode(completionResponse("Findings...\nOverall Risk Score: 7", 1500))
	})

	res, err := c.Analyze(context.Background(), analyzer.Request{Subject: "contract-addr", Source: "code"})
	require.NoError(t, err)
	assert.Equal(t, 7, res.RiskScore)
	assert.Equal(t, 1500, res.TokensUsed)
	// 1500 tokens * $0.03/1k = $0.045; at 165 USD/SOL.
	assert.InDelta(t, 0.045/165.0, res.CostSOL, 1e-9)
	assert.Contains(t, res.Findings, "Findings")
}

func TestAnalyze_TruncatesOversizedSource(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.Messages[1].Content, "[... truncated]")
		json.NewEncoder(w).Encode(completionResponse("ok. Risk Score: 2", 10))
	})

	big := strings.Repeat("a", maxSourceBytes+100)
	_, err := c.Analyze(context.Background(), analyzer.Request{Subject: "addr", Source: big})
	require.NoError(t, err)
}

func TestAnalyze_RetriesOnRateLimit(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(completionResponse("fine. Risk Score: 3", 100))
	})

	res, err := c.Analyze(context.Background(), analyzer.Request{Subject: "addr", Source: "code"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 3, res.RiskScore)
}

func TestAnalyze_RetriesExhausted(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.Analyze(context.Background(), analyzer.Request{Subject: "addr", Source: "code"})
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestAnalyze_UnauthorizedNotRetried(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.Analyze(context.Background(), analyzer.Request{Subject: "addr", Source: "code"})
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 1, calls)
}

func TestAnalyze_EmptySubject(t *testing.T) {
	c, err := New(Config{APIKey: "k"})
	require.NoError(t, err)
	_, err = c.Analyze(context.Background(), analyzer.Request{})
	require.Error(t, err)
}

func TestExtractRiskScore(t *testing.T) {
	assert.Equal(t, 7, extractRiskScore("Overall Risk Score: 7"))
	assert.Equal(t, 10, extractRiskScore("risk score: 10"))
	assert.Equal(t, 5, extractRiskScore("no score here"))
}
