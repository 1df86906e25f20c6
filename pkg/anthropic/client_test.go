package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Model  string `json:"model"`
	System []struct {
		Text         string `json:"text"`
		CacheControl *struct {
			Type string `json:"type"`
			TTL  string `json:"ttl"`
		} `json:"cache_control"`
	} `json:"system"`
	Messages []struct {
		Role string `json:"role"`
	} `json:"messages"`
}

func fakeAPI(t *testing.T, got *capturedRequest, stop string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/messages")
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(got))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"id":   "msg_fl_001",
			"type": "message",
			"role": "assistant",
			"content": []map[string]any{
				{"type": "thinking", "thinking": "counting", "signature": "s"},
				{"type": "text", "text": `{"total_violations": `},
				{"type": "text", "text": `0}`},
			},
			"model":       "claude-sonnet-4-6",
			"stop_reason": stop,
			"usage": map[string]any{
				"input_tokens":                1200,
				"output_tokens":               300,
				"cache_creation_input_tokens": 0,
				"cache_read_input_tokens":     900,
			},
		})
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestComplete(t *testing.T) {
	var got capturedRequest
	ts := fakeAPI(t, &got, "end_turn")

	c, err := NewClient("test-key", option.WithBaseURL(ts.URL)).Complete(context.Background(), Prompt{
		Model:     "claude-sonnet-4-6",
		MaxTokens: 4096,
		System:    "Extract violations.",
		CacheTTL:  "1h",
		User:      "Inspection Report",
	})
	require.NoError(t, err)
	assert.Equal(t, "msg_fl_001", c.ID)
	assert.Equal(t, `{"total_violations": 0}`, c.Text)
	assert.False(t, c.Truncated())
	assert.Equal(t, int64(900), c.Usage.CacheRead)

	assert.Equal(t, "claude-sonnet-4-6", got.Model)
	require.Len(t, got.System, 1)
	require.NotNil(t, got.System[0].CacheControl)
	assert.Equal(t, "ephemeral", got.System[0].CacheControl.Type)
	assert.Equal(t, "1h", got.System[0].CacheControl.TTL)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
}

func TestComplete_NoCache(t *testing.T) {
	var got capturedRequest
	ts := fakeAPI(t, &got, "max_tokens")

	c, err := NewClient("test-key", option.WithBaseURL(ts.URL)).Complete(context.Background(), Prompt{
		Model: "claude-sonnet-4-6", MaxTokens: 16, System: "s", User: "u",
	})
	require.NoError(t, err)
	assert.True(t, c.Truncated())
	require.Len(t, got.System, 1)
	assert.Nil(t, got.System[0].CacheControl)
}

func TestComplete_ErrorStatus(t *testing.T) {
	for _, code := range []int{http.StatusBadRequest, http.StatusTooManyRequests, http.StatusInternalServerError} {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(code)
			json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
				"type":  "error",
				"error": map[string]any{"type": "api_error", "message": "nope"},
			})
		}))

		_, err := NewClient("test-key", option.WithBaseURL(ts.URL)).Complete(context.Background(), Prompt{
			Model: "claude-sonnet-4-6", MaxTokens: 16, User: "x",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "anthropic: complete")
		assert.Equal(t, code, StatusCode(err))
		ts.Close()
	}
}

func TestStatusCode_Other(t *testing.T) {
	assert.Zero(t, StatusCode(nil))
	assert.Zero(t, StatusCode(assert.AnError))
}

func TestUsage_Cost(t *testing.T) {
	assert.InDelta(t, 18.0, Usage{Input: 1_000_000, Output: 1_000_000}.Cost("claude-sonnet-4-6"), 1e-9)
	assert.InDelta(t, 0.3, Usage{CacheRead: 1_000_000}.Cost("claude-sonnet-4-6"), 1e-9)
	assert.InDelta(t, 3.75, Usage{CacheWrite: 1_000_000}.Cost("claude-sonnet-4-6"), 1e-9)
	assert.Zero(t, Usage{Input: 1_000_000}.Cost("gpt-4"))
}
