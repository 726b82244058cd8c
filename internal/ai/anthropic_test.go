package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func anthropicTestServer(t *testing.T, handler http.HandlerFunc) (*AnthropicProvider, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewAnthropicProvider("sk-test", srv.URL, 5*time.Second), srv
}

func TestAnthropicGenerate_Success(t *testing.T) {
	var gotReq anthropicRequest
	p, _ := anthropicTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-test", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":       "claude-3-5-haiku-latest",
			"stop_reason": "end_turn",
			"content": []map[string]any{
				{"type": "text", "text": "Leaves drift in the wind"},
			},
			"usage": map[string]int{"input_tokens": 30, "output_tokens": 12},
		})
	})

	res, err := p.Generate(context.Background(), "claude-3-5-haiku-latest", GenerateRequest{
		SystemPrompt: "You write haiku.",
		UserPrompt:   "Autumn.",
		MaxTokens:    120,
		Temperature:  0.9,
	})
	require.NoError(t, err)

	assert.Equal(t, "Leaves drift in the wind", res.Text)
	assert.Equal(t, 42, res.TokensUsed)
	assert.Equal(t, "end_turn", res.FinishReason)
	assert.Equal(t, "You write haiku.", gotReq.System)
	assert.Equal(t, 120, gotReq.MaxTokens)
	require.NotNil(t, gotReq.Temperature)
	assert.InDelta(t, 0.9, float64(*gotReq.Temperature), 0.0001)
}

func TestAnthropicGenerate_AuthError(t *testing.T) {
	p, _ := anthropicTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	})

	_, err := p.Generate(context.Background(), "claude-3-5-haiku-latest", GenerateRequest{UserPrompt: "hi"})
	require.Error(t, err)

	assert.True(t, IsAuthError(err))
	assert.Equal(t, KindAuth, ErrorKindOf(err))
	assert.Contains(t, err.Error(), "invalid x-api-key")
}

func TestAnthropicGenerate_Overloaded(t *testing.T) {
	p, _ := anthropicTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(529)
		_, _ = w.Write([]byte(`{"error":{"type":"overloaded_error","message":"Overloaded"}}`))
	})

	_, err := p.Generate(context.Background(), "claude-3-5-haiku-latest", GenerateRequest{UserPrompt: "hi"})
	require.Error(t, err)
	assert.Equal(t, KindOverloaded, ErrorKindOf(err))
	assert.False(t, IsAuthError(err))
}

func TestAnthropicGenerate_NetworkError(t *testing.T) {
	p := NewAnthropicProvider("sk-test", "http://127.0.0.1:1", 500*time.Millisecond)

	_, err := p.Generate(context.Background(), "claude-3-5-haiku-latest", GenerateRequest{UserPrompt: "hi"})
	require.Error(t, err)
	assert.Equal(t, KindNetwork, ErrorKindOf(err))
}

func TestAnthropicGenerate_NoTextBlocks(t *testing.T) {
	p, _ := anthropicTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":   "claude-3-5-haiku-latest",
			"content": []map[string]any{},
			"usage":   map[string]int{"input_tokens": 5, "output_tokens": 0},
		})
	})

	_, err := p.Generate(context.Background(), "claude-3-5-haiku-latest", GenerateRequest{UserPrompt: "hi"})
	require.Error(t, err)
	assert.Equal(t, KindBadResponse, ErrorKindOf(err))
}

func TestAnthropicGenerate_DefaultsMaxTokens(t *testing.T) {
	var gotReq anthropicRequest
	p, _ := anthropicTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{{"type": "text", "text": "ok"}},
		})
	})

	_, err := p.Generate(context.Background(), "claude-3-5-haiku-latest", GenerateRequest{UserPrompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, anthropicDefaultMaxTok, gotReq.MaxTokens)
	assert.Nil(t, gotReq.Temperature)
}
