package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOpenAITestServer(t *testing.T, status int, body string, seen *map[string]any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

const openAIReply = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"choices": [{"index": 0, "message": {"role": "assistant", "content": "MODELO_1"}, "finish_reason": "stop"}],
	"usage": {"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15}
}`

func TestOpenAIProvider_DoRequest(t *testing.T) {
	// Given a server that answers with a judge verdict
	var seen map[string]any
	server := newOpenAITestServer(t, http.StatusOK, openAIReply, &seen)
	provider, err := newOpenAIProvider(ClientConfig{APIKey: "test", Model: "gpt-4.1", BaseURL: server.URL})
	require.NoError(t, err)

	// When sending a deterministic judge request
	reply, in, out, err := provider.DoRequest(context.Background(), "compare these", map[string]any{
		OptSystem:      "You are a strict referee.",
		OptTemperature: 0.0,
		OptTopP:        1.0,
	})

	// Then the reply and usage come back
	require.NoError(t, err)
	assert.Equal(t, "MODELO_1", reply)
	assert.Equal(t, 12, in)
	assert.Equal(t, 3, out)

	// And the request carried the system message and sampling settings
	assert.Equal(t, "gpt-4.1", seen["model"])
	messages, ok := seen["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Contains(t, seen, "temperature", "a zero temperature must still be sent")
	assert.InDelta(t, 0, seen["temperature"], 1e-6)
	assert.InDelta(t, 1, seen["top_p"], 1e-6)
}

func TestOpenAIProvider_OmitsUnsetSampling(t *testing.T) {
	var seen map[string]any
	server := newOpenAITestServer(t, http.StatusOK, openAIReply, &seen)
	provider, err := newOpenAIProvider(ClientConfig{APIKey: "test", Model: "o3", BaseURL: server.URL})
	require.NoError(t, err)

	_, _, _, err = provider.DoRequest(context.Background(), "analyze", nil)
	require.NoError(t, err)

	assert.NotContains(t, seen, "temperature")
	assert.NotContains(t, seen, "top_p")
	messages := seen["messages"].([]any)
	assert.Len(t, messages, 1, "no system message when none was given")
}

func TestOpenAIProvider_ErrorHandling(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   ErrorType
	}{
		{"unauthorized", http.StatusUnauthorized, ErrorTypeAuthentication},
		{"rate limited", http.StatusTooManyRequests, ErrorTypeRateLimit},
		{"server error", http.StatusInternalServerError, ErrorTypeServerError},
		{"bad request", http.StatusBadRequest, ErrorTypeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newOpenAITestServer(t, tt.status, `{"error": {"message": "nope", "type": "test"}}`, nil)
			provider, err := newOpenAIProvider(ClientConfig{APIKey: "test", Model: "gpt-4.1", BaseURL: server.URL})
			require.NoError(t, err)

			_, _, _, err = provider.DoRequest(context.Background(), "prompt", nil)

			var pe *ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.want, pe.Type)
			assert.Equal(t, tt.status, pe.StatusCode)
		})
	}
}

func TestOpenAIProvider_NoChoices(t *testing.T) {
	server := newOpenAITestServer(t, http.StatusOK, `{"id": "x", "choices": []}`, nil)
	provider, err := newOpenAIProvider(ClientConfig{APIKey: "test", Model: "gpt-4.1", BaseURL: server.URL})
	require.NoError(t, err)

	_, _, _, err = provider.DoRequest(context.Background(), "prompt", nil)
	assert.ErrorIs(t, err, ErrNoResponseChoice)
}

func TestOpenAIProvider_ContextCancellation(t *testing.T) {
	server := newOpenAITestServer(t, http.StatusOK, openAIReply, nil)
	provider, err := newOpenAIProvider(ClientConfig{APIKey: "test", Model: "gpt-4.1", BaseURL: server.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, _, err = provider.DoRequest(ctx, "prompt", nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsRetryable(err))
}

func TestOpenAIProvider_ReasoningModelsUseMaxCompletionTokens(t *testing.T) {
	var seen map[string]any
	server := newOpenAITestServer(t, http.StatusOK, openAIReply, &seen)
	provider, err := newOpenAIProvider(ClientConfig{APIKey: "test", Model: "o3", BaseURL: server.URL})
	require.NoError(t, err)

	_, _, _, err = provider.DoRequest(context.Background(), "analyze", map[string]any{OptMaxTokens: 256})
	require.NoError(t, err)

	assert.NotContains(t, seen, "max_tokens")
	assert.EqualValues(t, 256, seen["max_completion_tokens"])
}
