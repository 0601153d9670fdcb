package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestGoogleProvider_RequiresAPIKey(t *testing.T) {
	_, err := newGoogleProvider(ClientConfig{Model: "gemini-2.5-flash"})
	assert.ErrorIs(t, err, ErrEmptyAPIKey)
}

func TestGoogleProvider_BuildConfig(t *testing.T) {
	p := &googleProvider{model: "gemini-2.5-flash"}

	config := p.buildConfig(ParseRequestOptions(map[string]any{
		OptSystem:      "Referee.",
		OptTemperature: 0.0,
		OptTopP:        1.0,
		OptMaxTokens:   64,
		"top_k":        40,
	}, p.model))

	require.NotNil(t, config.Temperature)
	assert.Zero(t, *config.Temperature)
	require.NotNil(t, config.TopP)
	assert.Equal(t, float32(1), *config.TopP)
	require.NotNil(t, config.TopK)
	assert.Equal(t, float32(40), *config.TopK)
	assert.Equal(t, int32(64), config.MaxOutputTokens)
	require.NotNil(t, config.SystemInstruction)
}

func TestGoogleProvider_HandleError(t *testing.T) {
	p := &googleProvider{classifier: ErrorClassifier{Provider: "google"}}

	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{
			name: "safety block",
			err:  &googleapi.Error{Code: http.StatusBadRequest, Message: "Response blocked due to SAFETY"},
			want: ErrorTypeContentPolicy,
		},
		{
			name: "safety reason",
			err: &googleapi.Error{Code: http.StatusBadRequest, Message: "bad", Errors: []googleapi.ErrorItem{
				{Reason: "SAFETY"},
			}},
			want: ErrorTypeContentPolicy,
		},
		{
			name: "quota",
			err:  &googleapi.Error{Code: http.StatusTooManyRequests, Message: "quota exceeded"},
			want: ErrorTypeRateLimit,
		},
		{
			name: "deadline",
			err:  context.DeadlineExceeded,
			want: ErrorTypeTimeout,
		},
		{
			name: "unknown",
			err:  errors.New("socket closed"),
			want: ErrorTypeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var pe *ProviderError
			require.ErrorAs(t, p.handleError(tt.err), &pe)
			assert.Equal(t, tt.want, pe.Type)
		})
	}
}
