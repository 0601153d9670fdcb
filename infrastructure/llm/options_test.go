package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequestOptions(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		ro := ParseRequestOptions(nil, "gpt-4.1")

		assert.Equal(t, "gpt-4.1", ro.Model)
		assert.Equal(t, DefaultMaxTokens, ro.MaxTokens)
		assert.Nil(t, ro.Temperature)
		assert.Nil(t, ro.TopP)
		assert.Empty(t, ro.System)
	})

	t.Run("judge call", func(t *testing.T) {
		ro := ParseRequestOptions(map[string]any{
			OptSystem:      "You compare analyses.",
			OptTemperature: 0.0,
			OptTopP:        1,
			OptMaxTokens:   int64(16),
			"seed":         7,
		}, "gpt-4.1")

		require.NotNil(t, ro.Temperature)
		require.NotNil(t, ro.TopP)
		assert.Zero(t, *ro.Temperature, "explicit zero is kept")
		assert.Equal(t, 1.0, *ro.TopP)
		assert.Equal(t, 16, ro.MaxTokens)
		assert.Equal(t, "You compare analyses.", ro.System)
		assert.Equal(t, 7, ro.Extra["seed"])
	})

	t.Run("model override", func(t *testing.T) {
		ro := ParseRequestOptions(map[string]any{OptModel: "gpt-5"}, "gpt-4.1")
		assert.Equal(t, "gpt-5", ro.Model)
	})
}
