package cascade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWireRoundTrip(t *testing.T) {
	t.Parallel()
	temp := 0.9
	maxTokens := 2048
	reasoningTokens := 1200

	original := Resolved{
		Provider:    "anthropic",
		Model:       "claude-test",
		Temperature: &temp,
		MaxTokens:   &maxTokens,
		Stop:        []string{"STOP"},
		LogitBias:   map[string]float64{"50256": -100},
		Reasoning: ReasoningConfig{
			Effort:    "high",
			MaxTokens: &reasoningTokens,
			Enabled:   true,
		},
		ContextWindowTokens: 16384,
	}

	data, err := MarshalWire(original)
	require.NoError(t, err)

	roundTripped, err := UnmarshalWire(data)
	require.NoError(t, err)

	assert.Equal(t, original.Provider, roundTripped.Provider)
	assert.Equal(t, original.Model, roundTripped.Model)
	require.NotNil(t, roundTripped.Temperature)
	assert.Equal(t, *original.Temperature, *roundTripped.Temperature)
	require.NotNil(t, roundTripped.MaxTokens)
	assert.Equal(t, *original.MaxTokens, *roundTripped.MaxTokens)
	assert.Equal(t, original.Stop, roundTripped.Stop)
	assert.Equal(t, original.LogitBias, roundTripped.LogitBias)
	assert.Equal(t, original.Reasoning.Effort, roundTripped.Reasoning.Effort)
	require.NotNil(t, roundTripped.Reasoning.MaxTokens)
	assert.Equal(t, *original.Reasoning.MaxTokens, *roundTripped.Reasoning.MaxTokens)
	assert.Equal(t, original.Reasoning.Enabled, roundTripped.Reasoning.Enabled)
	assert.Equal(t, original.ContextWindowTokens, roundTripped.ContextWindowTokens)
}

func TestWireOmitsEmptyReasoning(t *testing.T) {
	t.Parallel()
	data, err := MarshalWire(Resolved{Provider: "openai", Model: "gpt-test"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"reasoning"`)
}
