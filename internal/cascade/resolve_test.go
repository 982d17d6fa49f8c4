package cascade

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestFold_ConfigCascadeOverride mirrors spec §8 concrete scenario 4:
// global default temperature=0.7, personality default temperature=0.5,
// user config_overrides temperature=0.9 → resolved temperature=0.9.
func TestFold_ConfigCascadeOverride(t *testing.T) {
	t.Parallel()

	layers := []map[string]any{
		{"temperature": 0.7},
		{"temperature": 0.5},
		{"temperature": 0.9},
	}

	merged := Fold(layers)

	require.InDelta(t, 0.9, merged["temperature"], 0.0001)
}

func TestFold_DeepMergesReasoningShallowOverridesScalars(t *testing.T) {
	t.Parallel()

	layers := []map[string]any{
		{"temperature": 0.7, "reasoning": map[string]any{"effort": "high", "enabled": true}},
		{"reasoning": map[string]any{"effort": "medium"}},
	}

	merged := Fold(layers)

	reasoning, ok := merged["reasoning"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "medium", reasoning["effort"])
	require.Equal(t, true, reasoning["enabled"])
	require.Equal(t, 0.7, merged["temperature"])
}

func TestValidateAdvancedParams_RejectsOutOfRangeLeaves(t *testing.T) {
	t.Parallel()

	doc := map[string]any{
		"temperature": 3.5,
		"topP":        0.5,
		"unknownLeaf": "pass-through",
	}

	validated, issues := ValidateAdvancedParams(doc)

	require.Len(t, issues, 1)
	require.Equal(t, "temperature", issues[0].Path)
	require.NotContains(t, validated, "temperature")
	require.Equal(t, 0.5, validated["topP"])
	require.Equal(t, "pass-through", validated["unknownLeaf"])
}

// TestValidateAdvancedParams_ReasoningMaxTokensBoundary checks the
// per-leaf [1024, 32000] range on reasoning.maxTokens: 32000 passes,
// 32001 fails. The cross-field "< top-level maxTokens" boundary is
// enforced at the resolve layer and covered by TestEnforceReasoningBudget.
func TestValidateAdvancedParams_ReasoningMaxTokensBoundary(t *testing.T) {
	t.Parallel()

	doc := map[string]any{
		"reasoning": map[string]any{"maxTokens": 32000.0},
	}
	validated, issues := ValidateAdvancedParams(doc)
	require.Empty(t, issues)
	reasoning := validated["reasoning"].(map[string]any)
	require.Equal(t, 32000.0, reasoning["maxTokens"])

	doc = map[string]any{
		"reasoning": map[string]any{"maxTokens": 32001.0},
	}
	_, issues = ValidateAdvancedParams(doc)
	require.Len(t, issues, 1)
	require.Equal(t, "reasoning.maxTokens", issues[0].Path)
}

func TestDropUnsafeReasoningCombination(t *testing.T) {
	t.Parallel()

	r := Resolved{ResponseFormat: "json_object", Reasoning: ReasoningConfig{Effort: "high"}}
	r = dropUnsafeReasoningCombination(r)
	require.Equal(t, ReasoningConfig{}, r.Reasoning)
}

// TestEnforceReasoningBudget mirrors spec §8's boundary: reasoning.maxTokens
// = maxTokens - 1 passes, reasoning.maxTokens = maxTokens fails.
func TestEnforceReasoningBudget(t *testing.T) {
	t.Parallel()

	maxTokens := 4096
	passing := maxTokens - 1
	out := Resolved{MaxTokens: &maxTokens, Reasoning: ReasoningConfig{MaxTokens: &passing}}
	issue, dropped := enforceReasoningBudget(&out)
	require.False(t, dropped)
	require.Zero(t, issue)
	require.NotNil(t, out.Reasoning.MaxTokens)
	require.Equal(t, passing, *out.Reasoning.MaxTokens)

	equal := maxTokens
	out = Resolved{MaxTokens: &maxTokens, Reasoning: ReasoningConfig{MaxTokens: &equal}}
	issue, dropped = enforceReasoningBudget(&out)
	require.True(t, dropped)
	require.Equal(t, "reasoning.maxTokens", issue.Path)
	require.Nil(t, out.Reasoning.MaxTokens)
}

func TestEnforceReasoningBudget_NoopWhenEitherSideUnset(t *testing.T) {
	t.Parallel()

	out := Resolved{Reasoning: ReasoningConfig{}}
	_, dropped := enforceReasoningBudget(&out)
	require.False(t, dropped)

	maxTokens := 4096
	out = Resolved{MaxTokens: &maxTokens}
	_, dropped = enforceReasoningBudget(&out)
	require.False(t, dropped)
}
