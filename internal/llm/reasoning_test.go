package llm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPostProcess_ExtractsPairedTag(t *testing.T) {
	t.Parallel()

	out := PostProcess("<thinking>Let me think.</thinking>The answer is 42.")

	require.Equal(t, "The answer is 42.", out.Content)
	require.Equal(t, "Let me think.", out.Thinking)
}

func TestPostProcess_ExtractsOrphanClosingTag(t *testing.T) {
	t.Parallel()

	out := PostProcess("Let me think about this.</think>The answer is 42.")

	require.Equal(t, "The answer is 42.", out.Content)
	require.Equal(t, "Let me think about this.", out.Thinking)
}

func TestPostProcess_IsIdempotentOnCleanedContent(t *testing.T) {
	t.Parallel()

	first := PostProcess("<reasoning>internal notes</reasoning>Final answer.")
	second := PostProcess(first.Content)

	require.Equal(t, first.Content, second.Content)
	require.Empty(t, second.Thinking)
}

func TestPostProcess_NoTagsReturnsContentUnchanged(t *testing.T) {
	t.Parallel()

	out := PostProcess("Just a plain reply.")

	require.Equal(t, "Just a plain reply.", out.Content)
	require.Empty(t, out.Thinking)
}

func TestReasoningBudget_MatchesApproximateShares(t *testing.T) {
	t.Parallel()

	require.Equal(t, 9500, ReasoningBudget("xhigh", 10000))
	require.Equal(t, 8000, ReasoningBudget("high", 10000))
	require.Equal(t, 0, ReasoningBudget("unknown", 10000))
}

func TestInterceptReasoning_InjectsTagWhenReasoningPresent(t *testing.T) {
	t.Parallel()

	out := InterceptReasoning("The answer is 42.", "Let me think.", nil)

	require.Equal(t, "<reasoning>Let me think.</reasoning>The answer is 42.", out)
}

func TestInterceptReasoning_NoOpWithoutReasoning(t *testing.T) {
	t.Parallel()

	out := InterceptReasoning("The answer is 42.", "", nil)

	require.Equal(t, "The answer is 42.", out)
}
