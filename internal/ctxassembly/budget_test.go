package ctxassembly

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tzurot/internal/model"
)

func TestTrimToBudget_DropsOldestHistoryFirst(t *testing.T) {
	t.Parallel()
	in := ComposeInput{
		SystemPromptBody: "sys",
		History: []HistoryTurn{
			{Turn: model.ConversationTurn{UserContent: "oldest", AssistantContent: strings.Repeat("a", 200)}},
			{Turn: model.ConversationTurn{UserContent: "newest", AssistantContent: strings.Repeat("b", 200)}},
		},
		Memories:        []RetrievedMemory{{FullText: "memory one", Distance: 0.1}},
		CurrentUserText: "current",
	}

	before := countTokens(context.Background(), nil, in)
	TrimToBudget(context.Background(), nil, &in, before-5)

	require.Len(t, in.History, 1)
	assert.Equal(t, "newest", in.History[0].Turn.UserContent)
	require.Len(t, in.Memories, 1, "memories must survive while history can still be trimmed")
}

func TestTrimToBudget_DropsLowestSimilarityMemoriesAfterHistoryExhausted(t *testing.T) {
	t.Parallel()
	in := ComposeInput{
		SystemPromptBody: "sys",
		Memories: []RetrievedMemory{
			{FullText: strings.Repeat("x", 50), Distance: 0.05},
			{FullText: strings.Repeat("y", 50), Distance: 0.30},
		},
		CurrentUserText: "current",
	}

	before := countTokens(context.Background(), nil, in)
	TrimToBudget(context.Background(), nil, &in, before-5)

	require.Len(t, in.Memories, 1)
	assert.Less(t, in.Memories[0].Distance, 0.1, "the best-matching memory must survive")
}

func TestTrimToBudget_NeverDropsSystemPromptOrCurrentTurn(t *testing.T) {
	t.Parallel()
	in := ComposeInput{
		SystemPromptBody: "irreplaceable persona block",
		History: []HistoryTurn{
			{Turn: model.ConversationTurn{UserContent: "a", AssistantContent: "b"}},
		},
		Memories:        []RetrievedMemory{{FullText: "m"}},
		CurrentUserText: "the current turn",
	}
	TrimToBudget(context.Background(), nil, &in, 1)

	msgs := Compose(in)
	assert.Contains(t, msgs[0].Content, "irreplaceable persona block")
	assert.Equal(t, "the current turn", msgs[len(msgs)-1].Content)
}

func TestTrimToBudget_NoopUnderBudget(t *testing.T) {
	t.Parallel()
	in := ComposeInput{
		SystemPromptBody: "sys",
		History: []HistoryTurn{
			{Turn: model.ConversationTurn{UserContent: "a", AssistantContent: "b"}},
		},
		CurrentUserText: "c",
	}
	TrimToBudget(context.Background(), nil, &in, 1_000_000)
	require.Len(t, in.History, 1)
}
