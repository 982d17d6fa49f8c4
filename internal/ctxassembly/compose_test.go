package ctxassembly

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tzurot/internal/model"
)

func TestCompose_BasicOrdering(t *testing.T) {
	t.Parallel()
	in := ComposeInput{
		SystemPromptBody: "You are Luna.",
		History: []HistoryTurn{
			{Turn: model.ConversationTurn{UserContent: "hi", AssistantContent: "hello"}},
		},
		CurrentUserText: "how are you",
	}
	msgs := Compose(in)
	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "You are Luna.")
	assert.Equal(t, "user", msgs[1].Role)
	assert.Equal(t, "hi", msgs[1].Content)
	assert.Equal(t, "assistant", msgs[2].Role)
	assert.Equal(t, "hello", msgs[2].Content)
	assert.Equal(t, "user", msgs[3].Role)
	assert.Equal(t, "how are you", msgs[3].Content)
}

func TestCompose_SystemPromptSectionsInOrder(t *testing.T) {
	t.Parallel()
	in := ComposeInput{
		SystemPromptBody: "Persona block.",
		Background:       []BackgroundKnowledge{{Title: "Lore", Body: "The moon is made of cheese."}},
		Memories: []RetrievedMemory{
			{Memory: model.Memory{CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}, FullText: "User likes tea.", Distance: 0.1},
		},
		CurrentUserText: "hi",
	}
	msgs := Compose(in)
	sys := msgs[0].Content

	personaIdx := 0
	bgIdx := indexOf(sys, "## Background Knowledge")
	memIdx := indexOf(sys, "## Relevant Memories")
	require.Greater(t, bgIdx, personaIdx)
	require.Greater(t, memIdx, bgIdx)
	assert.Contains(t, sys, "The moon is made of cheese.")
	assert.Contains(t, sys, "User likes tea.")
}

func TestCompose_ContextHeaderSuppressedForDM(t *testing.T) {
	t.Parallel()
	in := ComposeInput{
		SystemPromptBody: "sys",
		CurrentUserText:  "hello",
		Channel: ChannelContext{
			GuildName: "Guild", ChannelName: "general", IsDM: true, HeaderEnabled: true,
		},
	}
	msgs := Compose(in)
	assert.Equal(t, "hello", msgs[len(msgs)-1].Content)
}

func TestCompose_ContextHeaderPresent(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	in := ComposeInput{
		SystemPromptBody: "sys",
		CurrentUserText:  "hello",
		Channel: ChannelContext{
			GuildName: "Guild", ChannelName: "general", HeaderEnabled: true, Now: now,
		},
	}
	msgs := Compose(in)
	last := msgs[len(msgs)-1].Content
	assert.Contains(t, last, "[Discord: Guild > #general |")
	assert.Contains(t, last, "hello")
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
