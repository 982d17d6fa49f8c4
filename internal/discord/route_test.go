package discord

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLeadingMentionAlias_MatchesLeadingToken(t *testing.T) {
	t.Parallel()

	alias, ok := leadingMentionAlias("@nova hey there")
	assert.True(t, ok)
	assert.Equal(t, "nova", alias)
}

func TestLeadingMentionAlias_CaseInsensitive(t *testing.T) {
	t.Parallel()

	alias, ok := leadingMentionAlias("@Nova hey there")
	assert.True(t, ok)
	assert.Equal(t, "nova", alias)
}

func TestLeadingMentionAlias_MidMessageMentionDoesNotCount(t *testing.T) {
	t.Parallel()

	_, ok := leadingMentionAlias("hey @nova how are you")
	assert.False(t, ok)
}

func TestLeadingMentionAlias_NoLeadingAtSign(t *testing.T) {
	t.Parallel()

	_, ok := leadingMentionAlias("just a regular message")
	assert.False(t, ok)
}

func TestLeadingMentionAlias_BareAtSignIsNotAnAlias(t *testing.T) {
	t.Parallel()

	_, ok := leadingMentionAlias("@ ")
	assert.False(t, ok)
}

func TestSentMessageIndex_RememberAndLookup(t *testing.T) {
	t.Parallel()

	idx := newSentMessageIndex(10)
	idx.remember("msg-1", "personality-a")

	personalityID, ok := idx.lookup("msg-1")
	assert.True(t, ok)
	assert.Equal(t, "personality-a", personalityID)

	_, ok = idx.lookup("msg-unknown")
	assert.False(t, ok)
}

func TestSentMessageIndex_EvictsOldestBeyondCapacity(t *testing.T) {
	t.Parallel()

	idx := newSentMessageIndex(2)
	idx.remember("msg-1", "p1")
	idx.remember("msg-2", "p2")
	idx.remember("msg-3", "p3") // evicts msg-1

	_, ok := idx.lookup("msg-1")
	assert.False(t, ok)

	_, ok = idx.lookup("msg-3")
	assert.True(t, ok)
}

func TestRateLimiter_AllowsUpToLimitThenBlocks(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(3)
	userID := "user-1"

	assert.True(t, rl.Allow(userID))
	assert.True(t, rl.Allow(userID))
	assert.True(t, rl.Allow(userID))
	assert.False(t, rl.Allow(userID), "fourth message within the window should be blocked")
}

func TestRateLimiter_TracksUsersIndependently(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(1)

	assert.True(t, rl.Allow("user-a"))
	assert.True(t, rl.Allow("user-b"), "a different user should have its own independent budget")
	assert.False(t, rl.Allow("user-a"))
}
