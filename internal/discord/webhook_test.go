package discord

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeUsername_StripsQuotesAndMentionTokens(t *testing.T) {
	t.Parallel()

	got := sanitizeUsername(`"Nova" @#1`)
	assert.NotContains(t, got, `"`)
	assert.NotContains(t, got, "@")
	assert.NotContains(t, got, "#")
}

func TestSanitizeUsername_FallsBackWhenEmptyAfterStrip(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Personality", sanitizeUsername(`"""`))
	assert.Equal(t, "Personality", sanitizeUsername(""))
	assert.Equal(t, "Personality", sanitizeUsername("   "))
}

func TestSanitizeUsername_TruncatesToDiscordLimit(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("a", 50)
	got := sanitizeUsername(long)
	assert.LessOrEqual(t, len(got), maxUsernameChars)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestSanitizeUsername_ShortNamePassesThroughUnchanged(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Nova", sanitizeUsername("Nova"))
}

func TestOutboundDedup_NearDuplicateSuppressedAboveThreshold(t *testing.T) {
	t.Parallel()

	d := NewOutboundDedup(0.9, 10, 0)
	d.Record("chan-1", "Nova", "hello there friend, how are you today")

	assert.True(t, d.IsNearDuplicate("chan-1", "Nova", "hello there friend, how are you today"))
}

func TestOutboundDedup_DistinctContentNotSuppressed(t *testing.T) {
	t.Parallel()

	d := NewOutboundDedup(0.9, 10, 0)
	d.Record("chan-1", "Nova", "hello there friend, how are you today")

	assert.False(t, d.IsNearDuplicate("chan-1", "Nova", "a completely unrelated sentence about soup"))
}

func TestOutboundDedup_ScopedPerChannelAndUsername(t *testing.T) {
	t.Parallel()

	d := NewOutboundDedup(0.9, 10, 0)
	d.Record("chan-1", "Nova", "the quick brown fox jumps over the lazy dog")

	assert.False(t, d.IsNearDuplicate("chan-2", "Nova", "the quick brown fox jumps over the lazy dog"), "different channel should not share history")
	assert.False(t, d.IsNearDuplicate("chan-1", "Echo", "the quick brown fox jumps over the lazy dog"), "different username should not share history")
}

func TestTrigramSet_ShortContentFallsBackToWholeString(t *testing.T) {
	t.Parallel()

	set := trigramSet("hi")
	assert.Len(t, set, 1)
}
