package ctxassembly

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripLeadingMentions(t *testing.T) {
	t.Parallel()
	aliases := []string{"Luna", "Luna the Moth"}

	assert.Equal(t, "hello there", StripLeadingMentions("@Luna hello there", aliases, 5))
	assert.Equal(t, "hello there", StripLeadingMentions("Luna, hello there", aliases, 5))
	assert.Equal(t, "hello there", StripLeadingMentions("@Luna the Moth hello there", aliases, 5))
	assert.Equal(t, "Lunatic ramblings", StripLeadingMentions("Lunatic ramblings", aliases, 5))
}

func TestStripLeadingMentions_Idempotent(t *testing.T) {
	t.Parallel()
	aliases := []string{"Luna"}
	once := StripLeadingMentions("@Luna hello", aliases, 5)
	twice := StripLeadingMentions(once, aliases, 5)
	assert.Equal(t, once, twice)
}

func TestStripLeadingMentions_NoAliasMatch(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "no mention here", StripLeadingMentions("no mention here", []string{"Luna"}, 5))
}
