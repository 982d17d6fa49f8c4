package memorywriter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkForEmbedding_SmallTextPassesThrough(t *testing.T) {
	t.Parallel()
	chunks := ChunkForEmbedding("a short memory")
	require.Len(t, chunks, 1)
	assert.Equal(t, "a short memory", chunks[0])
}

func TestChunkForEmbedding_Empty(t *testing.T) {
	t.Parallel()
	assert.Nil(t, ChunkForEmbedding(""))
}

func TestChunkForEmbedding_OversizeReconcatenatesExactly(t *testing.T) {
	t.Parallel()
	var b strings.Builder
	for i := 0; i < 2000; i++ {
		b.WriteString("the quick brown fox jumps over the lazy dog. ")
	}
	text := b.String()

	chunks := ChunkForEmbedding(text)
	require.Greater(t, len(chunks), 1)

	var rebuilt strings.Builder
	for _, c := range chunks {
		require.LessOrEqual(t, len(c), maxChunkChars)
		rebuilt.WriteString(c)
	}
	assert.Equal(t, text, rebuilt.String())
}

func TestChunkForEmbedding_SplitsOnParagraphBoundaryWhenAvailable(t *testing.T) {
	t.Parallel()
	para := strings.Repeat("x", maxChunkChars/2)
	text := para + "\n\n" + para + "\n\n" + para
	chunks := ChunkForEmbedding(text)
	require.GreaterOrEqual(t, len(chunks), 2)
	for _, c := range chunks[:len(chunks)-1] {
		assert.True(t, strings.HasSuffix(c, "\n\n") || len(c) == maxChunkChars)
	}
}
