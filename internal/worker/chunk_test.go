package worker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitForDelivery_UnderBudgetIsSingleChunk(t *testing.T) {
	t.Parallel()
	chunks := SplitForDelivery("short reply", 2000)
	require.Len(t, chunks, 1)
	assert.Equal(t, "short reply", chunks[0].Text)
	assert.True(t, chunks[0].Last)
}

func TestSplitForDelivery_Empty(t *testing.T) {
	t.Parallel()
	assert.Nil(t, SplitForDelivery("", 2000))
}

func TestSplitForDelivery_ReconcatenationEqualsOriginal(t *testing.T) {
	t.Parallel()
	var b strings.Builder
	for i := 0; i < 50; i++ {
		b.WriteString("This is sentence number ")
		b.WriteString(strings.Repeat("x", i%7))
		b.WriteString(". ")
		if i%5 == 0 {
			b.WriteString("\n\n")
		}
	}
	text := b.String()

	chunks := SplitForDelivery(text, 120)
	require.Greater(t, len(chunks), 1)

	var rebuilt strings.Builder
	for i, c := range chunks {
		rebuilt.WriteString(c.Text)
		if i < len(chunks)-1 {
			assert.False(t, c.Last)
		}
	}
	assert.Equal(t, text, rebuilt.String())
	assert.True(t, chunks[len(chunks)-1].Last)
}

func TestSplitForDelivery_NoChunkExceedsBudget(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("word ", 2000)
	chunks := SplitForDelivery(text, 200)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Text), 200)
	}
}

func TestSplitForDelivery_OnlyLastChunkMarkedLast(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("a b c d e f g h. ", 100)
	chunks := SplitForDelivery(text, 50)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks[:len(chunks)-1] {
		assert.False(t, c.Last)
	}
	assert.True(t, chunks[len(chunks)-1].Last)
}
