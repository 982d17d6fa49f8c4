package gateway

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitDelivery_SmallContentIsOneChunk(t *testing.T) {
	t.Parallel()
	chunks := splitDelivery("short reply")
	require.Len(t, chunks, 1)
	assert.Equal(t, "short reply", chunks[0])
}

func TestSplitDelivery_ReconcatenatesExactly(t *testing.T) {
	t.Parallel()
	content := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 200)
	chunks := splitDelivery(content)
	require.Greater(t, len(chunks), 1)
	assert.Equal(t, content, strings.Join(chunks, ""))
}
