package memorywriter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tzurot/internal/llm"
)

type fakeProvider struct {
	resp llm.Response
	err  error
}

func (f fakeProvider) Chat(ctx context.Context, req llm.Request) (llm.Response, error) {
	return f.resp, f.err
}

func TestDistill_ReturnsSummary(t *testing.T) {
	t.Parallel()
	p := fakeProvider{resp: llm.Response{Content: "  Learned the user prefers tea over coffee.  "}}

	summary, err := Distill(context.Background(), p, "gpt-4o-mini", "Luna", "I prefer tea", "Noted, tea it is")
	require.NoError(t, err)
	assert.Equal(t, "Learned the user prefers tea over coffee.", summary)
}

func TestDistill_SkipsTrivialSummary(t *testing.T) {
	t.Parallel()
	for _, trivial := range []string{"none", "None.", "N/A", "nothing"} {
		p := fakeProvider{resp: llm.Response{Content: trivial}}
		summary, err := Distill(context.Background(), p, "gpt-4o-mini", "Luna", "hi", "hello")
		require.NoError(t, err)
		assert.Equal(t, "", summary, "trivial summary %q should be skipped", trivial)
	}
}

func TestDistill_SkipsEmptySummary(t *testing.T) {
	t.Parallel()
	p := fakeProvider{resp: llm.Response{Content: "   "}}
	summary, err := Distill(context.Background(), p, "gpt-4o-mini", "Luna", "hi", "hello")
	require.NoError(t, err)
	assert.Equal(t, "", summary)
}

func TestDistill_PropagatesProviderError(t *testing.T) {
	t.Parallel()
	p := fakeProvider{err: errors.New("provider unavailable")}
	_, err := Distill(context.Background(), p, "gpt-4o-mini", "Luna", "hi", "hello")
	require.Error(t, err)
}
