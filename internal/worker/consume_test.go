package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tzurot/internal/cascade"
	"tzurot/internal/config"
	"tzurot/internal/llm"
	"tzurot/internal/queue"
)

type fakeProvider struct {
	resp llm.Response
	err  error
}

func (f fakeProvider) Chat(ctx context.Context, req llm.Request) (llm.Response, error) {
	return f.resp, f.err
}

func newTestConsumer(t *testing.T, resp llm.Response, chatErr error) (*Consumer, queue.GenerateJob) {
	t.Helper()
	c := NewConsumer(config.LLMConfig{}, nil, nil, 0)
	c.buildProvider = func(ctx context.Context, providerName, model string, cfg config.LLMConfig) (llm.Provider, error) {
		return fakeProvider{resp: resp, err: chatErr}, nil
	}

	resolved := cascade.Resolved{Provider: "openai", Model: "gpt-test"}
	wire, err := cascade.MarshalWire(resolved)
	require.NoError(t, err)

	job := queue.GenerateJob{
		RequestID:      "req-1",
		CorrelationID:  "corr-1",
		PersonalityID:  "persona-1",
		Provider:       "openai",
		Model:          "gpt-test",
		ResolvedConfig: wire,
		Messages:       []llm.Message{{Role: "user", Content: "hello"}},
	}
	return c, job
}

func TestConsumerHandle_ReasoningPassThrough(t *testing.T) {
	t.Parallel()
	c, job := newTestConsumer(t, llm.Response{
		Content: "<reasoning>Let me think.</reasoning>The answer is 42.",
	}, nil)

	result, err := c.Handle(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, "The answer is 42.", result.Content)
	assert.Equal(t, "Let me think.", result.ThinkingContent)
}

func TestConsumerHandle_EmptyAfterReasoningNoError(t *testing.T) {
	t.Parallel()
	c, job := newTestConsumer(t, llm.Response{
		Content: "<reasoning>Spent the whole budget thinking.</reasoning>",
	}, nil)

	result, err := c.Handle(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, "success", result.Status)
	assert.Empty(t, result.Content)
	assert.Equal(t, "Spent the whole budget thinking.", result.ThinkingContent)
}

func TestConsumerHandle_ProviderErrorIsRetriable(t *testing.T) {
	t.Parallel()
	c, job := newTestConsumer(t, llm.Response{}, assert.AnError)

	_, err := c.Handle(context.Background(), job)
	require.Error(t, err)
}

func TestConsumerHandle_InvalidResolvedConfigIsNonRetriable(t *testing.T) {
	t.Parallel()
	c, job := newTestConsumer(t, llm.Response{Content: "unused"}, nil)
	job.ResolvedConfig = []byte(`{not valid json`)

	result, err := c.Handle(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, "error", result.Status)
	assert.Equal(t, "ConfigInvalid", result.ErrorKind)
}
