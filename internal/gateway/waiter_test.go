package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tzurot/internal/queue"
)

func TestReplyWaiter_ResolveDeliversToAwaiter(t *testing.T) {
	t.Parallel()
	w := NewReplyWaiter()

	done := make(chan queue.GenerateResult, 1)
	go func() {
		result, err := w.Await(context.Background(), "req-1", time.Second)
		require.NoError(t, err)
		done <- result
	}()

	// give the goroutine a moment to register before resolving, the way
	// a real reply would arrive strictly after the job publish that
	// follows Register.
	time.Sleep(10 * time.Millisecond)
	w.Resolve(queue.GenerateResult{RequestID: "req-1", Content: "hello"})

	select {
	case result := <-done:
		assert.Equal(t, "hello", result.Content)
	case <-time.After(time.Second):
		t.Fatal("Await never returned")
	}
}

func TestReplyWaiter_AwaitTimesOutAndForgets(t *testing.T) {
	t.Parallel()
	w := NewReplyWaiter()

	_, err := w.Await(context.Background(), "req-timeout", 20*time.Millisecond)
	require.Error(t, err)

	// A late-arriving result for a forgotten request is dropped, not
	// delivered to a stale channel no one reads anymore.
	w.Resolve(queue.GenerateResult{RequestID: "req-timeout"})

	w.mu.Lock()
	_, stillPending := w.pending["req-timeout"]
	w.mu.Unlock()
	assert.False(t, stillPending)
}

func TestReplyWaiter_ResolveWithNoWaiterIsNoop(t *testing.T) {
	t.Parallel()
	w := NewReplyWaiter()
	w.Resolve(queue.GenerateResult{RequestID: "nobody-waiting"})
}

func TestReplyWaiter_AwaitCanceledContext(t *testing.T) {
	t.Parallel()
	w := NewReplyWaiter()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Await(ctx, "req-canceled", time.Second)
	require.Error(t, err)
}

func TestReplyWaiter_RegisterThenForget(t *testing.T) {
	t.Parallel()
	w := NewReplyWaiter()
	ch := w.Register("req-2")
	w.Forget("req-2")

	w.Resolve(queue.GenerateResult{RequestID: "req-2"})
	select {
	case <-ch:
		t.Fatal("forgotten registration should not receive a late resolve")
	case <-time.After(20 * time.Millisecond):
	}
}
