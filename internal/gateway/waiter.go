package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"github.com/rs/zerolog/log"

	"tzurot/internal/queue"
)

// ReplyWaiter bridges C2's synchronous handleTurn contract (spec §4.2
// "(iv) Await completion") onto the asynchronous GenerateJob/GenerateResult
// pair that travels over Kafka (spec §6 Queue contract): a request id is
// registered before the job is published, and Run's background consumer
// resolves the matching channel when the correlated GenerateResult
// arrives on ReplyTopic. Job ordering across the queue is not guaranteed
// (spec §5), so correlation by request id rather than message order is
// load-bearing here, not an optimization.
type ReplyWaiter struct {
	mu      sync.Mutex
	pending map[string]chan queue.GenerateResult
}

func NewReplyWaiter() *ReplyWaiter {
	return &ReplyWaiter{pending: make(map[string]chan queue.GenerateResult)}
}

// Register allocates the channel a later Resolve delivers to. Callers
// must Register before publishing the job so a fast reply can never race
// ahead of registration.
func (w *ReplyWaiter) Register(requestID string) chan queue.GenerateResult {
	ch := make(chan queue.GenerateResult, 1)
	w.mu.Lock()
	w.pending[requestID] = ch
	w.mu.Unlock()
	return ch
}

// Forget removes a registration without waiting for a reply, used when
// the caller's deadline expires first; the worker may still complete the
// job, but C2 will not deliver it (spec §5).
func (w *ReplyWaiter) Forget(requestID string) {
	w.mu.Lock()
	delete(w.pending, requestID)
	w.mu.Unlock()
}

// Resolve delivers result to the waiter registered under its request id,
// if any is still waiting; a result with no matching registration (the
// caller already timed out and forgot it) is dropped.
func (w *ReplyWaiter) Resolve(result queue.GenerateResult) {
	w.mu.Lock()
	ch, ok := w.pending[result.RequestID]
	if ok {
		delete(w.pending, result.RequestID)
	}
	w.mu.Unlock()
	if !ok {
		return
	}
	ch <- result
}

// Run consumes ReplyTopic and dispatches every GenerateResult to Resolve
// until ctx is canceled. One ReplyWaiter's Run should back every gateway
// process instance; each process only ever awaits requests it itself
// registered; replies meant for a sibling gateway process are dropped by
// Resolve the same way a post-deadline reply is.
func (w *ReplyWaiter) Run(ctx context.Context, brokers []string, groupID, topic string) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer func() {
		if err := reader.Close(); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("error closing reply-waiter kafka reader")
		}
	}()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Ctx(ctx).Warn().Err(err).Msg("reply-waiter fetch error")
			t := time.NewTimer(500 * time.Millisecond)
			select {
			case <-t.C:
			case <-ctx.Done():
				if !t.Stop() {
					<-t.C
				}
				return ctx.Err()
			}
			continue
		}

		var result queue.GenerateResult
		if err := json.Unmarshal(m.Value, &result); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("malformed generate result, dropping")
		} else {
			w.Resolve(result)
		}

		if err := reader.CommitMessages(ctx, m); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("reply-waiter commit failed")
		}
	}
}

// Await registers requestID and blocks until a result arrives, ctx is
// done, or deadline elapses, whichever comes first. On timeout it
// forgets the registration so a late reply is dropped rather than
// leaked. Callers that must publish the job between registering and
// waiting (runInference, to close the register-before-publish race) call
// Register/Forget directly instead; Await suits call sites where nothing
// else needs to happen between the two.
func (w *ReplyWaiter) Await(ctx context.Context, requestID string, deadline time.Duration) (queue.GenerateResult, error) {
	ch := w.Register(requestID)
	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case result := <-ch:
		return result, nil
	case <-timer.C:
		w.Forget(requestID)
		return queue.GenerateResult{}, fmt.Errorf("await generate result: deadline exceeded for request %s", requestID)
	case <-ctx.Done():
		w.Forget(requestID)
		return queue.GenerateResult{}, ctx.Err()
	}
}
