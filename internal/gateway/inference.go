package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"tzurot/internal/cascade"
	"tzurot/internal/corekit"
	"tzurot/internal/llm"
	"tzurot/internal/model"
	"tzurot/internal/queue"
)

// runInference enqueues a GenerateJob and awaits its correlated
// GenerateResult (spec §4.2 steps iii-iv). Publish failures are retried
// with jitter up to gwCfg.EnqueueRetryMs before surfacing a retriable
// queue error (spec §4.2 Failure semantics: "Queue unavailable -> retry
// with jitter up to a deadline; beyond that, surface a personality-scoped
// error message").
func (g *Gateway) runInference(ctx context.Context, requestID, channelID, userID string, personality model.Personality, resolved cascade.Resolved, messages []llm.Message) (queue.GenerateResult, error) {
	resolvedWire, err := cascade.MarshalWire(resolved)
	if err != nil {
		return queue.GenerateResult{}, corekit.Wrap(corekit.KindConfigInvalid, "gateway.marshal_cascade", err)
	}

	job := queue.GenerateJob{
		RequestID:      requestID,
		CorrelationID:  requestID,
		ReplyTopic:     g.queueCfg.ReplyTopic,
		PersonalityID:  personality.ID,
		ChannelID:      channelID,
		UserID:         userID,
		Provider:       resolved.Provider,
		Model:          resolved.Model,
		ShowThinking:   resolved.ShowThinking,
		ResolvedConfig: resolvedWire,
		Messages:       messages,
	}

	// Register before publish so a fast reply can never race ahead of
	// the waiter's registration.
	waiterCh := g.waiter.Register(requestID)

	if err := g.publishWithRetry(ctx, job); err != nil {
		g.waiter.Forget(requestID)
		return queue.GenerateResult{}, corekit.Wrap(corekit.KindInferenceRetriable, "gateway.enqueue_job", err)
	}

	select {
	case result := <-waiterCh:
		return result, nil
	case <-ctx.Done():
		g.waiter.Forget(requestID)
		return queue.GenerateResult{}, corekit.Wrap(corekit.KindInferenceRetriable, "gateway.await_result", ctx.Err())
	}
}

// publishWithRetry retries PublishJSON with full jitter backoff until
// retryDeadline elapses, the way the teacher's queue producers treat a
// broker hiccup as transient rather than fatal.
func (g *Gateway) publishWithRetry(ctx context.Context, job queue.GenerateJob) error {
	deadline := time.Now().Add(time.Duration(g.gwCfg.EnqueueRetryMs) * time.Millisecond)
	attempt := 0
	for {
		err := g.producer.PublishJSON(ctx, g.queueCfg.GenerateTopic, job.RequestID, job)
		if err == nil {
			return nil
		}
		attempt++
		if time.Now().After(deadline) || ctx.Err() != nil {
			return fmt.Errorf("publish generate job after %d attempts: %w", attempt, err)
		}
		backoff := time.Duration(rand.Intn(500)+100) * time.Millisecond
		log.Ctx(ctx).Warn().Err(err).Int("attempt", attempt).Dur("backoff", backoff).Msg("enqueue generate job failed, retrying")
		t := time.NewTimer(backoff)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
}
