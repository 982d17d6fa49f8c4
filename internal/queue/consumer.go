package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"github.com/rs/zerolog/log"
)

// HandleFunc executes one job and returns its result. Returning an error
// marks the attempt as transient and eligible for retry; a non-nil
// result with Status "error" is a terminal, non-retriable outcome
// reported back on ReplyTopic instead of retried.
type HandleFunc func(ctx context.Context, job GenerateJob) (GenerateResult, error)

// StartConsumer runs a bounded-concurrency Kafka consumer loop, grounded
// on the teacher's internal/orchestrator/kafka.go StartKafkaConsumer:
// fetch → dispatch to a worker pool → retry transient handler errors
// with exponential backoff → DLQ after exhausting retries → commit
// unconditionally once an outcome (success or DLQ) is reached.
func StartConsumer(ctx context.Context, brokers []string, groupID, topic string, producer *Producer, dedupe DedupeStore, defaultReplyTopic string, workerCount int, dedupeTTL time.Duration, maxAttempts int, handle HandleFunc) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer func() {
		if err := reader.Close(); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("error closing kafka reader")
		}
	}()

	if workerCount <= 0 {
		workerCount = 4
	}
	jobs := make(chan kafka.Message, workerCount*4)

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go func(workerID int) {
			defer wg.Done()
			for msg := range jobs {
				processMessage(ctx, msg, producer, dedupe, defaultReplyTopic, dedupeTTL, maxAttempts, handle)
				if err := reader.CommitMessages(ctx, msg); err != nil {
					log.Ctx(ctx).Warn().Err(err).Int("worker", workerID).Msg("commit failed")
				}
			}
		}(i)
	}

	go func() {
		defer close(jobs)
		for {
			if ctx.Err() != nil {
				return
			}
			m, err := reader.FetchMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				log.Ctx(ctx).Warn().Err(err).Msg("fetch error")
				t := time.NewTimer(500 * time.Millisecond)
				select {
				case <-t.C:
				case <-ctx.Done():
					if !t.Stop() {
						<-t.C
					}
					return
				}
				continue
			}
			select {
			case jobs <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	return ctx.Err()
}

func processMessage(ctx context.Context, msg kafka.Message, producer *Producer, dedupe DedupeStore, defaultReplyTopic string, dedupeTTL time.Duration, maxAttempts int, handle HandleFunc) {
	var job GenerateJob
	if err := json.Unmarshal(msg.Value, &job); err != nil {
		publishDLQ(ctx, producer, defaultReplyTopic, string(msg.Key), "", "malformed job JSON: "+err.Error())
		return
	}
	if job.RequestID == "" {
		publishDLQ(ctx, producer, pickReplyTopic(job.ReplyTopic, defaultReplyTopic), string(msg.Key), job.CorrelationID, "missing request_id")
		return
	}

	if prev, err := dedupe.Get(ctx, job.RequestID); err == nil && prev != "" {
		log.Ctx(ctx).Debug().Str("request_id", job.RequestID).Msg("duplicate completion discarded")
		return
	}

	replyTopic := pickReplyTopic(job.ReplyTopic, defaultReplyTopic)
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	var result GenerateResult
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		started := time.Now()
		result, lastErr = handle(ctx, job)
		result.DurationMillis = time.Since(started).Milliseconds()
		if lastErr == nil {
			break
		}
		if attempt < maxAttempts && isTransientError(lastErr) && ctx.Err() == nil {
			backoff := time.Duration(200*(1<<uint(attempt-1))) * time.Millisecond
			log.Ctx(ctx).Warn().Err(lastErr).Int("attempt", attempt).Dur("backoff", backoff).Msg("transient inference error, retrying")
			t := time.NewTimer(backoff)
			select {
			case <-t.C:
			case <-ctx.Done():
			}
			continue
		}
		break
	}

	if lastErr != nil {
		publishDLQ(ctx, producer, replyTopic, string(msg.Key), job.CorrelationID, lastErr.Error())
		return
	}

	result.RequestID = job.RequestID
	result.CorrelationID = job.CorrelationID
	if result.Status == "" {
		result.Status = "success"
	}
	if err := producer.PublishJSON(ctx, replyTopic, job.RequestID, result); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("request_id", job.RequestID).Msg("publish result failed")
		return
	}
	if err := dedupe.Set(ctx, job.RequestID, result.Status, dedupeTTL); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("request_id", job.RequestID).Msg("dedupe set failed")
	}
}

func publishDLQ(ctx context.Context, producer *Producer, replyTopic, key, correlationID, reason string) {
	dlq := GenerateResult{CorrelationID: correlationID, Status: "error", Error: reason}
	topic := dlqTopicFor(replyTopic)
	if topic == "" {
		log.Ctx(ctx).Error().Str("reason", reason).Msg("dropping job: no reply topic to derive dlq from")
		return
	}
	if err := producer.PublishJSON(ctx, topic, key, dlq); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("dlq_topic", topic).Msg("failed to publish to dlq")
	}
}

func pickReplyTopic(jobTopic, defaultTopic string) string {
	if t := strings.TrimSpace(jobTopic); t != "" {
		return t
	}
	return defaultTopic
}

// isTransientError applies the same error-text heuristic as the
// teacher's orchestrator/handler.go isTransientError, reused unmodified
// since provider SDKs and Kafka failures both surface the same
// vocabulary ("timeout", "temporarily unavailable", "too many
// requests").
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "temporary") ||
		strings.Contains(s, "temporarily unavailable") ||
		strings.Contains(s, "transient") ||
		strings.Contains(s, "429") ||
		strings.Contains(s, "too many requests") ||
		strings.Contains(s, "server error") ||
		strings.Contains(s, "connection reset") ||
		strings.Contains(s, "eof")
}
