package memorywriter

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"github.com/rs/zerolog/log"

	"tzurot/internal/config"
	"tzurot/internal/db"
	"tzurot/internal/llm"
	"tzurot/internal/queue"
)

// Consumer pulls MemoryJob payloads off the memory topic and runs the
// distill/chunk/embed/persist pipeline against the turn each job names.
// Unlike the inference worker's consumer, a handler failure here is not
// retried at the Kafka level: Write already enqueues a PendingMemory on
// failure, so the job is always committed once attempted (spec §4.5's
// own retry loop owns recovery from here).
type Consumer struct {
	turns    *db.TurnRepo
	personas *db.PersonaRepo
	memories *db.MemoryRepo
	pending  *db.PendingMemoryRepo
	provider llm.Provider
	model    string
	embCfg   config.EmbeddingsConfig
}

func NewConsumer(turns *db.TurnRepo, personas *db.PersonaRepo, memories *db.MemoryRepo, pending *db.PendingMemoryRepo, provider llm.Provider, model string, embCfg config.EmbeddingsConfig) *Consumer {
	return &Consumer{turns: turns, personas: personas, memories: memories, pending: pending, provider: provider, model: model, embCfg: embCfg}
}

// Handle loads the turn and persona a job names and runs Write against
// them. Errors are logged, not returned, since Write already routed any
// failure to the pending-memory queue; there is nothing left to retry at
// the Kafka layer.
func (c *Consumer) Handle(ctx context.Context, job queue.MemoryJob) {
	turn, err := c.turns.GetByID(ctx, job.TurnID)
	if err != nil {
		log.Error().Err(err).Str("turn_id", job.TurnID).Msg("memory job: turn not found")
		if _, perr := c.pending.Enqueue(ctx, job.TurnID, "turn lookup failed: "+err.Error()); perr != nil {
			log.Error().Err(perr).Str("turn_id", job.TurnID).Msg("memory job: failed to enqueue pending memory")
		}
		return
	}

	persona, err := c.personas.GetByID(ctx, turn.PersonaID)
	if err != nil {
		log.Error().Err(err).Str("persona_id", turn.PersonaID).Msg("memory job: persona not found")
		if _, perr := c.pending.Enqueue(ctx, job.TurnID, "persona lookup failed: "+err.Error()); perr != nil {
			log.Error().Err(perr).Str("turn_id", job.TurnID).Msg("memory job: failed to enqueue pending memory")
		}
		return
	}

	ex := Exchange{
		PersonaID:        turn.PersonaID,
		PersonalityID:    turn.PersonalityID,
		PersonaName:      persona.Name,
		ChannelID:        turn.ChannelID,
		GuildID:          turn.GuildID,
		SourceTurnID:     turn.ID,
		UserContent:      turn.UserContent,
		AssistantContent: turn.AssistantContent,
	}

	if err := Write(ctx, c.provider, c.model, c.embCfg, c.memories, c.pending, ex); err != nil {
		log.Error().Err(err).Str("turn_id", job.TurnID).Msg("memory job: write failed and could not be deferred")
	}
}

// Run starts a bounded-concurrency Kafka consumer loop over topic,
// structurally the same fetch→dispatch→commit shape as
// queue.StartConsumer but without its retry/DLQ machinery: a malformed
// job is logged and committed (there is no reply topic to report it on),
// and a handled job is always committed since Handle never returns an
// error for the loop to act on.
func Run(ctx context.Context, brokers []string, groupID, topic string, workerCount int, consumer *Consumer) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer func() {
		if err := reader.Close(); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("error closing memory-writer kafka reader")
		}
	}()

	if workerCount <= 0 {
		workerCount = 2
	}
	jobs := make(chan kafka.Message, workerCount*4)

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go func() {
			defer wg.Done()
			for msg := range jobs {
				var job queue.MemoryJob
				if err := json.Unmarshal(msg.Value, &job); err != nil {
					log.Ctx(ctx).Warn().Err(err).Msg("malformed memory job, dropping")
				} else {
					consumer.Handle(ctx, job)
				}
				if err := reader.CommitMessages(ctx, msg); err != nil {
					log.Ctx(ctx).Warn().Err(err).Msg("commit failed")
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for {
			if ctx.Err() != nil {
				return
			}
			m, err := reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
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
