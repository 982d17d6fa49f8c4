package memorywriter

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"tzurot/internal/config"
	"tzurot/internal/db"
	"tzurot/internal/llm"
)

// Exchange is the (user turn, assistant turn) pair C2 hands off after
// persisting an assistant turn (spec §4.5 trigger).
type Exchange struct {
	PersonaID        string
	PersonalityID    string
	PersonaName      string
	ChannelID        string
	GuildID          string
	SourceTurnID     string
	UserContent      string
	AssistantContent string
}

// Write distills, chunks, embeds, and persists one exchange (spec §4.5).
// On any failure (distillation included) it enqueues a PendingMemory for
// the retry loop to pick up rather than dropping the memory silently.
// Called by Consumer.Handle for each MemoryJob C2 publishes after it
// persists a fresh assistant turn; the retry loop
// calls attempt directly instead, since it already owns a pending row
// and must update it rather than create a second one.
func Write(ctx context.Context, provider llm.Provider, model string, embCfg config.EmbeddingsConfig, memories *db.MemoryRepo, pending *db.PendingMemoryRepo, ex Exchange) error {
	if err := attempt(ctx, provider, model, embCfg, memories, ex); err != nil {
		if _, pendErr := pending.Enqueue(ctx, ex.SourceTurnID, err.Error()); pendErr != nil {
			log.Error().Err(pendErr).Str("turn_id", ex.SourceTurnID).Msg("failed to enqueue pending memory after write failure")
			return fmt.Errorf("enqueue pending memory: %w (original: %s)", pendErr, err)
		}
		log.Warn().Err(err).Str("turn_id", ex.SourceTurnID).Msg("memory write deferred to pending queue")
	}
	return nil
}

// attempt runs distill/chunk/embed/persist once with no pending-queue
// side effects, so both Write's first-attempt path and the retry loop
// can share it while each owns its own pending-row bookkeeping.
func attempt(ctx context.Context, provider llm.Provider, model string, embCfg config.EmbeddingsConfig, memories *db.MemoryRepo, ex Exchange) error {
	summary, err := Distill(ctx, provider, model, ex.PersonaName, ex.UserContent, ex.AssistantContent)
	if err != nil {
		return err
	}
	if summary == "" {
		return nil
	}

	chunks := ChunkForEmbedding(summary)
	embeddings, err := llm.EmbedBatch(ctx, embCfg.Host, embCfg.APIKey, embCfg.Model, embCfg.Dimensions, chunks)
	if err != nil {
		return fmt.Errorf("embed distilled memory: %w", err)
	}

	if _, err := memories.InsertChunks(ctx, ex.PersonaID, ex.PersonalityID, ex.ChannelID, ex.GuildID, ex.SourceTurnID, "distillation", "", chunks, embeddings); err != nil {
		return fmt.Errorf("insert memory chunks: %w", err)
	}
	return nil
}
