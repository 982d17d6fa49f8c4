package memorywriter

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"tzurot/internal/config"
	"tzurot/internal/db"
	"tzurot/internal/llm"
	"tzurot/internal/model"
)

// Retrier drains PendingMemory rows whose next_attempt has passed and
// re-runs the distill/chunk/embed/persist pipeline against the turn they
// reference, the way sefii/engine.go's execWithRetry loop retries
// transient database failures with backoff.
type Retrier struct {
	turns     *db.TurnRepo
	personas  *db.PersonaRepo
	memories  *db.MemoryRepo
	pending   *db.PendingMemoryRepo
	provider  llm.Provider
	model     string
	embCfg    config.EmbeddingsConfig
	maxTries  int
	baseDelay time.Duration
	batchSize int
}

func NewRetrier(turns *db.TurnRepo, personas *db.PersonaRepo, memories *db.MemoryRepo, pending *db.PendingMemoryRepo, provider llm.Provider, cfg config.MemoryWriterConfig, embCfg config.EmbeddingsConfig) *Retrier {
	return &Retrier{
		turns:     turns,
		personas:  personas,
		memories:  memories,
		pending:   pending,
		provider:  provider,
		model:     cfg.DistillModel,
		embCfg:    embCfg,
		maxTries:  cfg.MaxPendingAttempts,
		baseDelay: time.Duration(cfg.RetryBackoffMs) * time.Millisecond,
		batchSize: cfg.BatchSize,
	}
}

// RunOnce drains up to one batch of due pending memories. Callers
// schedule this on a ticker (cmd/memorywriter's run loop); it never
// blocks longer than the batch takes, so a slow provider can't starve
// other due items indefinitely.
func (r *Retrier) RunOnce(ctx context.Context) error {
	due, err := r.pending.DueForRetry(ctx, r.maxTries, r.batchSize)
	if err != nil {
		return fmt.Errorf("fetch due pending memories: %w", err)
	}

	for _, p := range due {
		if err := r.retryOne(ctx, p); err != nil {
			log.Warn().Err(err).Str("pending_id", p.ID).Str("turn_id", p.TurnID).Msg("pending memory retry failed")
		}
	}
	return nil
}

func (r *Retrier) retryOne(ctx context.Context, p model.PendingMemory) error {
	turn, err := r.turns.GetByID(ctx, p.TurnID)
	if err != nil {
		return r.fail(ctx, p.ID, p.Attempts, fmt.Errorf("reload turn: %w", err))
	}

	persona, err := r.personas.GetByID(ctx, turn.PersonaID)
	if err != nil {
		return r.fail(ctx, p.ID, p.Attempts, fmt.Errorf("reload persona: %w", err))
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

	if err := attempt(ctx, r.provider, r.model, r.embCfg, r.memories, ex); err != nil {
		return r.fail(ctx, p.ID, p.Attempts, err)
	}
	return r.pending.Resolve(ctx, p.ID)
}

// fail records the failure with exponential backoff (baseDelay * 2^attempts,
// capped at an hour) rather than re-enqueuing, since the pending row
// already exists.
func (r *Retrier) fail(ctx context.Context, id string, attempts int, cause error) error {
	backoff := r.baseDelay << attempts
	if ceiling := time.Hour; backoff > ceiling || backoff <= 0 {
		backoff = ceiling
	}
	if err := r.pending.RecordFailure(ctx, id, cause.Error(), backoff); err != nil {
		return fmt.Errorf("record pending memory failure: %w (original: %s)", err, cause)
	}
	return cause
}
