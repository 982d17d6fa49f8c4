package gateway

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"tzurot/internal/cascade"
	"tzurot/internal/ctxassembly"
	"tzurot/internal/llm"
	"tzurot/internal/model"
)

// assembleContext runs C3's algorithm inline (spec §4.3 steps 1-7) and
// returns the final message list ready for the inference job. C2 calls
// into ctxassembly directly rather than over a second queue hop, since
// C3 has no invocation surface of its own in this design (spec §4.6:
// "thin typed repositories", not a separate process).
func (g *Gateway) assembleContext(ctx context.Context, personality model.Personality, resolved cascade.Resolved, in TurnRequest) ([]llm.Message, error) {
	strippedContent := ctxassembly.StripLeadingMentions(in.Content, append([]string{personality.Name}, personality.Aliases...), mentionStripPasses)

	history, needsBackfill, err := ctxassembly.FetchHistory(ctx, g.turns, g.tokenizer, in.ChannelID, personality.ID, resolved.HistoryTurnLimit)
	if err != nil {
		return nil, err
	}
	for _, ht := range needsBackfill {
		if err := g.turns.BackfillTokenCount(ctx, ht.Turn.ID, ht.TokenCount); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("turn_id", ht.Turn.ID).Msg("failed to backfill turn token count")
		}
	}

	memories, err := ctxassembly.RetrieveMemories(ctx, g.memories, g.embCfg, personality.PersonaID, personality.ID, strippedContent, resolved.MemoryTopK, resolved.MemoryMaxDistance)
	if err != nil {
		// EmbeddingFailed is degraded, not fatal (spec §7): retrieval
		// proceeds without vector results rather than aborting the turn.
		log.Ctx(ctx).Warn().Err(err).Msg("memory retrieval failed, proceeding without recalled memories")
		memories = nil
	}

	composeInput := ctxassembly.ComposeInput{
		SystemPromptBody: resolved.SystemPromptBody,
		Memories:         memories,
		History:          history,
		CurrentUserText:  strippedContent,
		Channel: ctxassembly.ChannelContext{
			GuildName:     in.GuildName,
			ChannelName:   in.ChannelName,
			IsDM:          in.IsDM,
			HeaderEnabled: in.ContextHeaderEnabled,
			Now:           time.Now(),
		},
	}

	ctxassembly.TrimToBudget(ctx, g.tokenizer, &composeInput, resolved.ContextWindowTokens)
	return ctxassembly.Compose(composeInput), nil
}
