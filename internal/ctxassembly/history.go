// Package ctxassembly implements the Memory/Context Service (C3): it
// turns a (personality, persona, channel, current turn) tuple into a
// bounded, token-budgeted message list ready for the inference job.
package ctxassembly

import (
	"context"
	"fmt"

	"tzurot/internal/db"
	"tzurot/internal/llm"
	"tzurot/internal/model"
)

// HistoryTurn pairs a persisted turn with its (possibly lazily computed)
// token count, kept separate from model.ConversationTurn so callers don't
// mutate the persisted row just to cache a count.
type HistoryTurn struct {
	Turn       model.ConversationTurn
	TokenCount int
}

// FetchHistory reads the most recent limit turns for (channelID,
// personalityID), reversed to chronological order, per spec §4.3 step 1.
// Rows missing a cached token count are measured on the fly with
// tokenizer (falling back to the char/4 heuristic if tokenizer is nil)
// and reported back in needsBackfill so the caller can persist them
// without this package importing a specific backfill policy.
func FetchHistory(ctx context.Context, turns *db.TurnRepo, tokenizer llm.Tokenizer, channelID, personalityID string, limit int) (history []HistoryTurn, needsBackfill []HistoryTurn, err error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := turns.RecentTurns(ctx, channelID, personalityID, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch recent turns: %w", err)
	}

	history = make([]HistoryTurn, 0, len(rows))
	for _, t := range rows {
		ht := HistoryTurn{Turn: t, TokenCount: t.TokenCount}
		if ht.TokenCount <= 0 {
			ht.TokenCount = countPairTokens(ctx, tokenizer, t)
			needsBackfill = append(needsBackfill, ht)
		}
		history = append(history, ht)
	}
	return history, needsBackfill, nil
}

func countPairTokens(ctx context.Context, tokenizer llm.Tokenizer, t model.ConversationTurn) int {
	msgs := []llm.Message{
		{Role: "user", Content: t.UserContent},
		{Role: "assistant", Content: t.AssistantContent},
	}
	if tokenizer != nil {
		if n, err := tokenizer.CountMessagesTokens(ctx, msgs); err == nil {
			return n
		}
	}
	return llm.EstimateTokensForMessages(msgs)
}

// ToMessages flattens ordered history turns into a user/assistant message
// pair per turn, in chronological order (FetchHistory already reversed
// the DESC query, so callers need not reverse again here).
func ToMessages(history []HistoryTurn) []llm.Message {
	out := make([]llm.Message, 0, len(history)*2)
	for _, h := range history {
		out = append(out, llm.Message{Role: "user", Content: h.Turn.UserContent})
		out = append(out, llm.Message{Role: "assistant", Content: h.Turn.AssistantContent})
	}
	return out
}
