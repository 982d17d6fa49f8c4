package ctxassembly

import (
	"context"

	"tzurot/internal/llm"
)

// TrimToBudget enforces maxTokens on a composed input (spec §4.3 step 5):
// drop the oldest history turns first, then the lowest-similarity
// memories, and never touch the system prompt or the current turn. in is
// mutated in place; the caller should call Compose afterward to get the
// final message list.
func TrimToBudget(ctx context.Context, tokenizer llm.Tokenizer, in *ComposeInput, maxTokens int) {
	if maxTokens <= 0 {
		return
	}

	for countTokens(ctx, tokenizer, *in) > maxTokens && len(in.History) > 0 {
		in.History = in.History[1:]
	}

	// in.Memories is sorted ascending by distance (best match first), so
	// the lowest-similarity entries sit at the tail.
	for countTokens(ctx, tokenizer, *in) > maxTokens && len(in.Memories) > 0 {
		in.Memories = in.Memories[:len(in.Memories)-1]
	}
}

func countTokens(ctx context.Context, tokenizer llm.Tokenizer, in ComposeInput) int {
	msgs := Compose(in)
	if tokenizer != nil {
		if n, err := tokenizer.CountMessagesTokens(ctx, msgs); err == nil {
			return n
		}
	}
	return llm.EstimateTokensForMessages(msgs)
}
