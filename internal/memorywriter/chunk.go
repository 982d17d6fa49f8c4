package memorywriter

import "strings"

// embeddingTokenCeiling is the hard limit named in spec §4.5 for the
// 1536-dimension embedding model.
const embeddingTokenCeiling = 8191

// safeTokenBudget leaves headroom below the hard ceiling so the rough
// chars-per-token heuristic below never risks an over-budget chunk.
const safeTokenBudget = 6000

// charsPerTokenEstimate matches llm.EstimateTokens' heuristic so chunk
// boundaries here and token counts elsewhere agree on the same budget.
const charsPerTokenEstimate = 4

// maxChunkChars is the byte budget per chunk derived from safeTokenBudget.
const maxChunkChars = safeTokenBudget * charsPerTokenEstimate

// ChunkForEmbedding splits distilled text into one or more chunks, each
// within the embedding model's safe token budget, at paragraph, then
// sentence, then whitespace boundaries (same heuristic family as the
// teacher's rag/chunker.go fixedChunk, and as internal/worker/chunk.go's
// delivery splitter, implemented independently here since C4 and C5 chunk
// for different budgets and must not share a package). Concatenating
// every returned chunk reproduces text exactly (spec §8).
func ChunkForEmbedding(text string) []string {
	if text == "" {
		return nil
	}
	if len(text) <= maxChunkChars {
		return []string{text}
	}

	var out []string
	remaining := text
	for len(remaining) > maxChunkChars {
		cut := findChunkSplitPoint(remaining, maxChunkChars)
		out = append(out, remaining[:cut])
		remaining = remaining[cut:]
	}
	if remaining != "" {
		out = append(out, remaining)
	}
	return out
}

func findChunkSplitPoint(text string, max int) int {
	window := text[:max]
	half := max / 2

	if i := strings.LastIndex(window, "\n\n"); i > half {
		return i + 2
	}
	if i := lastSentenceBoundary(window); i > half {
		return i
	}
	if i := strings.LastIndexByte(window, '\n'); i > half {
		return i + 1
	}
	if i := strings.LastIndexByte(window, ' '); i > half {
		return i + 1
	}
	return max
}

func lastSentenceBoundary(window string) int {
	best := -1
	for _, sep := range [...]string{". ", "! ", "? "} {
		if i := strings.LastIndex(window, sep); i >= 0 && i+len(sep) > best {
			best = i + len(sep)
		}
	}
	return best
}
