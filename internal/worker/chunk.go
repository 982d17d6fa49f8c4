package worker

import "strings"

// discordMaxMessageChars is the platform's per-message content ceiling
// named in spec §6 ("content (≤2000 chars per chunk)").
const discordMaxMessageChars = 2000

// DeliveryChunk is one piece of a chunked reply. Attachments/embeds
// belong on the final chunk only (spec §4.4), so callers inspect Last
// rather than carrying file references through every chunk.
type DeliveryChunk struct {
	Text string
	Last bool
}

// SplitForDelivery splits content at paragraph, then sentence, then
// whitespace boundaries so no chunk exceeds maxChars, preferring the
// largest boundary that still produces a chunk of at least half the
// budget (same heuristic as the teacher's rag/chunker.go fixedChunk).
// Chunks are exact substrings of content with no trimming, so
// concatenating every chunk's Text reproduces content exactly (spec §8's
// "chunker output reconcatenated equals the pre-chunk text").
func SplitForDelivery(content string, maxChars int) []DeliveryChunk {
	if maxChars <= 0 {
		maxChars = discordMaxMessageChars
	}
	if content == "" {
		return nil
	}
	if len(content) <= maxChars {
		return []DeliveryChunk{{Text: content, Last: true}}
	}

	var out []DeliveryChunk
	remaining := content
	for len(remaining) > maxChars {
		cut := findSplitPoint(remaining, maxChars)
		out = append(out, DeliveryChunk{Text: remaining[:cut]})
		remaining = remaining[cut:]
	}
	if remaining != "" {
		out = append(out, DeliveryChunk{Text: remaining})
	}
	if len(out) > 0 {
		out[len(out)-1].Last = true
	}
	return out
}

// findSplitPoint returns the byte offset within text[:max] to cut at,
// preferring (in order) a paragraph break, a sentence boundary, a
// newline, then a space, falling back to a hard cut at max if the first
// half of the window carries no such boundary.
func findSplitPoint(text string, max int) int {
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
