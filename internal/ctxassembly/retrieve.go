package ctxassembly

import (
	"context"
	"fmt"
	"sort"

	"tzurot/internal/config"
	"tzurot/internal/db"
	"tzurot/internal/llm"
	"tzurot/internal/model"
)

// RetrievedMemory is one memory returned by similarity search, with its
// full text already reassembled across chunk siblings (spec §4.3 step 3)
// and its cosine distance carried along for budget trimming.
type RetrievedMemory struct {
	Memory   model.Memory
	FullText string
	Distance float64
}

// RetrieveMemories embeds queryText, runs the persona-scoped cosine
// search, and reassembles any chunked memory's full text from its
// siblings before returning. Cross-persona leakage is structurally
// impossible here: personaID is always passed straight through to
// db.MemoryRepo.SimilaritySearch, which always filters on it.
func RetrieveMemories(ctx context.Context, memories *db.MemoryRepo, embCfg config.EmbeddingsConfig, personaID, personalityID, queryText string, topK int, maxDistance float64) ([]RetrievedMemory, error) {
	if queryText == "" {
		return nil, nil
	}

	vecs, err := llm.EmbedBatch(ctx, embCfg.Host, embCfg.APIKey, embCfg.Model, embCfg.Dimensions, []string{queryText})
	if err != nil {
		return nil, fmt.Errorf("embed query text: %w", err)
	}
	if len(vecs) == 0 {
		return nil, nil
	}

	found, distances, err := memories.SimilaritySearch(ctx, personaID, personalityID, vecs[0], topK, maxDistance)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	out := make([]RetrievedMemory, 0, len(found))
	groupCache := map[string][]model.Memory{}
	for i, m := range found {
		fullText, err := reassemble(ctx, memories, m, groupCache)
		if err != nil {
			return nil, err
		}
		out = append(out, RetrievedMemory{Memory: m, FullText: fullText, Distance: distances[i]})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out, nil
}

// reassemble returns a memory's full text, concatenating chunk siblings
// in chunk_index order when the memory is part of a chunk group (spec
// §4.3 step 3). The invariant that a chunked memory is either fully
// present or fully absent is enforced by requiring every sibling to be
// readable; a partial group fails the whole lookup rather than silently
// returning a truncated text.
func reassemble(ctx context.Context, memories *db.MemoryRepo, m model.Memory, cache map[string][]model.Memory) (string, error) {
	if m.ChunkGroupID == "" || m.TotalChunks <= 1 {
		return m.Content, nil
	}

	siblings, ok := cache[m.ChunkGroupID]
	if !ok {
		var err error
		siblings, err = memories.GroupSiblings(ctx, m.ChunkGroupID)
		if err != nil {
			return "", fmt.Errorf("fetch chunk siblings for group %s: %w", m.ChunkGroupID, err)
		}
		cache[m.ChunkGroupID] = siblings
	}
	if len(siblings) != m.TotalChunks {
		return "", fmt.Errorf("chunk group %s incomplete: have %d of %d chunks", m.ChunkGroupID, len(siblings), m.TotalChunks)
	}

	out := ""
	for _, s := range siblings {
		out += s.Content
	}
	return out, nil
}
