package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"tzurot/internal/model"
)

// MemoryRepo stores and retrieves long-term, persona-scoped memories.
// All vector SQL uses the cosine-distance operator with vector_cosine_ops
// per spec §4.6; filters are pushed into SQL, never applied in-process.
type MemoryRepo struct {
	pool *pgxpool.Pool
}

func NewMemoryRepo(pool *pgxpool.Pool) *MemoryRepo { return &MemoryRepo{pool: pool} }

// toVectorLiteral renders a float32 slice as the Postgres array-literal
// string pgvector accepts when cast with ::vector, matching the teacher's
// postgres_vector.go toVectorLiteral helper exactly.
func toVectorLiteral(v []float32) string {
	if len(v) == 0 {
		return "[]"
	}
	b := strings.Builder{}
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(fmt.Sprintf("%g", x))
	}
	b.WriteByte(']')
	return b.String()
}

// InsertChunks persists every chunk of one (possibly oversize) memory in
// a single transaction, sharing chunkGroupID when len(chunks) > 1, the
// way agentic_memory.go's IngestAgenticMemory writes its chunk rows
// together so a partial write is never visible.
func (r *MemoryRepo) InsertChunks(ctx context.Context, personaID, personalityID, channelID, guildID, sourceTurnID, source, chunkGroupID string, chunks []string, embeddings [][]float32) ([]string, error) {
	if len(chunks) != len(embeddings) {
		return nil, fmt.Errorf("insert memory chunks: %d chunks but %d embeddings", len(chunks), len(embeddings))
	}
	if len(chunks) == 0 {
		return nil, nil
	}
	if len(chunks) > 1 && chunkGroupID == "" {
		chunkGroupID = uuid.NewString()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ids := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		id := uuid.NewString()
		var groupCol any
		if chunkGroupID != "" {
			groupCol = chunkGroupID
		}
		_, err := tx.Exec(ctx, `
INSERT INTO memories
  (id, persona_id, personality_id, content, embedding, channel_id, guild_id, chunk_group_id, chunk_index, total_chunks, source_turn_id, source)
VALUES ($1,$2,$3,$4,$5::vector,$6,$7,$8,$9,$10,$11,$12)`,
			id, personaID, personalityID, chunk, toVectorLiteral(embeddings[i]), channelID, guildID, groupCol, i, len(chunks), sourceTurnID, source)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

// SimilaritySearch returns the top-k memories for personaID (optionally
// scoped further to personalityID) ordered by cosine distance ascending,
// discarding anything beyond maxDistance. Cross-persona leakage is
// structurally impossible: persona_id is always in the WHERE clause.
func (r *MemoryRepo) SimilaritySearch(ctx context.Context, personaID, personalityID string, queryEmbedding []float32, k int, maxDistance float64) ([]model.Memory, []float64, error) {
	if k <= 0 {
		k = 5
	}
	vecLit := toVectorLiteral(queryEmbedding)
	rows, err := r.pool.Query(ctx, `
SELECT id, persona_id, personality_id, content, COALESCE(chunk_group_id, ''), chunk_index, total_chunks, COALESCE(source_turn_id, ''), created_at,
       embedding <=> $1::vector AS distance
FROM memories
WHERE persona_id = $2
  AND (personality_id = $3 OR personality_id IS NULL)
  AND created_at < now()
  AND embedding <=> $1::vector <= $4
ORDER BY embedding <=> $1::vector
LIMIT $5`, vecLit, personaID, personalityID, maxDistance, k)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var out []model.Memory
	var distances []float64
	for rows.Next() {
		var m model.Memory
		var personalityIDNullable *string
		var distance float64
		if err := rows.Scan(&m.ID, &m.PersonaID, &personalityIDNullable, &m.Content, &m.ChunkGroupID, &m.ChunkIndex, &m.TotalChunks, &m.SourceTurnID, &m.CreatedAt, &distance); err != nil {
			return nil, nil, err
		}
		if personalityIDNullable != nil {
			m.PersonalityID = *personalityIDNullable
		}
		out = append(out, m)
		distances = append(distances, distance)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return out, distances, nil
}

// GroupSiblings fetches every chunk sharing chunkGroupID, ordered by
// chunk_index, so the caller can reassemble the full text before
// injecting it into a prompt (spec §4.3 step 3). The invariant that
// chunked memories are either fully present or fully absent is enforced
// by callers checking len(result) == TotalChunks before use.
func (r *MemoryRepo) GroupSiblings(ctx context.Context, chunkGroupID string) ([]model.Memory, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, persona_id, COALESCE(personality_id, ''), content, chunk_group_id, chunk_index, total_chunks, COALESCE(source_turn_id, ''), created_at
FROM memories WHERE chunk_group_id = $1 ORDER BY chunk_index ASC`, chunkGroupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Memory
	for rows.Next() {
		var m model.Memory
		if err := rows.Scan(&m.ID, &m.PersonaID, &m.PersonalityID, &m.Content, &m.ChunkGroupID, &m.ChunkIndex, &m.TotalChunks, &m.SourceTurnID, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// PendingMemoryRepo drains deferred memory writes with exponential
// backoff, the way sefii/engine.go's execWithRetry retries transient
// database failures.
type PendingMemoryRepo struct {
	pool *pgxpool.Pool
}

func NewPendingMemoryRepo(pool *pgxpool.Pool) *PendingMemoryRepo { return &PendingMemoryRepo{pool: pool} }

func (r *PendingMemoryRepo) Enqueue(ctx context.Context, turnID, lastError string) (model.PendingMemory, error) {
	id := uuid.NewString()
	row := r.pool.QueryRow(ctx, `
INSERT INTO pending_memories (id, turn_id, attempts, last_error, next_attempt)
VALUES ($1, $2, 1, $3, now() + interval '30 seconds')
RETURNING id, turn_id, attempts, last_error, next_attempt, created_at`, id, turnID, lastError)

	var p model.PendingMemory
	if err := row.Scan(&p.ID, &p.TurnID, &p.Attempts, &p.LastError, &p.NextAttempt, &p.CreatedAt); err != nil {
		return model.PendingMemory{}, err
	}
	return p, nil
}

// DueForRetry returns pending writes whose NextAttempt has passed and
// whose attempt count is below maxAttempts.
func (r *PendingMemoryRepo) DueForRetry(ctx context.Context, maxAttempts, limit int) ([]model.PendingMemory, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, turn_id, attempts, last_error, next_attempt, created_at
FROM pending_memories WHERE next_attempt <= now() AND attempts < $1
ORDER BY next_attempt ASC LIMIT $2`, maxAttempts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PendingMemory
	for rows.Next() {
		var p model.PendingMemory
		if err := rows.Scan(&p.ID, &p.TurnID, &p.Attempts, &p.LastError, &p.NextAttempt, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// RecordFailure bumps the attempt counter with an incremental backoff,
// mirroring execWithRetry's sleep-longer-each-time pattern but persisted
// across process restarts instead of held in memory.
func (r *PendingMemoryRepo) RecordFailure(ctx context.Context, id, errMsg string, backoff time.Duration) error {
	_, err := r.pool.Exec(ctx, `
UPDATE pending_memories SET attempts = attempts + 1, last_error = $2, next_attempt = now() + $3
WHERE id = $1`, id, errMsg, backoff)
	return err
}

func (r *PendingMemoryRepo) Resolve(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM pending_memories WHERE id = $1`, id)
	return err
}
