package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// protectedIndexes lists the raw-DDL indexes the schema generator does
// not understand (HNSW, partial-WHERE btree) and that the migration
// system must never classify as drift or drop. EnsureSchema recreates
// them idempotently; a separate migration tool consults this same list
// to refuse DROP INDEX statements naming them.
var protectedIndexes = []string{
	"memories_embedding_hnsw_idx",
	"memories_chunk_group_id_idx",
}

// ProtectedIndexes returns the allow-list of index names a migration
// generator must never drop, even if it believes them to be drift.
func ProtectedIndexes() []string {
	out := make([]string, len(protectedIndexes))
	copy(out, protectedIndexes)
	return out
}

// IsProtectedIndex reports whether name is on the protected-index
// allow-list.
func IsProtectedIndex(name string) bool {
	for _, p := range protectedIndexes {
		if p == name {
			return true
		}
	}
	return false
}

const embeddingDimensions = 1536

// EnsureSchema creates every table and index the core depends on, using
// CREATE-IF-NOT-EXISTS / ADD-COLUMN-IF-NOT-EXISTS so it is safe to run on
// every process start, the way agentic_memory.go patches its table in
// place rather than shipping a separate migration runner for this path.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE EXTENSION IF NOT EXISTS pgcrypto`,

		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			discord_id TEXT NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS users_discord_id_idx ON users (discord_id)`,

		`CREATE TABLE IF NOT EXISTS personas (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		`CREATE TABLE IF NOT EXISTS system_prompts (
			id TEXT PRIMARY KEY,
			body TEXT NOT NULL,
			version INT NOT NULL DEFAULT 1,
			is_default BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_system_prompts_default ON system_prompts (is_default) WHERE is_default`,

		`CREATE TABLE IF NOT EXISTS llm_configs (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			visibility TEXT NOT NULL DEFAULT 'owned',
			is_default BOOLEAN NOT NULL DEFAULT false,
			provider TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT '',
			vision_model TEXT NOT NULL DEFAULT '',
			advanced_parameters JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS unique_default_llm_config ON llm_configs (is_default) WHERE is_default`,

		`CREATE TABLE IF NOT EXISTS personalities (
			id TEXT PRIMARY KEY,
			persona_id TEXT NOT NULL REFERENCES personas(id) ON DELETE CASCADE,
			owner_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			slug TEXT NOT NULL,
			name TEXT NOT NULL,
			aliases TEXT[] NOT NULL DEFAULT '{}',
			avatar_url TEXT NOT NULL DEFAULT '',
			system_prompt_id TEXT REFERENCES system_prompts(id) ON DELETE SET NULL,
			base_llm_config_id TEXT NOT NULL REFERENCES llm_configs(id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS personalities_slug_idx ON personalities (slug)`,

		`CREATE TABLE IF NOT EXISTS user_personality_configs (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			personality_id TEXT NOT NULL REFERENCES personalities(id) ON DELETE CASCADE,
			llm_config_id TEXT REFERENCES llm_configs(id),
			persona_override_id TEXT REFERENCES personas(id),
			config_overrides JSONB NOT NULL DEFAULT '{}'::jsonb,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS upc_user_personality_idx ON user_personality_configs (user_id, personality_id)`,

		`CREATE TABLE IF NOT EXISTS activated_channels (
			id TEXT PRIMARY KEY,
			channel_id TEXT NOT NULL,
			guild_id TEXT NOT NULL DEFAULT '',
			personality_id TEXT NOT NULL REFERENCES personalities(id) ON DELETE CASCADE,
			activated_by_user_id TEXT NOT NULL,
			dedup_similarity_override DOUBLE PRECISION,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS activated_channels_channel_idx ON activated_channels (channel_id)`,

		`CREATE TABLE IF NOT EXISTS conversation_turns (
			id TEXT PRIMARY KEY,
			channel_id TEXT NOT NULL,
			guild_id TEXT NOT NULL DEFAULT '',
			personality_id TEXT NOT NULL REFERENCES personalities(id) ON DELETE CASCADE,
			persona_id TEXT NOT NULL REFERENCES personas(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL,
			user_message_id TEXT NOT NULL DEFAULT '',
			user_content TEXT NOT NULL,
			assistant_content TEXT NOT NULL,
			token_count INT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS conversation_turns_channel_personality_idx
			ON conversation_turns (channel_id, personality_id, created_at DESC)`,

		`CREATE TABLE IF NOT EXISTS conversation_tombstones (
			id TEXT PRIMARY KEY,
			channel_id TEXT NOT NULL,
			personality_id TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			persona_id TEXT NOT NULL REFERENCES personas(id) ON DELETE CASCADE,
			personality_id TEXT REFERENCES personalities(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			channel_id TEXT,
			guild_id TEXT,
			chunk_group_id TEXT,
			chunk_index INT NOT NULL DEFAULT 0,
			total_chunks INT NOT NULL DEFAULT 1,
			source_turn_id TEXT,
			source TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, embeddingDimensions),
		`ALTER TABLE memories ADD COLUMN IF NOT EXISTS chunk_group_id TEXT`,
		`ALTER TABLE memories ADD COLUMN IF NOT EXISTS chunk_index INT NOT NULL DEFAULT 0`,
		`ALTER TABLE memories ADD COLUMN IF NOT EXISTS total_chunks INT NOT NULL DEFAULT 1`,
		`CREATE INDEX IF NOT EXISTS memories_persona_idx ON memories (persona_id, personality_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS memories_embedding_hnsw_idx
			ON memories USING hnsw (embedding vector_cosine_ops) WITH (m = 16, ef_construction = 64)`,
		`CREATE INDEX IF NOT EXISTS memories_chunk_group_id_idx
			ON memories (chunk_group_id) WHERE chunk_group_id IS NOT NULL`,

		`CREATE TABLE IF NOT EXISTS pending_memories (
			id TEXT PRIMARY KEY,
			turn_id TEXT NOT NULL,
			attempts INT NOT NULL DEFAULT 0,
			last_error TEXT NOT NULL DEFAULT '',
			next_attempt TIMESTAMPTZ NOT NULL DEFAULT now(),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS pending_memories_next_attempt_idx ON pending_memories (next_attempt)`,

		`CREATE TABLE IF NOT EXISTS denylisted_entities (
			id TEXT PRIMARY KEY,
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS denylisted_entities_type_id_idx ON denylisted_entities (entity_type, entity_id)`,

		`CREATE TABLE IF NOT EXISTS llm_diagnostic_logs (
			id TEXT PRIMARY KEY,
			correlation_id TEXT NOT NULL,
			personality_id TEXT,
			provider TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT '',
			resolved_config JSONB NOT NULL DEFAULT '{}'::jsonb,
			request_redacted JSONB NOT NULL DEFAULT '{}'::jsonb,
			response_redacted JSONB NOT NULL DEFAULT '{}'::jsonb,
			reasoning_tokens INT NOT NULL DEFAULT 0,
			error_kind TEXT NOT NULL DEFAULT '',
			duration_millis BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS llm_diagnostic_logs_created_at_idx ON llm_diagnostic_logs (created_at)`,

		`CREATE TABLE IF NOT EXISTS usage_logs (
			id TEXT PRIMARY KEY,
			personality_id TEXT,
			user_id TEXT NOT NULL,
			provider TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT '',
			prompt_tokens INT NOT NULL DEFAULT 0,
			completion_tokens INT NOT NULL DEFAULT 0,
			reasoning_tokens INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// SweepExpiredDiagnosticLogs deletes LlmDiagnosticLog rows older than the
// 24-hour TTL named in the data model. Intended to run on a scheduled
// interval from cmd/gateway or a small cron-style goroutine.
func SweepExpiredDiagnosticLogs(ctx context.Context, pool *pgxpool.Pool) (int64, error) {
	tag, err := pool.Exec(ctx, `DELETE FROM llm_diagnostic_logs WHERE created_at < now() - interval '24 hours'`)
	if err != nil {
		return 0, fmt.Errorf("sweep diagnostic logs: %w", err)
	}
	return tag.RowsAffected(), nil
}
