package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tzurot/internal/model"
)

// DenylistRepo blocks personalities, users, or channels from routing and
// memory recall.
type DenylistRepo struct {
	pool *pgxpool.Pool
}

func NewDenylistRepo(pool *pgxpool.Pool) *DenylistRepo { return &DenylistRepo{pool: pool} }

func (r *DenylistRepo) IsDenylisted(ctx context.Context, entityType, entityID string) (bool, error) {
	row := r.pool.QueryRow(ctx, `SELECT 1 FROM denylisted_entities WHERE entity_type = $1 AND entity_id = $2`, entityType, entityID)
	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *DenylistRepo) Add(ctx context.Context, entityType, entityID, reason string) (model.DenylistedEntity, error) {
	id := uuid.NewString()
	row := r.pool.QueryRow(ctx, `
INSERT INTO denylisted_entities (id, entity_type, entity_id, reason)
VALUES ($1, $2, $3, $4)
ON CONFLICT (entity_type, entity_id) DO UPDATE SET reason = EXCLUDED.reason
RETURNING id, entity_type, entity_id, reason, created_at`, id, entityType, entityID, reason)

	var d model.DenylistedEntity
	if err := row.Scan(&d.ID, &d.EntityType, &d.EntityID, &d.Reason, &d.CreatedAt); err != nil {
		return model.DenylistedEntity{}, err
	}
	return d, nil
}

// DiagnosticLogRepo inserts and sweeps LlmDiagnosticLog rows (24-hour
// TTL, spec §3/§6). Secret redaction happens before Insert is called
// (internal/observability.RedactJSON).
type DiagnosticLogRepo struct {
	pool *pgxpool.Pool
}

func NewDiagnosticLogRepo(pool *pgxpool.Pool) *DiagnosticLogRepo { return &DiagnosticLogRepo{pool: pool} }

func (r *DiagnosticLogRepo) Insert(ctx context.Context, l model.LlmDiagnosticLog) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
INSERT INTO llm_diagnostic_logs
  (id, correlation_id, personality_id, provider, model, resolved_config, request_redacted, response_redacted, reasoning_tokens, error_kind, duration_millis)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		l.ID, l.CorrelationID, l.PersonalityID, l.Provider, l.Model, l.ResolvedConfig, l.RequestRedacted, l.ResponseRedacted, l.ReasoningTokens, l.ErrorKind, l.DurationMillis)
	return err
}

// MostRecentByCorrelationID backs the admin debug command named in
// spec §6 (interface-level only; the command itself lives outside the
// core).
func (r *DiagnosticLogRepo) MostRecentByCorrelationID(ctx context.Context, correlationID string) (model.LlmDiagnosticLog, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, correlation_id, COALESCE(personality_id, ''), provider, model, resolved_config, request_redacted, response_redacted, reasoning_tokens, error_kind, duration_millis, created_at
FROM llm_diagnostic_logs WHERE correlation_id = $1 ORDER BY created_at DESC LIMIT 1`, correlationID)

	var l model.LlmDiagnosticLog
	if err := row.Scan(&l.ID, &l.CorrelationID, &l.PersonalityID, &l.Provider, &l.Model, &l.ResolvedConfig, &l.RequestRedacted, &l.ResponseRedacted, &l.ReasoningTokens, &l.ErrorKind, &l.DurationMillis, &l.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.LlmDiagnosticLog{}, ErrNotFound
		}
		return model.LlmDiagnosticLog{}, err
	}
	return l, nil
}

// UsageLogRepo records per-request token usage for billing/reporting.
type UsageLogRepo struct {
	pool *pgxpool.Pool
}

func NewUsageLogRepo(pool *pgxpool.Pool) *UsageLogRepo { return &UsageLogRepo{pool: pool} }

func (r *UsageLogRepo) Insert(ctx context.Context, u model.UsageLog) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
INSERT INTO usage_logs (id, personality_id, user_id, provider, model, prompt_tokens, completion_tokens, reasoning_tokens)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		u.ID, u.PersonalityID, u.UserID, u.Provider, u.Model, u.PromptTokens, u.CompletionTokens, u.ReasoningTokens)
	return err
}
