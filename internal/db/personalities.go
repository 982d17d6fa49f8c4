package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tzurot/internal/model"
)

// PersonalityRepo resolves personalities by slug or alias and reads the
// cascade's personality-scoped layers (its declared default LlmConfig and
// SystemPrompt).
type PersonalityRepo struct {
	pool *pgxpool.Pool
}

func NewPersonalityRepo(pool *pgxpool.Pool) *PersonalityRepo { return &PersonalityRepo{pool: pool} }

func (r *PersonalityRepo) scan(row pgx.Row) (model.Personality, error) {
	var p model.Personality
	var aliases []string
	var systemPromptID *string
	if err := row.Scan(&p.ID, &p.PersonaID, &p.Name, &aliases, &p.AvatarURL, &systemPromptID, &p.BaseLlmConfigID, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Personality{}, ErrNotFound
		}
		return model.Personality{}, err
	}
	p.Aliases = aliases
	if systemPromptID != nil {
		p.SystemPromptID = *systemPromptID
	}
	return p, nil
}

const personalityColumns = `id, persona_id, name, aliases, avatar_url, system_prompt_id, base_llm_config_id, created_at`

// GetBySlug resolves a personality by its immutable slug.
func (r *PersonalityRepo) GetBySlug(ctx context.Context, slug string) (model.Personality, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+personalityColumns+` FROM personalities WHERE slug = $1`, slug)
	return r.scan(row)
}

// GetByAlias resolves a personality by one of its (globally unique)
// alias strings.
func (r *PersonalityRepo) GetByAlias(ctx context.Context, alias string) (model.Personality, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+personalityColumns+` FROM personalities WHERE $1 = ANY(aliases)`, alias)
	return r.scan(row)
}

func (r *PersonalityRepo) GetByID(ctx context.Context, id string) (model.Personality, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+personalityColumns+` FROM personalities WHERE id = $1`, id)
	return r.scan(row)
}

// LlmConfigRepo reads cascade layer rows.
type LlmConfigRepo struct {
	pool *pgxpool.Pool
}

func NewLlmConfigRepo(pool *pgxpool.Pool) *LlmConfigRepo { return &LlmConfigRepo{pool: pool} }

func (r *LlmConfigRepo) scan(row pgx.Row) (model.LlmConfig, error) {
	var c model.LlmConfig
	var advanced []byte
	if err := row.Scan(&c.ID, &c.Provider, &c.Model, &advanced); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.LlmConfig{}, ErrNotFound
		}
		return model.LlmConfig{}, err
	}
	if len(advanced) > 0 {
		if err := jsonUnmarshal(advanced, &c.AdvancedParameters); err != nil {
			return model.LlmConfig{}, err
		}
	}
	return c, nil
}

func (r *LlmConfigRepo) GetByID(ctx context.Context, id string) (model.LlmConfig, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, provider, model, advanced_parameters FROM llm_configs WHERE id = $1`, id)
	return r.scan(row)
}

// GlobalDefault returns the single LlmConfig where is_default=true,
// enforced at the database layer by the unique_default_llm_config
// partial index.
func (r *LlmConfigRepo) GlobalDefault(ctx context.Context) (model.LlmConfig, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, provider, model, advanced_parameters FROM llm_configs WHERE is_default LIMIT 1`)
	return r.scan(row)
}

// UserPersonalityConfigRepo reads the per-(user, personality) override
// layer.
type UserPersonalityConfigRepo struct {
	pool *pgxpool.Pool
}

func NewUserPersonalityConfigRepo(pool *pgxpool.Pool) *UserPersonalityConfigRepo {
	return &UserPersonalityConfigRepo{pool: pool}
}

func (r *UserPersonalityConfigRepo) Get(ctx context.Context, userID, personalityID string) (model.UserPersonalityConfig, map[string]any, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, user_id, personality_id, COALESCE(llm_config_id, ''), config_overrides, updated_at
FROM user_personality_configs WHERE user_id = $1 AND personality_id = $2`, userID, personalityID)

	var c model.UserPersonalityConfig
	var overrides []byte
	if err := row.Scan(&c.ID, &c.UserID, &c.PersonalityID, &c.LlmConfigID, &overrides, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.UserPersonalityConfig{}, nil, ErrNotFound
		}
		return model.UserPersonalityConfig{}, nil, err
	}
	var doc map[string]any
	if len(overrides) > 0 {
		if err := jsonUnmarshal(overrides, &doc); err != nil {
			return model.UserPersonalityConfig{}, nil, err
		}
	}
	return c, doc, nil
}

// SystemPromptRepo reads system prompt text.
type SystemPromptRepo struct {
	pool *pgxpool.Pool
}

func NewSystemPromptRepo(pool *pgxpool.Pool) *SystemPromptRepo { return &SystemPromptRepo{pool: pool} }

func (r *SystemPromptRepo) GetByID(ctx context.Context, id string) (model.SystemPrompt, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, body, version, created_at FROM system_prompts WHERE id = $1`, id)
	var p model.SystemPrompt
	if err := row.Scan(&p.ID, &p.Body, &p.Version, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.SystemPrompt{}, ErrNotFound
		}
		return model.SystemPrompt{}, err
	}
	return p, nil
}

func (r *SystemPromptRepo) Default(ctx context.Context) (model.SystemPrompt, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, body, version, created_at FROM system_prompts WHERE is_default LIMIT 1`)
	var p model.SystemPrompt
	if err := row.Scan(&p.ID, &p.Body, &p.Version, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.SystemPrompt{}, ErrNotFound
		}
		return model.SystemPrompt{}, err
	}
	return p, nil
}

// ActivatedChannelRepo reads channel-activation state.
type ActivatedChannelRepo struct {
	pool *pgxpool.Pool
}

func NewActivatedChannelRepo(pool *pgxpool.Pool) *ActivatedChannelRepo {
	return &ActivatedChannelRepo{pool: pool}
}

func (r *ActivatedChannelRepo) GetByChannel(ctx context.Context, channelID string) (model.ActivatedChannel, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, channel_id, personality_id, activated_by_user_id, dedup_similarity_override, created_at
FROM activated_channels WHERE channel_id = $1`, channelID)
	var a model.ActivatedChannel
	if err := row.Scan(&a.ID, &a.ChannelID, &a.PersonalityID, &a.ActivatedByUserID, &a.DedupSimilarityOverride, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ActivatedChannel{}, ErrNotFound
		}
		return model.ActivatedChannel{}, err
	}
	return a, nil
}
