package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tzurot/internal/model"
)

// UserRepo reads and upserts platform users. Users are never deleted
// during normal operation; deletion is an owner-cascade side effect of
// entity CRUD, which lives outside the core (spec §1).
type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo { return &UserRepo{pool: pool} }

// EnsureByDiscordID returns the existing user for discordID, creating one
// on first observation.
func (r *UserRepo) EnsureByDiscordID(ctx context.Context, discordID, displayName string) (model.User, error) {
	row := r.pool.QueryRow(ctx, `
WITH ins AS (
  INSERT INTO users (id, discord_id, display_name)
  VALUES ($1, $2, $3)
  ON CONFLICT (discord_id) DO NOTHING
  RETURNING id, discord_id, display_name, created_at
)
SELECT id, discord_id, display_name, created_at FROM ins
UNION ALL
SELECT id, discord_id, display_name, created_at FROM users WHERE discord_id = $2
LIMIT 1`, uuid.NewString(), discordID, displayName)

	var u model.User
	if err := row.Scan(&u.ID, &u.DiscordID, &u.DisplayName, &u.CreatedAt); err != nil {
		return model.User{}, err
	}
	return u, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, discord_id, display_name, created_at FROM users WHERE id = $1`, id)
	var u model.User
	if err := row.Scan(&u.ID, &u.DiscordID, &u.DisplayName, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, err
	}
	return u, nil
}

// PersonaRepo reads/writes speaker profiles.
type PersonaRepo struct {
	pool *pgxpool.Pool
}

func NewPersonaRepo(pool *pgxpool.Pool) *PersonaRepo { return &PersonaRepo{pool: pool} }

func (r *PersonaRepo) GetByID(ctx context.Context, id string) (model.Persona, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, user_id, name, created_at FROM personas WHERE id = $1`, id)
	var p model.Persona
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Persona{}, ErrNotFound
		}
		return model.Persona{}, err
	}
	return p, nil
}

// ActiveForUser returns the user's single active persona. Scope of
// "active" (global vs per-personality) is resolved by the caller per
// spec §3; this returns the most recently created row as the default.
func (r *PersonaRepo) ActiveForUser(ctx context.Context, userID string) (model.Persona, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, user_id, name, created_at FROM personas
WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1`, userID)
	var p model.Persona
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Persona{}, ErrNotFound
		}
		return model.Persona{}, err
	}
	return p, nil
}
