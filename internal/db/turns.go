package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tzurot/internal/model"
)

// TurnRepo is the append-only conversation-turn log. Edits never mutate a
// row; callers append a new turn, and CreateTombstone hides every turn at
// or before it in a (channel, personality) scope (spec §3 invariant 5). Each row holds one full exchange
// (the user message and the assistant reply it produced); AppendPair is
// the primary write path.
type TurnRepo struct {
	pool *pgxpool.Pool
}

func NewTurnRepo(pool *pgxpool.Pool) *TurnRepo { return &TurnRepo{pool: pool} }

const turnColumns = `id, channel_id, guild_id, personality_id, persona_id, user_id, user_message_id, user_content, assistant_content, token_count, created_at`

func scanTurn(row pgx.Row) (model.ConversationTurn, error) {
	var t model.ConversationTurn
	var tokenCount *int
	if err := row.Scan(&t.ID, &t.ChannelID, &t.GuildID, &t.PersonalityID, &t.PersonaID, &t.UserID, &t.UserMessageID, &t.UserContent, &t.AssistantContent, &tokenCount, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ConversationTurn{}, ErrNotFound
		}
		return model.ConversationTurn{}, err
	}
	if tokenCount != nil {
		t.TokenCount = *tokenCount
	}
	return t, nil
}

// AppendPair writes one exchange row covering both the user message and
// the assistant reply, the way AppendMessages inserts a session's message
// batch atomically.
func (r *TurnRepo) AppendPair(ctx context.Context, channelID, guildID, personalityID, personaID, userID, userMessageID, userContent, assistantContent string, assistantTokenCount int) (turnID string, err error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	turnID = uuid.NewString()
	var tokenCount *int
	if assistantTokenCount > 0 {
		tokenCount = &assistantTokenCount
	}
	_, err = r.pool.Exec(ctx, `
INSERT INTO conversation_turns (id, channel_id, guild_id, personality_id, persona_id, user_id, user_message_id, user_content, assistant_content, token_count)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		turnID, channelID, guildID, personalityID, personaID, userID, userMessageID, userContent, assistantContent, tokenCount)
	if err != nil {
		return "", err
	}
	return turnID, nil
}

// GetByID fetches a single turn, used by the memory-writer retry path to
// re-load the exchange a pending distillation job refers to.
func (r *TurnRepo) GetByID(ctx context.Context, turnID string) (model.ConversationTurn, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+turnColumns+` FROM conversation_turns WHERE id = $1`, turnID)
	return scanTurn(row)
}

// RecentTurns returns up to n most recent rows for (channel, personality)
// in chronological order (oldest first), excluding anything at or before
// the most recent tombstone, per spec §4.3 step 1.
func (r *TurnRepo) RecentTurns(ctx context.Context, channelID, personalityID string, n int) ([]model.ConversationTurn, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := r.pool.Query(ctx, `
SELECT `+turnColumns+`
FROM conversation_turns t
WHERE t.channel_id = $1 AND t.personality_id = $2
  AND t.created_at > COALESCE((
    SELECT max(created_at) FROM conversation_tombstones
    WHERE channel_id = $1 AND personality_id = $2
  ), 'epoch'::timestamptz)
ORDER BY t.created_at DESC
LIMIT $3`, channelID, personalityID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ConversationTurn
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// BackfillTokenCount lazily caches a token count computed on the fly by
// the caller for a row that lacked one.
func (r *TurnRepo) BackfillTokenCount(ctx context.Context, turnID string, tokenCount int) error {
	_, err := r.pool.Exec(ctx, `UPDATE conversation_turns SET token_count = $2 WHERE id = $1 AND token_count IS NULL`, turnID, tokenCount)
	return err
}

// CreateTombstone marks a (channel, personality) scope so sync jobs never
// resurrect turns at or before this point. Tombstones are FK-free by
// design (spec §3) so they outlive their referents.
func (r *TurnRepo) CreateTombstone(ctx context.Context, channelID, personalityID string) (model.ConversationTombstone, error) {
	id := uuid.NewString()
	row := r.pool.QueryRow(ctx, `
INSERT INTO conversation_tombstones (id, channel_id, personality_id)
VALUES ($1, $2, $3)
RETURNING id, channel_id, personality_id, created_at`, id, channelID, personalityID)

	var ts model.ConversationTombstone
	if err := row.Scan(&ts.ID, &ts.ChannelID, &ts.PersonalityID, &ts.CreatedAt); err != nil {
		return model.ConversationTombstone{}, err
	}
	return ts, nil
}
