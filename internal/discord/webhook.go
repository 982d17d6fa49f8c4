package discord

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

const (
	webhookName      = "tzurot-proxy"
	maxUsernameChars = 32
)

// sanitizeUsername strips quotes and mention tokens, truncates to
// Discord's 32-char webhook-username limit, and falls back to a
// generic name when the result is empty (spec §4.1 step 3: "sanitized:
// strip quotes/mentions; truncate to 32 chars; fallback if empty").
func sanitizeUsername(name string) string {
	s := strings.NewReplacer(`"`, "", "'", "", "`", "", "@", "", "#", "").Replace(name)
	s = strings.TrimSpace(s)
	if s == "" {
		return "Personality"
	}
	if len(s) > maxUsernameChars {
		s = strings.TrimSpace(s[:maxUsernameChars-3]) + "..."
	}
	return s
}

// WebhookManager caches per-channel webhooks (invalidated on 404) and
// delivers a chunked reply under a personality's identity, grounded on
// the teacher's per-process caching idiom (spec §5: "Webhook cache in
// C1: per-process map keyed by channel id, invalidated on 404; safe
// because each C1 process owns its platform connection").
type WebhookManager struct {
	session    *discordgo.Session
	router     *Router
	dedup      *OutboundDedup
	chunkDelay time.Duration

	mu    sync.Mutex
	cache map[string]*discordgo.Webhook
}

func NewWebhookManager(session *discordgo.Session, router *Router, dedup *OutboundDedup, chunkDelay time.Duration) *WebhookManager {
	return &WebhookManager{
		session:    session,
		router:     router,
		dedup:      dedup,
		chunkDelay: chunkDelay,
		cache:      make(map[string]*discordgo.Webhook),
	}
}

// resolveWebhook implements spec §4.1 step 1: "Resolve or create a
// channel webhook cached by channel id; for threads, use parent-channel
// webhook with a thread parameter." Threads share their parent
// channel's webhook set in Discord's API, so no special-casing is
// needed beyond passing the thread id through at send time.
func (w *WebhookManager) resolveWebhook(channelID string) (*discordgo.Webhook, error) {
	w.mu.Lock()
	if wh, ok := w.cache[channelID]; ok {
		w.mu.Unlock()
		return wh, nil
	}
	w.mu.Unlock()

	existing, err := w.session.ChannelWebhooks(channelID)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	for _, wh := range existing {
		if wh.Name == webhookName {
			w.mu.Lock()
			w.cache[channelID] = wh
			w.mu.Unlock()
			return wh, nil
		}
	}

	// Idempotent lookup-then-create closes the webhook-creation race
	// named in spec §4.1 Failure semantics: two concurrent resolves both
	// list first, so only a true simultaneous miss ever double-creates,
	// and the loser's webhook is simply never cached or used again.
	created, err := w.session.WebhookCreate(channelID, webhookName, "")
	if err != nil {
		return nil, fmt.Errorf("create webhook: %w", err)
	}
	w.mu.Lock()
	w.cache[channelID] = created
	w.mu.Unlock()
	return created, nil
}

func (w *WebhookManager) invalidate(channelID string) {
	w.mu.Lock()
	delete(w.cache, channelID)
	w.mu.Unlock()
}

// DeliverChunks posts plan's chunks sequentially under personality's
// identity (spec §4.1 "Outbound publish"). threadID is empty for a
// top-level channel. personalityID feeds Router.RememberSent so a later
// reply to this delivery resolves back to the same personality.
func (w *WebhookManager) DeliverChunks(ctx context.Context, channelID, threadID, personalityID, displayName, avatarURL string, chunks []string) error {
	username := sanitizeUsername(displayName)

	for i, chunk := range chunks {
		if i > 0 {
			select {
			case <-time.After(w.chunkDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if w.dedup != nil && w.dedup.IsNearDuplicate(channelID, username, chunk) {
			log.Ctx(ctx).Debug().Str("channel_id", channelID).Msg("suppressing near-duplicate outbound chunk")
			continue
		}

		msgID, err := w.send(channelID, threadID, username, avatarURL, chunk)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("channel_id", channelID).Int("chunk", i).Msg("webhook send failed, falling back to plain channel send")
			fallback, ferr := w.session.ChannelMessageSend(channelID, fmt.Sprintf("**%s:** %s", displayName, chunk))
			if ferr != nil {
				if i == 0 {
					return fmt.Errorf("deliver chunk %d: webhook failed (%v) and fallback failed (%w)", i, err, ferr)
				}
				// Past the first chunk, partial replies are allowed (spec
				// §4.1 Failure semantics): log and continue.
				continue
			}
			msgID = fallback.ID
		}

		if w.dedup != nil {
			w.dedup.Record(channelID, username, chunk)
		}
		if msgID != "" {
			w.router.RememberSent(msgID, personalityID)
		}
	}
	return nil
}

func (w *WebhookManager) send(channelID, threadID, username, avatarURL, content string) (string, error) {
	wh, err := w.resolveWebhook(channelID)
	if err != nil {
		return "", err
	}

	params := &discordgo.WebhookParams{
		Content:   content,
		Username:  username,
		AvatarURL: avatarURL,
	}
	if threadID != "" {
		params.ThreadID = threadID
	}

	msg, err := w.session.WebhookExecute(wh.ID, wh.Token, true, params)
	if err != nil {
		if restErr, ok := err.(*discordgo.RESTError); ok && restErr.Response != nil && restErr.Response.StatusCode == 404 {
			w.invalidate(channelID)
		}
		return "", err
	}
	if msg == nil {
		return "", nil
	}
	return msg.ID, nil
}
