package discord

import (
	"container/list"
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"tzurot/internal/db"
	"tzurot/internal/model"
)

// ErrNoPersonality is returned by Router.Resolve when none of the
// resolution steps name a personality; the caller drops the event
// (spec §4.1 step (c): "if and only if a personality is resolved...
// forward to C2").
var ErrNoPersonality = errors.New("no personality resolved for message")

// ErrDenylisted is returned when the resolved route is blocked (spec
// §4.1 step (c): "and the source is not denylisted").
var ErrDenylisted = errors.New("source is denylisted")

// sentMessageIndex is the third per-process cache spec §5 implies
// alongside the webhook cache and fingerprint LRU: recently-sent
// outbound message ids mapped back to the personality that sent them,
// so a reply to one of our own webhook posts resolves without a round
// trip to the turn log. Bounded and unpersisted for the same reason the
// fingerprint LRU is (spec §5: "per-process, bounded, no persistence
// needed").
type sentMessageIndex struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	index    map[string]*list.Element
}

type sentMessageEntry struct {
	messageID     string
	personalityID string
}

func newSentMessageIndex(capacity int) *sentMessageIndex {
	if capacity <= 0 {
		capacity = 1000
	}
	return &sentMessageIndex{capacity: capacity, order: list.New(), index: make(map[string]*list.Element)}
}

func (s *sentMessageIndex) remember(messageID, personalityID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el := s.order.PushFront(sentMessageEntry{messageID, personalityID})
	s.index[messageID] = el
	for s.order.Len() > s.capacity {
		oldest := s.order.Back()
		if oldest == nil {
			break
		}
		s.order.Remove(oldest)
		delete(s.index, oldest.Value.(sentMessageEntry).messageID)
	}
}

func (s *sentMessageIndex) lookup(messageID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.index[messageID]
	if !ok {
		return "", false
	}
	return el.Value.(sentMessageEntry).personalityID, true
}

// InboundEvent is the normalized shape of a chat-platform message the
// router classifies, independent of discordgo's own message type so
// route.go stays testable without a live session.
type InboundEvent struct {
	MessageID       string
	ChannelID       string
	GuildID         string
	AuthorID        string
	Content         string
	IsDM            bool
	ReplyToID       string // MessageReference.MessageID, empty if not a reply
}

// Router implements spec §4.1 step (c)'s resolution order: explicit
// mention token, reply-to-our-message lookup, channel activation, DM
// autoresponse state, each falling through to the next.
type Router struct {
	personalities *db.PersonalityRepo
	activated     *db.ActivatedChannelRepo
	denylist      *db.DenylistRepo
	sent          *sentMessageIndex
}

func NewRouter(personalities *db.PersonalityRepo, activated *db.ActivatedChannelRepo, denylist *db.DenylistRepo, sentIndexCapacity int) *Router {
	return &Router{
		personalities: personalities,
		activated:     activated,
		denylist:      denylist,
		sent:          newSentMessageIndex(sentIndexCapacity),
	}
}

// RememberSent records an outbound message id against the personality
// that produced it, feeding step (b) of Resolve on a later reply.
func (r *Router) RememberSent(messageID, personalityID string) {
	r.sent.remember(messageID, personalityID)
}

// Resolve runs the resolution cascade and the denylist check together,
// since spec §4.1 step (c) treats "resolved and not denylisted" as one
// gate before forwarding to C2.
func (r *Router) Resolve(ctx context.Context, ev InboundEvent) (model.Personality, error) {
	personality, err := r.resolvePersonality(ctx, ev)
	if err != nil {
		return model.Personality{}, err
	}

	blocked, err := r.anyDenylisted(ctx, ev.AuthorID, ev.ChannelID, personality.ID)
	if err != nil {
		return model.Personality{}, err
	}
	if blocked {
		return model.Personality{}, ErrDenylisted
	}

	return personality, nil
}

func (r *Router) resolvePersonality(ctx context.Context, ev InboundEvent) (model.Personality, error) {
	if alias, ok := leadingMentionAlias(ev.Content); ok {
		if p, err := r.personalities.GetByAlias(ctx, alias); err == nil {
			return p, nil
		} else if !errors.Is(err, db.ErrNotFound) {
			return model.Personality{}, err
		}
	}

	if ev.ReplyToID != "" {
		if personalityID, ok := r.sent.lookup(ev.ReplyToID); ok {
			if p, err := r.personalities.GetByID(ctx, personalityID); err == nil {
				return p, nil
			} else if !errors.Is(err, db.ErrNotFound) {
				return model.Personality{}, err
			}
		}
	}

	// Channel activation and DM autoresponse state share one table (spec
	// §3: ActivatedChannel "carries optional guild id for scoping"), so a
	// DM's channel id resolving a row here is exactly DM autoresponse.
	if ac, err := r.activated.GetByChannel(ctx, ev.ChannelID); err == nil {
		return r.personalities.GetByID(ctx, ac.PersonalityID)
	} else if !errors.Is(err, db.ErrNotFound) {
		return model.Personality{}, err
	}

	return model.Personality{}, ErrNoPersonality
}

func (r *Router) anyDenylisted(ctx context.Context, authorID, channelID, personalityID string) (bool, error) {
	if blocked, err := r.denylist.IsDenylisted(ctx, "user", authorID); err != nil {
		return false, err
	} else if blocked {
		return true, nil
	}
	if blocked, err := r.denylist.IsDenylisted(ctx, "channel", channelID); err != nil {
		return false, err
	} else if blocked {
		return true, nil
	}
	if personalityID != "" {
		if blocked, err := r.denylist.IsDenylisted(ctx, "personality", personalityID); err != nil {
			return false, err
		} else if blocked {
			return true, nil
		}
	}
	return false, nil
}

// leadingMentionAlias extracts a personality alias from an explicit
// mention token at the start of the message, e.g. "@nova hey there" ->
// ("nova", true). Only a leading token counts as an explicit mention;
// an "@alias" appearing mid-sentence is just text.
func leadingMentionAlias(content string) (string, bool) {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "@") {
		return "", false
	}
	rest := trimmed[1:]
	end := strings.IndexAny(rest, " \t\n")
	if end == -1 {
		end = len(rest)
	}
	alias := strings.ToLower(strings.TrimSpace(rest[:end]))
	if alias == "" {
		return "", false
	}
	return alias, true
}

// RateLimiter is a per-user fixed-window token bucket enforcing spec
// §5's "per-user rate-limits (messages/minute) are enforced at C1".
type RateLimiter struct {
	mu          sync.Mutex
	perMinute   int
	windowStart map[string]time.Time
	count       map[string]int
}

func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 20
	}
	return &RateLimiter{perMinute: perMinute, windowStart: make(map[string]time.Time), count: make(map[string]int)}
}

// Allow reports whether userID may send another message in the current
// one-minute window, incrementing its counter when it does.
func (rl *RateLimiter) Allow(userID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	start, ok := rl.windowStart[userID]
	if !ok || now.Sub(start) >= time.Minute {
		rl.windowStart[userID] = now
		rl.count[userID] = 1
		return true
	}
	if rl.count[userID] >= rl.perMinute {
		return false
	}
	rl.count[userID]++
	return true
}
