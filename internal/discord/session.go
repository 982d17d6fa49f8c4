package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"tzurot/internal/config"
	"tzurot/internal/queue"
)

// genericErrorReply is what the user sees when a turn fails anywhere
// downstream; spec §7 reserves the detailed error for logs and keeps the
// platform-facing message uninformative on purpose.
const genericErrorReply = "Something went wrong handling that message. Please try again."

// Session owns the live discordgo connection and wires the routing,
// dedup, rate-limit, turn-client, and webhook-delivery collaborators
// into one MessageCreate handler, grounded on the teacher's
// whatsappClient session-lifecycle shape (AddEventHandler, Connect/
// Disconnect tied to ctx) in _examples/thrapt-picobot/internal/channels/
// whatsapp.go, adapted to discordgo's handler-registration API instead
// of whatsmeow's.
type Session struct {
	session     *discordgo.Session
	router      *Router
	fingerprint *FingerprintCache
	rateLimit   *RateLimiter
	turnClient  *TurnClient
	webhook     *WebhookManager

	turnDeadline  time.Duration
	headerEnabled func(isDM bool) bool
}

// NewSession constructs a Session against botToken; call Open to start
// receiving events.
func NewSession(cfg *config.Config, router *Router, fingerprint *FingerprintCache, rateLimit *RateLimiter, turnClient *TurnClient, webhook *WebhookManager) (*Session, error) {
	dg, err := discordgo.New("Bot " + cfg.Discord.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create discordgo session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentMessageContent

	s := &Session{
		session:      dg,
		router:       router,
		fingerprint:  fingerprint,
		rateLimit:    rateLimit,
		turnClient:   turnClient,
		webhook:      webhook,
		turnDeadline: time.Duration(cfg.Discord.TurnReplyDeadlineMs) * time.Millisecond,
		// Context headers are suppressed only in DMs (spec §4.3 step 7 /
		// ctxassembly ComposeInput.Channel.HeaderEnabled semantics).
		headerEnabled: func(isDM bool) bool { return !isDM },
	}

	dg.AddHandler(s.handleMessageCreate)
	return s, nil
}

// Open connects to the gateway; Close tears the connection down. Both
// mirror whatsmeow's client.Connect()/client.Disconnect() pairing one
// layer up.
func (s *Session) Open() error  { return s.session.Open() }
func (s *Session) Close() error { return s.session.Close() }

// Underlying exposes the live *discordgo.Session so a WebhookManager can
// be constructed against it; WebhookManager and Session have a cyclic
// dependency (delivery needs the session, the session's handler needs
// the delivery path), so construction happens in two steps: NewSession
// first, then SetWebhookManager once the manager is built from
// Underlying().
func (s *Session) Underlying() *discordgo.Session { return s.session }

// SetWebhookManager finishes wiring the Session for outbound delivery.
func (s *Session) SetWebhookManager(webhook *WebhookManager) { s.webhook = webhook }

func (s *Session) handleMessageCreate(sess *discordgo.Session, m *discordgo.MessageCreate) {
	ctx := context.Background()

	// Drop our own messages and every webhook-authored message: webhook
	// posts are how personalities speak, so treating one as inbound would
	// have Tzurot reply to itself (spec §4.1 step (a)).
	if m.WebhookID != "" {
		return
	}
	if sess.State != nil && sess.State.User != nil && m.Author != nil && m.Author.ID == sess.State.User.ID {
		return
	}
	if m.Author == nil || m.Author.Bot {
		return
	}

	var nonce string
	if m.Nonce != "" {
		nonce = m.Nonce
	}
	fp := computeFingerprint(m.ID, nonce, m.Content, m.ChannelID)
	if s.fingerprint.SeenOrRemember(fp) {
		return
	}

	if !s.rateLimit.Allow(m.Author.ID) {
		log.Ctx(ctx).Debug().Str("user_id", m.Author.ID).Msg("dropping message: rate limit exceeded")
		return
	}

	ev := InboundEvent{
		MessageID: m.ID,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
		AuthorID:  m.Author.ID,
		Content:   m.Content,
		IsDM:      m.GuildID == "",
	}
	if m.MessageReference != nil {
		ev.ReplyToID = m.MessageReference.MessageID
	}

	personality, err := s.router.Resolve(ctx, ev)
	if err != nil {
		// ErrNoPersonality and ErrDenylisted are ordinary non-matches, not
		// failures (spec §4.1 step (c): forward only "if and only if a
		// personality is resolved... and not denylisted").
		if err != ErrNoPersonality && err != ErrDenylisted {
			log.Ctx(ctx).Warn().Err(err).Msg("route resolution failed")
		}
		return
	}

	displayName := m.Author.Username
	if m.Member != nil && m.Member.Nick != "" {
		displayName = m.Member.Nick
	}

	guildName := ""
	if m.GuildID != "" {
		if g, err := sess.State.Guild(m.GuildID); err == nil && g != nil {
			guildName = g.Name
		}
	}
	channelName := ""
	if ch, err := sess.State.Channel(m.ChannelID); err == nil && ch != nil {
		channelName = ch.Name
	}

	req := queue.TurnEnvelope{
		CorrelationID:        uuid.NewString(),
		RequestID:            uuid.NewString(),
		DiscordUserID:        m.Author.ID,
		DisplayName:          displayName,
		ChannelID:            m.ChannelID,
		GuildID:              m.GuildID,
		IsDM:                 ev.IsDM,
		GuildName:            guildName,
		ChannelName:          channelName,
		PersonalityID:        personality.ID,
		UserMessageID:        m.ID,
		Content:              m.Content,
		ContextHeaderEnabled: s.headerEnabled(ev.IsDM),
	}

	reply, err := s.turnClient.Submit(ctx, req, s.turnDeadline)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("correlation_id", req.CorrelationID).Msg("turn submission failed")
		s.sendGenericError(m.ChannelID)
		return
	}
	if reply.Status != "success" {
		log.Ctx(ctx).Warn().Str("kind", reply.ErrorKind).Str("error", reply.Error).Str("correlation_id", req.CorrelationID).Msg("turn returned error")
		s.sendGenericError(m.ChannelID)
		return
	}

	threadID := ""
	if ch, err := sess.State.Channel(m.ChannelID); err == nil && ch != nil && ch.IsThread() {
		threadID = ch.ID
	}

	if err := s.webhook.DeliverChunks(ctx, parentChannelID(sess, m.ChannelID), threadID, personality.ID, personality.Name, personality.AvatarURL, reply.Chunks); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("correlation_id", req.CorrelationID).Msg("delivery failed")
	}
}

// parentChannelID returns the parent channel id when channelID is a
// thread, since a thread's webhooks belong to its parent (spec §4.1 step
// 1: "for threads, use parent-channel webhook with a thread parameter").
func parentChannelID(sess *discordgo.Session, channelID string) string {
	ch, err := sess.State.Channel(channelID)
	if err != nil || ch == nil || !ch.IsThread() || ch.ParentID == "" {
		return channelID
	}
	return ch.ParentID
}

func (s *Session) sendGenericError(channelID string) {
	if _, err := s.session.ChannelMessageSend(channelID, genericErrorReply); err != nil {
		log.Warn().Err(err).Str("channel_id", channelID).Msg("failed to send generic error reply")
	}
}
