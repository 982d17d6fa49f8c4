// Package gateway implements the Request Gateway (C2): it resolves the
// config cascade, assembles context through C3, enqueues and awaits an
// inference job from C4, persists the resulting turn, and hands back a
// chunked delivery plan plus a memory-distillation job for C5. This is
// the one component every other component's output passes through
// (spec §2 "Flow (one turn)").
package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"tzurot/internal/cascade"
	"tzurot/internal/config"
	"tzurot/internal/corekit"
	"tzurot/internal/ctxassembly"
	"tzurot/internal/db"
	"tzurot/internal/llm"
	"tzurot/internal/model"
	"tzurot/internal/queue"
)

// mentionStripPasses bounds how many leading-mention tokens
// StripLeadingMentions removes from one message (spec §4.3 step 6:
// "up to a configured max").
const mentionStripPasses = 3

// TurnRequest is the envelope C1 hands to handleTurn after mention/reply/
// activation/DM resolution has already picked a target personality
// (spec §4.1 step (c)); C2 never re-derives routing from raw message
// text.
type TurnRequest struct {
	RequestID           string
	DiscordUserID       string
	DisplayName         string
	ChannelID           string
	GuildID             string
	IsDM                bool
	GuildName           string
	ChannelName         string
	PersonalityID       string
	PersonalitySlug     string
	PersonalityAlias    string
	UserMessageID       string
	Content             string
	ContextHeaderEnabled bool
}

// DeliveryPlan is handleTurn's return value: the chunked reply content
// C1 delivers, plus the extracted thinking content when the resolved
// config asked for it (spec §4.2 step (vii)).
type DeliveryPlan struct {
	Chunks          []string
	ThinkingContent string
	ShowThinking    bool
}

// Gateway wires together the repositories and services handleTurn needs.
// One Gateway instance is shared across concurrent HandleTurn calls; its
// fields are all either immutable configuration or already-concurrency-
// safe collaborators (pgxpool, ReplyWaiter, Producer).
type Gateway struct {
	users         *db.UserRepo
	personalities *db.PersonalityRepo
	turns         *db.TurnRepo
	memories      *db.MemoryRepo
	resolver      *cascade.Resolver

	producer *queue.Producer
	waiter   *ReplyWaiter

	embCfg    config.EmbeddingsConfig
	queueCfg  config.QueueConfig
	gwCfg     config.GatewayConfig
	tokenizer llm.Tokenizer
}

func New(
	users *db.UserRepo,
	personalities *db.PersonalityRepo,
	turns *db.TurnRepo,
	memories *db.MemoryRepo,
	resolver *cascade.Resolver,
	producer *queue.Producer,
	waiter *ReplyWaiter,
	embCfg config.EmbeddingsConfig,
	queueCfg config.QueueConfig,
	gwCfg config.GatewayConfig,
	tokenizer llm.Tokenizer,
) *Gateway {
	return &Gateway{
		users:         users,
		personalities: personalities,
		turns:         turns,
		memories:      memories,
		resolver:      resolver,
		producer:      producer,
		waiter:        waiter,
		embCfg:        embCfg,
		queueCfg:      queueCfg,
		gwCfg:         gwCfg,
		tokenizer:     tokenizer,
	}
}

// HandleTurn implements the public contract named in spec §4.2:
// handleTurn(envelope) -> DeliveryPlan. Every failure is wrapped in a
// *corekit.Envelope so the caller (C1) can tell a silent drop from a
// surfaced error from a retry without inspecting error text (spec §7).
func (g *Gateway) HandleTurn(ctx context.Context, in TurnRequest) (DeliveryPlan, error) {
	deadline := time.Duration(g.gwCfg.TurnDeadlineMs) * time.Millisecond
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	personality, err := g.resolvePersonality(ctx, in)
	if err != nil {
		return DeliveryPlan{}, corekit.Wrap(corekit.KindConfigInvalid, "gateway.resolve_personality", err)
	}

	user, err := g.users.EnsureByDiscordID(ctx, in.DiscordUserID, in.DisplayName)
	if err != nil {
		return DeliveryPlan{}, corekit.Wrap(corekit.KindFatalInternal, "gateway.ensure_user", err)
	}

	resolved, issues, err := g.resolver.Resolve(ctx, user.ID, personality, in.ChannelID)
	if err != nil {
		return DeliveryPlan{}, corekit.Wrap(corekit.KindConfigInvalid, "gateway.resolve_cascade", err)
	}
	for _, issue := range issues {
		log.Ctx(ctx).Debug().Str("path", issue.Path).Str("reason", issue.Reason).Msg("cascade leaf rejected by schema validation")
	}

	messages, err := g.assembleContext(ctx, personality, resolved, in)
	if err != nil {
		return DeliveryPlan{}, corekit.Wrap(corekit.KindContextOverflow, "gateway.assemble_context", err)
	}

	requestID := in.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	result, err := g.runInference(ctx, requestID, in.ChannelID, user.ID, personality, resolved, messages)
	if err != nil {
		return DeliveryPlan{}, err
	}
	if result.Status == "error" {
		kind := corekit.KindInferenceRejected
		if result.ErrorKind == "ConfigInvalid" {
			kind = corekit.KindConfigInvalid
		}
		return DeliveryPlan{}, corekit.Wrap(kind, "gateway.inference", fmt.Errorf("%s", result.Error))
	}

	tokenCount := result.CompletionTokens
	if tokenCount <= 0 {
		tokenCount = llm.EstimateTokens(result.Content)
	}

	turnID, err := g.turns.AppendPair(ctx, in.ChannelID, in.GuildID, personality.ID, personality.PersonaID, user.ID, in.UserMessageID, in.Content, result.Content, tokenCount)
	if err != nil {
		return DeliveryPlan{}, corekit.Wrap(corekit.KindFatalInternal, "gateway.persist_turn", err)
	}

	if err := g.producer.PublishJSON(ctx, g.queueCfg.MemoryTopic, turnID, queue.MemoryJob{RequestID: requestID, TurnID: turnID}); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("turn_id", turnID).Msg("failed to enqueue memory-distillation job, turn still persisted")
	}

	chunks := splitDelivery(result.Content)
	plan := DeliveryPlan{Chunks: chunks, ShowThinking: resolved.ShowThinking}
	if resolved.ShowThinking {
		plan.ThinkingContent = result.ThinkingContent
	}
	return plan, nil
}

// resolvePersonality looks a personality up by id, else slug, else alias,
// whichever the caller supplied first in that order; C1 has already picked it
// via mention/reply/activation/DM resolution (spec §4.1 step (c)).
func (g *Gateway) resolvePersonality(ctx context.Context, in TurnRequest) (model.Personality, error) {
	if in.PersonalityID != "" {
		return g.personalities.GetByID(ctx, in.PersonalityID)
	}
	if in.PersonalitySlug != "" {
		return g.personalities.GetBySlug(ctx, in.PersonalitySlug)
	}
	if in.PersonalityAlias != "" {
		return g.personalities.GetByAlias(ctx, in.PersonalityAlias)
	}
	return model.Personality{}, fmt.Errorf("turn request names no personality")
}
