package gateway

import (
	"context"
	"encoding/json"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"github.com/rs/zerolog/log"

	"tzurot/internal/corekit"
	"tzurot/internal/queue"
)

// RunTurnConsumer consumes TurnTopic and dispatches each envelope to
// HandleTurn, publishing a TurnReply back to the envelope's own
// ReplyTopic. This is C1's actual inbound path into C2 (spec §5: "no
// shared in-process memory between C1/C2/C4; coordination is via the
// queue and the database"), grounded directly on the teacher's
// internal/orchestrator/kafka.go StartKafkaConsumer + handler.go
// HandleCommandMessage: fetch -> unmarshal a correlation-id-keyed
// command -> run -> publish a correlation-id-keyed response -> commit
// regardless of outcome. Unlike the teacher's version this has no
// separate worker-pool fan-out, since HandleTurn already bounds its own
// work with TurnDeadlineMs and a single slow turn should not starve the
// reader loop behind a bounded number of workers either way; callers
// that want more throughput run more gateway process replicas instead
// (spec §5: "parallelism comes from running multiple worker processes").
func RunTurnConsumer(ctx context.Context, g *Gateway, brokers []string, groupID, topic, defaultReplyTopic string) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer func() {
		if err := reader.Close(); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("error closing turn consumer kafka reader")
		}
	}()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Ctx(ctx).Warn().Err(err).Msg("turn consumer fetch error")
			t := time.NewTimer(500 * time.Millisecond)
			select {
			case <-t.C:
			case <-ctx.Done():
				if !t.Stop() {
					<-t.C
				}
				return ctx.Err()
			}
			continue
		}

		handleTurnMessage(ctx, g, m, defaultReplyTopic)

		if err := reader.CommitMessages(ctx, m); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("turn consumer commit failed")
		}
	}
}

func handleTurnMessage(ctx context.Context, g *Gateway, m kafka.Message, defaultReplyTopic string) {
	var env queue.TurnEnvelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("malformed turn envelope, dropping")
		return
	}

	replyTopic := env.ReplyTopic
	if replyTopic == "" {
		replyTopic = defaultReplyTopic
	}

	in := TurnRequest{
		RequestID:            env.RequestID,
		DiscordUserID:        env.DiscordUserID,
		DisplayName:          env.DisplayName,
		ChannelID:            env.ChannelID,
		GuildID:              env.GuildID,
		IsDM:                 env.IsDM,
		GuildName:            env.GuildName,
		ChannelName:          env.ChannelName,
		PersonalityID:        env.PersonalityID,
		PersonalitySlug:      env.PersonalitySlug,
		PersonalityAlias:     env.PersonalityAlias,
		UserMessageID:        env.UserMessageID,
		Content:              env.Content,
		ContextHeaderEnabled: env.ContextHeaderEnabled,
	}

	plan, err := g.HandleTurn(ctx, in)
	reply := queue.TurnReply{CorrelationID: env.CorrelationID}
	if err != nil {
		kind := corekit.KindOf(err)
		reply.Status = "error"
		reply.ErrorKind = kind.String()
		reply.Error = err.Error()
	} else {
		reply.Status = "success"
		reply.Chunks = plan.Chunks
		reply.ThinkingContent = plan.ThinkingContent
		reply.ShowThinking = plan.ShowThinking
	}

	if err := g.producer.PublishJSON(ctx, replyTopic, env.CorrelationID, reply); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("correlation_id", env.CorrelationID).Msg("publish turn reply failed")
	}
}
