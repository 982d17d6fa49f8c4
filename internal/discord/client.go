package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"github.com/rs/zerolog/log"

	"tzurot/internal/queue"
)

// TurnClient is C1's half of the Kafka request/reply pair with the
// gateway (C2): it publishes a queue.TurnEnvelope to TurnTopic and
// awaits the correlated queue.TurnReply on TurnReplyTopic. Independent
// of gateway.ReplyWaiter even though the shape is identical, since C1
// and C2 are separate processes with no shared in-process memory (spec
// §5: "no shared in-process memory between C1/C2/C4; coordination is
// via the queue and the database").
type TurnClient struct {
	producer   *queue.Producer
	turnTopic  string
	replyTopic string

	mu      sync.Mutex
	pending map[string]chan queue.TurnReply
}

func NewTurnClient(producer *queue.Producer, turnTopic, replyTopic string) *TurnClient {
	return &TurnClient{
		producer:   producer,
		turnTopic:  turnTopic,
		replyTopic: replyTopic,
		pending:    make(map[string]chan queue.TurnReply),
	}
}

func (c *TurnClient) register(correlationID string) chan queue.TurnReply {
	ch := make(chan queue.TurnReply, 1)
	c.mu.Lock()
	c.pending[correlationID] = ch
	c.mu.Unlock()
	return ch
}

func (c *TurnClient) forget(correlationID string) {
	c.mu.Lock()
	delete(c.pending, correlationID)
	c.mu.Unlock()
}

func (c *TurnClient) resolve(reply queue.TurnReply) {
	c.mu.Lock()
	ch, ok := c.pending[reply.CorrelationID]
	if ok {
		delete(c.pending, reply.CorrelationID)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	ch <- reply
}

// Run consumes TurnReplyTopic and dispatches every TurnReply to resolve
// until ctx is canceled. One TurnClient's Run should back every edge
// process instance, the same way gateway.ReplyWaiter.Run backs every
// gateway instance.
func (c *TurnClient) Run(ctx context.Context, brokers []string, groupID string) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    c.replyTopic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer func() {
		if err := reader.Close(); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("error closing turn-client kafka reader")
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
			log.Ctx(ctx).Warn().Err(err).Msg("turn-client fetch error")
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

		var reply queue.TurnReply
		if err := json.Unmarshal(m.Value, &reply); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("malformed turn reply, dropping")
		} else {
			c.resolve(reply)
		}

		if err := reader.CommitMessages(ctx, m); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("turn-client commit failed")
		}
	}
}

// Submit publishes env to TurnTopic and blocks for its reply until one
// arrives, ctx is done, or deadline elapses. On timeout the registration
// is forgotten so a late reply is dropped rather than leaked (mirroring
// gateway.ReplyWaiter.Await's same tradeoff one hop upstream).
func (c *TurnClient) Submit(ctx context.Context, env queue.TurnEnvelope, deadline time.Duration) (queue.TurnReply, error) {
	env.ReplyTopic = c.replyTopic
	ch := c.register(env.CorrelationID)

	if err := c.producer.PublishJSON(ctx, c.turnTopic, env.CorrelationID, env); err != nil {
		c.forget(env.CorrelationID)
		return queue.TurnReply{}, fmt.Errorf("publish turn envelope: %w", err)
	}

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case reply := <-ch:
		return reply, nil
	case <-timer.C:
		c.forget(env.CorrelationID)
		return queue.TurnReply{}, fmt.Errorf("await turn reply: deadline exceeded for correlation %s", env.CorrelationID)
	case <-ctx.Done():
		c.forget(env.CorrelationID)
		return queue.TurnReply{}, ctx.Err()
	}
}
