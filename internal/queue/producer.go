package queue

import (
	"context"
	"encoding/json"
	"fmt"

	kafka "github.com/segmentio/kafka-go"
)

// Producer wraps a kafka.Writer, grounded on the teacher's
// internal/orchestrator handler.go Producer interface, widened to a
// concrete type since the gateway and worker both need PublishJSON.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	return &Producer{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}}
}

// PublishJSON marshals v and writes it to topic keyed by key (the
// correlation/request id, so partitioning keeps one turn's messages
// ordered).
func (p *Producer) PublishJSON(ctx context.Context, topic, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message for topic %s: %w", topic, err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{Topic: topic, Key: []byte(key), Value: payload})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// dlqTopicFor returns a DLQ topic name for a given reply topic, matching
// the teacher's handler.go dlqTopicFor exactly (idempotent on topics
// already ending in ".dlq").
func dlqTopicFor(topic string) string {
	if topic == "" {
		return ""
	}
	if len(topic) >= 4 && topic[len(topic)-4:] == ".dlq" {
		return topic
	}
	return topic + ".dlq"
}
