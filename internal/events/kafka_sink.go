package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"

	"github.com/alanyoungcy/coinflip/internal/domain"
)

// KafkaSink publishes bet events to a Kafka topic for downstream consumers
// (risk, analytics, reconciliation). Messages are keyed by participant so
// one participant's events stay ordered within a partition.
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink creates a KafkaSink writing to the given topic.
func NewKafkaSink(brokers string, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(strings.Split(brokers, ",")...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
	}
}

// Emit publishes the event as JSON.
func (s *KafkaSink) Emit(ctx context.Context, e domain.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", e.Name, err)
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.Participant),
		Value: payload,
		Time:  e.At,
	})
}

// Close flushes and closes the underlying writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
