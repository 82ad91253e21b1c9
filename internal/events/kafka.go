package events

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaSender publishes envelopes to a Kafka topic, keyed by event id so one
// event's records stay on one partition.
type KafkaSender struct {
	writer *kafka.Writer
}

func NewKafkaSender(brokers []string, topic string) *KafkaSender {
	return &KafkaSender{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (s *KafkaSender) Send(ctx context.Context, key, value []byte) error {
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
	})
}

func (s *KafkaSender) Close() error {
	return s.writer.Close()
}
