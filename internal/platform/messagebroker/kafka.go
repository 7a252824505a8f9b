package messagebroker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// messageWriter is the part of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes each payload as one kafka message. The subject is
// used as the topic.
type KafkaPublisher struct {
	writer messageWriter
	logger *slog.Logger
}

func NewKafkaPublisher(brokers []string, logger *slog.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker address is required")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	logger.Info("Kafka publisher configured", "brokers", brokers)
	return &KafkaPublisher{writer: w, logger: logger}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	msg := kafka.Message{
		Topic: subject,
		Key:   []byte(uuid.NewString()),
		Value: data,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write to kafka: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
