package messagebroker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Publisher delivers an opaque payload to a subject or topic.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Close() error
}

// Broker names accepted by NewPublisher.
const (
	BrokerNone  = "none"
	BrokerNATS  = "nats"
	BrokerKafka = "kafka"
)

// PublisherConfig selects and addresses the broker.
type PublisherConfig struct {
	Broker       string
	AppName      string
	NATSURL      string
	KafkaBrokers []string
}

// NewPublisher connects to the configured broker. "none" or an empty name
// yields a publisher that drops everything.
func NewPublisher(cfg PublisherConfig, logger *slog.Logger) (Publisher, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Broker)) {
	case "", BrokerNone:
		return NoopPublisher{}, nil
	case BrokerNATS:
		return NewNatsClient(cfg.NATSURL, cfg.AppName, logger)
	case BrokerKafka:
		return NewKafkaPublisher(cfg.KafkaBrokers, logger)
	default:
		return nil, fmt.Errorf("unknown broker %q", cfg.Broker)
	}
}

// NoopPublisher discards every message.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, []byte) error { return nil }

func (NoopPublisher) Close() error { return nil }
