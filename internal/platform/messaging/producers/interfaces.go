package producers

import (
	"context"

	"github.com/Frictionless-Ledger-Operations/flo-wallet/internal/domain/shared"
	"github.com/segmentio/kafka-go"
)

// EventPublisher publishes transfer lifecycle events
type EventPublisher interface {
	Publish(ctx context.Context, event shared.TransferEvent) error
	Close() error
}

// DeadLetterPublisher keeps inbound proximity tags that were discarded
type DeadLetterPublisher interface {
	PublishDiscardedTag(ctx context.Context, data []byte, reason string) error
	Close() error
}

// KafkaWriter wraps kafka.Writer methods for testing
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// topicAdmin is the part of kafka.Conn used to ensure a topic exists
type topicAdmin interface {
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	CreateTopics(topics ...kafka.TopicConfig) error
}

var _ topicAdmin = (*kafka.Conn)(nil)
