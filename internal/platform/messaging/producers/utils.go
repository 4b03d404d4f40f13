package producers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	topicReadAttempts = 3
	topicReadBackoff  = time.Second
)

// ensureTopic dials the broker and creates topic when it cannot be found
func ensureTopic(brokers, topic string, numPartitions, replicationFactor int, logger *slog.Logger) error {
	conn, err := kafka.Dial("tcp", brokers)
	if err != nil {
		return fmt.Errorf("failed to dial kafka: %w", err)
	}
	defer conn.Close()

	return createTopicIfNotExists(conn, topic, numPartitions, replicationFactor, topicReadBackoff, logger)
}

// createTopicIfNotExists retries partition reads before falling back to creating the topic
func createTopicIfNotExists(admin topicAdmin, topic string, numPartitions, replicationFactor int, backoff time.Duration, logger *slog.Logger) error {
	var (
		partitions []kafka.Partition
		err        error
	)

	for attempt := 1; attempt <= topicReadAttempts; attempt++ {
		partitions, err = admin.ReadPartitions(topic)
		if err == nil && len(partitions) > 0 {
			logger.Debug("Kafka topic already exists", "topic", topic, "partitions", len(partitions))
			return nil
		}
		logger.Warn("Failed to read partitions, retrying", "topic", topic, "attempt", attempt, "error", err)
		if attempt < topicReadAttempts {
			time.Sleep(backoff)
		}
	}

	if numPartitions <= 0 {
		numPartitions = 1
	}
	if replicationFactor <= 0 {
		replicationFactor = 1
	}

	logger.Info("Creating Kafka topic", "topic", topic, "partitions", numPartitions)
	if err := admin.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     numPartitions,
		ReplicationFactor: replicationFactor,
	}); err != nil {
		return fmt.Errorf("failed to create kafka topic %s: %w", topic, err)
	}
	return nil
}
