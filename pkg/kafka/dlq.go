package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// DLQTopicPrefix namespaces the dead-letter topics.
const DLQTopicPrefix = "relist.dlq"

// DLQTopic names the dead-letter topic for a source topic.
func DLQTopic(originalTopic string) string {
	return DLQTopicPrefix + "." + originalTopic
}

// DLQProducer copies poison messages to a dead-letter topic where an
// operator can inspect or replay them.
type DLQProducer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewDLQProducer builds a writer for dead-letter topics. Each message is
// written synchronously.
func NewDLQProducer(brokers []string, logger *slog.Logger) *DLQProducer {
	return &DLQProducer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.LeastBytes{},
			BatchSize:    1,
			BatchTimeout: 100 * time.Millisecond,
			RequiredAcks: kafka.RequireAll,
		},
		logger: logger,
	}
}

// Publish copies originalMsg to its dead-letter topic, annotated with
// the original coordinates, the consumer group, and the failure cause.
func (d *DLQProducer) Publish(ctx context.Context, originalMsg kafka.Message, lastErr error, consumerGroup string) error {
	dlqTopic := DLQTopic(originalMsg.Topic)

	msg := kafka.Message{
		Topic:   dlqTopic,
		Key:     originalMsg.Key,
		Value:   originalMsg.Value,
		Headers: dlqHeaders(originalMsg, lastErr, consumerGroup),
	}

	if err := d.writer.WriteMessages(ctx, msg); err != nil {
		d.logger.Error("failed to publish message to DLQ",
			slog.String("dlq_topic", dlqTopic),
			slog.String("original_topic", originalMsg.Topic),
			slog.Int("partition", originalMsg.Partition),
			slog.Int64("offset", originalMsg.Offset),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("publish to DLQ %s: %w", dlqTopic, err)
	}

	d.logger.Warn("message sent to DLQ",
		slog.String("dlq_topic", dlqTopic),
		slog.String("original_topic", originalMsg.Topic),
		slog.Int("partition", originalMsg.Partition),
		slog.Int64("offset", originalMsg.Offset),
		slog.String("consumer_group", consumerGroup),
	)
	return nil
}

// dlqHeaders keeps the original headers and adds the coordinates needed
// to trace the message back to its source partition.
func dlqHeaders(msg kafka.Message, cause error, group string) []kafka.Header {
	headers := make([]kafka.Header, 0, len(msg.Headers)+5)
	headers = append(headers, msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: "dlq.original_topic", Value: []byte(msg.Topic)},
		kafka.Header{Key: "dlq.original_partition", Value: []byte(strconv.Itoa(msg.Partition))},
		kafka.Header{Key: "dlq.original_offset", Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		kafka.Header{Key: "dlq.consumer_group", Value: []byte(group)},
	)
	if cause != nil {
		headers = append(headers, kafka.Header{Key: "dlq.error", Value: []byte(cause.Error())})
	}
	return headers
}

// Close releases the writer.
func (d *DLQProducer) Close() error {
	return d.writer.Close()
}
