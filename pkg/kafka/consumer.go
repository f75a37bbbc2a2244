package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// maxHandlerRetries bounds how often one message is handed to the
// handler before it is treated as poison.
const maxHandlerRetries = 3

// Handler processes one decoded event.
type Handler func(ctx context.Context, event *Event) error

// ConsumerConfig describes a group subscription to one topic.
type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	Topic    string
	MinBytes int
	MaxBytes int

	// EnableDLQ copies messages that exhaust their handler retries to a
	// dead-letter topic before they are committed and skipped.
	EnableDLQ bool
}

// Consumer reads a topic as part of a consumer group and drives each
// message through the handler with retries.
type Consumer struct {
	reader    *kafka.Reader
	dlq       *DLQProducer
	logger    *slog.Logger
	handler   Handler
	closeOnce sync.Once
}

// NewConsumer builds a consumer for one topic and group.
func NewConsumer(cfg ConsumerConfig, handler Handler, logger *slog.Logger) *Consumer {
	var dlq *DLQProducer
	if cfg.EnableDLQ {
		dlq = NewDLQProducer(cfg.Brokers, logger)
	}

	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			GroupID:  cfg.GroupID,
			Topic:    cfg.Topic,
			MinBytes: cfg.MinBytes,
			MaxBytes: cfg.MaxBytes,
		}),
		dlq:     dlq,
		logger:  logger,
		handler: handler,
	}
}

// Start consumes until ctx is cancelled. A message that keeps failing is
// committed anyway so one poison message cannot block its partition.
func (c *Consumer) Start(ctx context.Context) error {
	topic := c.reader.Config().Topic
	group := c.reader.Config().GroupID

	c.logger.Info("consumer started",
		slog.String("topic", topic),
		slog.String("group", group),
	)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", slog.String("topic", topic))
				return c.Close()
			}
			c.logger.Error("failed to fetch message", slog.String("error", err.Error()))
			continue
		}
		ConsumerMessagesReceived.WithLabelValues(topic, group).Inc()

		event, err := UnmarshalEvent(msg.Value)
		if err != nil {
			c.logger.Error("failed to unmarshal event",
				slog.String("error", err.Error()),
				slog.String("topic", msg.Topic),
			)
			c.commit(ctx, msg)
			continue
		}

		// Continue the producer's trace, if any.
		msgCtx := ExtractTraceContext(ctx, msg.Headers)

		if err := c.handleWithRetry(msgCtx, event, msg, topic, group); err != nil {
			if ctx.Err() != nil {
				// Shutting down mid-retry; leave the message uncommitted
				// for the next assignment.
				return c.Close()
			}
			c.quarantine(ctx, msg, event, err, topic, group)
			continue
		}

		ConsumerMessagesProcessed.WithLabelValues(topic, group).Inc()
		c.commit(ctx, msg)
	}
}

// handleWithRetry runs the handler up to maxHandlerRetries times with a
// growing backoff between attempts, returning nil as soon as one
// attempt succeeds.
func (c *Consumer) handleWithRetry(ctx context.Context, event *Event, msg kafka.Message, topic, group string) error {
	var lastErr error
	for attempt := 1; attempt <= maxHandlerRetries; attempt++ {
		start := time.Now()
		err := c.handler(ctx, event)
		ConsumerProcessingDuration.WithLabelValues(topic, group).Observe(time.Since(start).Seconds())
		if err == nil {
			return nil
		}

		lastErr = err
		c.logger.Warn("handler failed, will retry",
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.String("error", err.Error()),
			slog.String("topic", msg.Topic),
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
			slog.Int("attempt", attempt),
			slog.Int("max_retries", maxHandlerRetries),
		)

		if attempt == maxHandlerRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
		}
	}
	return lastErr
}

// quarantine records a message that exhausted its retries, copies it to
// the DLQ when one is configured, and commits it so the partition keeps
// moving.
func (c *Consumer) quarantine(ctx context.Context, msg kafka.Message, event *Event, cause error, topic, group string) {
	ConsumerMessagesFailed.WithLabelValues(topic, group).Inc()
	c.logger.Error("handler failed after all retries, skipping poison message",
		slog.String("event_type", event.EventType),
		slog.String("aggregate_id", event.AggregateID),
		slog.String("error", cause.Error()),
		slog.String("topic", msg.Topic),
		slog.Int("partition", msg.Partition),
		slog.Int64("offset", msg.Offset),
		slog.Int("retries", maxHandlerRetries),
	)

	if c.dlq != nil {
		if err := c.dlq.Publish(ctx, msg, cause, group); err != nil {
			c.logger.Error("failed to publish to DLQ", slog.String("error", err.Error()))
		} else {
			ConsumerDLQPublished.WithLabelValues(topic, group).Inc()
		}
	}
	c.commit(ctx, msg)
}

// commit advances the group offset past msg. Failures are logged only;
// the message is simply redelivered next time.
func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("failed to commit message",
			slog.String("topic", msg.Topic),
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
	}
}

// Close releases the reader and the DLQ writer. Safe to call twice.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.reader.Close()
		if c.dlq != nil {
			if dlqErr := c.dlq.Close(); dlqErr != nil && err == nil {
				err = dlqErr
			}
		}
	})
	return err
}

// TopicPrefix namespaces every topic this service touches.
const TopicPrefix = "relist"

// Topic builds a fully qualified topic name as <prefix>.<domain>.<action>.
func Topic(domain, action string) string {
	return fmt.Sprintf("%s.%s.%s", TopicPrefix, domain, action)
}
