package kafka

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/shopcore/catalog/pkg/logger"
)

const (
	defaultMaxRetries   = 3
	defaultRetryBackoff = 100 * time.Millisecond
	fetchErrorBackoff   = 500 * time.Millisecond
)

// Handler is a function that processes a Kafka event.
type Handler func(ctx context.Context, event *Event) error

// ConsumerConfig holds Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	Topic    string
	MinBytes int
	MaxBytes int

	// MaxRetries is the number of handler attempts per message. Zero means 3.
	MaxRetries int
	// RetryBackoff is the linear backoff unit between attempts. Zero means 100ms.
	RetryBackoff time.Duration
}

// messageReader is the part of *kafka.Reader the consumer loop uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type deadLetterPublisher interface {
	Publish(ctx context.Context, msg kafka.Message, cause error, consumerGroup string) error
}

// Consumer reads one topic as part of a consumer group. Every fetched
// message is committed exactly once, after it was handled or dead-lettered.
type Consumer struct {
	reader    messageReader
	topic     string
	group     string
	handler   Handler
	retry     retryPolicy
	dlq       deadLetterPublisher
	logger    *slog.Logger
	closeOnce sync.Once
	closeErr  error
}

// NewConsumer creates a new Kafka consumer for a specific topic and group.
// dlq may be nil, in which case poison messages are only logged and skipped.
func NewConsumer(cfg ConsumerConfig, handler Handler, dlq *DLQProducer, logger *slog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
	})

	var dl deadLetterPublisher
	if dlq != nil {
		dl = dlq
	}
	return newConsumer(reader, cfg, handler, dl, logger)
}

func newConsumer(reader messageReader, cfg ConsumerConfig, handler Handler, dlq deadLetterPublisher, logger *slog.Logger) *Consumer {
	retry := retryPolicy{attempts: cfg.MaxRetries, step: cfg.RetryBackoff}
	if retry.attempts <= 0 {
		retry.attempts = defaultMaxRetries
	}
	if retry.step <= 0 {
		retry.step = defaultRetryBackoff
	}
	return &Consumer{
		reader:  reader,
		topic:   cfg.Topic,
		group:   cfg.GroupID,
		handler: handler,
		retry:   retry,
		dlq:     dlq,
		logger:  logger,
	}
}

// Start consumes messages until ctx is canceled, then closes the reader.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started", slog.String("topic", c.topic), slog.String("group", c.group))

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", slog.String("topic", c.topic))
				return c.Close()
			}
			c.logger.Error("failed to fetch message",
				slog.String("topic", c.topic),
				slog.String("error", err.Error()),
			)
			if !sleep(ctx, fetchErrorBackoff) {
				return c.Close()
			}
			continue
		}
		ConsumerMessagesReceived.WithLabelValues(msg.Topic, c.group).Inc()

		if !c.handle(ctx, msg) {
			return c.Close()
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit message",
				slog.String("topic", msg.Topic),
				slog.Int64("offset", msg.Offset),
				slog.String("error", err.Error()),
			)
		}
	}
}

// handle runs the handler for msg, dead-lettering it on failure. It returns
// false when ctx was canceled mid-handling and msg must not be committed.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) bool {
	event, err := UnmarshalEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to decode event",
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
		c.deadLetter(ctx, msg, err)
		return true
	}
	if event.CorrelationID != "" {
		ctx = logger.WithCorrelationID(ctx, event.CorrelationID)
	}

	start := time.Now()
	err = c.retry.run(ctx, c.handler, event, c.logger)
	ConsumerProcessingDuration.WithLabelValues(msg.Topic, c.group).Observe(time.Since(start).Seconds())
	if ctx.Err() != nil {
		return false
	}

	if err != nil {
		ConsumerMessagesFailed.WithLabelValues(msg.Topic, c.group).Inc()
		c.logger.ErrorContext(ctx, "handler failed after all retries, skipping poison message",
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.String("topic", msg.Topic),
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
		c.deadLetter(ctx, msg, err)
		return true
	}

	ConsumerMessagesProcessed.WithLabelValues(msg.Topic, c.group).Inc()
	return true
}

func (c *Consumer) deadLetter(ctx context.Context, msg kafka.Message, cause error) {
	if c.dlq == nil {
		return
	}
	if err := c.dlq.Publish(ctx, msg, cause, c.group); err == nil {
		ConsumerDLQPublished.WithLabelValues(msg.Topic, c.group).Inc()
	}
}

// Close closes the consumer. It is safe to call multiple times.
func (c *Consumer) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.reader.Close()
	})
	return c.closeErr
}

// retryPolicy makes up to attempts calls, waiting step, 2*step, ... between them.
type retryPolicy struct {
	attempts int
	step     time.Duration
}

func (p retryPolicy) run(ctx context.Context, handler Handler, event *Event, logger *slog.Logger) error {
	var lastErr error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		if lastErr = handler(ctx, event); lastErr == nil {
			return nil
		}
		logger.WarnContext(ctx, "handler failed, will retry",
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", p.attempts),
			slog.String("error", lastErr.Error()),
		)
		if attempt == p.attempts {
			break
		}
		if !sleep(ctx, time.Duration(attempt)*p.step) {
			return ctx.Err()
		}
	}
	return lastErr
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// TopicPrefix is the standard prefix for all catalog Kafka topics.
const TopicPrefix = "catalog"

// Topic constructs a fully-qualified topic name, e.g. catalog.product.created.
func Topic(domain, action string) string {
	return TopicPrefix + "." + domain + "." + action
}
