// Package kafka carries page events between the crawler and the indexer over
// segmentio/kafka-go. Producers serialise events as JSON. Consumers decode
// each message into a typed value, retry the handler with backoff and commit
// only what was handled or deliberately rejected.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/config"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/metrics"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/resilience"
)

// Message is a decoded Kafka record.
type Message[T any] struct {
	Key       string
	Value     T
	Partition int
	Offset    int64
}

// Handler processes one decoded message. Returning nil commits the message.
// An error wrapped with resilience.Permanent rejects it: it is logged and
// committed without further attempts. Any other error is retried; once the
// retries run out the consumer stops with that message uncommitted, so it is
// redelivered when the consumer group resumes.
type Handler[T any] func(ctx context.Context, msg Message[T]) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads one topic within a consumer group.
type Consumer[T any] struct {
	reader     messageReader
	topic      string
	handle     Handler[T]
	retry      resilience.RetryConfig
	fetchPause time.Duration
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewConsumer creates a consumer for topic that starts from the oldest
// offset when its group has none committed. m may be nil.
func NewConsumer[T any](cfg config.KafkaConfig, topic string, handle Handler[T], m *metrics.Metrics) *Consumer[T] {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1e3,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	c := newConsumer(r, topic, handle, m)
	if cfg.HandlerRetries > 0 {
		c.retry.MaxAttempts = cfg.HandlerRetries
	}
	return c
}

func newConsumer[T any](r messageReader, topic string, handle Handler[T], m *metrics.Metrics) *Consumer[T] {
	return &Consumer[T]{
		reader: r,
		topic:  topic,
		handle: handle,
		retry: resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     5 * time.Second,
		},
		fetchPause: time.Second,
		metrics:    m,
		logger:     slog.Default().With("component", "kafka-consumer", "topic", topic),
	}
}

// Run consumes until ctx is cancelled, which returns nil, or until a message
// exhausts its retries, which returns the handler's error. The reader is
// closed either way.
func (c *Consumer[T]) Run(ctx context.Context) error {
	defer c.reader.Close()
	c.logger.Info("consumer started")
	for {
		raw, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(c.fetchPause):
			}
			continue
		}

		log := c.logger.With("partition", raw.Partition, "offset", raw.Offset)
		value, err := DecodeJSON[T](raw.Value)
		if err != nil {
			log.Error("dropping undecodable message", "key", string(raw.Key), "error", err)
			c.observe("undecodable")
			c.commit(ctx, log, raw)
			continue
		}

		msg := Message[T]{Key: string(raw.Key), Value: value, Partition: raw.Partition, Offset: raw.Offset}
		err = resilience.Retry(ctx, "handle "+c.topic, c.retry, func() error {
			return c.handle(ctx, msg)
		})
		switch {
		case err == nil:
			c.observe("processed")
		case resilience.IsPermanent(err):
			log.Warn("message rejected", "key", msg.Key, "error", err)
			c.observe("rejected")
		case ctx.Err() != nil:
			c.logger.Info("consumer stopping", "reason", ctx.Err())
			return nil
		default:
			c.observe("failed")
			return fmt.Errorf("handling %s[%d]@%d: %w", c.topic, raw.Partition, raw.Offset, err)
		}
		c.commit(ctx, log, raw)
	}
}

func (c *Consumer[T]) commit(ctx context.Context, log *slog.Logger, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		log.Error("failed to commit message", "error", err)
	}
}

func (c *Consumer[T]) observe(result string) {
	if c.metrics != nil {
		c.metrics.KafkaMessagesTotal.WithLabelValues(c.topic, result).Inc()
	}
}

// DecodeJSON unmarshals a Kafka message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
