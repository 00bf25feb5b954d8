// Package consumer provides a group consumer with at-least-once delivery.
// Offsets are committed only after the handler returns nil, so a crash
// mid-batch redelivers rather than loses messages. Handlers must be
// idempotent.
package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is a single Kafka record, decoupled from the client library so
// handlers stay testable.
type Message struct {
	Topic string
	Key   []byte
	Value []byte
}

// Handler processes a consumed message. Returning an error stops the commit
// for that poll and the messages are redelivered.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// Consumer polls topics as part of a consumer group and dispatches records
// to a handler.
type Consumer struct {
	client  *kgo.Client
	handler Handler
	logger  *slog.Logger
}

// New creates a consumer for the given group and topics.
func New(brokers []string, group string, topics []string, handler Handler, logger *slog.Logger) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Consumer{
		client:  client,
		handler: handler,
		logger:  logger,
	}, nil
}

// Run polls until the context is cancelled. Each successfully handled batch
// is committed before the next poll.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.Error("fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		var handled []*kgo.Record
		var handleErr error

		fetches.EachRecord(func(record *kgo.Record) {
			if handleErr != nil {
				return
			}
			msg := &Message{
				Topic: record.Topic,
				Key:   record.Key,
				Value: record.Value,
			}
			if err := c.handler.Handle(ctx, msg); err != nil {
				handleErr = err
				return
			}
			handled = append(handled, record)
		})

		if len(handled) > 0 {
			if err := c.client.CommitRecords(ctx, handled...); err != nil {
				c.logger.Error("failed to commit offsets", "error", err)
			}
		}

		if handleErr != nil {
			c.logger.Error("handler failed, uncommitted messages will be redelivered",
				"error", handleErr,
			)
		}
	}
}

// Close leaves the group and releases the client.
func (c *Consumer) Close() {
	c.client.Close()
}
