package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	defaultHandleAttempts = 3
	defaultRetryBackoff   = time.Second
)

// EventHandler processes one decoded settlement event.
type EventHandler func(ctx context.Context, event SettlementEvent) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads settlement events with explicit commits, so an event is
// acknowledged only after its handler ran.
type Consumer struct {
	reader   messageReader
	log      *zap.Logger
	attempts int
	backoff  time.Duration
}

func NewConsumer(brokers []string, groupID, topic string, log *zap.Logger) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:           brokers,
			GroupID:           groupID,
			Topic:             topic,
			HeartbeatInterval: 3 * time.Second,
			SessionTimeout:    30 * time.Second,
		}),
		log:      log.With(zap.String("topic", topic)),
		attempts: defaultHandleAttempts,
		backoff:  defaultRetryBackoff,
	}
}

func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

// Consume runs until ctx is done or a commit fails. A cancelled context ends
// the loop without an error.
func (c *Consumer) Consume(ctx context.Context, handler EventHandler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		c.process(ctx, msg, handler)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit offset %d: %w", msg.Offset, err)
		}
	}
}

// process gives handler a bounded number of attempts. Undecodable and
// exhausted events are logged and skipped so one bad event cannot stall
// the partition.
func (c *Consumer) process(ctx context.Context, msg kafka.Message, handler EventHandler) {
	log := c.log.With(zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset))

	event, err := DecodeSettlementEvent(msg)
	if err != nil {
		log.Warn("skip undecodable event", zap.Error(err))
		return
	}

	for attempt := 1; ; attempt++ {
		err := handler(ctx, event)
		if err == nil {
			return
		}
		if attempt >= c.attempts {
			log.Error("dropping event after retries",
				zap.String("event_id", event.ID), zap.String("type", event.Type), zap.Int("attempts", attempt), zap.Error(err))
			return
		}
		log.Warn("event handler failed, retrying", zap.String("event_id", event.ID), zap.Int("attempt", attempt), zap.Error(err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.backoff * time.Duration(attempt)):
		}
	}
}
