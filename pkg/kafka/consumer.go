// Package kafka wraps segmentio/kafka-go for the three topics the services
// share: refresh requests, index-complete announcements and analytics
// events. Payloads are JSON.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
)

type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// handlerAttempts bounds redelivery of one message to a failing handler.
// After the last attempt the message is committed and logged as dropped so
// one bad payload cannot stall the partition.
const handlerAttempts = 3

type Consumer struct {
	reader    *kafka.Reader
	logger    *slog.Logger
	handler   MessageHandler
	closeOnce sync.Once
	closeErr  error
}

// NewConsumer joins the configured consumer group: each message is handled
// by one member.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	return newConsumer(cfg.Brokers, topic, cfg.ConsumerGroup, handler)
}

// NewBroadcastConsumer uses a group unique to this process, so every
// searcher replica sees every index-complete event.
func NewBroadcastConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	group := fmt.Sprintf("%s-%s-%d", cfg.ConsumerGroup, host, os.Getpid())
	return newConsumer(cfg.Brokers, topic, group, handler)
}

func newConsumer(brokers []string, topic, group string, handler MessageHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     group,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	})
	return &Consumer{
		reader:  r,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic, "group", group),
		handler: handler,
	}
}

// Start consumes until ctx is cancelled. Offsets are committed only after
// the handler has succeeded or exhausted its attempts.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
			}
			continue
		}
		log := c.logger.With("partition", msg.Partition, "offset", msg.Offset)
		log.Debug("message received", "key", string(msg.Key), "value_size", len(msg.Value))

		err = resilience.Retry(ctx, "handle "+msg.Topic, resilience.RetryConfig{
			MaxAttempts:  handlerAttempts,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     2 * time.Second,
		}, func() error {
			return c.handler(ctx, msg.Key, msg.Value)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error("dropping message after failed handling", "error", err)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			log.Error("failed to commit message", "error", err)
		}
	}
}

// Close is safe to call more than once; Start calls it on exit.
func (c *Consumer) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.reader.Close()
	})
	return c.closeErr
}

func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
