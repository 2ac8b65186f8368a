// Package bus defines the shape of the inbound transfer command and a
// minimal Redis-backed transport for local runs and tests. It exists so
// cmd/worker has something to run against without requiring a Kafka
// cluster, not as a claim that Redis lists are the production transport.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Message is the inbound transfer command's wire shape: {op_id, from,
// to, amount}, with amount a decimal string at a fixed scale. Delivery
// is at-least-once; duplicates are expected.
type Message struct {
	OpID   string `json:"op_id"`
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// Handler processes one inbound transfer command.
type Handler func(ctx context.Context, msg Message) error

// RedisListConsumer polls a Redis list with BRPOP. It stands in for
// whatever bus transport a deployment actually uses; the engine never
// imports this package directly, only the Message shape it produces.
type RedisListConsumer struct {
	client redis.UniversalClient
	key    string
	logger *slog.Logger
}

// NewRedisListConsumer constructs a consumer polling the given list key.
func NewRedisListConsumer(client redis.UniversalClient, key string, logger *slog.Logger) *RedisListConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisListConsumer{client: client, key: key, logger: logger}
}

// Run blocks, delivering messages to handle until ctx is cancelled. A
// handler error is logged and consumption continues: one malformed or
// rejected message must never bring the worker down, and the handler is
// expected to absorb duplicates itself.
func (c *RedisListConsumer) Run(ctx context.Context, handle Handler) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		res, err := c.client.BRPop(ctx, 5*time.Second, c.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("bus: receive failed", slog.Any("error", err))
			continue
		}
		if len(res) < 2 {
			continue
		}

		var msg Message
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			c.logger.Error("bus: decode failed", slog.Any("error", err))
			continue
		}

		if err := handle(ctx, msg); err != nil {
			c.logger.Error("bus: handler failed", slog.String("op_id", msg.OpID), slog.Any("error", err))
		}
	}
}

// Publish enqueues a message. Used by local tooling and tests standing
// in for the out-of-scope production producer.
func (c *RedisListConsumer) Publish(ctx context.Context, msg Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.client.LPush(ctx, c.key, b).Err()
}
