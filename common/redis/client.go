package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/flowscript/orchestrator/common/config"
	"github.com/flowscript/orchestrator/common/logger"
	"github.com/redis/go-redis/v9"
)

// Client wraps go-redis with the operations the event relay and the
// fanout tier use.
type Client struct {
	redis *redis.Client
	log   *logger.Logger
}

// New creates a connected client from the relay configuration.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	log.Info("redis connected", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)

	return &Client{
		redis: rdb,
		log:   log,
	}, nil
}

// Publish sends a message to a channel.
func (c *Client) Publish(ctx context.Context, channel, message string) error {
	if err := c.redis.Publish(ctx, channel, message).Err(); err != nil {
		c.log.Error("redis PUBLISH failed", "channel", channel, "error", err)
		return fmt.Errorf("failed to publish to channel %s: %w", channel, err)
	}
	c.log.Debug("redis PUBLISH", "channel", channel)
	return nil
}

// PSubscribe subscribes to every channel matching the pattern. The
// caller owns the subscription and must Close it.
func (c *Client) PSubscribe(ctx context.Context, pattern string) *redis.PubSub {
	c.log.Info("redis PSUBSCRIBE", "pattern", pattern)
	return c.redis.PSubscribe(ctx, pattern)
}

// Health checks the connection.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return c.redis.Ping(ctx).Err()
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	c.log.Info("closing redis client")
	return c.redis.Close()
}
