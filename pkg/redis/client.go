// Package redis provides a thin wrapper around go-redis/v9 with connection
// pooling and pipelined multi-key writes.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/pkg/config"
	"github.com/redis/go-redis/v9"
)

// Client wraps a go-redis client.
type Client struct {
	rdb *redis.Client
}

// Entry is one key/value pair for SetMany.
type Entry struct {
	Key   string
	Value []byte
}

// NewClient creates a Redis client from a redis:// or rediss:// URL and
// verifies the connection with a PING.
func NewClient(ctx context.Context, rawURL string, cfg config.RedisConfig) (*Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	// Writes are never resent; a dropped pipeline is the caller's error.
	opts.MaxRetries = -1
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// SetMany writes every entry in one pipeline round trip. The returned slice
// holds the per-entry command error (nil on success). A non-nil error means
// the pipeline itself could not be sent or read back.
func (c *Client) SetMany(ctx context.Context, entries []Entry, ttl time.Duration) ([]error, error) {
	cmds := make([]*redis.StatusCmd, len(entries))
	_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, e := range entries {
			cmds[i] = pipe.Set(ctx, e.Key, e.Value, ttl)
		}
		return nil
	})
	results := make([]error, len(entries))
	for i, cmd := range cmds {
		results[i] = cmd.Err()
	}
	if err != nil && !IsServerError(err) {
		return results, fmt.Errorf("executing pipeline: %w", err)
	}
	return results, nil
}

// IsServerError reports whether err is a reply error sent by the Redis
// server, as opposed to a network or protocol failure.
func IsServerError(err error) bool {
	var rerr redis.Error
	return errors.As(err, &rerr) && !errors.Is(err, redis.Nil)
}

// Close closes the underlying Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping sends a PING to Redis and returns any error.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
