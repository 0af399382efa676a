package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"meetrecap/internal/config"

	redis "github.com/redis/go-redis/v9"
)

// Client wraps go-redis to centralize configuration.
type Client struct {
	inner *redis.Client
}

// ErrNoJob mirrors redis.Nil for blocking pops that time out.
var ErrNoJob = redis.Nil

// NewClient creates the redis client from app config.
func NewClient(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	host := cfg.Redis.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Redis.Port
	if port == 0 {
		port = 6379
	}

	opts := &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &Client{inner: client}, nil
}

// LPush prepends a value to a list.
func (c *Client) LPush(ctx context.Context, key string, value interface{}) error {
	return c.inner.LPush(ctx, key, value).Err()
}

// BLMove atomically moves the tail of source to the head of destination,
// blocking up to timeout. A timeout surfaces as ErrNoJob. The value survives
// in destination if the caller dies, which is what makes the queue's
// in-flight list crash-safe.
func (c *Client) BLMove(ctx context.Context, timeout time.Duration, source, destination string) (string, error) {
	return c.inner.BLMove(ctx, source, destination, "RIGHT", "LEFT", timeout).Result()
}

// LRem removes up to count occurrences of value from a list.
func (c *Client) LRem(ctx context.Context, key string, count int64, value string) error {
	return c.inner.LRem(ctx, key, count, value).Err()
}

// SetNX sets a key only when absent; returns whether the key was set.
func (c *Client) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	return c.inner.SetNX(ctx, key, value, ttl).Result()
}

// Del removes provided keys.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.inner.Del(ctx, keys...).Err()
}

// ZAdd adds a member at score to a sorted set.
func (c *Client) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return c.inner.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

// ZRem removes a member from a sorted set.
func (c *Client) ZRem(ctx context.Context, key string, member string) error {
	return c.inner.ZRem(ctx, key, member).Err()
}

// ZPopDue removes and returns members whose score is <= max.
func (c *Client) ZPopDue(ctx context.Context, key string, max float64, count int) ([]string, error) {
	members, err := c.inner.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%f", max),
		Count: int64(count),
	}).Result()
	if err != nil {
		return nil, err
	}
	var due []string
	for _, m := range members {
		removed, err := c.inner.ZRem(ctx, key, m).Result()
		if err != nil {
			return due, err
		}
		// Another consumer may have promoted it first.
		if removed > 0 {
			due = append(due, m)
		}
	}
	return due, nil
}

// Close closes the client.
func (c *Client) Close() error {
	if c == nil || c.inner == nil {
		return nil
	}
	return c.inner.Close()
}

// Raw exposes the underlying go-redis client.
func (c *Client) Raw() *redis.Client {
	if c == nil {
		return nil
	}
	return c.inner
}
