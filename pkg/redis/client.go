package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Nil is returned by Get when the key does not exist
const Nil = redis.Nil

var raiseScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local target = tonumber(ARGV[1])
if target > current then
	redis.call('SET', KEYS[1], ARGV[1])
	return target
end
return current
`)

var hraiseScript = redis.NewScript(`
local current = tonumber(redis.call('HGET', KEYS[1], ARGV[1]) or '0')
local target = tonumber(ARGV[2])
if target > current then
	redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
	return target
end
return current
`)

type Client struct {
	rdb        *redis.Client
	KeyBuilder *KeyBuilder
	log        *zap.Logger
}

// NewClient creates a new Redis client and verifies the connection
func NewClient(redisURL string, environment string, log *zap.Logger) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = 50
	opts.MinIdleConns = 5
	opts.MaxRetries = 3
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &Client{rdb: rdb, KeyBuilder: NewKeyBuilder(environment), log: log}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

// Get retrieves a value from Redis. A missing key yields Nil.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	start := time.Now()
	val, err := c.rdb.Get(ctx, key).Result()
	c.trace("redis_get", key, start, err, redis.Nil)
	return val, err
}

// Set stores a value in Redis with TTL. A zero ttl keeps the key forever.
func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	start := time.Now()
	err := c.rdb.Set(ctx, key, value, ttl).Err()
	c.trace("redis_set", key, start, err, nil)
	return err
}

// IncrBy atomically adds delta to an integer key
func (c *Client) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	start := time.Now()
	v, err := c.rdb.IncrBy(ctx, key, delta).Result()
	c.trace("redis_incrby", key, start, err, nil)
	return v, err
}

// HIncrBy atomically adds delta to a hash field
func (c *Client) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	start := time.Now()
	v, err := c.rdb.HIncrBy(ctx, key, field, delta).Result()
	c.trace("redis_hincrby", key, start, err, nil)
	return v, err
}

// HGetAll gets all fields from a hash
func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	start := time.Now()
	m, err := c.rdb.HGetAll(ctx, key).Result()
	c.trace("redis_hgetall", key, start, err, nil)
	return m, err
}

// RaiseTo sets an integer key to value unless it already holds more and
// returns the resulting value
func (c *Client) RaiseTo(ctx context.Context, key string, value int64) (int64, error) {
	start := time.Now()
	v, err := raiseScript.Run(ctx, c.rdb, []string{key}, value).Int64()
	c.trace("redis_raise", key, start, err, nil)
	return v, err
}

// HRaiseTo is RaiseTo for a hash field
func (c *Client) HRaiseTo(ctx context.Context, key, field string, value int64) (int64, error) {
	start := time.Now()
	v, err := hraiseScript.Run(ctx, c.rdb, []string{key}, field, value).Int64()
	c.trace("redis_hraise", key, start, err, nil)
	return v, err
}

// Health checks the Redis connection
func (c *Client) Health(ctx context.Context) error {
	start := time.Now()
	err := c.rdb.Ping(ctx).Err()
	dur := time.Since(start)
	if err != nil {
		c.log.Info("redis_ping",
			zap.Duration("duration", dur),
			zap.Error(err))
	} else {
		c.log.Debug("redis_ping", zap.Duration("duration", dur))
	}
	return err
}

// trace logs a single command; failures other than expected go to info.
func (c *Client) trace(op, key string, start time.Time, err, expected error) {
	dur := time.Since(start)
	if err != nil && err != expected {
		c.log.Info(op,
			zap.String("key_prefix", prefixForLog(key)),
			zap.Duration("duration", dur),
			zap.Error(err))
		return
	}
	c.log.Debug(op,
		zap.String("key_prefix", prefixForLog(key)),
		zap.Duration("duration", dur))
}

// prefixForLog returns a safe prefix of a key to avoid logging PII
func prefixForLog(key string) string {
	if len(key) <= 24 {
		return key
	}
	return key[:24] + "…"
}
