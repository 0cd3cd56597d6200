package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	apperrors "live-tracker/pkg/errors"
	"live-tracker/pkg/redis"
)

// RedisStore serves both the presence cache and the durable counters from Redis.
// Counters use INCRBY / HINCRBY so concurrent visits are never lost.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an initialized Redis client
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) key(name string) string {
	return s.client.KeyBuilder.BuildKey(name)
}

func (s *RedisStore) GetCached(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, s.key(key))
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.NewStorageError("get_cached", err)
	}
	return []byte(val), true, nil
}

func (s *RedisStore) SetCached(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(key), value, ttl); err != nil {
		return apperrors.NewStorageError("set_cached", err)
	}
	return nil
}

func (s *RedisStore) GetSetting(ctx context.Context, key, def string) (string, error) {
	val, err := s.client.Get(ctx, s.client.KeyBuilder.KeySetting(key))
	if errors.Is(err, redis.Nil) {
		return def, nil
	}
	if err != nil {
		return "", apperrors.NewStorageError("get_setting", err)
	}
	return val, nil
}

func (s *RedisStore) SetSetting(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.client.KeyBuilder.KeySetting(key), value, 0); err != nil {
		return apperrors.NewStorageError("set_setting", err)
	}
	return nil
}

func (s *RedisStore) Counter(ctx context.Context, key string) (int64, error) {
	val, err := s.client.Get(ctx, s.key(key))
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, apperrors.NewStorageError("counter", err)
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, apperrors.NewStorageError("counter", fmt.Errorf("malformed counter %q: %w", key, err))
	}
	return n, nil
}

func (s *RedisStore) IncrementCounter(ctx context.Context, key string, delta int64) (int64, error) {
	n, err := s.client.IncrBy(ctx, s.key(key), delta)
	if err != nil {
		return 0, apperrors.NewStorageError("increment_counter", err)
	}
	return n, nil
}

func (s *RedisStore) CounterFields(ctx context.Context, key string) (map[string]int64, error) {
	raw, err := s.client.HGetAll(ctx, s.key(key))
	if err != nil {
		return nil, apperrors.NewStorageError("counter_fields", err)
	}
	out := make(map[string]int64, len(raw))
	for field, val := range raw {
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return nil, apperrors.NewStorageError("counter_fields", fmt.Errorf("malformed field %q of %q: %w", field, key, err))
		}
		out[field] = n
	}
	return out, nil
}

func (s *RedisStore) IncrementCounterField(ctx context.Context, key, field string, delta int64) (int64, error) {
	n, err := s.client.HIncrBy(ctx, s.key(key), field, delta)
	if err != nil {
		return 0, apperrors.NewStorageError("increment_counter_field", err)
	}
	return n, nil
}

func (s *RedisStore) RaiseCounter(ctx context.Context, key string, value int64) (int64, error) {
	n, err := s.client.RaiseTo(ctx, s.key(key), value)
	if err != nil {
		return 0, apperrors.NewStorageError("raise_counter", err)
	}
	return n, nil
}

func (s *RedisStore) RaiseCounterField(ctx context.Context, key, field string, value int64) (int64, error) {
	n, err := s.client.HRaiseTo(ctx, s.key(key), field, value)
	if err != nil {
		return 0, apperrors.NewStorageError("raise_counter_field", err)
	}
	return n, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Health(ctx); err != nil {
		return apperrors.NewStorageError("ping", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
