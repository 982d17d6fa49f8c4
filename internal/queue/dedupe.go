package queue

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// DedupeStore is a minimal idempotency store keyed by request id,
// grounded on the teacher's internal/orchestrator/dedupe.go DedupeStore.
type DedupeStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisDedupeStore is the Redis-backed DedupeStore used in production;
// an in-memory store isn't worth building separately since the C1
// fingerprint LRU already covers the single-process case (spec §5) and
// this store exists to suppress duplicate completions across worker
// processes.
type RedisDedupeStore struct {
	client *redis.Client
}

func NewRedisDedupeStore(addr, password string, db int) (*RedisDedupeStore, error) {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisDedupeStore{client: c}, nil
}

func (s *RedisDedupeStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (s *RedisDedupeStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisDedupeStore) Close() error {
	return s.client.Close()
}
