// Package delivery tracks per-message persistence attempts and, when
// de-duplication is on, which purchase intents already produced an order.
package delivery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	attemptsPrefix = "order:attempts:"
	intentPrefix   = "order:intent:"

	attemptsTTL = 24 * time.Hour
	intentTTL   = 7 * 24 * time.Hour
)

type Tracker interface {
	// Incr records one failed attempt for key and returns the new count.
	Incr(ctx context.Context, key string) (int, error)
	Reset(ctx context.Context, key string) error
	// Seen reports whether intentID was marked.
	Seen(ctx context.Context, intentID string) (bool, error)
	Mark(ctx context.Context, intentID string) error
}

// RedisTracker shares attempt counts between order-service replicas.
type RedisTracker struct {
	client *redis.Client
}

func NewRedisTracker(client *redis.Client) *RedisTracker {
	return &RedisTracker{client: client}
}

func (t *RedisTracker) Incr(ctx context.Context, key string) (int, error) {
	k := attemptsPrefix + key
	pipe := t.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, attemptsTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to count attempt: %w", err)
	}
	return int(incr.Val()), nil
}

func (t *RedisTracker) Reset(ctx context.Context, key string) error {
	return t.client.Del(ctx, attemptsPrefix+key).Err()
}

func (t *RedisTracker) Seen(ctx context.Context, intentID string) (bool, error) {
	n, err := t.client.Exists(ctx, intentPrefix+intentID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (t *RedisTracker) Mark(ctx context.Context, intentID string) error {
	return t.client.Set(ctx, intentPrefix+intentID, 1, intentTTL).Err()
}

// MemoryTracker keeps the same state in process. Counts are lost on restart.
type MemoryTracker struct {
	mu       sync.Mutex
	attempts map[string]int
	intents  map[string]struct{}
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{attempts: map[string]int{}, intents: map[string]struct{}{}}
}

func (t *MemoryTracker) Incr(_ context.Context, key string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts[key]++
	return t.attempts[key], nil
}

func (t *MemoryTracker) Reset(_ context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.attempts, key)
	return nil
}

func (t *MemoryTracker) Seen(_ context.Context, intentID string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.intents[intentID]
	return ok, nil
}

func (t *MemoryTracker) Mark(_ context.Context, intentID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.intents[intentID] = struct{}{}
	return nil
}
