package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/jakechorley/session-booking/internal/clock"
)

// RedisDeduper records marks with SET NX so several scheduler processes
// share one view of which reminders went out
type RedisDeduper struct {
	client *redis.Client
	prefix string
}

// NewRedisDeduper creates a deduper and checks the connection
func NewRedisDeduper(ctx context.Context, client *redis.Client, prefix string) (*RedisDeduper, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return &RedisDeduper{client: client, prefix: prefix}, nil
}

// MarkOnce returns true if key was not already marked
func (d *RedisDeduper) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.prefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set mark %s: %w", key, err)
	}
	return ok, nil
}

// Forget removes a mark so the next run may repeat the side effect
func (d *RedisDeduper) Forget(ctx context.Context, key string) error {
	if err := d.client.Del(ctx, d.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete mark %s: %w", key, err)
	}
	return nil
}

// MemoryDeduper keeps marks in process. Used when no Redis is configured.
type MemoryDeduper struct {
	clock clock.Clock

	mu    sync.Mutex
	marks map[string]time.Time // key -> expiry
}

// NewMemoryDeduper creates an empty in-process deduper
func NewMemoryDeduper(clk clock.Clock) *MemoryDeduper {
	return &MemoryDeduper{clock: clk, marks: make(map[string]time.Time)}
}

func (d *MemoryDeduper) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock.Now()
	if expiry, ok := d.marks[key]; ok && now.Before(expiry) {
		return false, nil
	}
	d.marks[key] = now.Add(ttl)

	for k, expiry := range d.marks {
		if !now.Before(expiry) {
			delete(d.marks, k)
		}
	}
	return true, nil
}

func (d *MemoryDeduper) Forget(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.marks, key)
	return nil
}
