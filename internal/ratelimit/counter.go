// Package ratelimit counts requests in fixed windows against an injected
// store: an in-process map for single-instance deployments, Redis when
// instances share state. State starts empty on process start and expired
// entries are pruned opportunistically.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store counts hits per key within a fixed window.
type Store interface {
	// Incr adds one hit for key in the window containing now and returns
	// the new count for that window.
	Incr(ctx context.Context, key string, window time.Duration) (int, error)
}

// Limiter answers whether a keyed request is within its fixed-window cap.
type Limiter struct {
	store  Store
	limit  int
	window time.Duration
}

func NewLimiter(store Store, limit int, window time.Duration) *Limiter {
	return &Limiter{store: store, limit: limit, window: window}
}

// Allow records the hit and reports whether it fits under the cap. A
// non-positive limit disables the check.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}
	n, err := l.store.Incr(ctx, key, l.window)
	if err != nil {
		return false, err
	}
	return n <= l.limit, nil
}

type memEntry struct {
	count   int
	resetAt time.Time
}

// MemoryStore is the single-instance backend.
type MemoryStore struct {
	mu   sync.Mutex
	hits map[string]*memEntry
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{hits: map[string]*memEntry{}, now: time.Now}
}

func (m *MemoryStore) Incr(ctx context.Context, key string, window time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	e := m.hits[key]
	if e == nil || !now.Before(e.resetAt) {
		e = &memEntry{resetAt: now.Truncate(window).Add(window)}
		m.hits[key] = e
	}
	e.count++
	m.prune(now)
	return e.count, nil
}

// prune drops expired entries while already under the lock. Cheap enough
// to run on every hit at this component's traffic.
func (m *MemoryStore) prune(now time.Time) {
	for k, e := range m.hits {
		if !now.Before(e.resetAt) {
			delete(m.hits, k)
		}
	}
}

// RedisStore is the shared backend for multi-instance deployments. Keys
// carry the window start so counts roll over naturally; expiry keeps the
// keyspace bounded.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(addr, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "creatorpulse:rl"
	}
	return &RedisStore{rdb: redis.NewClient(&redis.Options{Addr: addr}), prefix: prefix}
}

func (r *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int, error) {
	bucket := time.Now().UTC().Truncate(window).Unix()
	k := fmt.Sprintf("%s:%s:%d", r.prefix, key, bucket)
	pipe := r.rdb.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, window+time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return int(incr.Val()), nil
}

// Ping verifies connectivity for health checks.
func (r *RedisStore) Ping(ctx context.Context) error { return r.rdb.Ping(ctx).Err() }

func (r *RedisStore) Close() error { return r.rdb.Close() }
