package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestMemoryLimiter(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	l := NewLimiter(store, 2, time.Hour)
	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "refresh:u1")
		if err != nil || !ok {
			t.Fatalf("hit %d: ok=%v err=%v", i, ok, err)
		}
	}
	ok, _ := l.Allow(ctx, "refresh:u1")
	if ok {
		t.Fatal("third hit allowed within window")
	}
	// other keys are independent
	ok, _ = l.Allow(ctx, "refresh:u2")
	if !ok {
		t.Fatal("unrelated key blocked")
	}

	// next window resets the count
	base = base.Add(time.Hour)
	ok, _ = l.Allow(ctx, "refresh:u1")
	if !ok {
		t.Fatal("count did not reset after window")
	}
}

func TestMemoryStorePrunes(t *testing.T) {
	store := NewMemoryStore()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }
	ctx := context.Background()

	if _, err := store.Incr(ctx, "a", time.Minute); err != nil {
		t.Fatal(err)
	}
	base = base.Add(2 * time.Minute)
	if _, err := store.Incr(ctx, "b", time.Minute); err != nil {
		t.Fatal(err)
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if _, alive := store.hits["a"]; alive {
		t.Fatal("expired entry not pruned")
	}
}

func TestRedisLimiter(t *testing.T) {
	srv := miniredis.RunT(t)
	ctx := context.Background()
	store := NewRedisStore(srv.Addr(), "test:rl")
	defer store.Close()

	l := NewLimiter(store, 2, time.Hour)
	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "refresh:u1")
		if err != nil || !ok {
			t.Fatalf("hit %d: ok=%v err=%v", i, ok, err)
		}
	}
	ok, err := l.Allow(ctx, "refresh:u1")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("third hit allowed within window")
	}
}

func TestLimiterDisabled(t *testing.T) {
	l := NewLimiter(NewMemoryStore(), 0, time.Hour)
	for i := 0; i < 10; i++ {
		ok, err := l.Allow(context.Background(), "k")
		if err != nil || !ok {
			t.Fatalf("disabled limiter blocked: ok=%v err=%v", ok, err)
		}
	}
}
