package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"github.com/taskmaster/taskboard/internal/infrastructure/logger"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache() (*MemoryCache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	return NewMemoryCache(time.Minute).WithClock(clock.now), clock
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestCache()

	if err := c.Set(ctx, "token", "1", 10*time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if ok, _ := c.Exists(ctx, "token"); !ok {
		t.Fatal("Exists before expiry: got false, want true")
	}

	clock.advance(10 * time.Second)
	if ok, _ := c.Exists(ctx, "token"); ok {
		t.Error("Exists at expiry: got true, want false")
	}
}

func TestMemoryCacheIncrementWindow(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestCache()

	for want := int64(1); want <= 3; want++ {
		got, err := c.Increment(ctx, "fails", 15*time.Minute)
		if err != nil {
			t.Fatalf("Increment: %v", err)
		}
		if got != want {
			t.Errorf("Increment: got %d, want %d", got, want)
		}
		clock.advance(time.Minute)
	}

	// The window is fixed from the first increment.
	clock.advance(12 * time.Minute)
	got, _ := c.Increment(ctx, "fails", 15*time.Minute)
	if got != 1 {
		t.Errorf("Increment after window: got %d, want 1", got)
	}
}

func TestMemoryCacheSweep(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestCache()

	c.Set(ctx, "a", "1", time.Second)
	c.Set(ctx, "b", "1", time.Hour)
	c.Set(ctx, "c", "1", 0)

	clock.advance(2 * time.Minute)
	// This write triggers the sweep; "a" is never touched again.
	c.Set(ctx, "d", "1", time.Hour)

	c.mu.Lock()
	_, stillThere := c.entries["a"]
	c.mu.Unlock()
	if stillThere {
		t.Error("expired key survived the sweep")
	}
	if got := c.Len(); got != 3 {
		t.Errorf("Len: got %d, want 3", got)
	}
}

func TestMemoryCacheDelete(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache()

	c.Set(ctx, "k", "v", 0)
	c.Delete(ctx, "k")
	if ok, _ := c.Exists(ctx, "k"); ok {
		t.Error("Exists after Delete: got true, want false")
	}
}

var errDown = errors.New("connection refused")

type failingCache struct {
	*MemoryCache
	calls int
}

func (f *failingCache) Increment(context.Context, string, time.Duration) (int64, error) {
	f.calls++
	return 0, errDown
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	ctx := context.Background()
	backend := &failingCache{MemoryCache: NewMemoryCache(time.Minute)}
	b := NewBreakerCache(backend, "test-cache", time.Hour, logger.NewNop())

	for i := 0; i < 4; i++ {
		if _, err := b.Increment(ctx, "k", time.Minute); !errors.Is(err, errDown) {
			t.Fatalf("call %d: got %v, want %v", i, err, errDown)
		}
	}
	if b.State() != gobreaker.StateOpen {
		t.Fatalf("state: got %v, want open", b.State())
	}

	if _, err := b.Increment(ctx, "k", time.Minute); !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("open call: got %v, want %v", err, gobreaker.ErrOpenState)
	}
	if backend.calls != 4 {
		t.Errorf("backend calls: got %d, want 4", backend.calls)
	}
}

func TestBreakerPassesThrough(t *testing.T) {
	ctx := context.Background()
	b := NewBreakerCache(NewMemoryCache(time.Minute), "test-cache", time.Second, logger.NewNop())

	if err := b.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	ok, err := b.Exists(ctx, "k")
	if err != nil || !ok {
		t.Errorf("Exists: got %v, %v, want true, nil", ok, err)
	}
}
