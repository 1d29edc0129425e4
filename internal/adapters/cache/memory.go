package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/taskmaster/taskboard/internal/ports"
)

type entry struct {
	value     string
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryCache is a process-local CacheRepository. Expired keys are dropped
// when touched, and a full sweep runs at most once per sweep interval.
type MemoryCache struct {
	mu            sync.Mutex
	entries       map[string]entry
	now           func() time.Time
	sweepInterval time.Duration
	lastSweep     time.Time
}

// NewMemoryCache creates an empty in-memory cache
func NewMemoryCache(sweepInterval time.Duration) *MemoryCache {
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	return &MemoryCache{
		entries:       make(map[string]entry),
		now:           time.Now,
		sweepInterval: sweepInterval,
	}
}

// WithClock replaces the time source, for tests
func (c *MemoryCache) WithClock(now func() time.Time) *MemoryCache {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
	c.lastSweep = now()
	return c
}

var _ ports.CacheRepository = (*MemoryCache)(nil)

func (c *MemoryCache) Set(_ context.Context, key string, value string, expiration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.maybeSweep(now)

	e := entry{value: value}
	if expiration > 0 {
		e.expiresAt = now.Add(expiration)
	}
	c.entries[key] = e
	return nil
}

func (c *MemoryCache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.get(key, c.now())
	return ok, nil
}

func (c *MemoryCache) Increment(_ context.Context, key string, window time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.maybeSweep(now)

	e, ok := c.get(key, now)
	if !ok {
		e = entry{}
		if window > 0 {
			e.expiresAt = now.Add(window)
		}
	}

	n, _ := strconv.ParseInt(e.value, 10, 64)
	n++
	e.value = strconv.FormatInt(n, 10)
	c.entries[key] = e
	return n, nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	return nil
}

func (c *MemoryCache) Ping(context.Context) error {
	return nil
}

// Len returns the number of live keys
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweep(c.now())
	return len(c.entries)
}

// get must be called with mu held
func (c *MemoryCache) get(key string, now time.Time) (entry, bool) {
	e, ok := c.entries[key]
	if !ok {
		return entry{}, false
	}
	if e.expired(now) {
		delete(c.entries, key)
		return entry{}, false
	}
	return e, true
}

func (c *MemoryCache) maybeSweep(now time.Time) {
	if now.Sub(c.lastSweep) < c.sweepInterval {
		return
	}
	c.sweep(now)
}

func (c *MemoryCache) sweep(now time.Time) {
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
		}
	}
	c.lastSweep = now
}
