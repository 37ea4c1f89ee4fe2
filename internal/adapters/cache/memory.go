package cache

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryCache is the single-process stand-in used when no Redis URL is
// configured.
type MemoryCache struct {
	mu    sync.Mutex
	rows  map[string]memoryEntry
	nowFn func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{rows: map[string]memoryEntry{}, nowFn: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	row, ok := c.live(key)
	if !ok {
		return "", nil
	}
	return row.value, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows[key] = memoryEntry{value: value, expiresAt: c.expiry(ttl)}
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.rows, k)
	}
	return nil
}

func (c *MemoryCache) IncrWithTTL(_ context.Context, key string, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	row, ok := c.live(key)
	if !ok {
		row = memoryEntry{value: "0", expiresAt: c.expiry(ttl)}
	}
	n, err := strconv.ParseInt(row.value, 10, 64)
	if err != nil {
		return 0, err
	}
	n++
	row.value = strconv.FormatInt(n, 10)
	c.rows[key] = row
	return n, nil
}

func (c *MemoryCache) Ping(context.Context) error { return nil }

func (c *MemoryCache) live(key string) (memoryEntry, bool) {
	row, ok := c.rows[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !row.expiresAt.IsZero() && !c.nowFn().Before(row.expiresAt) {
		delete(c.rows, key)
		return memoryEntry{}, false
	}
	return row, true
}

func (c *MemoryCache) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return c.nowFn().Add(ttl)
}
