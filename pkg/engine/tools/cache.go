package tools

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// resultCache is the process-wide tool-result cache, keyed by
// (toolName, input-hash). Injected into the executor explicitly so
// concurrent test suites get their own instance.
type resultCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

type cacheEntry struct {
	data      any
	expiresAt time.Time
}

// NewCache returns an empty result cache.
func NewCache() *Cache {
	return &Cache{inner: &resultCache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}}
}

// Cache is the exported handle around the result cache.
type Cache struct {
	inner *resultCache
}

// SetNow overrides the clock. Test hook.
func (c *Cache) SetNow(now func() time.Time) {
	if c != nil && now != nil {
		c.inner.now = now
	}
}

// Clear evicts every entry. Called on shutdown and between tests.
func (c *Cache) Clear() {
	if c == nil {
		return
	}
	c.inner.mu.Lock()
	defer c.inner.mu.Unlock()
	c.inner.entries = make(map[string]cacheEntry)
}

func (c *Cache) get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	c.inner.mu.Lock()
	defer c.inner.mu.Unlock()
	entry, ok := c.inner.entries[key]
	if !ok {
		return nil, false
	}
	if c.inner.now().After(entry.expiresAt) {
		delete(c.inner.entries, key)
		return nil, false
	}
	return entry.data, true
}

func (c *Cache) put(key string, data any, ttl time.Duration) {
	if c == nil || ttl <= 0 {
		return
	}
	c.inner.mu.Lock()
	defer c.inner.mu.Unlock()
	c.inner.entries[key] = cacheEntry{data: data, expiresAt: c.inner.now().Add(ttl)}
}

// cacheKey derives a stable key from the tool name and its input.
// Inputs are canonicalized through JSON (map keys sort on marshal) so
// logically equal inputs share an entry.
func cacheKey(toolName string, input map[string]any) string {
	payload, err := json.Marshal(input)
	if err != nil {
		payload = []byte(fmt.Sprintf("%v", input))
	}
	sum := sha256.Sum256(payload)
	return toolName + ":" + hex.EncodeToString(sum[:])
}
