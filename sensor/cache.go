package sensor

import (
	"sync"
	"time"
)

const (
	positiveTTL = time.Minute
	negativeTTL = 30 * time.Second
)

// Cache is the name→id cache consulted by the Resolver. Implementations
// must be safe for concurrent use; entries for unknown names store a
// nil id so negative results short-circuit store lookups too.
type Cache interface {
	// Lookup returns the cached id (nil for a cached negative) and
	// whether a live entry existed.
	Lookup(name string) (*int, bool)
	StorePositive(name string, id int)
	StoreNegative(name string)
}

type entry struct {
	id        *int
	expiresAt time.Time
	sliding   bool
}

// TTLCache is the process-wide Cache implementation. Positive entries
// expire on a sliding window refreshed by Lookup; negative entries
// expire at a fixed instant so newly registered sensors become visible
// within the negative TTL.
type TTLCache struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// NewTTLCache returns an empty cache using the wall clock.
func NewTTLCache() *TTLCache {
	return &TTLCache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// NewTTLCacheAt returns a cache driven by the given clock. Tests use
// this for deterministic expiry.
func NewTTLCacheAt(now func() time.Time) *TTLCache {
	return &TTLCache{
		entries: make(map[string]entry),
		now:     now,
	}
}

func (c *TTLCache) Lookup(name string) (*int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[name]
	if !ok {
		return nil, false
	}

	now := c.now()
	if !now.Before(e.expiresAt) {
		delete(c.entries, name)
		return nil, false
	}

	if e.sliding {
		e.expiresAt = now.Add(positiveTTL)
		c.entries[name] = e
	}

	return e.id, true
}

func (c *TTLCache) StorePositive(name string, id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = entry{id: &id, expiresAt: c.now().Add(positiveTTL), sliding: true}
}

func (c *TTLCache) StoreNegative(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = entry{expiresAt: c.now().Add(negativeTTL)}
}
