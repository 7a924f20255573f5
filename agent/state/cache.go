package state

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrStateNotFound = errors.New("working state not cached")

const (
	defaultCacheTTL     = 24 * time.Hour
	defaultCacheEntries = 1024
)

// Cache is the best-effort working-state cache. It is never authoritative:
// every caller must fall back to the Reconstructor on a miss, so an empty
// cache is always a legal starting point.
type Cache interface {
	Get(ctx context.Context, sessionID string) (*WorkingState, error)
	Put(ctx context.Context, st *WorkingState) error
	Delete(ctx context.Context, sessionID string) error
}

type memoryEntry struct {
	state     *WorkingState
	expiresAt time.Time
}

// MemoryCache is a process-local TTL cache bounded to a fixed number of
// entries. When full it evicts the stalest entry.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

type MemoryCacheOption func(*MemoryCache)

func WithCacheTTL(ttl time.Duration) MemoryCacheOption {
	return func(c *MemoryCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithMaxEntries(n int) MemoryCacheOption {
	return func(c *MemoryCache) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

func NewMemoryCache(opts ...MemoryCacheOption) *MemoryCache {
	c := &MemoryCache{
		entries:    make(map[string]memoryEntry),
		ttl:        defaultCacheTTL,
		maxEntries: defaultCacheEntries,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *MemoryCache) Get(ctx context.Context, sessionID string) (*WorkingState, error) {
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[sessionID]
	if !ok {
		return nil, ErrStateNotFound
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, sessionID)
		return nil, ErrStateNotFound
	}
	return entry.state.Clone(), nil
}

func (c *MemoryCache) Put(ctx context.Context, st *WorkingState) error {
	if st == nil {
		return ErrNilWorkingState
	}
	if st.SessionID == "" {
		return ErrInvalidSession
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[st.SessionID]; !exists && len(c.entries) >= c.maxEntries {
		c.evictStalest()
	}
	c.entries[st.SessionID] = memoryEntry{
		state:     st.Clone(),
		expiresAt: c.now().Add(c.ttl),
	}
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sessionID)
	return nil
}

// evictStalest removes the entry closest to expiry. Callers hold c.mu.
func (c *MemoryCache) evictStalest() {
	var victim string
	var earliest time.Time
	for id, entry := range c.entries {
		if victim == "" || entry.expiresAt.Before(earliest) {
			victim = id
			earliest = entry.expiresAt
		}
	}
	if victim != "" {
		delete(c.entries, victim)
	}
}
