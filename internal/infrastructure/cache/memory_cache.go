// Package cache provides SuggestionCache adapters.
package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/doeshing/vocmd/internal/domain"
	"github.com/doeshing/vocmd/internal/ports"
)

type memoryEntry struct {
	items     []domain.SmartSuggestion
	expiresAt time.Time
}

// MemoryCache is an in-process SuggestionCache.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache returns an empty cache using the given clock (nil means time.Now).
func NewMemoryCache(now func() time.Time) *MemoryCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{entries: map[string]memoryEntry{}, now: now}
}

func (c *MemoryCache) Get(key string) ([]domain.SmartSuggestion, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return append([]domain.SmartSuggestion(nil), e.items...), true
}

func (c *MemoryCache) Set(key string, items []domain.SmartSuggestion, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{
		items:     append([]domain.SmartSuggestion(nil), items...),
		expiresAt: c.now().Add(ttl),
	}
}

func (c *MemoryCache) Invalidate(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}

var _ ports.SuggestionCache = (*MemoryCache)(nil)
