package cache

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shipquote/backend/internal/domain"
)

type lruEntry struct {
	value     []byte
	expiresAt time.Time
}

// LRUCache is a bounded quote cache. The LRU evicts on size and on maxTTL;
// each entry additionally carries its own expiry so Set's ttl is honored.
type LRUCache struct {
	lru    *expirable.LRU[string, lruEntry]
	hits   atomic.Int64
	misses atomic.Int64
	now    func() time.Time
}

// NewLRUCache creates a cache holding at most size entries, none of which
// outlives maxTTL.
func NewLRUCache(size int, maxTTL time.Duration) *LRUCache {
	if size <= 0 {
		size = 1024
	}
	return &LRUCache{
		lru: expirable.NewLRU[string, lruEntry](size, nil, maxTTL),
		now: time.Now,
	}
}

func (c *LRUCache) Get(ctx context.Context, key string) (*domain.QuoteResult, error) {
	entry, ok := c.lru.Get(key)
	if !ok || c.now().After(entry.expiresAt) {
		c.misses.Add(1)
		return nil, domain.ErrCacheMiss
	}

	var result domain.QuoteResult
	if err := json.Unmarshal(entry.value, &result); err != nil {
		c.misses.Add(1)
		return nil, domain.ErrCacheMiss
	}
	c.hits.Add(1)
	return &result, nil
}

func (c *LRUCache) Set(ctx context.Context, key string, value *domain.QuoteResult, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.lru.Add(key, lruEntry{value: data, expiresAt: c.now().Add(ttl)})
	return nil
}

func (c *LRUCache) Delete(ctx context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

func (c *LRUCache) Clear(ctx context.Context) error {
	c.lru.Purge()
	return nil
}

func (c *LRUCache) Stats() domain.CacheStats {
	return domain.CacheStats{
		Size:      c.lru.Len(),
		HitCount:  c.hits.Load(),
		MissCount: c.misses.Load(),
	}
}
