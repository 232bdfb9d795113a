package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shipquote/backend/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleQuote() *domain.QuoteResult {
	return &domain.QuoteResult{
		Success: true,
		Partner: "b2sign",
		ShippingOptions: []domain.ShippingOption{
			{Name: "Ground", ServiceClass: domain.ServiceStandard, Cost: decimal.RequireFromString("14.04"), EstimatedDays: 5},
			{Name: "2nd Day Air", ServiceClass: domain.ServiceExpedited, Cost: decimal.RequireFromString("25.66"), EstimatedDays: 2},
		},
		QuotedAt: time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC),
	}
}

// quoteCaches lets every behavioral test run against both backends
func quoteCaches(t *testing.T) map[string]domain.QuoteCache {
	mem := NewMemoryCache()
	t.Cleanup(mem.Close)
	return map[string]domain.QuoteCache{
		"memory": mem,
		"lru":    NewLRUCache(16, time.Hour),
	}
}

func TestQuoteCache_SetAndGet(t *testing.T) {
	for name, cache := range quoteCaches(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, cache.Set(ctx, "quote:a", sampleQuote(), time.Minute))

			got, err := cache.Get(ctx, "quote:a")
			require.NoError(t, err)
			assert.True(t, got.Success)
			assert.Equal(t, "b2sign", got.Partner)
			require.Len(t, got.ShippingOptions, 2)
			assert.Equal(t, "Ground", got.ShippingOptions[0].Name)
			assert.True(t, got.ShippingOptions[1].Cost.Equal(decimal.RequireFromString("25.66")))
		})
	}
}

func TestQuoteCache_Miss(t *testing.T) {
	for name, cache := range quoteCaches(t) {
		t.Run(name, func(t *testing.T) {
			_, err := cache.Get(context.Background(), "non-existent-key")
			assert.ErrorIs(t, err, domain.ErrCacheMiss)
		})
	}
}

func TestQuoteCache_Expiration(t *testing.T) {
	for name, cache := range quoteCaches(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, cache.Set(ctx, "short", sampleQuote(), time.Millisecond))
			time.Sleep(10 * time.Millisecond)

			_, err := cache.Get(ctx, "short")
			assert.ErrorIs(t, err, domain.ErrCacheMiss)
		})
	}
}

func TestQuoteCache_ReturnsCopies(t *testing.T) {
	for name, cache := range quoteCaches(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			original := sampleQuote()
			require.NoError(t, cache.Set(ctx, "k", original, time.Minute))

			original.ShippingOptions[0].Name = "mutated after set"

			got, err := cache.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, "Ground", got.ShippingOptions[0].Name)

			got.ShippingOptions[0].Name = "mutated after get"
			again, err := cache.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, "Ground", again.ShippingOptions[0].Name)
		})
	}
}

func TestQuoteCache_DeleteAndClear(t *testing.T) {
	for name, cache := range quoteCaches(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 5; i++ {
				require.NoError(t, cache.Set(ctx, fmt.Sprintf("k%d", i), sampleQuote(), time.Minute))
			}
			assert.Equal(t, 5, cache.Stats().Size)

			require.NoError(t, cache.Delete(ctx, "k0"))
			assert.Equal(t, 4, cache.Stats().Size)

			require.NoError(t, cache.Clear(ctx))
			assert.Equal(t, 0, cache.Stats().Size)
			for i := 0; i < 5; i++ {
				_, err := cache.Get(ctx, fmt.Sprintf("k%d", i))
				assert.ErrorIs(t, err, domain.ErrCacheMiss)
			}
		})
	}
}

func TestQuoteCache_Stats(t *testing.T) {
	for name, cache := range quoteCaches(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, _ = cache.Get(ctx, "missing")
			require.NoError(t, cache.Set(ctx, "k", sampleQuote(), time.Minute))
			_, _ = cache.Get(ctx, "k")
			_, _ = cache.Get(ctx, "k")

			stats := cache.Stats()
			assert.Equal(t, 1, stats.Size)
			assert.Equal(t, int64(2), stats.HitCount)
			assert.Equal(t, int64(1), stats.MissCount)
		})
	}
}

func TestQuoteCache_Concurrent(t *testing.T) {
	for name, cache := range quoteCaches(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func(id int) {
					defer wg.Done()
					key := fmt.Sprintf("k%d", id)
					if err := cache.Set(ctx, key, sampleQuote(), time.Minute); err != nil {
						t.Errorf("Concurrent Set() error = %v", err)
					}
					if _, err := cache.Get(ctx, key); err != nil {
						t.Errorf("Concurrent Get() error = %v", err)
					}
				}(i)
			}
			wg.Wait()
			assert.Equal(t, 10, cache.Stats().Size)
		})
	}
}

func TestMemoryCache_Exists(t *testing.T) {
	cache := NewMemoryCache()
	defer cache.Close()
	ctx := context.Background()

	exists, err := cache.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, cache.Set(ctx, "k", sampleQuote(), time.Minute))
	exists, err = cache.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMemoryCache_EvictExpired(t *testing.T) {
	cache := NewMemoryCache()
	defer cache.Close()
	ctx := context.Background()

	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	require.NoError(t, cache.Set(ctx, "old", sampleQuote(), time.Minute))
	require.NoError(t, cache.Set(ctx, "fresh", sampleQuote(), time.Hour))

	now = now.Add(30 * time.Minute)
	cache.evictExpired()

	assert.Equal(t, 1, cache.Size())
	_, err := cache.Get(ctx, "fresh")
	assert.NoError(t, err)
}
