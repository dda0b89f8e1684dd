package embedding

import (
	"context"
	"errors"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the number of cached vectors. Query texts
// repeat heavily in stalled conversations, which is exactly when the
// loop guard needs them.
const DefaultCacheSize = 2048

// Cache wraps a Provider with an LRU vector cache keyed by text.
// Safe for concurrent use across cases.
type Cache struct {
	provider Provider
	lru      *lru.Cache[string, []float32]
}

// NewCache creates a cache over the given provider.
// Returns nil if provider is nil; callers treat a nil cache as an
// absent embedding capability.
func NewCache(provider Provider, size int) *Cache {
	if provider == nil {
		return nil
	}
	if size <= 0 {
		size = DefaultCacheSize
	}
	l, err := lru.New[string, []float32](size)
	if err != nil {
		// lru.New only fails on non-positive size, which is handled above.
		return nil
	}
	return &Cache{provider: provider, lru: l}
}

// ErrNoProvider is returned when encoding through a nil cache.
var ErrNoProvider = errors.New("embedding: no provider configured")

// Encode returns vectors for the given texts, serving repeats from the
// cache and batching misses into one provider call.
// A nil receiver reports ErrNoProvider so callers holding a typed-nil
// cache degrade the same way as callers holding no encoder at all.
func (c *Cache) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if c == nil {
		return nil, ErrNoProvider
	}
	vectors := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int

	for i, text := range texts {
		if v, ok := c.lru.Get(text); ok {
			vectors[i] = v
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return vectors, nil
	}

	encoded, err := c.provider.Encode(ctx, missing)
	if err != nil {
		return nil, err
	}
	for j, v := range encoded {
		vectors[missingIdx[j]] = v
		c.lru.Add(missing[j], v)
	}
	return vectors, nil
}

// Len returns the number of cached vectors.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

var (
	sharedCache *Cache
	sharedOnce  sync.Once
)

// Shared returns the process-wide embedding cache, lazily and
// idempotently initialized from the first non-nil provider handed in.
// Concurrent first use observes exactly one initialization. Later calls
// ignore their provider argument.
//
// Tests that need isolation should construct their own Cache via
// NewCache and inject it directly instead of going through Shared.
func Shared(provider Provider) *Cache {
	sharedOnce.Do(func() {
		sharedCache = NewCache(provider, DefaultCacheSize)
	})
	return sharedCache
}
