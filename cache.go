package cryptovault

import (
	"time"

	"github.com/dgraph-io/ristretto"
	"golang.org/x/sync/singleflight"
)

// negative marks a cached "definitely does not exist" result, so repeated
// lookups for a missing entry don't keep hitting the filesystem.
type cacheEntry[V any] struct {
	value    V
	negative bool
}

// vaultCache is a bounded, TTL-expiring, negative-entry-capable cache with
// thundering-herd collapsing via singleflight, used for directory
// listings, attribute lookups, and DirId-to-storage-path resolution.
// Admission and eviction are ristretto's TinyLFU: a newcomer only
// displaces a resident entry when its estimated access frequency is
// higher, so a one-off directory sweep cannot flush the hot set the way a
// plain LRU would let it. Any lookup populates the cache through a single
// in-flight loader per key, so concurrent misses for the same key cost one
// filesystem round trip.
type vaultCache[V any] struct {
	cache    *ristretto.Cache
	single   singleflight.Group
	ttl      time.Duration
	negative bool
}

func newVaultCache[V any](size int, ttl time.Duration, negative bool) *vaultCache[V] {
	if size <= 0 {
		size = defaultCacheCapacity
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		// Ten counters per expected entry keeps the frequency sketch
		// useful, per ristretto's own guidance. Every entry costs 1, so
		// MaxCost is a plain entry bound; IgnoreInternalCost keeps
		// ristretto's own per-item bookkeeping overhead out of that count.
		NumCounters:        int64(size) * 10,
		MaxCost:            int64(size),
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		// Only returned for a non-positive config, which the guards above
		// rule out; falling back to a minimal cache keeps the vault usable
		// rather than panicking on a construction-time contract that
		// should have been caught in review.
		c, _ = ristretto.NewCache(&ristretto.Config{NumCounters: 10, MaxCost: 1, BufferItems: 64})
	}
	return &vaultCache[V]{cache: c, ttl: ttl, negative: negative}
}

// Get returns a cached value, whether any entry (positive or negative) was
// found for key, and whether the entry found is a cached negative.
func (c *vaultCache[V]) Get(key string) (value V, found bool, negative bool) {
	raw, ok := c.cache.Get(key)
	if !ok {
		return value, false, false
	}
	entry := raw.(cacheEntry[V])
	return entry.value, true, entry.negative
}

// Set stores a positive cache entry. Ristretto applies writes through a
// buffer; Wait drains it so the entry is visible to the next Get, which is
// what the cache-coherence contract on mutations relies on.
func (c *vaultCache[V]) Set(key string, value V) {
	c.cache.SetWithTTL(key, cacheEntry[V]{value: value}, 1, c.ttl)
	c.cache.Wait()
}

// SetNegative records that key is known not to exist. A no-op when the
// cache was built without negative-entry support.
func (c *vaultCache[V]) SetNegative(key string) {
	if !c.negative {
		return
	}
	var zero V
	c.cache.SetWithTTL(key, cacheEntry[V]{value: zero, negative: true}, 1, c.ttl)
	c.cache.Wait()
}

// Invalidate drops a single key, used when an operation changes the entry
// it names.
func (c *vaultCache[V]) Invalidate(key string) {
	c.cache.Del(key)
	c.cache.Wait()
}

// InvalidateAll drops every key in keys; vault operations that touch
// several cached facts at once (a rename invalidates both the source and
// destination listings, for instance) call this with the full list rather
// than invalidating one at a time.
func (c *vaultCache[V]) InvalidateAll(keys []string) {
	for _, k := range keys {
		c.cache.Del(k)
	}
	c.cache.Wait()
}

// GetOrLoad returns the cached value for key, or calls load (collapsing
// concurrent callers for the same key into one call) and caches the
// result, positive or negative.
func (c *vaultCache[V]) GetOrLoad(key string, load func() (V, bool, error)) (V, error) {
	if v, found, negative := c.Get(key); found {
		var zero V
		if negative {
			return zero, ErrNotFound
		}
		return v, nil
	}

	v, err, _ := c.single.Do(key, func() (any, error) {
		value, exists, err := load()
		if err != nil {
			return value, err
		}
		if !exists {
			c.SetNegative(key)
			var zero V
			return zero, ErrNotFound
		}
		c.Set(key, value)
		return value, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}
