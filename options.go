package cryptovault

import "time"

// Default tuning values resolved by Options.withDefaults.
const (
	defaultCacheCapacity = 1024
	defaultCacheTTL      = 30 * time.Second
)

// Options tunes a vault beyond what the signed config token fixes: cache
// bounds, the blocking-I/O pool of the async surface, and an override for
// the config's shortening threshold.
// The zero value resolves to the defaults above, so callers that don't
// care can pass Options{}.
type Options struct {
	// ShorteningThreshold overrides the config token's threshold when
	// positive. Lowering it on an existing vault makes previously plain
	// entries unreachable; it exists for interoperating with vaults
	// created by tools that diverge from the config default.
	ShorteningThreshold int
	// CacheCapacity bounds the directory-listing and DirId-storage-path
	// caches, in entries; the attribute cache holds up to four times as many.
	CacheCapacity int
	// CacheTTL bounds how long a cache entry is trusted before the next
	// lookup goes back to disk, independent of explicit invalidation.
	CacheTTL time.Duration
	// BlockingPoolSize bounds how many blocking filesystem operations the
	// async surface runs concurrently.
	BlockingPoolSize int
	// EnableNegativeCache lets the attribute cache remember confirmed-
	// absent paths, so repeated lookups of a missing entry don't each pay
	// a directory listing.
	EnableNegativeCache bool
}

func (o Options) withDefaults() Options {
	if o.CacheCapacity <= 0 {
		o.CacheCapacity = defaultCacheCapacity
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = defaultCacheTTL
	}
	if o.BlockingPoolSize <= 0 {
		o.BlockingPoolSize = defaultMaxConcurrentIO
	}
	return o
}
