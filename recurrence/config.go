package recurrence

import (
	"time"
)

// Config holds generator tuning options.
type Config struct {
	CacheEnabled bool
	Cache        CacheConfig
}

// DefaultConfig suits most deployments.
var DefaultConfig = Config{
	CacheEnabled: true,
	Cache:        DefaultCacheConfig,
}

// HighVolumeConfig suits deployments that expand many distinct rules, such
// as feed servers rebuilding calendar views on every request.
var HighVolumeConfig = Config{
	CacheEnabled: true,
	Cache: CacheConfig{
		TTL:             30 * time.Minute,
		MaxEntries:      5000,
		CleanupInterval: 10 * time.Minute,
	},
}

// UncachedConfig turns caching off entirely; every Generate call walks the
// calendar. Useful in tests and one-shot tools.
var UncachedConfig = Config{
	CacheEnabled: false,
}

// NewGeneratorWithConfig creates a generator with custom configuration.
func NewGeneratorWithConfig(config Config) *Generator {
	var cache *Cache
	if config.CacheEnabled {
		cache = NewCache(config.Cache)
	}
	return &Generator{
		cache:  cache,
		config: config,
	}
}
