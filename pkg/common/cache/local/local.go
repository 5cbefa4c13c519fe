// Package local provides the in-process engines behind the tiered cache.
package local

import (
	"time"

	"github.com/pkg/errors"

	"github.com/huynhanx03/go-thumb/pkg/common/cache"
	"github.com/huynhanx03/go-thumb/pkg/settings"
	"github.com/huynhanx03/go-thumb/pkg/utils"
)

const (
	defaultMaxEntries = 1000
	defaultTTL        = 5 * time.Minute
	defaultMaxBytes   = 32 << 20
)

var (
	_ cache.LocalCache[string, string] = (*LRU)(nil)
	_ cache.LocalCache[string, string] = (*FreeCache)(nil)
)

// New builds the engine selected by cfg.Engine. An empty engine selects lru.
func New(cfg settings.LocalCache) (cache.LocalCache[string, string], error) {
	ttl := utils.OrDefault(utils.ToDuration(cfg.TTLSeconds), defaultTTL)

	switch cfg.Engine {
	case "", settings.EngineLRU:
		maxEntries := cfg.MaxEntries
		if maxEntries <= 0 {
			maxEntries = defaultMaxEntries
		}
		return NewLRU(maxEntries, ttl), nil
	case settings.EngineFreeCache:
		maxBytes := cfg.MaxBytes
		if maxBytes <= 0 {
			maxBytes = defaultMaxBytes
		}
		return NewFreeCache(maxBytes, ttl), nil
	default:
		return nil, errors.Errorf("unknown local cache engine %q", cfg.Engine)
	}
}
