package local

import (
	"time"

	"github.com/coocood/freecache"
)

// FreeCache is a byte-bounded local tier. It keeps entries off the GC-scanned heap,
// which matters once the tier holds millions of actor entries.
type FreeCache struct {
	cache         *freecache.Cache
	expireSeconds int
}

// NewFreeCache allocates maxBytes up front (freecache enforces a 512KB minimum).
func NewFreeCache(maxBytes int, ttl time.Duration) *FreeCache {
	return &FreeCache{
		cache:         freecache.NewCache(maxBytes),
		expireSeconds: int(ttl / time.Second),
	}
}

func (c *FreeCache) Get(key string) (string, bool) {
	value, err := c.cache.Get([]byte(key))
	if err != nil {
		return "", false
	}
	return string(value), true
}

// Set reports false when freecache rejects the entry as too large.
func (c *FreeCache) Set(key, value string) bool {
	return c.cache.Set([]byte(key), []byte(value), c.expireSeconds) == nil
}

func (c *FreeCache) Delete(key string) {
	c.cache.Del([]byte(key))
}

func (c *FreeCache) Len() int {
	return int(c.cache.EntryCount())
}

func (c *FreeCache) Clear() {
	c.cache.Clear()
}

func (c *FreeCache) Close() {
	c.cache.Clear()
}
