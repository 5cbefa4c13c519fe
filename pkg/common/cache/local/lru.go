package local

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// LRU is a size-bounded local tier whose entries expire after a fixed TTL.
type LRU struct {
	lru *expirable.LRU[string, string]
}

func NewLRU(maxEntries int, ttl time.Duration) *LRU {
	return &LRU{lru: expirable.NewLRU[string, string](maxEntries, nil, ttl)}
}

func (c *LRU) Get(key string) (string, bool) {
	return c.lru.Get(key)
}

func (c *LRU) Set(key, value string) bool {
	c.lru.Add(key, value)
	return true
}

func (c *LRU) Delete(key string) {
	c.lru.Remove(key)
}

func (c *LRU) Len() int {
	return c.lru.Len()
}

func (c *LRU) Clear() {
	c.lru.Purge()
}

func (c *LRU) Close() {
	c.lru.Purge()
}
