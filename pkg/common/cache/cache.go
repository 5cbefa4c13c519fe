package cache

import (
	"context"
)

// LocalCache defines the interface for in-memory local cache operations.
type LocalCache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V) bool
	Delete(key K)
	Len() int
	Clear()
	Close()
}

// HashStore is the remote tier: string fields grouped under a key.
type HashStore interface {
	HGet(ctx context.Context, key, field string) (string, bool, error)
}
