package batcher

import (
	"sync"
)

const defaultStripeSize = 512

// StripedBatcher groups items pushed from many goroutines into batches.
// Stripes live in a sync.Pool, so a goroutine usually appends to a buffer no other
// goroutine is touching.
//
// Delivery is lossy: items sitting in a stripe that the pool drops are never flushed.
// It suits access statistics, not data that must be persisted.
type StripedBatcher[T any] struct {
	pool *sync.Pool
}

// New creates a StripedBatcher feeding cons.
func New[T any](cons Consumer[T], cfg Config) *StripedBatcher[T] {
	if cfg.StripeSize <= 0 {
		cfg.StripeSize = defaultStripeSize
	}

	return &StripedBatcher[T]{
		pool: &sync.Pool{
			New: func() any {
				return newStripe(cons, cfg)
			},
		},
	}
}

// Push adds an item, flushing the current stripe to the consumer when it fills up.
func (b *StripedBatcher[T]) Push(item T) {
	s := b.pool.Get().(*stripe[T])
	s.Push(item)
	b.pool.Put(s)
}
