package keylock

import (
	"sync"

	"github.com/huynhanx03/go-thumb/pkg/hash"
	"github.com/huynhanx03/go-thumb/pkg/utils"
)

const DefaultStripes = 256

// Striped serializes work per key using a fixed set of mutexes.
// Distinct keys may share a stripe; the same key always maps to the same one.
type Striped[K hash.Key] struct {
	stripes []*stripe
	mask    uint64
}

type stripe struct {
	sync.Mutex

	// keeps neighbouring stripes on separate cache lines
	pad [64]byte
}

// New creates a Striped lock. n is rounded up to a power of 2.
func New[K hash.Key](n int) *Striped[K] {
	if n <= 0 {
		n = DefaultStripes
	}
	size := utils.CeilToPowerOfTwo(n)
	s := &Striped[K]{
		stripes: make([]*stripe, size),
		mask:    uint64(size - 1),
	}
	for i := range s.stripes {
		s.stripes[i] = &stripe{}
	}
	return s
}

func (s *Striped[K]) get(key K) *stripe {
	return s.stripes[hash.Sum(key)&s.mask]
}

// Lock acquires the stripe for key and returns the matching unlock func.
func (s *Striped[K]) Lock(key K) func() {
	st := s.get(key)
	st.Lock()
	return st.Unlock
}

// Do runs fn while holding the stripe for key.
func (s *Striped[K]) Do(key K, fn func() error) error {
	unlock := s.Lock(key)
	defer unlock()
	return fn()
}

// Len returns the number of stripes.
func (s *Striped[K]) Len() int {
	return len(s.stripes)
}
