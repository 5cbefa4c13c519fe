package heavykeeper

import (
	"math"
	"sync"
)

// bucket is one cell of the sketch grid. A zero count means the cell is free,
// whatever fingerprint it still carries.
type bucket struct {
	sync.Mutex
	fingerprint uint64
	count       uint32
}

// add applies increment for fingerprint fp and returns the bucket's count for fp
// afterwards, or 0 if fp does not own the bucket.
func (b *bucket) add(fp uint64, increment uint32, decay *[lookupTableSize]float64, random func() float64) uint32 {
	b.Lock()
	defer b.Unlock()

	switch {
	case b.count == 0:
		b.fingerprint = fp
		b.count = increment
		return b.count
	case b.fingerprint == fp:
		if b.count > math.MaxUint32-increment {
			b.count = math.MaxUint32
		} else {
			b.count += increment
		}
		return b.count
	}

	for j := uint32(0); j < increment; j++ {
		p := decay[lookupTableSize-1]
		if b.count < lookupTableSize {
			p = decay[b.count]
		}
		if random() < p {
			b.count--
			if b.count == 0 {
				b.fingerprint = fp
				b.count = increment - j
				return b.count
			}
		}
	}
	return 0
}

func (b *bucket) get(fp uint64) uint32 {
	b.Lock()
	defer b.Unlock()
	if b.count > 0 && b.fingerprint == fp {
		return b.count
	}
	return 0
}

func (b *bucket) halve() {
	b.Lock()
	b.count >>= 1
	b.Unlock()
}
