// Package heavykeeper implements the HeavyKeeper top-K algorithm: a grid of
// fingerprinted counters with probabilistic exponential decay, plus a min-heap of
// the K heaviest keys.
package heavykeeper

import (
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"github.com/huynhanx03/go-thumb/pkg/hash"
	"github.com/huynhanx03/go-thumb/pkg/utils"
)

const lookupTableSize = 256

const (
	DefaultK        = 100
	DefaultWidth    = 100000
	DefaultDepth    = 5
	DefaultDecay    = 0.92
	DefaultMinCount = 10
)

// Config holds the sketch parameters. Zero fields fall back to the defaults.
type Config struct {
	K        int
	Width    int
	Depth    int
	Decay    float64
	MinCount uint32

	// Random returns a number in [0, 1). Defaults to math/rand/v2.
	Random func() float64
}

// Item is a key with its estimated count.
type Item struct {
	Key   string
	Count uint32
}

// AddResult reports the outcome of a single Add.
type AddResult struct {
	// Expelled is the key evicted from top-K by this Add, empty if none.
	Expelled string
	IsHot    bool
	Key      string
}

type HeavyKeeper struct {
	depth    int
	mask     uint64
	minCount uint32
	random   func() float64

	decay   [lookupTableSize]float64
	rows    [][]bucket
	idxSeed []uint64
	fpSeed  []uint64

	top   *topK
	total atomic.Uint64

	expelledMu sync.Mutex
	expelled   []Item
}

// New creates a HeavyKeeper. Width is rounded up to a power of two.
func New(cfg Config) *HeavyKeeper {
	if cfg.K <= 0 {
		cfg.K = DefaultK
	}
	if cfg.Width <= 0 {
		cfg.Width = DefaultWidth
	}
	if cfg.Depth <= 0 {
		cfg.Depth = DefaultDepth
	}
	if cfg.Decay <= 0 || cfg.Decay >= 1 {
		cfg.Decay = DefaultDecay
	}
	if cfg.MinCount == 0 {
		cfg.MinCount = DefaultMinCount
	}
	if cfg.Random == nil {
		cfg.Random = rand.Float64
	}

	width := utils.CeilToPowerOfTwo(cfg.Width)
	hk := &HeavyKeeper{
		depth:    cfg.Depth,
		mask:     uint64(width - 1),
		minCount: cfg.MinCount,
		random:   cfg.Random,
		rows:     make([][]bucket, cfg.Depth),
		idxSeed:  make([]uint64, cfg.Depth),
		fpSeed:   make([]uint64, cfg.Depth),
		top:      newTopK(cfg.K),
	}

	for i := range hk.decay {
		hk.decay[i] = math.Pow(cfg.Decay, float64(i))
	}
	for i := 0; i < cfg.Depth; i++ {
		hk.rows[i] = make([]bucket, width)
		hk.idxSeed[i] = rand.Uint64()
		hk.fpSeed[i] = rand.Uint64()
	}
	return hk
}

func (hk *HeavyKeeper) slot(h uint64, row int) (idx uint64, fp uint64) {
	return hash.Salted(h, hk.idxSeed[row]) & hk.mask, hash.Salted(h, hk.fpSeed[row])
}

// Add records increment occurrences of key.
func (hk *HeavyKeeper) Add(key string, increment uint32) AddResult {
	res := AddResult{Key: key}
	if increment == 0 {
		return res
	}

	h := hash.Sum(key)
	var maxCount uint32
	for row := 0; row < hk.depth; row++ {
		idx, fp := hk.slot(h, row)
		if c := hk.rows[row][idx].add(fp, increment, &hk.decay, hk.random); c > maxCount {
			maxCount = c
		}
	}
	hk.total.Add(uint64(increment))

	if maxCount < hk.minCount {
		res.IsHot = hk.top.refresh(key, maxCount)
		return res
	}

	hot, expelled := hk.top.offer(key, maxCount)
	res.IsHot = hot
	if expelled != nil {
		res.Expelled = expelled.Key
		hk.expelledMu.Lock()
		hk.expelled = append(hk.expelled, *expelled)
		hk.expelledMu.Unlock()
	}
	return res
}

// List returns the tracked top-K keys ordered by count, highest first.
func (hk *HeavyKeeper) List() []Item {
	return hk.top.list()
}

// Contains reports whether key is currently tracked in top-K.
func (hk *HeavyKeeper) Contains(key string) bool {
	return hk.top.contains(key)
}

// Expelled drains the keys evicted from top-K since the previous call.
func (hk *HeavyKeeper) Expelled() []Item {
	hk.expelledMu.Lock()
	defer hk.expelledMu.Unlock()
	items := hk.expelled
	hk.expelled = nil
	return items
}

// Fade halves every bucket, every top-K count and the total.
// Fingerprints are kept; a bucket halved to zero is free again.
func (hk *HeavyKeeper) Fade() {
	for row := range hk.rows {
		for i := range hk.rows[row] {
			hk.rows[row][i].halve()
		}
	}
	hk.top.halve()

	for {
		old := hk.total.Load()
		if hk.total.CompareAndSwap(old, old>>1) {
			return
		}
	}
}

// Total returns the sum of all increments, halved by each Fade.
func (hk *HeavyKeeper) Total() uint64 {
	return hk.total.Load()
}

// estimate returns the largest count held for key across rows.
func (hk *HeavyKeeper) estimate(key string) uint32 {
	h := hash.Sum(key)
	var c uint32
	for row := 0; row < hk.depth; row++ {
		idx, fp := hk.slot(h, row)
		if v := hk.rows[row][idx].get(fp); v > c {
			c = v
		}
	}
	return c
}
