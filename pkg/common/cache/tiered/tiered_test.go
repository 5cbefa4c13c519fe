package tiered

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huynhanx03/go-thumb/pkg/common/cache/local"
	"github.com/huynhanx03/go-thumb/pkg/datastructs/heavykeeper"
)

var errStore = errors.New("store down")

type fakeStore struct {
	mu    sync.Mutex
	data  map[string]map[string]string
	calls int
	err   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]map[string]string)}
}

func (s *fakeStore) put(key, field, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[key] == nil {
		s.data[key] = make(map[string]string)
	}
	s.data[key][field] = value
}

func (s *fakeStore) HGet(_ context.Context, key, field string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return "", false, s.err
	}
	v, ok := s.data[key][field]
	return v, ok, nil
}

type fakeDetector struct {
	mu   sync.Mutex
	hot  map[string]bool
	adds []string
}

func (d *fakeDetector) Add(key string, _ uint32) heavykeeper.AddResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.adds = append(d.adds, key)
	return heavykeeper.AddResult{Key: key, IsHot: d.hot[key]}
}

func (d *fakeDetector) List() []heavykeeper.Item {
	return []heavykeeper.Item{{Key: "9", Count: 42}}
}

func setup(hot ...string) (*Cache, *fakeStore, *fakeDetector, *local.LRU) {
	store := newFakeStore()
	det := &fakeDetector{hot: make(map[string]bool)}
	for _, k := range hot {
		det.hot[k] = true
	}
	lru := local.NewLRU(100, time.Minute)
	return New(lru, store, det, WithStripeSize(1)), store, det, lru
}

func TestGet_LocalHitSkipsRemote(t *testing.T) {
	c, store, det, lru := setup()
	lru.Set("thumb:user:7:9", "1")

	v, ok, err := c.Get(context.Background(), "thumb:user:7", "9")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	assert.Zero(t, store.calls)
	assert.Equal(t, []string{"9"}, det.adds)
}

func TestGet_RemoteMissNotCached(t *testing.T) {
	c, store, det, lru := setup("9")

	_, ok, err := c.Get(context.Background(), "thumb:user:7", "9")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, store.calls)
	assert.Empty(t, det.adds)
	assert.Zero(t, lru.Len())
}

func TestGet_ColdRemoteHitNotPromoted(t *testing.T) {
	c, store, det, lru := setup()
	store.put("thumb:user:7", "9", "1")

	v, ok, err := c.Get(context.Background(), "thumb:user:7", "9")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	assert.Equal(t, []string{"9"}, det.adds)
	assert.Zero(t, lru.Len())
}

func TestGet_HotRemoteHitPromoted(t *testing.T) {
	c, store, _, lru := setup("9")
	store.put("thumb:user:7", "9", "1")
	ctx := context.Background()

	_, _, err := c.Get(ctx, "thumb:user:7", "9")
	require.NoError(t, err)
	got, ok := lru.Get("thumb:user:7:9")
	assert.True(t, ok)
	assert.Equal(t, "1", got)

	_, ok, err = c.Get(ctx, "thumb:user:7", "9")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, store.calls, "second read must be served locally")
}

func TestGet_PromotionKeepsExistingEntry(t *testing.T) {
	c, store, _, lru := setup("9")
	store.put("thumb:user:7", "9", "1")

	// A concurrent writer put a fresher value locally between the miss and the promotion.
	c.local = &racingLocal{LRU: lru, key: "thumb:user:7:9", value: "0"}
	_, _, err := c.Get(context.Background(), "thumb:user:7", "9")
	require.NoError(t, err)

	got, _ := lru.Get("thumb:user:7:9")
	assert.Equal(t, "0", got)
}

// racingLocal misses the first Get and inserts a value before reporting later Gets.
type racingLocal struct {
	*local.LRU
	key, value string
	raced      bool
}

func (r *racingLocal) Get(key string) (string, bool) {
	if !r.raced {
		r.raced = true
		v, ok := r.LRU.Get(key)
		r.LRU.Set(r.key, r.value)
		return v, ok
	}
	return r.LRU.Get(key)
}

func TestGet_RemoteErrorSurfaced(t *testing.T) {
	c, store, _, _ := setup()
	store.err = errStore

	_, ok, err := c.Get(context.Background(), "thumb:user:7", "9")
	assert.False(t, ok)
	assert.ErrorIs(t, err, errStore)
}

func TestPutIfPresent(t *testing.T) {
	c, _, _, lru := setup()

	assert.False(t, c.PutIfPresent("thumb:user:7", "9", "1"))
	assert.Zero(t, lru.Len(), "writes must not promote")

	lru.Set("thumb:user:7:9", "1")
	assert.True(t, c.PutIfPresent("thumb:user:7", "9", "0"))
	got, _ := lru.Get("thumb:user:7:9")
	assert.Equal(t, "0", got)
}

func TestInvalidateAndHotKeys(t *testing.T) {
	c, _, _, lru := setup()
	lru.Set("thumb:user:7:9", "1")

	c.Invalidate("thumb:user:7", "9")
	assert.Zero(t, lru.Len())
	assert.Equal(t, []heavykeeper.Item{{Key: "9", Count: 42}}, c.HotKeys())
}

func TestGet_WithHeavyKeeper(t *testing.T) {
	store := newFakeStore()
	store.put("thumb:user:7", "9", "1")
	lru := local.NewLRU(100, time.Minute)
	hk := heavykeeper.New(heavykeeper.Config{MinCount: 3, Width: 1024})
	c := New(lru, store, hk, WithStripeSize(1))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _, err := c.Get(ctx, "thumb:user:7", "9")
		require.NoError(t, err)
		assert.Zero(t, lru.Len(), "read %d promoted a cold key", i+1)
	}

	_, _, err := c.Get(ctx, "thumb:user:7", "9")
	require.NoError(t, err)
	assert.Equal(t, 1, lru.Len())

	_, _, err = c.Get(ctx, "thumb:user:7", "9")
	require.NoError(t, err)
	assert.Equal(t, 3, store.calls)
	assert.True(t, hk.Contains("9"))
}
