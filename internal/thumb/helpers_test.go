package thumb

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/huynhanx03/go-thumb/internal/model"
	"github.com/huynhanx03/go-thumb/internal/repository/sqlstore"
	"github.com/huynhanx03/go-thumb/pkg/common/cache/local"
	"github.com/huynhanx03/go-thumb/pkg/common/cache/tiered"
	"github.com/huynhanx03/go-thumb/pkg/database/redis"
	"github.com/huynhanx03/go-thumb/pkg/database/sqldb"
	"github.com/huynhanx03/go-thumb/pkg/datastructs/heavykeeper"
	"github.com/huynhanx03/go-thumb/pkg/settings"
	"github.com/huynhanx03/go-thumb/pkg/timer"
)

// t0 starts a 10s slice.
var t0 = time.Unix(1_700_000_000, 0)

type env struct {
	mr     *miniredis.Miniredis
	remote *redis.RedisEngine
	store  *sqlstore.Store
	cache  *tiered.Cache
	clock  *timer.Manual
	cfg    Config
}

func newEnv(t *testing.T) *env {
	t.Helper()
	mr := miniredis.RunT(t)
	remote, err := redis.NewConnection(&settings.Redis{Addrs: []string{mr.Addr()}, PoolSize: 64})
	require.NoError(t, err)
	t.Cleanup(remote.Close)

	lc, err := local.New(settings.LocalCache{Engine: settings.EngineLRU, MaxEntries: 100, TTLSeconds: 60})
	require.NoError(t, err)
	hk := heavykeeper.New(heavykeeper.Config{K: 10, Width: 64, Depth: 3, MinCount: 1})

	return &env{
		mr:     mr,
		remote: remote,
		store:  newStore(t),
		cache:  tiered.New(lc, remote, hk),
		clock:  timer.NewManual(t0),
		cfg: Config{
			SliceInterval:  10 * time.Second,
			RequestTimeout: 5 * time.Second,
			RetryBackoff:   time.Millisecond,
		},
	}
}

func newStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	drv, err := sqldb.NewDriver(settings.Database{
		Driver:   sqldb.DriverSQLite,
		Database: fmt.Sprintf("file:thumb_%s?mode=memory&cache=shared", name),
	})
	require.NoError(t, err)

	s := sqlstore.New(drv)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func (e *env) service(sink EventSink) *Service {
	return NewService(e.cfg, e.remote, e.cache, sink, WithClock(e.clock))
}

func (e *env) syncJob() *SyncJob {
	return NewSyncJob(e.cfg, e.remote, e.store, WithClock(e.clock))
}

// recordingSender stands in for the Kafka producer.
type recordingSender struct {
	mu   sync.Mutex
	sent []*sarama.ProducerMessage
	err  error
}

func (s *recordingSender) Send(_ context.Context, topic string, key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.ByteEncoder(key),
		Value: sarama.ByteEncoder(value),
	})
	return nil
}

func (s *recordingSender) messages() []*sarama.ProducerMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*sarama.ProducerMessage(nil), s.sent...)
}

// recordingSink collects emitted events.
type recordingSink struct {
	mu     sync.Mutex
	events []model.LikeEvent
	fail   func(model.LikeEvent) error
}

func (s *recordingSink) Emit(_ context.Context, event model.LikeEvent) error {
	if s.fail != nil {
		if err := s.fail(event); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) pairs() []model.Pair {
	s.mu.Lock()
	defer s.mu.Unlock()
	pairs := make([]model.Pair, 0, len(s.events))
	for _, e := range s.events {
		pairs = append(pairs, e.Pair())
	}
	return pairs
}

// flakyStore fails the first calls with the queued errors.
type flakyStore struct {
	LikeStore
	mu    sync.Mutex
	errs  []error
	calls int
}

func (s *flakyStore) ApplyBatch(ctx context.Context, batch model.Batch) (map[int64]int64, error) {
	s.mu.Lock()
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()
	return s.LikeStore.ApplyBatch(ctx, batch)
}

func count(t *testing.T, s *sqlstore.Store, item int64) int64 {
	t.Helper()
	n, err := s.Count(context.Background(), item)
	require.NoError(t, err)
	rows, err := s.Rows(context.Background(), item)
	require.NoError(t, err)
	require.Equal(t, rows, n, "counter of item %d differs from its rows", item)
	return n
}
