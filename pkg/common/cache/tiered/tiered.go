// Package tiered is a read-through cache that keeps only hot keys in process.
//
// Reads go to the local tier first and fall back to a remote hash store. Every
// access is reported to a hot-key detector; a remote hit is copied into the local
// tier only when the detector classifies its key as hot.
package tiered

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/huynhanx03/go-thumb/pkg/common/cache"
	"github.com/huynhanx03/go-thumb/pkg/datastructs/heavykeeper"
	"github.com/huynhanx03/go-thumb/pkg/logger"
	"github.com/huynhanx03/go-thumb/pkg/metrics"
	"github.com/huynhanx03/go-thumb/pkg/mq/batcher"
)

const defaultStripeSize = 64

// Detector classifies keys as hot.
type Detector interface {
	Add(key string, increment uint32) heavykeeper.AddResult
	List() []heavykeeper.Item
}

type Cache struct {
	local    cache.LocalCache[string, string]
	remote   cache.HashStore
	detector Detector
	access   *batcher.StripedBatcher[string]
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

type options struct {
	stripeSize int
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

type Option func(*options)

// WithStripeSize sets how many local hits are buffered before they reach the detector.
func WithStripeSize(n int) Option {
	return func(o *options) { o.stripeSize = n }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func New(local cache.LocalCache[string, string], remote cache.HashStore, detector Detector, opts ...Option) *Cache {
	o := options{stripeSize: defaultStripeSize}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Cache{
		local:    local,
		remote:   remote,
		detector: detector,
		metrics:  metrics.OrDiscard(o.metrics),
		logger:   logger.OrNop(o.logger),
	}
	c.access = batcher.New[string](batcher.ConsumerFunc[string](c.recordAccess), batcher.Config{
		StripeSize: o.stripeSize,
	})
	return c
}

// recordAccess feeds buffered local hits into the detector.
func (c *Cache) recordAccess(keys []string) error {
	for _, key := range keys {
		c.detector.Add(key, 1)
	}
	return nil
}

// Get returns the value of field key in hash namespace.
// A remote store failure is returned as an error; absence is not an error.
func (c *Cache) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	composite := cache.CompositeKey(namespace, key)
	if value, ok := c.local.Get(composite); ok {
		c.access.Push(key)
		c.metrics.CacheLookups.WithLabelValues("local").Inc()
		return value, true, nil
	}

	value, ok, err := c.remote.HGet(ctx, namespace, key)
	if err != nil {
		return "", false, errors.Wrapf(err, "tiered: get %s", composite)
	}
	if !ok {
		c.metrics.CacheLookups.WithLabelValues("miss").Inc()
		return "", false, nil
	}
	c.metrics.CacheLookups.WithLabelValues("remote").Inc()

	if res := c.detector.Add(key, 1); res.IsHot {
		if _, present := c.local.Get(composite); !present && c.local.Set(composite, value) {
			c.metrics.CachePromotions.Inc()
			c.logger.Debug("promoted hot key", zap.String("key", composite))
		}
	}
	return value, true, nil
}

// PutIfPresent refreshes an entry that is already in the local tier.
// It never promotes a key.
func (c *Cache) PutIfPresent(namespace, key, value string) bool {
	return cache.UpdateLocal(c.local, cache.CompositeKey(namespace, key), value)
}

// Invalidate drops the local entry for namespace and key.
func (c *Cache) Invalidate(namespace, key string) {
	cache.DeleteLocal(c.local, cache.CompositeKey(namespace, key))
}

// HotKeys returns the detector's current top-K.
func (c *Cache) HotKeys() []heavykeeper.Item {
	return c.detector.List()
}
