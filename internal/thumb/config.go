package thumb

import (
	"time"

	"go.uber.org/zap"

	"github.com/huynhanx03/go-thumb/pkg/logger"
	"github.com/huynhanx03/go-thumb/pkg/metrics"
	"github.com/huynhanx03/go-thumb/pkg/settings"
	"github.com/huynhanx03/go-thumb/pkg/timer"
	"github.com/huynhanx03/go-thumb/pkg/utils"
)

const (
	defaultRequestTimeout       = 500 * time.Millisecond
	defaultSliceInterval        = 10 * time.Second
	defaultMaxCatchUp           = 30
	defaultReconcileConcurrency = 8
	defaultConsumerBatchSize    = 100
	defaultConsumerBatchWait    = time.Second
	defaultRetryBackoff         = 500 * time.Millisecond
	maxRetryBackoff             = 5 * time.Second
	defaultScanCount            = 1000
)

// Config tunes the write path and both durability paths.
type Config struct {
	RequestTimeout       time.Duration
	SliceInterval        time.Duration
	MaxCatchUp           int
	ReconcileConcurrency int

	Topic             string
	DeadLetterTopic   string
	ConsumerBatchSize int
	ConsumerBatchWait time.Duration
	MaxRetries        int
	RetryBackoff      time.Duration
}

// ConfigFrom reads the thumb and kafka sections of the settings.
func ConfigFrom(t settings.Thumb, k settings.Kafka) Config {
	return Config{
		RequestTimeout:       utils.ToDurationMs(t.RequestTimeoutMs),
		SliceInterval:        utils.ToDuration(t.BatchIntervalSeconds),
		MaxCatchUp:           t.MaxCatchUp,
		ReconcileConcurrency: t.ReconcileConcurrency,
		Topic:                k.Topic,
		DeadLetterTopic:      k.DeadLetterTopic,
		ConsumerBatchSize:    k.ConsumerBatchSize,
		ConsumerBatchWait:    utils.ToDurationMs(k.ConsumerBatchInterval),
		MaxRetries:           k.MaxRetries,
		RetryBackoff:         utils.ToDurationMs(k.RetryBackoff),
	}
}

func (c Config) withDefaults() Config {
	c.RequestTimeout = utils.OrDefault(c.RequestTimeout, defaultRequestTimeout)
	c.SliceInterval = utils.OrDefault(c.SliceInterval, defaultSliceInterval)
	c.ConsumerBatchWait = utils.OrDefault(c.ConsumerBatchWait, defaultConsumerBatchWait)
	c.RetryBackoff = utils.OrDefault(c.RetryBackoff, defaultRetryBackoff)
	if c.MaxCatchUp <= 0 {
		c.MaxCatchUp = defaultMaxCatchUp
	}
	if c.ReconcileConcurrency <= 0 {
		c.ReconcileConcurrency = defaultReconcileConcurrency
	}
	if c.ConsumerBatchSize <= 0 {
		c.ConsumerBatchSize = defaultConsumerBatchSize
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	return c
}

type deps struct {
	clock   timer.Timer
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// Option overrides a shared dependency of the components in this package.
type Option func(*deps)

func WithClock(t timer.Timer) Option {
	return func(d *deps) { d.clock = t }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *deps) { d.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(d *deps) { d.logger = l }
}

func newDeps(opts []Option) deps {
	d := deps{clock: timer.Std{}}
	for _, opt := range opts {
		opt(&d)
	}
	d.metrics = metrics.OrDiscard(d.metrics)
	d.logger = logger.OrNop(d.logger)
	return d
}
