// Command thumbd runs the like engine: the Redis fast path, the durability path
// selected by thumb.mode, the periodic jobs and the metrics endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/huynhanx03/go-thumb/internal/repository/sqlstore"
	"github.com/huynhanx03/go-thumb/internal/thumb"
	"github.com/huynhanx03/go-thumb/pkg/common/cache/local"
	"github.com/huynhanx03/go-thumb/pkg/common/cache/tiered"
	"github.com/huynhanx03/go-thumb/pkg/database/redis"
	"github.com/huynhanx03/go-thumb/pkg/database/sqldb"
	"github.com/huynhanx03/go-thumb/pkg/datastructs/heavykeeper"
	"github.com/huynhanx03/go-thumb/pkg/logger"
	"github.com/huynhanx03/go-thumb/pkg/metrics"
	"github.com/huynhanx03/go-thumb/pkg/mq/kafka"
	"github.com/huynhanx03/go-thumb/pkg/settings"
	"github.com/huynhanx03/go-thumb/pkg/timer"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "configs/thumb.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := settings.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	l, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = l.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, l); err != nil {
		l.Fatal("thumbd stopped", zap.Error(err))
	}
	l.Info("thumbd stopped")
}

// app holds the long-lived components. Service is what a request layer calls.
type app struct {
	Service *thumb.Service

	scheduler *thumb.Scheduler
	groups    []*kafka.Group
	closers   []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func build(ctx context.Context, cfg *settings.Config, l *zap.Logger, m *metrics.Metrics) (*app, error) {
	a := &app{}
	built := false
	defer func() {
		if !built {
			a.close()
		}
	}()

	rdb, err := redis.NewConnection(&cfg.Redis)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, rdb.Close)

	drv, err := sqldb.NewDriver(cfg.Database)
	if err != nil {
		return nil, err
	}
	store := sqlstore.New(drv)
	a.closers = append(a.closers, func() { _ = store.Close() })
	if err := store.Migrate(ctx); err != nil {
		return nil, err
	}

	hk := heavykeeper.New(heavykeeper.Config{
		K:        cfg.Sketch.TopK,
		Width:    cfg.Sketch.Width,
		Depth:    cfg.Sketch.Depth,
		Decay:    cfg.Sketch.Decay,
		MinCount: cfg.Sketch.MinCount,
	})
	lc, err := local.New(cfg.LocalCache)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, lc.Close)
	reader := tiered.New(lc, rdb, hk,
		tiered.WithStripeSize(cfg.LocalCache.StripeSize),
		tiered.WithMetrics(m),
		tiered.WithLogger(l),
	)

	clock := timer.NewCachedTimer(time.Millisecond)
	a.closers = append(a.closers, clock.Stop)

	tcfg := thumb.ConfigFrom(cfg.Thumb, cfg.Kafka)
	opts := []thumb.Option{thumb.WithClock(clock), thumb.WithMetrics(m), thumb.WithLogger(l)}
	a.scheduler = thumb.NewScheduler(l)

	var handOff, compensate thumb.EventSink
	switch cfg.Thumb.Mode {
	case settings.ModeBroker:
		producer, err := kafka.NewProducer(cfg.Kafka,
			kafka.WithLogger(l),
			kafka.WithErrorHandler(func(*sarama.ProducerError) { m.PublishErrors.Inc() }),
		)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = producer.Close() })

		handOff = thumb.NewBrokerSink(producer, cfg.Kafka.Topic)
		compensate = handOff

		events, err := kafka.NewGroup(cfg.Kafka, cfg.Kafka.ConsumerGroup,
			[]string{cfg.Kafka.Topic}, thumb.NewConsumer(tcfg, store, producer, opts...), l)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = events.Close() })

		deadLetters, err := kafka.NewGroup(cfg.Kafka, cfg.Kafka.ConsumerGroup+"-dlq",
			[]string{cfg.Kafka.DeadLetterTopic}, thumb.NewDeadLetterHandler(opts...), l)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = deadLetters.Close() })
		a.groups = append(a.groups, events, deadLetters)

	default:
		compensate = thumb.NewBucketSink(rdb, tcfg.SliceInterval, clock)
		job := thumb.NewSyncJob(tcfg, rdb, store, opts...)
		if err := a.scheduler.Add("batch-sync", cfg.Jobs.BatchSync, thumb.SyncJobFunc(job)); err != nil {
			return nil, err
		}
	}

	a.Service = thumb.NewService(tcfg, rdb, reader, handOff, opts...)

	reconciler := thumb.NewReconciler(tcfg, rdb, store, compensate, opts...)
	if err := a.scheduler.Add("reconcile", cfg.Jobs.Reconcile, thumb.ReconcileFunc(reconciler)); err != nil {
		return nil, err
	}
	if err := a.scheduler.Add("fade", cfg.Jobs.FadeInterval, thumb.FadeJob(hk, m, l)); err != nil {
		return nil, err
	}
	built = true
	return a, nil
}

func run(ctx context.Context, cfg *settings.Config, l *zap.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg)

	a, err := build(ctx, cfg, l, m)
	if err != nil {
		return err
	}
	defer a.close()

	srv := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		l.Info("metrics listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return a.scheduler.Run(gctx)
	})
	for _, group := range a.groups {
		g.Go(func() error {
			return group.Run(gctx)
		})
	}

	l.Info("thumbd started", zap.String("mode", cfg.Thumb.Mode))
	return g.Wait()
}
