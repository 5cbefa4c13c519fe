package thumb

import (
	"context"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/huynhanx03/go-thumb/internal/model"
	"github.com/huynhanx03/go-thumb/pkg/metrics"
	"github.com/huynhanx03/go-thumb/pkg/timer"
)

// ReconcileReport summarizes one reconciliation run.
type ReconcileReport struct {
	Actors  int64
	Drifted int64
	Emitted int64
	Failed  int64
}

// Reconciler finds likes Redis holds but the durable store lacks and emits a
// compensating add for each of them.
type Reconciler struct {
	cfg    Config
	remote Remote
	store  LikeStore
	sink   EventSink

	clock   timer.Timer
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewReconciler(cfg Config, remote Remote, store LikeStore, sink EventSink, opts ...Option) *Reconciler {
	d := newDeps(opts)
	return &Reconciler{
		cfg:     cfg.withDefaults(),
		remote:  remote,
		store:   store,
		sink:    sink,
		clock:   d.clock,
		metrics: d.metrics,
		logger:  d.logger,
	}
}

type reconcileCounters struct {
	actors, drifted, emitted, failed atomic.Int64
}

func (c *reconcileCounters) report() ReconcileReport {
	return ReconcileReport{
		Actors:  c.actors.Load(),
		Drifted: c.drifted.Load(),
		Emitted: c.emitted.Load(),
		Failed:  c.failed.Load(),
	}
}

// Run walks every actor hash. Per-actor failures are logged and counted; only a
// failing scan aborts the run.
func (r *Reconciler) Run(ctx context.Context) (ReconcileReport, error) {
	var counters reconcileCounters
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.ReconcileConcurrency)

	seen := make(map[int64]struct{})
	scanErr := r.remote.Scan(gctx, userKeyPrefix+"*", defaultScanCount, func(keys []string) error {
		for _, key := range keys {
			actor, ok := parseUserKey(key)
			if !ok {
				r.logger.Warn("skipping malformed actor key", zap.String("key", key))
				continue
			}
			if _, dup := seen[actor]; dup {
				continue
			}
			seen[actor] = struct{}{}
			g.Go(func() error {
				r.reconcileActor(gctx, actor, &counters)
				return nil
			})
		}
		return nil
	})
	_ = g.Wait()

	report := counters.report()
	r.logger.Info("reconciliation finished",
		zap.Int64("actors", report.Actors), zap.Int64("drifted", report.Drifted),
		zap.Int64("emitted", report.Emitted), zap.Int64("failed", report.Failed))
	if scanErr != nil {
		return report, errors.Wrap(scanErr, "reconcile: scan actor keys")
	}
	return report, nil
}

func (r *Reconciler) reconcileActor(ctx context.Context, actor int64, counters *reconcileCounters) {
	counters.actors.Add(1)

	fields, err := r.remote.HKeys(ctx, UserKey(actor))
	if err != nil {
		r.fail(counters, "read actor hash", actor, err)
		return
	}
	durable, err := r.store.ItemIDsByActor(ctx, actor)
	if err != nil {
		r.fail(counters, "read durable likes", actor, err)
		return
	}

	recorded := make(map[int64]struct{}, len(durable))
	for _, item := range durable {
		recorded[item] = struct{}{}
	}

	for _, field := range fields {
		item, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			r.logger.Warn("skipping malformed item field", zap.Int64("actor", actor), zap.String("field", field))
			continue
		}
		if _, ok := recorded[item]; ok {
			continue
		}

		counters.drifted.Add(1)
		r.metrics.ReconcileDrift.Inc()
		event := model.LikeEvent{
			EventID:   uuid.NewString(),
			Actor:     actor,
			Item:      item,
			Kind:      model.KindAdd,
			Timestamp: r.clock.Now(),
		}
		if err := r.sink.Emit(ctx, event); err != nil {
			r.fail(counters, "emit compensating like", actor, err, zap.Int64("item", item))
			continue
		}
		counters.emitted.Add(1)
	}
}

func (r *Reconciler) fail(counters *reconcileCounters, msg string, actor int64, err error, fields ...zap.Field) {
	counters.failed.Add(1)
	r.metrics.ReconcileFailures.Inc()
	r.logger.Warn("reconcile: "+msg, append(fields, zap.Int64("actor", actor), zap.Error(err))...)
}
