package thumb

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/huynhanx03/go-thumb/pkg/datastructs/heavykeeper"
	"github.com/huynhanx03/go-thumb/pkg/logger"
	"github.com/huynhanx03/go-thumb/pkg/metrics"
)

// Scheduler runs the periodic jobs. A run still in progress when its next tick comes
// makes the scheduler skip that tick.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(l *zap.Logger) *Scheduler {
	l = logger.OrNop(l)
	cl := cronLogger{logger: l.Sugar()}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: l,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add registers fn under a cron spec with a seconds field, e.g. "@every 10s".
func (s *Scheduler) Add(name, spec string, fn func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		if err := fn(s.ctx); err != nil {
			s.logger.Error("job failed", zap.String("job", name), zap.Error(err))
		}
	})
	return err
}

// Run starts the jobs and blocks until ctx is done, then waits for running jobs.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	<-ctx.Done()
	s.cancel()
	<-s.cron.Stop().Done()
	return nil
}

// FadeJob ages the sketch and drains the keys it expelled from the top-K.
func FadeJob(hk *heavykeeper.HeavyKeeper, m *metrics.Metrics, l *zap.Logger) func(context.Context) error {
	m = metrics.OrDiscard(m)
	l = logger.OrNop(l)
	return func(context.Context) error {
		hk.Fade()
		expelled := hk.Expelled()
		m.HotKeysExpelled.Add(float64(len(expelled)))
		if len(expelled) > 0 {
			l.Debug("hot keys expelled", zap.Int("count", len(expelled)))
		}
		return nil
	}
}

// SyncJobFunc adapts SyncJob.Run to the scheduler.
func SyncJobFunc(j *SyncJob) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := j.Run(ctx)
		return err
	}
}

// ReconcileFunc adapts Reconciler.Run to the scheduler.
func ReconcileFunc(r *Reconciler) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := r.Run(ctx)
		return err
	}
}

type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
