package thumb

import (
	"context"
	"slices"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/huynhanx03/go-thumb/internal/model"
	"github.com/huynhanx03/go-thumb/pkg/metrics"
	"github.com/huynhanx03/go-thumb/pkg/timer"
)

// SyncJob applies completed time-slice buckets to the durable store.
//
// Slices are applied in order. The cursor is the start of the last applied slice; it
// moves only after a commit, so a failed slice is retried by the next run. A slice
// counts as completed once it ended more than one request timeout ago, which leaves
// in-flight scripts time to land in it.
type SyncJob struct {
	cfg    Config
	remote Remote
	store  LikeStore

	cursor time.Time

	clock   timer.Timer
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewSyncJob(cfg Config, remote Remote, store LikeStore, opts ...Option) *SyncJob {
	d := newDeps(opts)
	return &SyncJob{
		cfg:     cfg.withDefaults(),
		remote:  remote,
		store:   store,
		clock:   d.clock,
		metrics: d.metrics,
		logger:  d.logger,
	}
}

// Run applies up to MaxCatchUp pending slices and returns how many it applied.
// Runs must not overlap.
func (j *SyncJob) Run(ctx context.Context) (int, error) {
	if err := j.loadCursor(ctx); err != nil {
		return 0, err
	}

	last := SliceStart(j.clock.Now().Add(-j.cfg.RequestTimeout), j.cfg.SliceInterval).Add(-j.cfg.SliceInterval)
	pending, err := j.pending(ctx, last)
	if err != nil {
		return 0, err
	}

	for i, start := range pending {
		if err := j.syncSlice(ctx, start); err != nil {
			j.metrics.SyncedSlices.WithLabelValues("failed").Inc()
			return i, errors.Wrapf(err, "sync slice %s", TempKey(start))
		}
		j.metrics.SyncedSlices.WithLabelValues("ok").Inc()
		j.advance(ctx, start)
	}
	return len(pending), nil
}

// loadCursor restores the cursor persisted by a previous process.
func (j *SyncJob) loadCursor(ctx context.Context) error {
	if !j.cursor.IsZero() {
		return nil
	}
	value, ok, err := j.remote.Get(ctx, cursorKey)
	if err != nil {
		return errors.Wrap(err, "load sync cursor")
	}
	if !ok {
		return nil
	}
	sec, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		j.logger.Warn("ignoring malformed sync cursor", zap.String("value", value))
		return nil
	}
	j.cursor = time.Unix(sec, 0)
	return nil
}

// pending lists the slices after the cursor and up to last, oldest first. A
// slice is pending when it has a bucket or a repair hash.
// Keys at or before the cursor were applied already and only failed to be
// deleted; they are deleted again.
func (j *SyncJob) pending(ctx context.Context, last time.Time) ([]time.Time, error) {
	var starts []time.Time
	var stale []string
	collect := func(parse func(string) (time.Time, bool)) func(keys []string) error {
		return func(keys []string) error {
			for _, key := range keys {
				start, ok := parse(key)
				switch {
				case !ok:
					j.logger.Warn("skipping malformed bucket key", zap.String("key", key))
				case !j.cursor.IsZero() && !start.After(j.cursor):
					stale = append(stale, key)
				case !start.After(last):
					starts = append(starts, start)
				}
			}
			return nil
		}
	}
	if err := j.remote.Scan(ctx, tempKeyPrefix+"*", defaultScanCount, collect(parseTempKey)); err != nil {
		return nil, errors.Wrap(err, "scan slice buckets")
	}
	if err := j.remote.Scan(ctx, repairKeyPrefix+"*", defaultScanCount, collect(parseRepairKey)); err != nil {
		return nil, errors.Wrap(err, "scan repair buckets")
	}

	if len(stale) > 0 {
		j.dropBuckets(stale...)
	}

	slices.SortFunc(starts, func(a, b time.Time) int { return a.Compare(b) })
	starts = slices.CompactFunc(starts, time.Time.Equal)
	if len(starts) > j.cfg.MaxCatchUp {
		starts = starts[:j.cfg.MaxCatchUp]
	}
	return starts, nil
}

// syncSlice applies the repairs of a slice and then its net changes. Both are
// idempotent, so a slice that fails halfway is safely applied again.
func (j *SyncJob) syncSlice(ctx context.Context, start time.Time) error {
	if err := j.applyHash(ctx, RepairKey(start), "repair"); err != nil {
		return err
	}
	return j.applyHash(ctx, TempKey(start), "bucket")
}

func (j *SyncJob) applyHash(ctx context.Context, key, source string) error {
	fields, err := j.remote.HGetAll(ctx, key)
	if err != nil {
		return errors.Wrapf(err, "read %s", key)
	}

	batch := j.parseBucket(key, fields)
	if batch.Empty() {
		return nil
	}

	began := time.Now()
	deltas, err := j.store.ApplyBatch(ctx, batch)
	j.metrics.BatchApplyDuration.WithLabelValues(source).Observe(time.Since(began).Seconds())
	if err != nil {
		return err
	}

	j.metrics.SyncedRows.WithLabelValues("insert").Add(float64(len(batch.Inserts)))
	j.metrics.SyncedRows.WithLabelValues("delete").Add(float64(len(batch.Deletes)))
	j.logger.Debug("synced slice", zap.String("key", key),
		zap.Int("inserts", len(batch.Inserts)), zap.Int("deletes", len(batch.Deletes)), zap.Int("items", len(deltas)))
	return nil
}

func (j *SyncJob) parseBucket(key string, fields map[string]string) model.Batch {
	var batch model.Batch
	for field, raw := range fields {
		pair, err := model.ParsePair(field)
		if err != nil {
			j.logger.Warn("skipping malformed bucket field", zap.String("key", key), zap.String("field", field))
			continue
		}
		code, err := strconv.Atoi(raw)
		if err != nil {
			j.logger.Warn("skipping malformed type code", zap.String("key", key), zap.String("field", field), zap.String("code", raw))
			continue
		}
		if code < int(model.KindRemove) || code > int(model.KindAdd) {
			j.logger.Warn("skipping unknown type code", zap.String("key", key), zap.String("field", field), zap.Int("code", code))
			continue
		}
		batch.Add(pair, model.Kind(code))
	}
	return batch
}

// advance moves the cursor past start and deletes its hashes in the background.
func (j *SyncJob) advance(ctx context.Context, start time.Time) {
	j.cursor = start
	if err := j.remote.Set(ctx, cursorKey, strconv.FormatInt(start.Unix(), 10), 0); err != nil {
		j.logger.Warn("failed to persist sync cursor", zap.Time("cursor", start), zap.Error(err))
	}
	j.dropBuckets(RepairKey(start), TempKey(start))
}

func (j *SyncJob) dropBuckets(keys ...string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), j.cfg.RequestTimeout)
		defer cancel()
		if err := j.remote.Del(ctx, keys...); err != nil {
			j.logger.Warn("failed to delete slice buckets", zap.Strings("keys", keys), zap.Error(err))
		}
	}()
}
