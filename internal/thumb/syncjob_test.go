package thumb

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncJob_WaitsForSliceToComplete(t *testing.T) {
	e := newEnv(t)
	svc := e.service(nil)
	ctx := context.Background()

	_, err := svc.Like(ctx, 1, 5)
	require.NoError(t, err)

	job := e.syncJob()
	e.clock.Advance(10 * time.Second)
	applied, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, applied, "slice still inside the grace period")
	assert.Zero(t, count(t, e.store, 5))

	e.clock.Advance(5 * time.Second)
	applied, err = job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Equal(t, int64(1), count(t, e.store, 5))

	assert.Eventually(t, func() bool { return !e.mr.Exists(TempKey(t0)) }, time.Second, 10*time.Millisecond)
	assert.Equal(t, strconv.FormatInt(t0.Unix(), 10), mustGet(t, e, cursorKey))
}

func TestSyncJob_AppliesNetChangePerSlice(t *testing.T) {
	e := newEnv(t)
	svc := e.service(nil)
	ctx := context.Background()

	for actor := int64(1); actor <= 3; actor++ {
		_, err := svc.Like(ctx, actor, 5)
		require.NoError(t, err)
	}
	_, err := svc.Unlike(ctx, 3, 5)
	require.NoError(t, err)

	e.clock.Advance(10 * time.Second)
	_, err = svc.Unlike(ctx, 1, 5)
	require.NoError(t, err)
	_, err = svc.Like(ctx, 3, 6)
	require.NoError(t, err)

	e.clock.Advance(10 * time.Second)
	job := e.syncJob()
	applied, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Equal(t, int64(2), count(t, e.store, 5))

	e.clock.Advance(10 * time.Second)
	applied, err = job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Equal(t, int64(1), count(t, e.store, 5))
	assert.Equal(t, int64(1), count(t, e.store, 6))

	items, err := e.store.ItemIDsByActor(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, items)
}

func TestSyncJob_FailureKeepsCursor(t *testing.T) {
	e := newEnv(t)
	svc := e.service(nil)
	ctx := context.Background()

	_, err := svc.Like(ctx, 1, 5)
	require.NoError(t, err)
	e.clock.Advance(20 * time.Second)

	store := &flakyStore{LikeStore: e.store, errs: []error{errors.New("disk I/O error")}}
	job := NewSyncJob(e.cfg, e.remote, store, WithClock(e.clock))

	applied, err := job.Run(ctx)
	assert.Error(t, err)
	assert.Zero(t, applied)
	assert.True(t, e.mr.Exists(TempKey(t0)))
	assert.False(t, e.mr.Exists(cursorKey))

	applied, err = job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Equal(t, int64(1), count(t, e.store, 5))
}

func TestSyncJob_MaxCatchUp(t *testing.T) {
	e := newEnv(t)
	e.cfg.MaxCatchUp = 2
	svc := e.service(nil)
	ctx := context.Background()

	for i := int64(0); i < 5; i++ {
		_, err := svc.Like(ctx, i+1, 5)
		require.NoError(t, err)
		e.clock.Advance(10 * time.Second)
	}
	e.clock.Advance(10 * time.Second)

	job := e.syncJob()
	applied, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)
	assert.Equal(t, int64(2), count(t, e.store, 5))

	applied, err = job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	applied, err = job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Equal(t, int64(5), count(t, e.store, 5))
}

func TestSyncJob_SkipsAnomalies(t *testing.T) {
	e := newEnv(t)
	bucket := TempKey(t0)
	e.mr.HSet(bucket, "malformed", "1")
	e.mr.HSet(bucket, "1:5", "7")
	e.mr.HSet(bucket, "2:5", "x")
	e.mr.HSet(bucket, "3:5", "0")
	e.mr.HSet(bucket, "4:5", "1")
	require.NoError(t, e.mr.Set(tempKeyPrefix+"garbage", "1"))
	e.clock.Advance(20 * time.Second)

	applied, err := e.syncJob().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Equal(t, int64(1), count(t, e.store, 5))

	items, err := e.store.ItemIDsByActor(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, items)
}

func TestSyncJob_ResumesFromPersistedCursor(t *testing.T) {
	e := newEnv(t)
	e.mr.HSet(TempKey(t0), "1:5", "1")
	e.mr.HSet(TempKey(t0.Add(10*time.Second)), "2:5", "1")
	require.NoError(t, e.mr.Set(cursorKey, strconv.FormatInt(t0.Unix(), 10)))
	e.clock.Advance(30 * time.Second)

	applied, err := e.syncJob().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Equal(t, int64(1), count(t, e.store, 5))

	// The bucket at the cursor was applied before and is only cleaned up.
	assert.Eventually(t, func() bool { return !e.mr.Exists(TempKey(t0)) }, time.Second, 10*time.Millisecond)
	items, err := e.store.ItemIDsByActor(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSyncJob_AppliesRepairsBeforeNetChanges(t *testing.T) {
	e := newEnv(t)
	e.mr.HSet(RepairKey(t0), "1:5", "1", "2:5", "1")
	e.mr.HSet(TempKey(t0), "1:5", "-1")
	e.mr.HSet(RepairKey(t0.Add(10*time.Second)), "3:5", "1")
	e.clock.Advance(30 * time.Second)

	applied, err := e.syncJob().Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, applied)
	assert.Equal(t, int64(2), count(t, e.store, 5))

	items, err := e.store.ItemIDsByActor(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, items)

	assert.Eventually(t, func() bool {
		return !e.mr.Exists(RepairKey(t0)) && !e.mr.Exists(TempKey(t0)) && !e.mr.Exists(RepairKey(t0.Add(10*time.Second)))
	}, time.Second, 10*time.Millisecond)
}

func mustGet(t *testing.T, e *env, key string) string {
	t.Helper()
	v, err := e.mr.Get(key)
	require.NoError(t, err)
	return v
}
