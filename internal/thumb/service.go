// Package thumb is the like engine: deduplicated likes acknowledged from Redis, made
// durable asynchronously and reconciled daily.
package thumb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/huynhanx03/go-thumb/internal/model"
	"github.com/huynhanx03/go-thumb/pkg/datastructs/keylock"
	"github.com/huynhanx03/go-thumb/pkg/metrics"
	"github.com/huynhanx03/go-thumb/pkg/timer"
)

const (
	opLike   = "like"
	opUnlike = "unlike"

	lockStripes = 256
)

// Service serves likes, unlikes and like lookups.
//
// With a nil sink the service runs in batch mode: the Lua script also records the
// change in the current time-slice bucket, which SyncJob later applies. With a sink
// every accepted change is emitted to it after the script succeeds.
type Service struct {
	cfg    Config
	remote Remote
	reader Reader
	sink   EventSink
	locks  *keylock.Striped[int64]

	clock   timer.Timer
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewService(cfg Config, remote Remote, reader Reader, sink EventSink, opts ...Option) *Service {
	d := newDeps(opts)
	return &Service{
		cfg:     cfg.withDefaults(),
		remote:  remote,
		reader:  reader,
		sink:    sink,
		locks:   keylock.New[int64](lockStripes),
		clock:   d.clock,
		metrics: d.metrics,
		logger:  d.logger,
	}
}

// Like records that actor likes item.
func (s *Service) Like(ctx context.Context, actor, item int64) (Result, error) {
	return s.write(ctx, opLike, model.KindAdd, actor, item)
}

// Unlike removes the like of actor on item.
func (s *Service) Unlike(ctx context.Context, actor, item int64) (Result, error) {
	return s.write(ctx, opUnlike, model.KindRemove, actor, item)
}

// HasLiked reports whether actor currently likes item.
func (s *Service) HasLiked(ctx context.Context, actor, item int64) (bool, error) {
	value, ok, err := s.reader.Get(ctx, UserKey(actor), itemField(item))
	if err != nil {
		return false, errors.Wrap(err, "has liked")
	}
	return ok && value != placeholder, nil
}

func (s *Service) write(ctx context.Context, op string, kind model.Kind, actor, item int64) (Result, error) {
	unlock := s.locks.Lock(actor)
	defer unlock()

	now := s.clock.Now()
	applied, err := s.swap(ctx, kind, actor, item, now)
	if err != nil {
		s.metrics.Requests.WithLabelValues(op, "error").Inc()
		return Result{}, errors.Wrapf(err, "%s: redis script", op)
	}
	if !applied {
		reason := ErrAlreadyLiked
		if kind == model.KindRemove {
			reason = ErrNotLiked
		}
		s.metrics.Requests.WithLabelValues(op, "rejected").Inc()
		s.logger.Debug("request rejected",
			zap.String("op", op), zap.Int64("actor", actor), zap.Int64("item", item), zap.Error(reason))
		return rejected(reason), nil
	}

	if s.sink != nil {
		event := model.LikeEvent{
			EventID:   uuid.NewString(),
			Actor:     actor,
			Item:      item,
			Kind:      kind,
			Timestamp: now,
		}
		if err := s.sink.Emit(ctx, event); err != nil {
			s.revert(ctx, kind, actor, item)
			s.metrics.Requests.WithLabelValues(op, "error").Inc()
			return Result{}, errors.Wrapf(err, "%s: hand off event", op)
		}
	}

	value := likedValue
	if kind == model.KindRemove {
		value = placeholder
	}
	s.reader.PutIfPresent(UserKey(actor), itemField(item), value)
	s.metrics.Requests.WithLabelValues(op, "ok").Inc()
	return Result{OK: true}, nil
}

// swap runs the check-and-set script and reports whether the state changed.
func (s *Service) swap(ctx context.Context, kind model.Kind, actor, item int64, now time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	keys := []string{UserKey(actor)}
	if s.sink == nil {
		keys = append(keys, TempKey(SliceStart(now, s.cfg.SliceInterval)))
	}
	script := likeScript
	if kind == model.KindRemove {
		script = unlikeScript
	}

	pair := model.Pair{Actor: actor, Item: item}
	n, err := s.remote.RunInt(ctx, script, keys, itemField(item), likedValue, pair.String())
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// revert undoes a swap whose event could not be handed off. It runs even when ctx is
// already done, since that is a common reason for the hand-off failing.
func (s *Service) revert(ctx context.Context, kind model.Kind, actor, item int64) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.RequestTimeout)
	defer cancel()

	var err error
	if kind == model.KindAdd {
		_, err = s.remote.HDel(ctx, UserKey(actor), itemField(item))
	} else {
		err = s.remote.HSet(ctx, UserKey(actor), itemField(item), likedValue)
	}
	if err != nil {
		s.logger.Error("failed to revert redis after hand-off failure",
			zap.Int64("actor", actor), zap.Int64("item", item), zap.Stringer("kind", kind), zap.Error(err))
	}
}
