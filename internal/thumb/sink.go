package thumb

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/huynhanx03/go-thumb/internal/model"
	"github.com/huynhanx03/go-thumb/pkg/timer"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EventSink hands a like event to a durability path.
type EventSink interface {
	Emit(ctx context.Context, event model.LikeEvent) error
}

// Sender enqueues a message on a broker topic.
type Sender interface {
	Send(ctx context.Context, topic string, key, value []byte) error
}

// BrokerSink publishes events keyed by pair, so one pair always lands on one
// partition.
type BrokerSink struct {
	sender Sender
	topic  string
}

func NewBrokerSink(sender Sender, topic string) *BrokerSink {
	return &BrokerSink{sender: sender, topic: topic}
}

func (s *BrokerSink) Emit(ctx context.Context, event model.LikeEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "encode like event")
	}
	if err := s.sender.Send(ctx, s.topic, []byte(event.Pair().String()), value); err != nil {
		return errors.Wrapf(err, "publish like event to %s", s.topic)
	}
	return nil
}

// BucketSink queues events as repairs of the current time slice. Repairs live
// in their own hash, apart from the net changes made by the write path, and the
// sync job applies them first. The first repair queued for a pair in a slice
// wins.
type BucketSink struct {
	remote   Remote
	interval time.Duration
	clock    timer.Timer
}

func NewBucketSink(remote Remote, interval time.Duration, clock timer.Timer) *BucketSink {
	if interval <= 0 {
		interval = defaultSliceInterval
	}
	if clock == nil {
		clock = timer.Std{}
	}
	return &BucketSink{remote: remote, interval: interval, clock: clock}
}

func (s *BucketSink) Emit(ctx context.Context, event model.LikeEvent) error {
	key := RepairKey(SliceStart(s.clock.Now(), s.interval))
	if _, err := s.remote.HSetNX(ctx, key, event.Pair().String(), int(event.Kind)); err != nil {
		return errors.Wrapf(err, "write %s", key)
	}
	return nil
}

func decodeEvent(data []byte) (model.LikeEvent, error) {
	var event model.LikeEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return model.LikeEvent{}, err
	}
	return event, nil
}
