package thumb

import (
	"context"
	"slices"
	"time"

	"github.com/IBM/sarama"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/huynhanx03/go-thumb/internal/model"
	"github.com/huynhanx03/go-thumb/pkg/database/sqldb"
	"github.com/huynhanx03/go-thumb/pkg/metrics"
)

var (
	_ sarama.ConsumerGroupHandler = (*Consumer)(nil)
	_ sarama.ConsumerGroupHandler = (*DeadLetterHandler)(nil)
)

// Consumer applies like events from the broker to the durable store in batches.
//
// Events are grouped by pair and the latest event of each pair decides whether the
// relation is inserted or deleted. A batch that still fails after the retries is sent
// to the dead-letter topic, as is every message that cannot be decoded.
type Consumer struct {
	cfg   Config
	store LikeStore
	dlq   Sender

	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewConsumer(cfg Config, store LikeStore, dlq Sender, opts ...Option) *Consumer {
	d := newDeps(opts)
	return &Consumer{
		cfg:     cfg.withDefaults(),
		store:   store,
		dlq:     dlq,
		metrics: d.metrics,
		logger:  d.logger,
	}
}

func (c *Consumer) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim buffers messages and flushes them when the batch is full or the batch
// interval elapses. Messages still buffered when the session ends are redelivered.
func (c *Consumer) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ticker := time.NewTicker(c.cfg.ConsumerBatchWait)
	defer ticker.Stop()

	pending := make([]*sarama.ConsumerMessage, 0, c.cfg.ConsumerBatchSize)
	flush := func() error {
		err := c.flush(sess, pending)
		pending = make([]*sarama.ConsumerMessage, 0, c.cfg.ConsumerBatchSize)
		return err
	}

	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return flush()
			}
			pending = append(pending, msg)
			if len(pending) >= c.cfg.ConsumerBatchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		case <-ticker.C:
			if err := flush(); err != nil {
				return err
			}
		case <-sess.Context().Done():
			return nil
		}
	}
}

func (c *Consumer) flush(sess sarama.ConsumerGroupSession, msgs []*sarama.ConsumerMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	ctx := sess.Context()

	events := make([]model.LikeEvent, 0, len(msgs))
	decoded := make([]*sarama.ConsumerMessage, 0, len(msgs))
	for _, msg := range msgs {
		event, err := decodeEvent(msg.Value)
		if err != nil {
			c.logger.Warn("undecodable like event", zap.String("topic", msg.Topic),
				zap.Int32("partition", msg.Partition), zap.Int64("offset", msg.Offset), zap.Error(err))
			if err := c.deadLetter(ctx, msg); err != nil {
				return err
			}
			continue
		}
		events = append(events, event)
		decoded = append(decoded, msg)
	}

	if len(events) > 0 {
		err := c.consumeWithRetry(ctx, events)
		switch {
		case err == nil:
			c.metrics.ConsumerBatches.WithLabelValues("ok").Inc()
		case ctx.Err() != nil:
			return nil
		default:
			c.metrics.ConsumerBatches.WithLabelValues("dead_lettered").Inc()
			c.logger.Error("like batch failed, sending to dead-letter topic",
				zap.Int("events", len(events)), zap.Error(err))
			for _, msg := range decoded {
				if err := c.deadLetter(ctx, msg); err != nil {
					return err
				}
			}
		}
	}

	for _, msg := range msgs {
		sess.MarkMessage(msg, "")
	}
	return nil
}

// consumeWithRetry retries transient failures with exponential backoff.
func (c *Consumer) consumeWithRetry(ctx context.Context, events []model.LikeEvent) error {
	for attempt := 0; ; attempt++ {
		err := c.Consume(ctx, events)
		if err == nil || attempt >= c.cfg.MaxRetries || !sqldb.IsTransient(errors.Cause(err)) {
			return err
		}
		c.logger.Warn("retrying like batch", zap.Int("attempt", attempt+1), zap.Error(err))
		select {
		case <-time.After(retryDelay(c.cfg.RetryBackoff, attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// retryDelay doubles base per attempt, capped at maxRetryBackoff.
func retryDelay(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 0; i < attempt && d < maxRetryBackoff; i++ {
		d *= 2
	}
	return min(d, maxRetryBackoff)
}

func (c *Consumer) deadLetter(ctx context.Context, msg *sarama.ConsumerMessage) error {
	if err := c.dlq.Send(ctx, c.cfg.DeadLetterTopic, msg.Key, msg.Value); err != nil {
		return errors.Wrap(err, "send to dead-letter topic")
	}
	c.metrics.DeadLetters.Inc()
	return nil
}

// Consume collapses events per pair and applies them in one transaction.
func (c *Consumer) Consume(ctx context.Context, events []model.LikeEvent) error {
	batch := c.collapse(events)
	if batch.Empty() {
		return nil
	}

	began := time.Now()
	_, err := c.store.ApplyBatch(ctx, batch)
	c.metrics.BatchApplyDuration.WithLabelValues("broker").Observe(time.Since(began).Seconds())
	if err != nil {
		return errors.Wrap(err, "apply like batch")
	}
	c.metrics.SyncedRows.WithLabelValues("insert").Add(float64(len(batch.Inserts)))
	c.metrics.SyncedRows.WithLabelValues("delete").Add(float64(len(batch.Deletes)))
	return nil
}

func (c *Consumer) collapse(events []model.LikeEvent) model.Batch {
	groups := make(map[model.Pair][]model.LikeEvent)
	order := make([]model.Pair, 0, len(events))
	for _, event := range events {
		if event.Kind != model.KindAdd && event.Kind != model.KindRemove {
			c.logger.Warn("skipping like event without effect", zap.String("event_id", event.EventID))
			continue
		}
		pair := event.Pair()
		if _, ok := groups[pair]; !ok {
			order = append(order, pair)
		}
		groups[pair] = append(groups[pair], event)
	}

	var batch model.Batch
	for _, pair := range order {
		group := groups[pair]
		slices.SortStableFunc(group, func(a, b model.LikeEvent) int {
			return a.Timestamp.Compare(b.Timestamp)
		})

		var net int
		for _, event := range group {
			net += int(event.Kind)
		}
		last := group[len(group)-1]
		if net < -1 || net > 1 {
			c.logger.Warn("like events do not alternate", zap.Stringer("pair", pair),
				zap.Int("events", len(group)), zap.Int("net", net), zap.Stringer("last", last.Kind))
		}
		batch.Add(pair, last.Kind)
	}
	return batch
}

// DeadLetterHandler logs dead-lettered messages for manual triage and commits them.
type DeadLetterHandler struct {
	logger *zap.Logger
}

func NewDeadLetterHandler(opts ...Option) *DeadLetterHandler {
	return &DeadLetterHandler{logger: newDeps(opts).logger}
}

func (h *DeadLetterHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *DeadLetterHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *DeadLetterHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			h.logger.Error("dead-lettered like event",
				zap.Int32("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.ByteString("key", msg.Key),
				zap.ByteString("value", msg.Value),
			)
			sess.MarkMessage(msg, "")
		case <-sess.Context().Done():
			return nil
		}
	}
}
