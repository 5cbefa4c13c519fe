package kafka

import (
	"context"
	"errors"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/huynhanx03/go-thumb/pkg/logger"
	"github.com/huynhanx03/go-thumb/pkg/settings"
)

// Group runs a sarama consumer group member until its context ends.
type Group struct {
	group   sarama.ConsumerGroup
	topics  []string
	handler sarama.ConsumerGroupHandler
	logger  *zap.Logger
}

func NewGroup(cfg settings.Kafka, groupID string, topics []string, handler sarama.ConsumerGroupHandler, l *zap.Logger) (*Group, error) {
	config, err := ToSaramaConfig(cfg)
	if err != nil {
		return nil, err
	}
	cg, err := sarama.NewConsumerGroup(cfg.Brokers, groupID, config)
	if err != nil {
		return nil, err
	}
	return NewGroupFrom(cg, topics, handler, l), nil
}

func NewGroupFrom(cg sarama.ConsumerGroup, topics []string, handler sarama.ConsumerGroupHandler, l *zap.Logger) *Group {
	return &Group{group: cg, topics: topics, handler: handler, logger: logger.OrNop(l)}
}

// Run consumes until ctx is done. Consume returns on every rebalance, so it is
// called in a loop.
func (g *Group) Run(ctx context.Context) error {
	go func() {
		for err := range g.group.Errors() {
			g.logger.Error("kafka consumer group error", zap.Strings("topics", g.topics), zap.Error(err))
		}
	}()

	for {
		if err := g.group.Consume(ctx, g.topics, g.handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (g *Group) Close() error {
	return g.group.Close()
}
