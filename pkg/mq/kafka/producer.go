package kafka

import (
	"context"
	"errors"
	"sync"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/huynhanx03/go-thumb/pkg/logger"
	"github.com/huynhanx03/go-thumb/pkg/settings"
)

var ErrProducerClosed = errors.New("kafka: producer closed")

// Producer enqueues messages on a sarama AsyncProducer. Send returns once the
// message is accepted for delivery; delivery failures arrive later on the error
// callback.
type Producer struct {
	producer sarama.AsyncProducer
	logger   *zap.Logger
	onError  func(*sarama.ProducerError)

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

type ProducerOption func(*Producer)

// WithErrorHandler registers fn for asynchronous delivery failures.
func WithErrorHandler(fn func(*sarama.ProducerError)) ProducerOption {
	return func(p *Producer) { p.onError = fn }
}

func WithLogger(l *zap.Logger) ProducerOption {
	return func(p *Producer) { p.logger = l }
}

// NewProducer connects an async producer to cfg.Brokers.
func NewProducer(cfg settings.Kafka, opts ...ProducerOption) (*Producer, error) {
	config, err := ToSaramaConfig(cfg)
	if err != nil {
		return nil, err
	}
	ap, err := sarama.NewAsyncProducer(cfg.Brokers, config)
	if err != nil {
		return nil, err
	}
	return NewProducerFrom(ap, opts...), nil
}

// NewProducerFrom wraps ap. ap must be configured with Producer.Return.Errors.
func NewProducerFrom(ap sarama.AsyncProducer, opts ...ProducerOption) *Producer {
	p := &Producer{
		producer: ap,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logger.OrNop(p.logger)

	go p.drainErrors()
	return p
}

func (p *Producer) drainErrors() {
	defer close(p.done)
	for perr := range p.producer.Errors() {
		p.logger.Error("kafka async producer error",
			zap.String("topic", perr.Msg.Topic),
			zap.Error(perr.Err),
		)
		if p.onError != nil {
			p.onError(perr)
		}
	}
}

// Send enqueues one message. It fails only when the message could not be handed to
// the producer: the producer is closed or ctx ended first.
func (p *Producer) Send(ctx context.Context, topic string, key, value []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrProducerClosed
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.ByteEncoder(key),
		Value: sarama.ByteEncoder(value),
	}
	select {
	case p.producer.Input() <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes buffered messages and waits until every pending error is handled.
func (p *Producer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.producer.AsyncClose()
	<-p.done
	return nil
}
