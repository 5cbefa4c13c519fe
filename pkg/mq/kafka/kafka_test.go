package kafka

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huynhanx03/go-thumb/pkg/settings"
)

// ==========================================
// Config
// ==========================================

func TestToSaramaConfig(t *testing.T) {
	cfg, err := ToSaramaConfig(settings.Kafka{
		ClientID:          "thumb",
		Version:           "3.6.0",
		FlushFrequency:    50,
		FlushBytes:        1024,
		MaxMessageBytes:   2048,
		Timeout:           3,
		MaxRetries:        7,
		RetryBackoff:      200,
		MaxProcessingTime: 500,
	})
	require.NoError(t, err)

	assert.Equal(t, "thumb", cfg.ClientID)
	assert.Equal(t, sarama.V3_6_0_0, cfg.Version)
	assert.True(t, cfg.Producer.Return.Errors)
	assert.False(t, cfg.Producer.Return.Successes)
	assert.Equal(t, sarama.WaitForAll, cfg.Producer.RequiredAcks)
	assert.Equal(t, 50*time.Millisecond, cfg.Producer.Flush.Frequency)
	assert.Equal(t, 1024, cfg.Producer.Flush.Bytes)
	assert.Equal(t, 2048, cfg.Producer.MaxMessageBytes)
	assert.Equal(t, 3*time.Second, cfg.Net.DialTimeout)
	assert.Equal(t, 7, cfg.Producer.Retry.Max)
	assert.Equal(t, 200*time.Millisecond, cfg.Producer.Retry.Backoff)
	assert.Equal(t, sarama.OffsetOldest, cfg.Consumer.Offsets.Initial)
	assert.Equal(t, 500*time.Millisecond, cfg.Consumer.MaxProcessingTime)
}

func TestToSaramaConfig_Defaults(t *testing.T) {
	cfg, err := ToSaramaConfig(settings.Kafka{})
	require.NoError(t, err)
	assert.Equal(t, sarama.NewConfig().Version, cfg.Version)
	assert.True(t, cfg.Consumer.Return.Errors)
}

func TestToSaramaConfig_InvalidVersion(t *testing.T) {
	_, err := ToSaramaConfig(settings.Kafka{Version: "not-a-version"})
	assert.Error(t, err)
}

// ==========================================
// Producer
// ==========================================

func mockConfig() *sarama.Config {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Errors = true
	return cfg
}

func TestProducer_Send(t *testing.T) {
	ap := mocks.NewAsyncProducer(t, mockConfig())
	ap.ExpectInputWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "thumb-topic" {
			return errors.New("unexpected topic " + msg.Topic)
		}
		key, _ := msg.Key.Encode()
		if string(key) != "1:2" {
			return errors.New("unexpected key " + string(key))
		}
		return nil
	})

	p := NewProducerFrom(ap)
	require.NoError(t, p.Send(context.Background(), "thumb-topic", []byte("1:2"), []byte(`{}`)))
	require.NoError(t, p.Close())
}

func TestProducer_DeliveryFailureReported(t *testing.T) {
	ap := mocks.NewAsyncProducer(t, mockConfig())
	ap.ExpectInputAndFail(sarama.ErrOutOfBrokers)

	var mu sync.Mutex
	var got []error
	p := NewProducerFrom(ap, WithErrorHandler(func(perr *sarama.ProducerError) {
		mu.Lock()
		got = append(got, perr.Err)
		mu.Unlock()
	}))

	require.NoError(t, p.Send(context.Background(), "thumb-topic", nil, []byte("x")))
	require.NoError(t, p.Close())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.ErrorIs(t, got[0], sarama.ErrOutOfBrokers)
}

func TestProducer_SendAfterClose(t *testing.T) {
	p := NewProducerFrom(mocks.NewAsyncProducer(t, mockConfig()))
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	err := p.Send(context.Background(), "thumb-topic", nil, nil)
	assert.ErrorIs(t, err, ErrProducerClosed)
}

// blockedProducer never reads its input.
type blockedProducer struct {
	sarama.AsyncProducer
	input  chan *sarama.ProducerMessage
	errors chan *sarama.ProducerError
}

func (b *blockedProducer) Input() chan<- *sarama.ProducerMessage { return b.input }
func (b *blockedProducer) Errors() <-chan *sarama.ProducerError  { return b.errors }
func (b *blockedProducer) AsyncClose()                            { close(b.errors) }

func TestProducer_SendHonoursContext(t *testing.T) {
	bp := &blockedProducer{
		input:  make(chan *sarama.ProducerMessage),
		errors: make(chan *sarama.ProducerError),
	}
	p := NewProducerFrom(bp)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Send(ctx, "thumb-topic", nil, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// ==========================================
// Group
// ==========================================

type fakeGroup struct {
	sarama.ConsumerGroup
	calls  atomic.Int32
	errs   chan error
	result func(call int32) error
}

func newFakeGroup(result func(call int32) error) *fakeGroup {
	g := &fakeGroup{errs: make(chan error), result: result}
	return g
}

func (g *fakeGroup) Consume(ctx context.Context, _ []string, _ sarama.ConsumerGroupHandler) error {
	return g.result(g.calls.Add(1))
}

func (g *fakeGroup) Errors() <-chan error { return g.errs }

func (g *fakeGroup) Close() error {
	close(g.errs)
	return nil
}

func TestGroup_RunLoopsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	g := newFakeGroup(func(call int32) error {
		if call == 3 {
			cancel()
		}
		return nil
	})

	group := NewGroupFrom(g, []string{"thumb-topic"}, nil, nil)
	require.NoError(t, group.Run(ctx))
	assert.Equal(t, int32(3), g.calls.Load())
	require.NoError(t, group.Close())
}

func TestGroup_RunClosedGroup(t *testing.T) {
	g := newFakeGroup(func(int32) error { return sarama.ErrClosedConsumerGroup })
	group := NewGroupFrom(g, []string{"thumb-topic"}, nil, nil)
	assert.NoError(t, group.Run(context.Background()))
	require.NoError(t, group.Close())
}

func TestGroup_RunError(t *testing.T) {
	boom := errors.New("boom")
	g := newFakeGroup(func(int32) error { return boom })
	group := NewGroupFrom(g, []string{"thumb-topic"}, nil, nil)
	assert.ErrorIs(t, group.Run(context.Background()), boom)
	require.NoError(t, group.Close())
}
