package batcher

// Consumer processes one flushed batch.
type Consumer[T any] interface {
	Consume(batch []T) error
}

// ConsumerFunc adapts a plain function to Consumer.
type ConsumerFunc[T any] func(batch []T) error

func (f ConsumerFunc[T]) Consume(batch []T) error {
	return f(batch)
}

// Config holds configuration for the StripedBatcher.
type Config struct {
	// StripeSize is the number of items a stripe buffers before it is flushed.
	StripeSize int

	// OnError receives errors returned by the Consumer. Errors are dropped when nil.
	OnError func(error)
}
