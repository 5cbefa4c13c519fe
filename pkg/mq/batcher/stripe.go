package batcher

// stripe is a single buffer owned by whichever goroutine took it from the pool.
type stripe[T any] struct {
	cons    Consumer[T]
	onError func(error)
	data    []T
	cap     int
}

func newStripe[T any](cons Consumer[T], cfg Config) *stripe[T] {
	return &stripe[T]{
		cons:    cons,
		onError: cfg.OnError,
		data:    make([]T, 0, cfg.StripeSize),
		cap:     cfg.StripeSize,
	}
}

// Push appends item and flushes once the stripe is full.
// The consumer owns the flushed slice; the stripe starts over with a fresh one.
func (s *stripe[T]) Push(item T) {
	s.data = append(s.data, item)
	if len(s.data) < s.cap {
		return
	}

	if err := s.cons.Consume(s.data); err != nil && s.onError != nil {
		s.onError(err)
	}
	s.data = make([]T, 0, s.cap)
}
