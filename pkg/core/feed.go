package core

import (
	"context"
	"sync"
)

// Feed is a live, latest-value notification channel.
//
// A Feed always holds at most one undelivered value: when its consumer falls
// behind, newer values replace older ones instead of queueing. A consumer
// never blocks the producer.
type Feed[T any] struct {
	mu        sync.Mutex
	value     T
	version   uint64
	delivered uint64
	pending   bool
	final     bool
	closed    bool
	notify    chan struct{}
	done      chan struct{}
	clone     func(T) T
	detach    func()
	closeOnce sync.Once
}

func newFeed[T any](version uint64, initial T, clone func(T) T) *Feed[T] {
	return &Feed[T]{
		value:   initial,
		version: version,
		pending: true,
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
		clone:   clone,
	}
}

// offer replaces the pending value when version is newer than the current one.
// A final value ends the feed once it has been delivered.
func (f *Feed[T]) offer(version uint64, v T, final bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed || f.final || version <= f.version {
		return false
	}
	f.value = v
	f.version = version
	f.pending = true
	f.final = final

	select {
	case f.notify <- struct{}{}:
	default:
	}
	return true
}

// TryNext returns the pending value without blocking.
// ok is false when nothing newer than the last delivered value is available.
func (f *Feed[T]) TryNext() (v T, ok bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return v, false, ErrFeedClosed
	}
	if !f.pending {
		if f.final {
			return v, false, ErrFeedClosed
		}
		return v, false, nil
	}
	f.pending = false
	f.delivered = f.version
	if f.clone != nil {
		return f.clone(f.value), true, nil
	}
	return f.value, true, nil
}

// Next blocks until a value newer than the last delivered one is available,
// the feed is closed, or ctx is done.
func (f *Feed[T]) Next(ctx context.Context) (T, error) {
	for {
		v, ok, err := f.TryNext()
		if err != nil || ok {
			return v, err
		}
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-f.done:
		case <-f.notify:
		}
	}
}

// Done is closed when the feed is unsubscribed.
func (f *Feed[T]) Done() <-chan struct{} {
	return f.done
}

// Version returns the store version of the most recent value accepted by the feed.
func (f *Feed[T]) Version() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.version
}

// Delivered returns the store version of the value last returned by Next or
// TryNext. Unlike Version it never runs ahead of what the consumer holds.
func (f *Feed[T]) Delivered() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.delivered
}

// Close unsubscribes the feed. After Close returns no further values are
// delivered. Close is idempotent.
func (f *Feed[T]) Close() {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closed = true
		f.pending = false
		detach := f.detach
		f.mu.Unlock()

		close(f.done)
		if detach != nil {
			detach()
		}
	})
}
