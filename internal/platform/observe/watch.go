package observe

import (
	"context"
	"sync"
)

// QueryFunc loads the full current result set for a subscription.
type QueryFunc[T any] func(ctx context.Context) ([]T, error)

// Subscription is a live, non-terminating sequence of result sets. Receive
// from C; call Unsubscribe when done. C is closed once the subscription has
// fully stopped.
type Subscription[T any] struct {
	C <-chan []T

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Unsubscribe stops the subscription and waits for its goroutine to exit.
// It is safe to call more than once.
func (s *Subscription[T]) Unsubscribe() {
	s.once.Do(s.cancel)
	<-s.done
}

// Done is closed when the subscription has stopped.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

// Watch subscribes to topic on b. The listener is registered before the
// first query runs, so no change between the initial load and the first
// notification is lost. Only the most recent result set is buffered: a slow
// consumer skips intermediate snapshots. A failed query is logged and the
// subscription waits for the next change. Cancelling ctx is equivalent to
// Unsubscribe.
func Watch[T any](ctx context.Context, b *Broker, topic string, query QueryFunc[T]) *Subscription[T] {
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan []T, 1)
	sub := &Subscription[T]{C: out, cancel: cancel, done: make(chan struct{})}

	changes, stop := b.listen(topic)

	go func() {
		defer close(sub.done)
		defer close(out)
		defer stop()

		for {
			items, err := query(ctx)
			switch {
			case ctx.Err() != nil:
				return
			case err != nil:
				b.logger.Error().Err(err).Str("topic", topic).Msg("watch query failed")
			default:
				if items == nil {
					items = []T{}
				}
				// Replace an unread snapshot rather than block on it.
				select {
				case <-out:
				default:
				}
				out <- items
			}

			select {
			case <-ctx.Done():
				return
			case <-changes:
			}
		}
	}()

	return sub
}
