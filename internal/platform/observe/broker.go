// Package observe turns table mutations into continuous query results.
//
// Writers call Broker.Notify with the name of the table they changed.
// Readers call Watch with a query; every subscriber receives the full
// current result set on subscription and again after each change, until it
// unsubscribes.
package observe

import (
	"sync"

	"github.com/rs/zerolog"
)

// Broker fans change notifications out to the listeners of a topic.
// Topics are table names. All methods are safe for concurrent use.
type Broker struct {
	mu        sync.RWMutex
	listeners map[string]map[chan struct{}]struct{}
	logger    zerolog.Logger
}

func NewBroker(logger zerolog.Logger) *Broker {
	return &Broker{
		listeners: make(map[string]map[chan struct{}]struct{}),
		logger:    logger.With().Str("component", "observe").Logger(),
	}
}

// Notify marks topic as changed. It never blocks: a listener that has a
// notification pending already will re-query and see this change too.
func (b *Broker) Notify(topic string) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.listeners[topic] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// listen registers a coalescing listener on topic and returns it together
// with the function that removes it.
func (b *Broker) listen(topic string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	b.mu.Lock()
	if b.listeners[topic] == nil {
		b.listeners[topic] = make(map[chan struct{}]struct{})
	}
	b.listeners[topic][ch] = struct{}{}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if set, ok := b.listeners[topic]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(b.listeners, topic)
			}
		}
	}
}

// ListenerCount returns the number of active listeners on topic.
func (b *Broker) ListenerCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[topic])
}
