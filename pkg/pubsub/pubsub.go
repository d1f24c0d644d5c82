// Package pubsub implements a minimal publish/subscribe fan-out, used to
// distribute telemetry updates and home state snapshots to interested tasks.
package pubsub

import (
	"log/slog"
	"sync"
)

// A Broker fans out published messages to all subscribed channels. Publish
// blocks until every subscriber has received the message, keeping producers
// and consumers in lock-step.
type Broker[T any] struct {
	subscribers map[chan T]struct{}
	logger      *slog.Logger
	lock        sync.RWMutex
}

func New[T any](logger *slog.Logger) *Broker[T] {
	return &Broker[T]{
		subscribers: make(map[chan T]struct{}),
		logger:      logger,
	}
}

// Subscribe returns a channel on which the broker will publish messages.
func (b *Broker[T]) Subscribe() chan T {
	b.lock.Lock()
	defer b.lock.Unlock()
	ch := make(chan T)
	b.subscribers[ch] = struct{}{}
	b.logger.Debug("subscriber added", slog.Int("subscribers", len(b.subscribers)))
	return ch
}

// Unsubscribe removes the channel from the broker. The caller remains
// responsible for draining any message published before Unsubscribe returned.
func (b *Broker[T]) Unsubscribe(ch chan T) {
	b.lock.Lock()
	defer b.lock.Unlock()
	delete(b.subscribers, ch)
	b.logger.Debug("subscriber removed", slog.Int("subscribers", len(b.subscribers)))
}

// Publish sends msg to all subscribers.
func (b *Broker[T]) Publish(msg T) {
	b.lock.RLock()
	defer b.lock.RUnlock()
	for ch := range b.subscribers {
		ch <- msg
	}
}

// Subscribers returns the number of subscribed channels.
func (b *Broker[T]) Subscribers() int {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return len(b.subscribers)
}
