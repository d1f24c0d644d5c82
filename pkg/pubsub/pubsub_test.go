package pubsub

import (
	"github.com/stretchr/testify/assert"
	"log/slog"
	"sync"
	"testing"
	"time"
)

const (
	waitTime      = time.Second
	checkInterval = 10 * time.Millisecond
)

func TestBroker(t *testing.T) {
	b := New[int](slog.Default())

	const subscribers = 4
	var wg sync.WaitGroup
	wg.Add(subscribers)
	for range subscribers {
		ch := b.Subscribe()
		go func(ch chan int) {
			defer wg.Done()
			assert.Equal(t, 42, <-ch)
			b.Unsubscribe(ch)
		}(ch)
	}

	assert.Equal(t, subscribers, b.Subscribers())
	b.Publish(42)
	wg.Wait()

	assert.Eventually(t, func() bool { return b.Subscribers() == 0 }, waitTime, checkInterval)
}
