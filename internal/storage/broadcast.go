package storage

import (
	"context"
	"sync"
)

// Broadcaster fans out change notifications to subscribers. Publish never
// blocks: a subscriber that has not consumed the previous notification gets
// it replaced by the latest one.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[chan AccumulatedMap]struct{}
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan AccumulatedMap]struct{})}
}

// Subscribe registers a subscriber until ctx is done, then closes the channel.
func (b *Broadcaster) Subscribe(ctx context.Context) <-chan AccumulatedMap {
	ch := make(chan AccumulatedMap, 1)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}()

	return ch
}

// Publish sends a copy of data to every subscriber.
func (b *Broadcaster) Publish(data AccumulatedMap) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs {
		value := data.Clone()
		select {
		case ch <- value:
			continue
		default:
		}
		// Drop the stale notification so the latest one wins.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- value:
		default:
		}
	}
}

// Close closes every subscriber channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}
