// internal/events/memory_bus.go
package events

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

const subscriberBuffer = 16

// MemoryBus fans notifications out to in-process subscribers.
type MemoryBus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[uuid.UUID]map[int]chan Notification
}

// NewMemoryBus returns an empty bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[uuid.UUID]map[int]chan Notification)}
}

// Publish delivers n to every subscriber of its match. A subscriber with a full buffer misses
// the notification; it already has a pending one that will trigger the same full reload.
func (b *MemoryBus) Publish(_ context.Context, n Notification) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[n.MatchID] {
		select {
		case ch <- n:
		default:
		}
	}
	return nil
}

// Subscribe registers a subscriber for matchID. The channel is closed by cancel or when ctx ends.
func (b *MemoryBus) Subscribe(ctx context.Context, matchID uuid.UUID) (<-chan Notification, func(), error) {
	ch := make(chan Notification, subscriberBuffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.subs[matchID] == nil {
		b.subs[matchID] = make(map[int]chan Notification)
	}
	b.subs[matchID][id] = ch
	b.mu.Unlock()

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			b.mu.Lock()
			delete(b.subs[matchID], id)
			if len(b.subs[matchID]) == 0 {
				delete(b.subs, matchID)
			}
			b.mu.Unlock()
			close(ch)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return ch, cancel, nil
}

// SubscriberCount returns how many subscribers are attached to matchID.
func (b *MemoryBus) SubscriberCount(matchID uuid.UUID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[matchID])
}
