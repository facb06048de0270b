package memory

import (
	"context"
	"sync"

	"trivia-room-service/internal/app"
	"trivia-room-service/internal/domain"
)

// DefaultBufferSize is the per-subscriber event buffer.
const DefaultBufferSize = 16

// Bus is an in-process app.EventBus. Each subscriber gets a bounded buffer;
// when it is full the oldest pending event is dropped so a slow consumer
// never blocks a publisher.
type Bus struct {
	mu          sync.RWMutex
	buffer      int
	closed      bool
	subscribers map[string]map[chan domain.Event]struct{}
}

func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	return &Bus{
		buffer:      buffer,
		subscribers: make(map[string]map[chan domain.Event]struct{}),
	}
}

var _ app.EventBus = (*Bus)(nil)

func (b *Bus) Publish(_ context.Context, event domain.Event) error {
	// Publishing holds the write lock so concurrent publishers cannot
	// interleave the drop-and-resend below on the same channel.
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return domain.ErrBusClosed
	}
	for ch := range b.subscribers[event.RoomID] {
		deliver(ch, event)
	}
	return nil
}

// Deliver fans an event received from another transport out to local
// subscribers. The redis and nats buses use it on their receive side.
func (b *Bus) Deliver(event domain.Event) {
	_ = b.Publish(context.Background(), event)
}

func deliver(ch chan domain.Event, event domain.Event) {
	select {
	case ch <- event:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- event
	}
}

func (b *Bus) Subscribe(_ context.Context, roomID string) (<-chan domain.Event, func(), error) {
	ch := make(chan domain.Event, b.buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, nil, domain.ErrBusClosed
	}
	subs, ok := b.subscribers[roomID]
	if !ok {
		subs = make(map[chan domain.Event]struct{})
		b.subscribers[roomID] = subs
	}
	subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if subs, ok := b.subscribers[roomID]; ok {
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}
			if len(subs) == 0 {
				delete(b.subscribers, roomID)
			}
		}
	}
	return ch, cancel, nil
}

// Subscribers reports how many subscriptions a room has.
func (b *Bus) Subscribers(roomID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[roomID])
}

// Close ends every subscription.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for roomID, subs := range b.subscribers {
		for ch := range subs {
			close(ch)
		}
		delete(b.subscribers, roomID)
	}
	return nil
}
