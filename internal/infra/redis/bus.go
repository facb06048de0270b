package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"trivia-room-service/internal/app"
	"trivia-room-service/internal/domain"
	"trivia-room-service/internal/infra/memory"
)

// Bus carries room events over Redis pub/sub so every replica sees every
// mutation. Each room holds one Redis subscription per process; local
// subscribers are fanned out through a memory.Bus.
type Bus struct {
	client *redis.Client
	local  *memory.Bus

	mu    sync.Mutex
	rooms map[string]*roomSubscription
}

type roomSubscription struct {
	pubsub *redis.PubSub
	refs   int
	// ready is closed once the Redis subscription is confirmed or failed.
	ready chan struct{}
	err   error
	done  chan struct{}
}

func NewBus(client *redis.Client, buffer int) *Bus {
	return &Bus{
		client: client,
		local:  memory.NewBus(buffer),
		rooms:  make(map[string]*roomSubscription),
	}
}

var _ app.EventBus = (*Bus)(nil)

func (b *Bus) Publish(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := b.client.Publish(ctx, roomChannel(event.RoomID), payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %v: %w", event.RoomID, err, domain.ErrTransient)
	}
	return nil
}

// Subscribe registers the local subscriber first, then joins the room's
// Redis channel, so nothing published after Subscribe returns is missed.
func (b *Bus) Subscribe(ctx context.Context, roomID string) (<-chan domain.Event, func(), error) {
	events, cancelLocal, err := b.local.Subscribe(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	sub, err := b.acquire(ctx, roomID)
	if err != nil {
		cancelLocal()
		return nil, nil, err
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			cancelLocal()
			b.release(roomID, sub)
		})
	}
	return events, cancel, nil
}

// acquire takes a reference on the room's Redis subscription, creating it
// if needed. The confirmation round-trip runs outside b.mu so rooms do not
// wait on each other.
func (b *Bus) acquire(ctx context.Context, roomID string) (*roomSubscription, error) {
	b.mu.Lock()
	sub, ok := b.rooms[roomID]
	if ok {
		sub.refs++
		b.mu.Unlock()
		<-sub.ready
		if sub.err != nil {
			return nil, sub.err
		}
		return sub, nil
	}
	sub = &roomSubscription{refs: 1, ready: make(chan struct{}), done: make(chan struct{})}
	b.rooms[roomID] = sub
	b.mu.Unlock()

	pubsub := b.client.Subscribe(ctx, roomChannel(roomID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		sub.err = fmt.Errorf("subscribe %s: %v: %w", roomID, err, domain.ErrTransient)
		b.mu.Lock()
		if b.rooms[roomID] == sub {
			delete(b.rooms, roomID)
		}
		b.mu.Unlock()
		close(sub.ready)
		return nil, sub.err
	}
	sub.pubsub = pubsub
	go b.forward(roomID, sub)
	close(sub.ready)
	return sub, nil
}

func (b *Bus) forward(roomID string, sub *roomSubscription) {
	defer close(sub.done)
	for msg := range sub.pubsub.Channel() {
		var event domain.Event
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			log.Warn().Err(err).Str("room_id", roomID).Msg("decode room event")
			continue
		}
		b.local.Deliver(event)
	}
}

func (b *Bus) release(roomID string, sub *roomSubscription) {
	b.mu.Lock()
	sub.refs--
	last := sub.refs == 0
	if last && b.rooms[roomID] == sub {
		delete(b.rooms, roomID)
	}
	b.mu.Unlock()

	if last {
		if err := sub.pubsub.Close(); err != nil {
			log.Debug().Err(err).Str("room_id", roomID).Msg("close room subscription")
		}
		<-sub.done
	}
}

// Close ends every subscription.
func (b *Bus) Close() error {
	b.mu.Lock()
	rooms := b.rooms
	b.rooms = make(map[string]*roomSubscription)
	b.mu.Unlock()

	for _, sub := range rooms {
		<-sub.ready
		if sub.err != nil {
			continue
		}
		_ = sub.pubsub.Close()
		<-sub.done
	}
	return b.local.Close()
}

func roomChannel(roomID string) string {
	return "trivia:room:" + roomID
}
