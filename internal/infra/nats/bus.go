// Package nats carries room events over core NATS subjects.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"trivia-room-service/internal/app"
	"trivia-room-service/internal/domain"
	"trivia-room-service/internal/infra/memory"
)

const DefaultSubjectPrefix = "trivia"

// Config holds connection settings for the NATS bus.
type Config struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
	Buffer        int
}

// DefaultConfig returns the settings used when only a URL is configured.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		SubjectPrefix: DefaultSubjectPrefix,
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
		Buffer:        memory.DefaultBufferSize,
	}
}

// Connect dials NATS with reconnect handling that logs connection changes.
func Connect(config Config) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("trivia-room-service"),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// Bus publishes each room's events on {prefix}.room.{roomID}. One NATS
// subscription per room is shared by all local subscribers.
type Bus struct {
	nc     *nats.Conn
	prefix string
	local  *memory.Bus

	mu    sync.Mutex
	rooms map[string]*roomSubscription
}

type roomSubscription struct {
	sub  *nats.Subscription
	refs int
}

func NewBus(nc *nats.Conn, prefix string, buffer int) *Bus {
	prefix = strings.Trim(prefix, ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Bus{
		nc:     nc,
		prefix: prefix,
		local:  memory.NewBus(buffer),
		rooms:  make(map[string]*roomSubscription),
	}
}

var _ app.EventBus = (*Bus)(nil)

// Subject returns the subject a room's events travel on.
func (b *Bus) Subject(roomID string) string {
	return b.prefix + ".room." + roomID
}

func (b *Bus) Publish(_ context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := b.nc.Publish(b.Subject(event.RoomID), payload); err != nil {
		return fmt.Errorf("publish %s: %v: %w", event.RoomID, err, domain.ErrTransient)
	}
	return nil
}

func (b *Bus) Subscribe(ctx context.Context, roomID string) (<-chan domain.Event, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	room, ok := b.rooms[roomID]
	if !ok {
		sub, err := b.nc.Subscribe(b.Subject(roomID), func(msg *nats.Msg) {
			var event domain.Event
			if err := json.Unmarshal(msg.Data, &event); err != nil {
				log.Warn().Err(err).Str("subject", msg.Subject).Msg("decode room event")
				return
			}
			b.local.Deliver(event)
		})
		if err != nil {
			return nil, nil, fmt.Errorf("subscribe %s: %v: %w", roomID, err, domain.ErrTransient)
		}
		// Make sure the server registered the interest before returning.
		if err := b.nc.FlushWithContext(ctx); err != nil {
			_ = sub.Unsubscribe()
			return nil, nil, fmt.Errorf("flush subscription %s: %v: %w", roomID, err, domain.ErrTransient)
		}
		room = &roomSubscription{sub: sub}
		b.rooms[roomID] = room
	}

	events, cancelLocal, err := b.local.Subscribe(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	room.refs++

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			cancelLocal()
			b.release(roomID, room)
		})
	}
	return events, cancel, nil
}

func (b *Bus) release(roomID string, room *roomSubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	room.refs--
	if room.refs > 0 {
		return
	}
	if b.rooms[roomID] == room {
		delete(b.rooms, roomID)
	}
	if err := room.sub.Unsubscribe(); err != nil {
		log.Debug().Err(err).Str("room_id", roomID).Msg("unsubscribe room")
	}
}

// Close drains subscriptions and ends local streams. The connection is left
// to its owner.
func (b *Bus) Close() error {
	b.mu.Lock()
	for roomID, room := range b.rooms {
		_ = room.sub.Unsubscribe()
		delete(b.rooms, roomID)
	}
	b.mu.Unlock()
	return b.local.Close()
}
