package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"trivia-room-service/internal/domain"
)

// publish never fails the caller: the mutation is already committed and
// subscribers recover by refetching State.
func (s *RoomService) publish(ctx context.Context, event domain.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Str("room_id", event.RoomID).Str("kind", string(event.Kind)).Msg("publish event")
	}
}

// Subscribe returns the room's event stream. The caller must invoke the
// returned cancel function to avoid leaks.
func (s *RoomService) Subscribe(ctx context.Context, roomID string) (<-chan domain.Event, func(), error) {
	if _, err := s.store.RoomByID(ctx, roomID); err != nil {
		return nil, nil, err
	}
	if s.bus == nil {
		return nil, nil, domain.ErrBusClosed
	}
	return s.bus.Subscribe(ctx, roomID)
}

// Watch dispatches a room's events to typed callbacks until the returned
// cancel function is called or ctx ends. Callbacks run on one goroutine, in
// delivery order. Either callback may be nil.
func (s *RoomService) Watch(ctx context.Context, roomID string, onRoom func(domain.Room), onParticipant func(domain.Participant)) (func(), error) {
	ctx, stop := context.WithCancel(ctx)
	events, cancel, err := s.Subscribe(ctx, roomID)
	if err != nil {
		stop()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				dispatch(event, onRoom, onParticipant)
			}
		}
	}()

	return func() {
		stop()
		cancel()
		<-done
	}, nil
}

func dispatch(event domain.Event, onRoom func(domain.Room), onParticipant func(domain.Participant)) {
	switch event.Kind {
	case domain.EventRoomChanged:
		if onRoom != nil && event.Room != nil {
			onRoom(*event.Room)
		}
	case domain.EventParticipantChanged:
		if onParticipant != nil && event.Participant != nil {
			onParticipant(*event.Participant)
		}
	default:
		log.Debug().Str("kind", string(event.Kind)).Msg("unknown event kind")
	}
}
