package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"trivia-room-service/internal/domain"
)

func TestBusRoundTripsEvents(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	bus := NewBus(client, 8)
	defer bus.Close()
	ctx := context.Background()

	events, cancel, err := bus.Subscribe(ctx, "room-1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()
	other, cancelOther, err := bus.Subscribe(ctx, "room-1")
	if err != nil {
		t.Fatalf("second subscribe: %v", err)
	}
	defer cancelOther()

	at := time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)
	p := domain.Participant{ID: "p1", RoomID: "room-1", Name: "Ana", Score: 833}
	if err := bus.Publish(ctx, domain.ParticipantChanged(p, domain.ReasonAnswered, at)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for _, ch := range []<-chan domain.Event{events, other} {
		select {
		case ev := <-ch:
			if ev.Kind != domain.EventParticipantChanged || ev.Reason != domain.ReasonAnswered {
				t.Fatalf("unexpected event %+v", ev)
			}
			if ev.Participant == nil || ev.Participant.Score != 833 || !ev.At.Equal(at) {
				t.Fatalf("unexpected payload %+v", ev.Participant)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestBusReleasesRoomSubscription(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	bus := NewBus(newClient(mr), 8)
	defer bus.Close()

	_, cancel, err := bus.Subscribe(context.Background(), "room-1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if n := len(mr.PubSubChannels("trivia:room:*")); n != 1 {
		t.Fatalf("expected one redis channel, got %d", n)
	}
	cancel()
	cancel()

	bus.mu.Lock()
	remaining := len(bus.rooms)
	bus.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("expected room subscription released, %d left", remaining)
	}
}

func TestBusSubscribeAfterCloseLeavesNoRoom(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	bus := NewBus(newClient(mr), 8)
	if err := bus.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, _, err := bus.Subscribe(context.Background(), "room-1"); !errors.Is(err, domain.ErrBusClosed) {
		t.Fatalf("expected closed bus error, got %v", err)
	}

	bus.mu.Lock()
	remaining := len(bus.rooms)
	bus.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("expected no room subscription, %d left", remaining)
	}
	if n := len(mr.PubSubChannels("trivia:room:*")); n != 0 {
		t.Fatalf("expected no redis channel, got %d", n)
	}
}

func TestBusSubscribeFailureIsTransient(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	bus := NewBus(newClient(mr), 8)
	defer bus.Close()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, _, err := bus.Subscribe(ctx, "room-1"); !errors.Is(err, domain.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}

	bus.mu.Lock()
	remaining := len(bus.rooms)
	bus.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("expected failed room subscription dropped, %d left", remaining)
	}
}

func TestBusConcurrentSubscribesShareRoom(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	bus := NewBus(newClient(mr), 8)
	defer bus.Close()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		cancels []func()
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, cancel, err := bus.Subscribe(ctx, fmt.Sprintf("room-%d", i%2))
			if err != nil {
				t.Errorf("subscribe %d: %v", i, err)
				return
			}
			mu.Lock()
			cancels = append(cancels, cancel)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	if n := len(mr.PubSubChannels("trivia:room:*")); n != 2 {
		t.Fatalf("expected two redis channels, got %d", n)
	}
	bus.mu.Lock()
	refs := 0
	for _, sub := range bus.rooms {
		refs += sub.refs
	}
	bus.mu.Unlock()
	if refs != 8 {
		t.Fatalf("expected 8 references, got %d", refs)
	}

	for _, cancel := range cancels {
		cancel()
	}
	bus.mu.Lock()
	remaining := len(bus.rooms)
	bus.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("expected all room subscriptions released, %d left", remaining)
	}
}
