package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"trivia-room-service/internal/domain"
)

func roomEvent(id string, index int) domain.Event {
	return domain.RoomChanged(domain.Room{ID: id, CurrentQuestionIndex: index}, domain.ReasonAdvanced, time.Time{})
}

func TestBusDeliversOnlyToRoomSubscribers(t *testing.T) {
	bus := NewBus(4)
	ctx := context.Background()

	ch1, cancel1, err := bus.Subscribe(ctx, "r1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel1()
	ch2, cancel2, _ := bus.Subscribe(ctx, "r2")
	defer cancel2()

	if err := bus.Publish(ctx, roomEvent("r1", 1)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case ev := <-ch1:
		if ev.Room.CurrentQuestionIndex != 1 {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	select {
	case ev := <-ch2:
		t.Fatalf("r2 should not receive r1 events, got %+v", ev)
	default:
	}
}

func TestBusDropsOldestForSlowSubscriber(t *testing.T) {
	bus := NewBus(2)
	ctx := context.Background()
	ch, cancel, _ := bus.Subscribe(ctx, "r1")
	defer cancel()

	for i := 1; i <= 5; i++ {
		if err := bus.Publish(ctx, roomEvent("r1", i)); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}

	first := <-ch
	second := <-ch
	if first.Room.CurrentQuestionIndex != 4 || second.Room.CurrentQuestionIndex != 5 {
		t.Fatalf("expected latest events 4 and 5, got %d and %d",
			first.Room.CurrentQuestionIndex, second.Room.CurrentQuestionIndex)
	}
}

func TestBusCancelClosesChannel(t *testing.T) {
	bus := NewBus(1)
	ch, cancel, _ := bus.Subscribe(context.Background(), "r1")
	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel")
	}
	if n := bus.Subscribers("r1"); n != 0 {
		t.Fatalf("expected no subscribers, got %d", n)
	}
}

func TestBusClose(t *testing.T) {
	bus := NewBus(1)
	ctx := context.Background()
	ch, _, _ := bus.Subscribe(ctx, "r1")
	if err := bus.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel")
	}
	if err := bus.Publish(ctx, roomEvent("r1", 0)); !errors.Is(err, domain.ErrTransient) {
		t.Fatalf("expected transient error after close, got %v", err)
	}
	if _, _, err := bus.Subscribe(ctx, "r1"); !errors.Is(err, domain.ErrBusClosed) {
		t.Fatalf("expected bus closed, got %v", err)
	}
}
