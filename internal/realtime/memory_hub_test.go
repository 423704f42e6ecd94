package realtime

import (
	"testing"
	"time"
)

func TestHubDeliversToOwnRoomOnly(t *testing.T) {
	hub := NewHub()
	aliceCh, cancelAlice := hub.Subscribe("u-alice")
	defer cancelAlice()
	bobCh, cancelBob := hub.Subscribe("u-bob")
	defer cancelBob()

	hub.Publish("u-alice", Event{Name: "new_message", Data: "hi"})

	select {
	case ev := <-aliceCh:
		if ev.Name != "new_message" || ev.Data != "hi" {
			t.Fatalf("bad event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("alice never received the event")
	}

	select {
	case ev := <-bobCh:
		t.Fatalf("bob received someone else's event: %+v", ev)
	default:
	}
}

func TestHubFanOutToMultipleConnections(t *testing.T) {
	hub := NewHub()
	ch1, cancel1 := hub.Subscribe("u-alice")
	defer cancel1()
	ch2, cancel2 := hub.Subscribe("u-alice")
	defer cancel2()

	hub.Publish("u-alice", Event{Name: "new_message"})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatalf("connection %d missed the event", i)
		}
	}
}

func TestHubPublishToAbsentUserIsNoOp(t *testing.T) {
	hub := NewHub()
	// Must not block or panic.
	hub.Publish("u-nobody", Event{Name: "new_message"})
}

func TestHubCancelStopsDeliveryAndIsIdempotent(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("u-alice")
	cancel()
	cancel() // second cancel must be safe

	hub.Publish("u-alice", Event{Name: "new_message"})

	if _, ok := <-ch; ok {
		t.Fatal("received on cancelled subscription")
	}
}

func TestHubDropsWhenSubscriberStalls(t *testing.T) {
	hub := NewHub()
	_, cancel := hub.Subscribe("u-alice")
	defer cancel()

	// Overflow the buffer; Publish must never block the sender.
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			hub.Publish("u-alice", Event{Name: "new_message"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}
