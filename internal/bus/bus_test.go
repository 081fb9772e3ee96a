package bus

import (
	"log/slog"
	"testing"
	"time"

	"github.com/ergolyam/clipbridge/internal/events"
)

func TestPublishReachesSubscriber(t *testing.T) {
	b := New(slog.Default())
	defer b.Close()

	sub := b.Subscribe(events.TopicConnStatus)
	want := events.ConnectionStatus{State: events.ConnectionStateConnected}
	b.Publish(events.TopicConnStatus, want)

	select {
	case msg := <-sub:
		got, ok := msg.(events.ConnectionStatus)
		if !ok {
			t.Fatalf("unexpected payload type %T", msg)
		}
		if got.State != want.State {
			t.Fatalf("state mismatch: got %s want %s", got.State, want.State)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("subscriber did not receive the event")
	}
}

func TestSubscribeMultipleTopics(t *testing.T) {
	b := New(slog.Default())
	defer b.Close()

	sub := b.Subscribe(events.TopicConnStatus, events.TopicSendReport)
	b.Publish(events.TopicSendReport, events.SendReport{OK: true})

	select {
	case msg := <-sub:
		if _, ok := msg.(events.SendReport); !ok {
			t.Fatalf("unexpected payload type %T", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("subscriber did not receive the event")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New(slog.Default())
	defer b.Close()

	sub := b.Subscribe(events.TopicClipboardUpdate)
	b.Unsubscribe(sub)

	b.Publish(events.TopicClipboardUpdate, events.ClipboardUpdate{Text: "dropped"})

	select {
	case msg, ok := <-sub:
		if ok {
			t.Fatalf("expected closed subscription, got payload %T", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("subscription was not closed after unsubscribe")
	}
}
