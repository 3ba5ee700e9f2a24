package bus

import (
	"testing"
	"time"

	"github.com/matheus3301/chatsync/internal/chat"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(NamespaceChat, 10)
	defer unsub()

	b.Publish(Inbound(chat.Event{Kind: chat.KindNewMessage, ChatID: "c1"}))

	select {
	case evt := <-ch:
		if evt.Kind != "chat.new-message" {
			t.Errorf("got kind %q, want chat.new-message", evt.Kind)
		}
		payload, ok := evt.Payload.(chat.Event)
		if !ok || payload.ChatID != "c1" {
			t.Errorf("payload = %#v, want chat.Event for c1", evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(NamespaceConn, 10)
	defer unsub()

	b.Publish(Event{Kind: KindSessionOpened})
	b.Publish(Event{Kind: KindConnOnline})

	select {
	case evt := <-ch:
		if evt.Kind != KindConnOnline {
			t.Errorf("got kind %q, want %s", evt.Kind, KindConnOnline)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishPreservesOrder(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(NamespaceChat, 100)
	defer unsub()

	for i := 0; i < 50; i++ {
		b.Publish(Inbound(chat.Event{Kind: chat.KindAlert, ChatID: "c1", Alert: string(rune('a' + i%26))}))
	}
	for i := 0; i < 50; i++ {
		evt := <-ch
		want := string(rune('a' + i%26))
		if got := evt.Payload.(chat.Event).Alert; got != want {
			t.Fatalf("event %d alert = %q, want %q", i, got, want)
		}
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(NamespaceSession, 10)
	unsub()
	unsub() // idempotent

	if n := b.Subscribers(); n != 0 {
		t.Fatalf("Subscribers() = %d, want 0", n)
	}

	b.Publish(Event{Kind: KindSessionClosed})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("test.", 1)
	defer unsub()

	b.Publish(Event{Kind: "test.one"})
	b.Publish(Event{Kind: "test.two"})

	evt := <-ch
	if evt.Kind != "test.one" {
		t.Errorf("got %q, want test.one", evt.Kind)
	}
	if d := b.Dropped(); d != 1 {
		t.Errorf("Dropped() = %d, want 1", d)
	}
}

func TestSubscribeQueuedNeverDrops(t *testing.T) {
	b := New()
	ch, unsub := b.SubscribeQueued(NamespaceChat)
	defer unsub()

	const n = 1000
	for i := 0; i < n; i++ {
		b.Publish(Event{Kind: "chat.test", Payload: i})
	}
	b.Publish(Event{Kind: KindConnOnline})

	for i := 0; i < n; i++ {
		select {
		case evt := <-ch:
			if evt.Payload != i {
				t.Fatalf("event %d: got payload %v", i, evt.Payload)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout after %d events", i)
		}
	}
	if d := b.Dropped(); d != 0 {
		t.Errorf("dropped = %d, want 0", d)
	}
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestSubscribeQueuedUnsubscribe(t *testing.T) {
	b := New()
	_, unsub := b.SubscribeQueued(NamespaceChat)
	b.Publish(Event{Kind: "chat.test"})
	unsub()
	unsub()
	if got := b.Subscribers(); got != 0 {
		t.Errorf("subscribers = %d, want 0", got)
	}
	b.Publish(Event{Kind: "chat.test"})
}
