package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe(Subscription{})
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe(Subscription{})
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: EventCardSynced, Data: map[string]string{"path": "a.md"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: card.synced") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"path":"a.md"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishCanvasEvent_ReferencesThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe(Subscription{})
	defer b.Unsubscribe(ch)

	// First event should trigger references.changed.
	b.PublishCanvasEvent("updated", "a.canvas")
	// Second event immediately should NOT trigger another references.changed.
	b.PublishCanvasEvent("removed", "b.canvas")

	// Drain and count events.
	time.Sleep(50 * time.Millisecond)
	refsCount := 0
	canvasCount := 0
loop:
	for {
		select {
		case msg := <-ch:
			s := string(msg)
			if strings.Contains(s, EventReferencesChanged) {
				refsCount++
			} else {
				canvasCount++
			}
		default:
			break loop
		}
	}

	if canvasCount != 2 {
		t.Errorf("canvas events = %d, want 2", canvasCount)
	}
	if refsCount != 1 {
		t.Errorf("references events = %d, want 1 (throttled)", refsCount)
	}
}

func TestPublishNotice(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe(Subscription{})
	defer b.Unsubscribe(ch)

	b.PublishNotice("error", "canvas is not valid JSON")

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: notice") || !strings.Contains(s, `"level":"error"`) {
			t.Errorf("unexpected notice %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for notice")
	}
}

func TestCanvasScopedDelivery(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	follower := b.Subscribe(Subscription{})
	defer b.Unsubscribe(follower)
	onA := b.Subscribe(Subscription{Host: true, Canvas: "a.canvas"})
	defer b.Unsubscribe(onA)
	onB := b.Subscribe(Subscription{Host: true, Canvas: "b.canvas"})
	defer b.Unsubscribe(onB)

	b.Publish(Event{Type: EventCanvasSelect, Canvas: "a.canvas", Data: map[string]string{"node_id": "n1"}})
	time.Sleep(50 * time.Millisecond)

	if n := len(follower); n != 1 {
		t.Errorf("follower got %d events, want 1", n)
	}
	if n := len(onA); n != 1 {
		t.Errorf("host on a.canvas got %d events, want 1", n)
	}
	if n := len(onB); n != 0 {
		t.Errorf("host on b.canvas got %d events, want 0", n)
	}
}

func TestCanvasOpenMovesHosts(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	host := b.Subscribe(Subscription{Host: true})
	defer b.Unsubscribe(host)
	follower := b.Subscribe(Subscription{})
	defer b.Unsubscribe(follower)

	if n := b.Viewers("a.canvas"); n != 0 {
		t.Fatalf("viewers before open = %d, want 0", n)
	}

	b.Publish(Event{Type: EventCanvasOpen, Canvas: "a.canvas", Data: map[string]string{"path": "a.canvas"}})
	time.Sleep(50 * time.Millisecond)

	if n := b.Viewers("a.canvas"); n != 1 {
		t.Fatalf("viewers after open = %d, want 1", n)
	}
	if n := b.ClientCount(); n != 2 {
		t.Fatalf("client count = %d, want 2", n)
	}

	b.Publish(Event{Type: EventCanvasOpen, Canvas: "b.canvas", Data: map[string]string{"path": "b.canvas"}})
	time.Sleep(50 * time.Millisecond)
	if n := b.Viewers("a.canvas"); n != 0 {
		t.Errorf("viewers of a.canvas after opening b = %d, want 0", n)
	}
	if n := b.Viewers("b.canvas"); n != 1 {
		t.Errorf("viewers of b.canvas = %d, want 1", n)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	// Start handler in background.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events?host=1&canvas=x.canvas", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}
	if b.Viewers("x.canvas") != 1 {
		t.Fatalf("expected handler client to host x.canvas")
	}

	b.Publish(Event{Type: EventCanvasOpen, Data: map[string]string{"path": "x.canvas"}})
	time.Sleep(50 * time.Millisecond)

	// Cancel context to disconnect.
	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: canvas.open") {
		t.Errorf("handler output missing event: %q", body)
	}

	// Client should be cleaned up.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe(Subscription{})
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
	// If we reach here without deadlock, the test passes.
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe(Subscription{})
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.Publish(Event{Type: EventCanvasUpdated, Data: map[string]string{"path": "x.canvas"}})
	b.PublishCanvasEvent("updated", "x.canvas")
	b.PublishNotice("info", "ignored")
}
