package realtime

import (
	"encoding/json"
	"testing"
	"time"
)

func newTestClient(h *Hub) *Client {
	return &Client{hub: h, send: make(chan []byte, 16)}
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case raw, ok := <-c.send:
		if !ok {
			t.Fatal("send channel closed unexpectedly")
		}
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestEmitBroadcastsToAllClients(t *testing.T) {
	h := NewHub()
	go h.Run()

	first := newTestClient(h)
	second := newTestClient(h)
	h.register <- first
	h.register <- second

	h.Emit("feedback:new", map[string]interface{}{"id": 42, "title": "Crash on load"})

	for _, c := range []*Client{first, second} {
		ev := receive(t, c)
		if ev.Event != "feedback:new" {
			t.Errorf("event = %q, want feedback:new", ev.Event)
		}
		data := ev.Data.(map[string]interface{})
		if data["id"].(float64) != 42 {
			t.Errorf("payload id = %v, want 42", data["id"])
		}
	}
}

func TestLateClientMissesEarlierEvents(t *testing.T) {
	h := NewHub()
	go h.Run()

	early := newTestClient(h)
	h.register <- early
	h.Emit("feedback:deleted", map[string]interface{}{"id": 7})
	receive(t, early)

	// No replay: a client connecting after the event sees nothing
	late := newTestClient(h)
	h.register <- late
	select {
	case raw := <-late.send:
		t.Fatalf("late client received replayed event: %s", raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowConsumerDropSweepsRooms(t *testing.T) {
	h := NewHub()
	go h.Run()

	slow := &Client{hub: h, send: make(chan []byte, 1)}
	h.register <- slow
	h.join <- joinRequest{client: slow, room: "user-9"}

	// First event fills the one-slot buffer, second one triggers the drop
	h.Emit("feedback:new", map[string]interface{}{"id": 1})
	h.Emit("feedback:new", map[string]interface{}{"id": 2})

	receive(t, slow)
	select {
	case _, ok := <-slow.send:
		if ok {
			t.Fatal("expected closed channel after drop, got message")
		}
	case <-time.After(time.Second):
		t.Fatal("send channel not closed after slow-consumer drop")
	}

	// Barrier: once this later client's channel is closed, the hub has
	// processed everything above and sits idle
	barrier := &Client{hub: h, send: make(chan []byte, 1)}
	h.register <- barrier
	h.unregister <- barrier
	<-barrier.send

	if len(h.rooms) != 0 {
		t.Fatalf("dropped client still tracked in rooms: %v", h.rooms)
	}
}

func TestUnregisterClosesSendChannel(t *testing.T) {
	h := NewHub()
	go h.Run()

	c := newTestClient(h)
	h.register <- c
	h.join <- joinRequest{client: c, room: "user-1"}
	h.unregister <- c

	select {
	case _, ok := <-c.send:
		if ok {
			t.Fatal("expected closed channel, got message")
		}
	case <-time.After(time.Second):
		t.Fatal("send channel not closed after unregister")
	}

	// Emitting after the only client left must not block or panic
	h.Emit("feedback:updated", map[string]interface{}{"id": 1, "status": "resolved"})
}
