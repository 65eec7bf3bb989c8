package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/bookwormhq/bookworm-service/internal/types"
)

// waitClosed blocks until the client's send channel is closed by the hub.
func waitClosed(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data, ok := <-c.send:
		if ok {
			t.Fatalf("expected a closed queue, got a message: %s", data)
		}
	case <-time.After(time.Second):
		t.Fatal("connection was never closed by the hub")
	}
}

// receiveEvent blocks until the client receives a broadcast.
func receiveEvent(t *testing.T, c *Client) types.Event {
	t.Helper()
	select {
	case data, ok := <-c.send:
		if !ok {
			t.Fatal("connection was closed instead of receiving a broadcast")
		}
		var event types.Event
		if err := json.Unmarshal(data, &event); err != nil {
			t.Fatalf("failed to decode event: %v", err)
		}
		return event
	case <-time.After(time.Second):
		t.Fatal("broadcast never arrived")
	}
	return types.Event{}
}

func TestHub_ReplacesExistingConnection(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	first := NewClient(nil, "7", hub)
	hub.RegisterClient(first)
	second := NewClient(nil, "7", hub)
	hub.RegisterClient(second)

	// The stale connection's queue is closed when the replacement registers.
	waitClosed(t, first)

	hub.BroadcastToAll(types.NewEvent(types.EventBookCreated, nil))

	event := receiveEvent(t, second)
	if event.Type != types.EventBookCreated {
		t.Fatalf("unexpected event type %q", event.Type)
	}

	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 connected client, got %d", got)
	}
}

func TestHub_UnregisterIgnoresStaleConnection(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	first := NewClient(nil, "7", hub)
	hub.RegisterClient(first)
	second := NewClient(nil, "7", hub)
	hub.RegisterClient(second)
	waitClosed(t, first)

	// The first connection's read loop would unregister on teardown; that
	// must not evict its replacement.
	hub.UnregisterClient(first)

	hub.BroadcastToAll(types.NewEvent(types.EventBookCreated, nil))
	receiveEvent(t, second)
}

func TestHub_BroadcastReachesEveryUser(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	alice := NewClient(nil, "1", hub)
	hub.RegisterClient(alice)
	bob := NewClient(nil, "2", hub)
	hub.RegisterClient(bob)

	hub.BroadcastToAll(types.NewEvent(types.EventBookCreated, nil))

	receiveEvent(t, alice)
	receiveEvent(t, bob)

	if !hub.IsUserConnected("1") || !hub.IsUserConnected("2") {
		t.Fatal("expected both users to stay connected")
	}
}
