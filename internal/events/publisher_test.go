package events

import (
	"testing"
	"time"

	"github.com/bookwormhq/bookworm-service/internal/types"
)

type fakeHub struct {
	clients int
	events  []*types.Event
}

func (f *fakeHub) BroadcastToAll(event *types.Event) { f.events = append(f.events, event) }
func (f *fakeHub) ClientCount() int                  { return f.clients }

func TestPublishBookCreated(t *testing.T) {
	hub := &fakeHub{clients: 2}
	publisher := NewEventPublisher(hub)

	book := types.Book{ID: "5", Title: "Dune", CreatedAt: time.Now()}
	if err := publisher.PublishBookCreated(book, "alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(hub.events) != 1 {
		t.Fatalf("expected 1 broadcast, got %d", len(hub.events))
	}
	event := hub.events[0]
	if event.Type != types.EventBookCreated {
		t.Fatalf("unexpected event type %q", event.Type)
	}

	data, ok := event.Data.(*types.BookCreatedEvent)
	if !ok {
		t.Fatalf("unexpected event payload %T", event.Data)
	}
	if data.BookID != "5" || data.Username != "alice" {
		t.Fatalf("unexpected payload: %+v", data)
	}
}

func TestPublishBookCreated_NoClients(t *testing.T) {
	hub := &fakeHub{}
	publisher := NewEventPublisher(hub)

	if err := publisher.PublishBookCreated(types.Book{ID: "5"}, "alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hub.events) != 0 {
		t.Fatal("expected no broadcast without connected clients")
	}
}
