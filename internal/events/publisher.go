package events

import (
	"time"

	"github.com/bookwormhq/bookworm-service/internal/types"
)

// Publisher interface for publishing events
type Publisher interface {
	PublishBookCreated(book types.Book, username string) error
}

// Broadcaster is the slice of the WebSocket hub the publisher needs.
type Broadcaster interface {
	BroadcastToAll(event *types.Event)
	ClientCount() int
}

// EventPublisher implements the Publisher interface over a WebSocket hub.
type EventPublisher struct {
	hub Broadcaster
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(hub Broadcaster) *EventPublisher {
	return &EventPublisher{
		hub: hub,
	}
}

// PublishBookCreated announces a new book to every connected client. The
// feed is public, so there is no per-user audience to compute.
func (p *EventPublisher) PublishBookCreated(book types.Book, username string) error {
	if p.hub.ClientCount() == 0 {
		return nil
	}

	eventData := &types.BookCreatedEvent{
		BookID:    book.ID,
		Title:     book.Title,
		Username:  username,
		CreatedAt: book.CreatedAt.UTC().Format(time.RFC3339),
	}

	event := types.NewEvent(types.EventBookCreated, eventData)
	p.hub.BroadcastToAll(event)

	return nil
}

// NopPublisher discards events. Used where no hub is running, e.g. tests.
type NopPublisher struct{}

func (NopPublisher) PublishBookCreated(types.Book, string) error { return nil }
