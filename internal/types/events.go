package types

import "time"

// EventType represents the type of real-time event
type EventType string

const (
	EventBookCreated EventType = "book.created"
)

// Event represents a real-time event that can be sent over WebSocket
type Event struct {
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}

// BookCreatedEvent announces a new book on the public feed
type BookCreatedEvent struct {
	BookID    string `json:"book_id"`
	Title     string `json:"title"`
	Username  string `json:"username"`
	CreatedAt string `json:"created_at"`
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, data interface{}) *Event {
	return &Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
