package websocket

import (
	"log/slog"
	"sync"

	"github.com/bookwormhq/bookworm-service/internal/types"
)

// Hub maintains the set of active clients and broadcasts feed events to them
type Hub struct {
	// Registered clients mapped by user ID
	clients map[string]*Client

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Mutex to protect clients map
	mu sync.RWMutex

	// Channel of events to fan out to every client
	broadcast chan *types.Event
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *types.Event, 16),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			// A user keeps at most one live connection.
			if existing, exists := h.clients[client.userID]; exists {
				close(existing.send)
				slog.Info("Replaced existing WebSocket connection", slog.String("user_id", client.userID))
			}
			h.clients[client.userID] = client
			h.mu.Unlock()
			slog.Info("WebSocket client connected", slog.String("user_id", client.userID))

		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.userID]; ok && current == client {
				delete(h.clients, client.userID)
				close(client.send)
				slog.Info("WebSocket client disconnected", slog.String("user_id", client.userID))
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.broadcastToAll(event)
		}
	}
}

// RegisterClient registers a new client
func (h *Hub) RegisterClient(client *Client) {
	h.register <- client
}

// UnregisterClient unregisters a client
func (h *Hub) UnregisterClient(client *Client) {
	h.unregister <- client
}

// BroadcastToAll queues an event for delivery to every connected client.
func (h *Hub) BroadcastToAll(event *types.Event) {
	select {
	case h.broadcast <- event:
	default:
		slog.Warn("Broadcast channel is full, dropping event")
	}
}

func (h *Hub) broadcastToAll(event *types.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for userID, client := range h.clients {
		if err := client.SendEvent(event); err != nil {
			slog.Error("Failed to send event to client",
				slog.String("user_id", userID),
				slog.String("error", err.Error()))
			go func(c *Client) {
				h.unregister <- c
			}(client)
		}
	}
}

// IsUserConnected checks if a user is currently connected
func (h *Hub) IsUserConnected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, exists := h.clients[userID]
	return exists
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}
