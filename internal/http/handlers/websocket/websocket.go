package websocket

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/bookwormhq/bookworm-service/internal/storage"
	"github.com/bookwormhq/bookworm-service/internal/utils/jwt"
	"github.com/bookwormhq/bookworm-service/internal/utils/response"
	wsClient "github.com/bookwormhq/bookworm-service/internal/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Mobile clients connect from app webviews; origin is not checked.
		return true
	},
}

// Serve upgrades authenticated connections and registers them with the hub
// for book.created feed events.
func Serve(hub *wsClient.Hub, store storage.Storage, jwtSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Browsers cannot set headers on WebSocket upgrades, so the token
		// rides in a query parameter.
		token := r.URL.Query().Get("token")
		if token == "" {
			slog.Warn("WebSocket connection attempted without token")
			response.WriteJSON(w, http.StatusUnauthorized, response.Error("token required"))
			return
		}

		userID, err := jwt.ExtractUserIDFromToken(token, jwtSecret)
		if err != nil {
			slog.Warn("WebSocket connection attempted with invalid token", slog.String("error", err.Error()))
			response.WriteJSON(w, http.StatusUnauthorized, response.Error("invalid token"))
			return
		}

		if _, err := store.GetUserByID(r.Context(), userID); err != nil {
			response.WriteJSON(w, http.StatusUnauthorized, response.Error("invalid token"))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("Failed to upgrade WebSocket connection", slog.String("error", err.Error()))
			return
		}

		client := wsClient.NewClient(conn, userID, hub)
		hub.RegisterClient(client)
		client.Start()

		slog.Info("WebSocket connection established", slog.String("user_id", userID))
	}
}
