package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/bookwormhq/bookworm-service/internal/storage"
	"github.com/bookwormhq/bookworm-service/internal/utils/jwt"
	"github.com/bookwormhq/bookworm-service/internal/utils/response"
)

type contextKey string

const UserIDKey contextKey = "userID"

// AuthMiddleware is the trust boundary for every mutating route: it verifies
// the bearer token, checks that its subject still exists, and attaches the
// verified user ID to the request context.
func AuthMiddleware(store storage.Storage, jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.WriteJSON(w, http.StatusUnauthorized, response.Error("authorization header required"))
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				response.WriteJSON(w, http.StatusUnauthorized, response.Error("invalid authorization header format"))
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			if token == "" {
				response.WriteJSON(w, http.StatusUnauthorized, response.Error("token not provided"))
				return
			}

			userID, err := jwt.ExtractUserIDFromToken(token, jwtSecret)
			if err != nil {
				response.WriteJSON(w, http.StatusUnauthorized, response.Error("invalid token"))
				return
			}

			// The token may outlive its subject.
			if _, err := store.GetUserByID(r.Context(), userID); err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					response.WriteJSON(w, http.StatusUnauthorized, response.Error("invalid token"))
					return
				}
				response.WriteJSON(w, http.StatusInternalServerError, response.Error("internal server error"))
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserIDFromContext extracts the user ID from the request context
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}
