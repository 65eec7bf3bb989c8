package auth

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-playground/validator/v10"

	"github.com/bookwormhq/bookworm-service/internal/storage"
	"github.com/bookwormhq/bookworm-service/internal/types/users"
	"github.com/bookwormhq/bookworm-service/internal/utils/jwt"
	"github.com/bookwormhq/bookworm-service/internal/utils/password"
	"github.com/bookwormhq/bookworm-service/internal/utils/response"
)

// invalidCredentials is shared by the unknown-email and wrong-password paths
// so that login failures cannot be used to enumerate accounts.
const invalidCredentials = "invalid email or password"

const avatarBaseURL = "https://api.dicebear.com/7.x/avataaars/svg?seed="

// avatarURL derives the deterministic placeholder avatar for a new user.
func avatarURL(username string) string {
	return avatarBaseURL + url.QueryEscape(username)
}

// Register handles user registration
// @Summary Register a new user
// @Description Register a new user account and return a JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param user body users.RegisterRequest true "User registration details"
// @Success 201 {object} users.AuthResponse "User created successfully"
// @Failure 400 {object} response.Response "Bad request"
// @Failure 500 {object} response.Response "Internal server error"
// @Router /auth/register [post]
func Register(store storage.Storage, jwtSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req users.RegisterRequest

		err := json.NewDecoder(r.Body).Decode(&req)
		if errors.Is(err, io.EOF) {
			response.WriteJSON(w, http.StatusBadRequest, response.Error("request body is required"))
			return
		} else if err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		// Validate request
		validate := validator.New()
		err = validate.Struct(req)
		if err != nil {
			if ve, ok := err.(validator.ValidationErrors); ok {
				response.WriteJSON(w, http.StatusBadRequest, response.ValidationError(ve))
				return
			}
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		// Uniqueness pre-checks, email first: an email collision is reported
		// even when the username would also collide.
		if _, err := store.GetUserByEmail(r.Context(), req.Email); err == nil {
			response.WriteJSON(w, http.StatusBadRequest, response.Error("email already exists"))
			return
		} else if !errors.Is(err, storage.ErrNotFound) {
			response.WriteJSON(w, http.StatusInternalServerError, response.Error("internal server error"))
			return
		}

		if _, err := store.GetUserByUsername(r.Context(), req.Username); err == nil {
			response.WriteJSON(w, http.StatusBadRequest, response.Error("username already exists"))
			return
		} else if !errors.Is(err, storage.ErrNotFound) {
			response.WriteJSON(w, http.StatusInternalServerError, response.Error("internal server error"))
			return
		}

		hashedPassword, err := password.HashPassword(req.Password)
		if err != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.Error("failed to hash password"))
			return
		}

		user, err := store.CreateUser(r.Context(), req.Username, req.Email, hashedPassword, avatarURL(req.Username))
		if err != nil {
			// The store's uniqueness constraints backstop the pre-checks
			// against concurrent registrations.
			if errors.Is(err, storage.ErrDuplicateEmail) {
				response.WriteJSON(w, http.StatusBadRequest, response.Error("email already exists"))
				return
			}
			if errors.Is(err, storage.ErrDuplicateUsername) {
				response.WriteJSON(w, http.StatusBadRequest, response.Error("username already exists"))
				return
			}
			slog.Error("Failed to create user", slog.String("error", err.Error()))
			response.WriteJSON(w, http.StatusInternalServerError, response.Error("internal server error"))
			return
		}
		slog.Info("User registered", slog.String("user_id", user.ID))

		token, err := jwt.CreateToken(user.ID, jwtSecret)
		if err != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.Error("failed to generate token"))
			return
		}

		response.WriteJSON(w, http.StatusCreated, users.AuthResponse{
			Token: token,
			User:  user.Public(),
		})
	}
}

// Login handles user authentication
// @Summary Authenticate a user
// @Description Authenticate a user and return a fresh JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param user body users.LoginRequest true "User login details"
// @Success 200 {object} users.AuthResponse "User authenticated successfully"
// @Failure 400 {object} response.Response "Bad request or invalid credentials"
// @Failure 500 {object} response.Response "Internal server error"
// @Router /auth/login [post]
func Login(store storage.Storage, jwtSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req users.LoginRequest

		err := json.NewDecoder(r.Body).Decode(&req)
		if errors.Is(err, io.EOF) {
			response.WriteJSON(w, http.StatusBadRequest, response.Error("request body is required"))
			return
		} else if err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		// Validate request
		validate := validator.New()
		err = validate.Struct(req)
		if err != nil {
			if ve, ok := err.(validator.ValidationErrors); ok {
				response.WriteJSON(w, http.StatusBadRequest, response.ValidationError(ve))
				return
			}
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		user, err := store.GetUserByEmail(r.Context(), req.Email)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				response.WriteJSON(w, http.StatusBadRequest, response.Error(invalidCredentials))
				return
			}
			response.WriteJSON(w, http.StatusInternalServerError, response.Error("internal server error"))
			return
		}

		if !password.CheckPasswordHash(req.Password, user.Password) {
			response.WriteJSON(w, http.StatusBadRequest, response.Error(invalidCredentials))
			return
		}

		token, err := jwt.CreateToken(user.ID, jwtSecret)
		if err != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.Error("failed to generate token"))
			return
		}

		response.WriteJSON(w, http.StatusOK, users.AuthResponse{
			Token: token,
			User:  user.Public(),
		})
	}
}
