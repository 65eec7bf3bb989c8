package books

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/bookwormhq/bookworm-service/internal/config"
	"github.com/bookwormhq/bookworm-service/internal/events"
	"github.com/bookwormhq/bookworm-service/internal/http/middleware"
	"github.com/bookwormhq/bookworm-service/internal/storage"
	"github.com/bookwormhq/bookworm-service/internal/types"
	"github.com/bookwormhq/bookworm-service/internal/utils/response"
)

const (
	defaultPage  = 1
	defaultLimit = 5
)

// ObjectStore is the slice of the media service the book handlers need.
type ObjectStore interface {
	UploadDataURI(ctx context.Context, dataURI string) (string, error)
	RemoveByURL(ctx context.Context, imageURL string) error
	Holds(imageURL string) bool
}

type BookHandlers struct {
	store     storage.Storage
	objects   ObjectStore
	publisher events.Publisher
	env       string
}

// NewBookHandlers creates a new book handlers instance
func NewBookHandlers(store storage.Storage, objects ObjectStore, publisher events.Publisher, env string) *BookHandlers {
	return &BookHandlers{
		store:     store,
		objects:   objects,
		publisher: publisher,
		env:       env,
	}
}

// internalError logs the failure and replies 500. Outside production the
// body carries the underlying error detail.
func (h *BookHandlers) internalError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, slog.String("error", err.Error()))
	if h.env != config.EnvProduction {
		response.WriteJSON(w, http.StatusInternalServerError, response.Error(fmt.Sprintf("%s: %v", msg, err)))
		return
	}
	response.WriteJSON(w, http.StatusInternalServerError, response.Error(msg))
}

// Create handles creating a new book recommendation
// @Summary Create a new book
// @Description Upload the embedded cover image and create a book owned by the caller
// @Tags books
// @Accept json
// @Produce json
// @Param book body types.CreateBookRequest true "Book content"
// @Success 201 {object} types.Book "Book created successfully"
// @Failure 400 {object} response.Response "Bad request"
// @Failure 401 {object} response.Response "Unauthorized"
// @Failure 500 {object} response.Response "Internal server error"
// @Security BearerAuth
// @Router /books [post]
func (h *BookHandlers) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusUnauthorized, response.Error("user not authenticated"))
			return
		}

		var req types.CreateBookRequest

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

		imageURL, err := h.objects.UploadDataURI(r.Context(), req.Image)
		if err != nil {
			h.internalError(w, "failed to upload image", err)
			return
		}

		book, err := h.store.CreateBook(r.Context(), userID, req.Title, req.Caption, imageURL, int(req.Rating))
		if err != nil {
			h.internalError(w, "failed to create book", err)
			return
		}
		slog.Info("Book created", slog.String("book_id", book.ID), slog.String("user_id", userID))

		// Best-effort realtime announcement to connected clients.
		username := ""
		if owner, err := h.store.GetUserByID(r.Context(), userID); err == nil {
			username = owner.Username
		}
		if err := h.publisher.PublishBookCreated(book, username); err != nil {
			slog.Warn("Failed to publish book.created event", slog.String("error", err.Error()))
		}

		response.WriteJSON(w, http.StatusCreated, book)
	}
}

// parsePositiveInt parses a pagination parameter, falling back to the
// default on anything that is not a positive integer. Bad pagination input
// is never an error.
func parsePositiveInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

// Feed handles the public paginated book feed
// @Summary Get the book feed
// @Description Paginated feed of all books, newest first, with owner username and avatar
// @Tags books
// @Produce json
// @Param page query int false "Page number (default 1)"
// @Param limit query int false "Page size (default 5)"
// @Success 200 {object} types.FeedPage "Feed page"
// @Failure 500 {object} response.Response "Internal server error"
// @Router /books [get]
func (h *BookHandlers) Feed() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := parsePositiveInt(r.URL.Query().Get("page"), defaultPage)
		limit := parsePositiveInt(r.URL.Query().Get("limit"), defaultLimit)
		offset := (page - 1) * limit

		books, err := h.store.ListBooks(r.Context(), limit, offset)
		if err != nil {
			h.internalError(w, "failed to fetch books", err)
			return
		}
		if books == nil {
			books = []types.FeedBook{}
		}

		total, err := h.store.CountBooks(r.Context())
		if err != nil {
			h.internalError(w, "failed to count books", err)
			return
		}

		response.WriteJSON(w, http.StatusOK, types.FeedPage{
			Books:       books,
			CurrentPage: page,
			TotalBooks:  total,
			TotalPages:  (total + limit - 1) / limit,
		})
	}
}

// UserBooks handles listing the caller's own books
// @Summary Get the caller's books
// @Description All books created by the authenticated user, newest first
// @Tags books
// @Produce json
// @Success 200 {array} types.Book "User's books"
// @Failure 401 {object} response.Response "Unauthorized"
// @Failure 500 {object} response.Response "Internal server error"
// @Security BearerAuth
// @Router /books/user [get]
func (h *BookHandlers) UserBooks() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusUnauthorized, response.Error("user not authenticated"))
			return
		}

		books, err := h.store.ListBooksByUser(r.Context(), userID)
		if err != nil {
			h.internalError(w, "failed to fetch user books", err)
			return
		}
		if books == nil {
			books = []types.Book{}
		}

		response.WriteJSON(w, http.StatusOK, books)
	}
}

// Delete handles deleting a book owned by the caller
// @Summary Delete a book
// @Description Delete a book the caller owns; the stored cover image is removed best-effort
// @Tags books
// @Produce json
// @Param id path string true "Book ID"
// @Success 200 {object} response.Response "Book deleted successfully"
// @Failure 401 {object} response.Response "Unauthorized or not the owner"
// @Failure 404 {object} response.Response "Book not found"
// @Failure 500 {object} response.Response "Internal server error"
// @Security BearerAuth
// @Router /books/{id} [delete]
func (h *BookHandlers) Delete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusUnauthorized, response.Error("user not authenticated"))
			return
		}

		bookID := r.PathValue("id")
		if bookID == "" {
			response.WriteJSON(w, http.StatusBadRequest, response.Error("book ID is required"))
			return
		}

		book, err := h.store.GetBookByID(r.Context(), bookID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				response.WriteJSON(w, http.StatusNotFound, response.Error("book not found"))
				return
			}
			h.internalError(w, "failed to fetch book", err)
			return
		}

		if book.UserID != userID {
			response.WriteJSON(w, http.StatusUnauthorized, response.Error("unauthorized"))
			return
		}

		// Remove the stored cover image best-effort: a failure here is
		// logged and leaves an orphaned object, never a failed delete. The
		// book table stays the source of truth.
		if book.Image != "" && h.objects.Holds(book.Image) {
			if err := h.objects.RemoveByURL(r.Context(), book.Image); err != nil {
				slog.Error("Failed to delete image from object store",
					slog.String("book_id", book.ID),
					slog.String("image", book.Image),
					slog.String("error", err.Error()))
			}
		}

		if err := h.store.DeleteBook(r.Context(), bookID); err != nil {
			h.internalError(w, "failed to delete book", err)
			return
		}

		response.WriteJSON(w, http.StatusOK, response.OK("book deleted successfully"))
	}
}
