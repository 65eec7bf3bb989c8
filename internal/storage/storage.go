package storage

import (
	"context"
	"errors"

	"github.com/bookwormhq/bookworm-service/internal/types"
	"github.com/bookwormhq/bookworm-service/internal/types/users"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateEmail    = errors.New("email already exists")
	ErrDuplicateUsername = errors.New("username already exists")
)

type Storage interface {
	CreateUser(ctx context.Context, username, email, hashedPassword, profileImage string) (users.User, error)
	GetUserByEmail(ctx context.Context, email string) (users.User, error)
	GetUserByUsername(ctx context.Context, username string) (users.User, error)
	GetUserByID(ctx context.Context, id string) (users.User, error)

	CreateBook(ctx context.Context, userID, title, caption, image string, rating int) (types.Book, error)
	ListBooks(ctx context.Context, limit, offset int) ([]types.FeedBook, error)
	CountBooks(ctx context.Context) (int, error)
	ListBooksByUser(ctx context.Context, userID string) ([]types.Book, error)
	GetBookByID(ctx context.Context, id string) (types.Book, error)
	DeleteBook(ctx context.Context, id string) error
	ListBookImages(ctx context.Context) ([]string, error)
}
