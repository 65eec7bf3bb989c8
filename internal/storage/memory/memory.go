// Package memory provides an in-memory Storage implementation used as a test
// double for the handler and cache packages.
package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/bookwormhq/bookworm-service/internal/storage"
	"github.com/bookwormhq/bookworm-service/internal/types"
	"github.com/bookwormhq/bookworm-service/internal/types/users"
)

type Memory struct {
	mu     sync.RWMutex
	users  map[string]users.User
	books  map[string]types.Book
	nextID int
}

func New() *Memory {
	return &Memory{
		users:  make(map[string]users.User),
		books:  make(map[string]types.Book),
		nextID: 1,
	}
}

func (m *Memory) nextIDLocked() string {
	id := strconv.Itoa(m.nextID)
	m.nextID++
	return id
}

func (m *Memory) CreateUser(ctx context.Context, username, email, hashedPassword, profileImage string) (users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == email {
			return users.User{}, storage.ErrDuplicateEmail
		}
	}
	for _, u := range m.users {
		if u.Username == username {
			return users.User{}, storage.ErrDuplicateUsername
		}
	}

	u := users.User{
		ID:           m.nextIDLocked(),
		Username:     username,
		Email:        email,
		Password:     hashedPassword,
		ProfileImage: profileImage,
		CreatedAt:    time.Now(),
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *Memory) GetUserByEmail(ctx context.Context, email string) (users.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return users.User{}, storage.ErrNotFound
}

func (m *Memory) GetUserByUsername(ctx context.Context, username string) (users.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return users.User{}, storage.ErrNotFound
}

func (m *Memory) GetUserByID(ctx context.Context, id string) (users.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return users.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (m *Memory) CreateBook(ctx context.Context, userID, title, caption, image string, rating int) (types.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[userID]; !ok {
		return types.Book{}, storage.ErrNotFound
	}

	b := types.Book{
		ID:        m.nextIDLocked(),
		Title:     title,
		Caption:   caption,
		Rating:    rating,
		Image:     image,
		UserID:    userID,
		CreatedAt: time.Now(),
	}
	m.books[b.ID] = b
	return b, nil
}

// sortedBooksLocked returns all books newest first. Ties on created_at break
// on descending id, which keeps ordering deterministic for tests.
func (m *Memory) sortedBooksLocked() []types.Book {
	books := make([]types.Book, 0, len(m.books))
	for _, b := range m.books {
		books = append(books, b)
	}
	sort.Slice(books, func(i, j int) bool {
		if !books[i].CreatedAt.Equal(books[j].CreatedAt) {
			return books[i].CreatedAt.After(books[j].CreatedAt)
		}
		ni, _ := strconv.Atoi(books[i].ID)
		nj, _ := strconv.Atoi(books[j].ID)
		return ni > nj
	})
	return books
}

func (m *Memory) ListBooks(ctx context.Context, limit, offset int) ([]types.FeedBook, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	books := m.sortedBooksLocked()
	feed := []types.FeedBook{}
	for i := offset; i < len(books) && i < offset+limit; i++ {
		b := books[i]
		owner := m.users[b.UserID]
		feed = append(feed, types.FeedBook{
			ID:      b.ID,
			Title:   b.Title,
			Caption: b.Caption,
			Rating:  b.Rating,
			Image:   b.Image,
			User: types.FeedAuthor{
				Username:     owner.Username,
				ProfileImage: owner.ProfileImage,
			},
			CreatedAt: b.CreatedAt,
		})
	}
	return feed, nil
}

func (m *Memory) CountBooks(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.books), nil
}

func (m *Memory) ListBooksByUser(ctx context.Context, userID string) ([]types.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	books := []types.Book{}
	for _, b := range m.sortedBooksLocked() {
		if b.UserID == userID {
			books = append(books, b)
		}
	}
	return books, nil
}

func (m *Memory) GetBookByID(ctx context.Context, id string) (types.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.books[id]
	if !ok {
		return types.Book{}, storage.ErrNotFound
	}
	return b, nil
}

func (m *Memory) DeleteBook(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.books[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.books, id)
	return nil
}

func (m *Memory) ListBookImages(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	urls := []string{}
	for _, b := range m.books {
		urls = append(urls, b.Image)
	}
	return urls, nil
}
