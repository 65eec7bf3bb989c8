package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/bookwormhq/bookworm-service/internal/storage"
	"github.com/bookwormhq/bookworm-service/internal/types"
	"github.com/bookwormhq/bookworm-service/internal/types/users"
)

// CacheService wraps storage with Redis caching
type CacheService struct {
	storage storage.Storage
	redis   *redis.Client
}

// NewCacheService creates a new cache service
func NewCacheService(storage storage.Storage, redisClient *redis.Client) *CacheService {
	return &CacheService{
		storage: storage,
		redis:   redisClient,
	}
}

// Cache key patterns
const (
	FeedPageKey  = "feed:page:%d:%d" // feed:page:limit:offset
	FeedCountKey = "feed:count"
	UserByIDKey  = "user:id:%s" // user:id:userID
)

// Cache durations
const (
	FeedCacheDuration = 45 * time.Second // hot feed pages
	UserCacheDuration = 5 * time.Minute  // users are immutable once registered
)

// ListBooks returns a cached feed page or fetches from the database.
func (c *CacheService) ListBooks(ctx context.Context, limit, offset int) ([]types.FeedBook, error) {
	key := fmt.Sprintf(FeedPageKey, limit, offset)

	// Try cache first
	cached, err := c.redis.Get(ctx, key).Result()
	if err == nil {
		var books []types.FeedBook
		if err := json.Unmarshal([]byte(cached), &books); err == nil {
			return books, nil
		}
	}

	// Cache miss - fetch from database
	books, err := c.storage.ListBooks(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	data, _ := json.Marshal(books)
	c.redis.Set(ctx, key, data, FeedCacheDuration)

	return books, nil
}

func (c *CacheService) CountBooks(ctx context.Context) (int, error) {
	cached, err := c.redis.Get(ctx, FeedCountKey).Result()
	if err == nil {
		if count, err := strconv.Atoi(cached); err == nil {
			return count, nil
		}
	}

	count, err := c.storage.CountBooks(ctx)
	if err != nil {
		return 0, err
	}

	c.redis.Set(ctx, FeedCountKey, strconv.Itoa(count), FeedCacheDuration)

	return count, nil
}

// GetUserByID serves the auth gate's per-request lookups. The password hash
// never enters the cache; callers that need it go through GetUserByEmail.
func (c *CacheService) GetUserByID(ctx context.Context, id string) (users.User, error) {
	key := fmt.Sprintf(UserByIDKey, id)

	cached, err := c.redis.Get(ctx, key).Result()
	if err == nil {
		var u users.User
		if err := json.Unmarshal([]byte(cached), &u); err == nil && u.ID != "" {
			return u, nil
		}
	}

	u, err := c.storage.GetUserByID(ctx, id)
	if err != nil {
		return users.User{}, err
	}

	data, _ := json.Marshal(u)
	c.redis.Set(ctx, key, data, UserCacheDuration)

	return u, nil
}

// InvalidateFeedCache clears every cached feed page and the cached count.
func (c *CacheService) InvalidateFeedCache(ctx context.Context) {
	keys, err := c.redis.Keys(ctx, "feed:*").Result()
	if err != nil || len(keys) == 0 {
		return
	}
	c.redis.Del(ctx, keys...)
}

// Write operations invalidate the feed before returning.

func (c *CacheService) CreateBook(ctx context.Context, userID, title, caption, image string, rating int) (types.Book, error) {
	book, err := c.storage.CreateBook(ctx, userID, title, caption, image, rating)
	if err != nil {
		return types.Book{}, err
	}

	c.InvalidateFeedCache(ctx)

	return book, nil
}

func (c *CacheService) DeleteBook(ctx context.Context, id string) error {
	if err := c.storage.DeleteBook(ctx, id); err != nil {
		return err
	}

	c.InvalidateFeedCache(ctx)

	return nil
}

// Methods that pass through to storage (implement storage.Storage interface)

func (c *CacheService) CreateUser(ctx context.Context, username, email, hashedPassword, profileImage string) (users.User, error) {
	return c.storage.CreateUser(ctx, username, email, hashedPassword, profileImage)
}

func (c *CacheService) GetUserByEmail(ctx context.Context, email string) (users.User, error) {
	return c.storage.GetUserByEmail(ctx, email)
}

func (c *CacheService) GetUserByUsername(ctx context.Context, username string) (users.User, error) {
	return c.storage.GetUserByUsername(ctx, username)
}

func (c *CacheService) ListBooksByUser(ctx context.Context, userID string) ([]types.Book, error) {
	return c.storage.ListBooksByUser(ctx, userID)
}

func (c *CacheService) GetBookByID(ctx context.Context, id string) (types.Book, error) {
	return c.storage.GetBookByID(ctx, id)
}

func (c *CacheService) ListBookImages(ctx context.Context) ([]string, error) {
	return c.storage.ListBookImages(ctx)
}
