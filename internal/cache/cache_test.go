package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/bookwormhq/bookworm-service/internal/storage/memory"
	"github.com/bookwormhq/bookworm-service/internal/types"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return client
}

func TestListBooks_CachedUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	svc := NewCacheService(inner, setupTestRedis(t))

	user, err := inner.CreateUser(ctx, "alice", "alice@example.com", "hash", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := inner.CreateBook(ctx, user.ID, "Dune", "caption", "http://img/1", 5); err != nil {
		t.Fatal(err)
	}

	books, err := svc.ListBooks(ctx, 5, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(books) != 1 {
		t.Fatalf("expected 1 book, got %d", len(books))
	}

	// A write that bypasses the cache service is not visible until the TTL
	// expires or the feed is invalidated.
	if _, err := inner.CreateBook(ctx, user.ID, "Hyperion", "caption", "http://img/2", 4); err != nil {
		t.Fatal(err)
	}
	books, err = svc.ListBooks(ctx, 5, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(books) != 1 {
		t.Fatalf("expected cached page with 1 book, got %d", len(books))
	}

	// A write through the cache service invalidates the feed.
	if _, err := svc.CreateBook(ctx, user.ID, "Foundation", "caption", "http://img/3", 4); err != nil {
		t.Fatal(err)
	}
	books, err = svc.ListBooks(ctx, 5, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(books) != 3 {
		t.Fatalf("expected fresh page with 3 books, got %d", len(books))
	}
}

func TestCountBooks_InvalidatedOnDelete(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	svc := NewCacheService(inner, setupTestRedis(t))

	user, err := inner.CreateUser(ctx, "alice", "alice@example.com", "hash", "")
	if err != nil {
		t.Fatal(err)
	}
	book, err := inner.CreateBook(ctx, user.ID, "Dune", "caption", "http://img/1", 5)
	if err != nil {
		t.Fatal(err)
	}

	count, err := svc.CountBooks(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected count 1, got %d", count)
	}

	if err := svc.DeleteBook(ctx, book.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	count, err = svc.CountBooks(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected count 0 after delete, got %d", count)
	}
}

func TestGetUserByID_Cached(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	svc := NewCacheService(inner, setupTestRedis(t))

	created, err := inner.CreateUser(ctx, "alice", "alice@example.com", "hash", "http://avatar/alice")
	if err != nil {
		t.Fatal(err)
	}

	u, err := svc.GetUserByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Username != "alice" {
		t.Fatalf("expected alice, got %q", u.Username)
	}

	// Second read comes from the cache and still resolves the user.
	u, err = svc.GetUserByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.ID != created.ID {
		t.Fatalf("expected id %q, got %q", created.ID, u.ID)
	}
	// The cached copy never carries the password hash.
	if u.Password != "" {
		t.Fatal("cached user leaked the password hash")
	}
}

func TestInvalidateFeedCache(t *testing.T) {
	client := setupTestRedis(t)
	inner := memory.New()
	svc := NewCacheService(inner, client)

	ctx := context.Background()
	client.Set(ctx, "feed:page:5:0", "[]", 0)
	client.Set(ctx, "feed:count", "0", 0)
	client.Set(ctx, "user:id:1", "{}", 0)

	svc.InvalidateFeedCache(ctx)

	if client.Exists(ctx, "feed:page:5:0", "feed:count").Val() != 0 {
		t.Fatal("expected feed keys to be cleared")
	}
	if client.Exists(ctx, "user:id:1").Val() != 1 {
		t.Fatal("user keys must survive feed invalidation")
	}
}

type ctxKey string

// ctxRecordingStore captures the context the cache layer hands to the
// underlying storage.
type ctxRecordingStore struct {
	*memory.Memory
	gotCtx context.Context
}

func (s *ctxRecordingStore) ListBooks(ctx context.Context, limit, offset int) ([]types.FeedBook, error) {
	s.gotCtx = ctx
	return s.Memory.ListBooks(ctx, limit, offset)
}

func TestListBooks_PropagatesCallerContext(t *testing.T) {
	inner := &ctxRecordingStore{Memory: memory.New()}
	svc := NewCacheService(inner, setupTestRedis(t))

	ctx := context.WithValue(context.Background(), ctxKey("request"), "r-1")
	if _, err := svc.ListBooks(ctx, 5, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if inner.gotCtx == nil {
		t.Fatal("storage never saw a context")
	}
	if got := inner.gotCtx.Value(ctxKey("request")); got != "r-1" {
		t.Fatalf("caller context was not propagated, got %v", got)
	}
}
