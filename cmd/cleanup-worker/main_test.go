package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/bookwormhq/bookworm-service/internal/storage/memory"
)

const bucketBase = "http://objects.local/book-covers/"

type fakeObjectStore struct {
	objects    []minio.ObjectInfo
	removed    []string
	failRemove bool
}

func (f *fakeObjectStore) ListObjects(ctx context.Context) ([]minio.ObjectInfo, error) {
	return f.objects, nil
}

func (f *fakeObjectStore) RemoveKey(ctx context.Context, objectKey string) error {
	if f.failRemove {
		return errors.New("object store unavailable")
	}
	f.removed = append(f.removed, objectKey)
	return nil
}

func (f *fakeObjectStore) URLFor(objectKey string) string {
	return bucketBase + objectKey
}

func object(key string, age time.Duration) minio.ObjectInfo {
	return minio.ObjectInfo{Key: key, LastModified: time.Now().Add(-age)}
}

func TestSweep_RemovesOnlyAgedOrphans(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	user, err := store.CreateUser(ctx, "alice", "alice@example.com", "hash", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.CreateBook(ctx, user.ID, "Dune", "caption", bucketBase+"in-use", 5); err != nil {
		t.Fatal(err)
	}

	objects := &fakeObjectStore{objects: []minio.ObjectInfo{
		object("in-use", 2*time.Hour),
		object("orphan", 2*time.Hour),
		object("fresh-orphan", time.Minute),
	}}

	worker := NewCleanupWorker(store, objects, time.Hour, 30*time.Minute)
	worker.sweep(ctx)

	if len(objects.removed) != 1 || objects.removed[0] != "orphan" {
		t.Fatalf("expected only the aged orphan to be removed, got %v", objects.removed)
	}
}

func TestSweep_GracePeriodProtectsFreshUploads(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	// No books at all: every object is an orphan, but fresh ones survive.
	objects := &fakeObjectStore{objects: []minio.ObjectInfo{
		object("just-uploaded", time.Second),
		object("stale", time.Hour),
	}}

	worker := NewCleanupWorker(store, objects, time.Hour, 30*time.Minute)
	worker.sweep(ctx)

	if len(objects.removed) != 1 || objects.removed[0] != "stale" {
		t.Fatalf("expected only the stale object to be removed, got %v", objects.removed)
	}
}

func TestSweep_RemoveFailureDoesNotAbort(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	objects := &fakeObjectStore{
		objects:    []minio.ObjectInfo{object("orphan-1", time.Hour), object("orphan-2", time.Hour)},
		failRemove: true,
	}

	worker := NewCleanupWorker(store, objects, time.Hour, 30*time.Minute)
	worker.sweep(ctx)

	// Both removals fail; the sweep still completes.
	if len(objects.removed) != 0 {
		t.Fatalf("expected no successful removals, got %v", objects.removed)
	}
}
