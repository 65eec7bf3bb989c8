package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/bookwormhq/bookworm-service/internal/config"
	"github.com/bookwormhq/bookworm-service/internal/services/media"
	"github.com/bookwormhq/bookworm-service/internal/storage"
	"github.com/bookwormhq/bookworm-service/internal/storage/postgres"
)

// objectStore is the slice of the media service the worker needs.
type objectStore interface {
	ListObjects(ctx context.Context) ([]minio.ObjectInfo, error)
	RemoveKey(ctx context.Context, objectKey string) error
	URLFor(objectKey string) string
}

// CleanupWorker periodically removes object-store images that no book
// references anymore. Book deletion only attempts image cleanup best-effort,
// so failed deletes leave orphans behind; this worker reconciles them.
type CleanupWorker struct {
	storage  storage.Storage
	objects  objectStore
	interval time.Duration
	grace    time.Duration
	logger   *slog.Logger
}

func NewCleanupWorker(storage storage.Storage, objects objectStore, interval, grace time.Duration) *CleanupWorker {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	return &CleanupWorker{
		storage:  storage,
		objects:  objects,
		interval: interval,
		grace:    grace,
		logger:   logger,
	}
}

func (cw *CleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(cw.interval)
	defer ticker.Stop()

	cw.logger.Info("Cleanup worker started",
		"interval", cw.interval.String(),
		"grace", cw.grace.String())

	// Run once immediately on startup
	cw.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			cw.logger.Info("Cleanup worker shutting down")
			return
		case <-ticker.C:
			cw.sweep(ctx)
		}
	}
}

func (cw *CleanupWorker) sweep(ctx context.Context) {
	startTime := time.Now()

	cw.logger.Info("Starting orphaned image sweep")

	referenced, err := cw.storage.ListBookImages(ctx)
	if err != nil {
		cw.logger.Error("Failed to list book images", "error", err.Error())
		return
	}
	inUse := make(map[string]struct{}, len(referenced))
	for _, url := range referenced {
		inUse[url] = struct{}{}
	}

	objects, err := cw.objects.ListObjects(ctx)
	if err != nil {
		cw.logger.Error("Failed to list stored objects", "error", err.Error())
		return
	}

	var scanned, removed, failed int
	for _, obj := range objects {
		scanned++

		// Fresh uploads may not be linked to a book yet.
		if time.Since(obj.LastModified) < cw.grace {
			continue
		}

		if _, ok := inUse[cw.objects.URLFor(obj.Key)]; ok {
			continue
		}

		if err := cw.objects.RemoveKey(ctx, obj.Key); err != nil {
			failed++
			cw.logger.Error("Failed to remove orphaned object",
				"object_key", obj.Key,
				"error", err.Error())
			continue
		}
		removed++
	}

	cw.logger.Info("Completed orphaned image sweep",
		"objects_scanned", scanned,
		"objects_removed", removed,
		"failures", failed,
		"duration_ms", time.Since(startTime).Milliseconds())
}

func main() {
	// Load config
	cfg := config.MustLoad()

	// Initialize database connection
	pg, err := postgres.NewPostgres(cfg)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer pg.Close()
	slog.Info("Connected to Postgres database")

	mediaService, err := media.NewService(cfg)
	if err != nil {
		log.Fatal("Failed to initialize object store:", err)
	}

	// Hourly sweep; objects younger than an hour are left alone.
	worker := NewCleanupWorker(pg, mediaService, time.Hour, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		slog.Info("Received shutdown signal")
		cancel()
	}()

	worker.Start(ctx)

	slog.Info("Cleanup worker stopped")
}
