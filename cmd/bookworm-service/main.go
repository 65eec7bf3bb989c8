package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/bookwormhq/bookworm-service/docs"
	"github.com/bookwormhq/bookworm-service/internal/cache"
	"github.com/bookwormhq/bookworm-service/internal/config"
	"github.com/bookwormhq/bookworm-service/internal/events"
	authHandlers "github.com/bookwormhq/bookworm-service/internal/http/handlers/auth"
	"github.com/bookwormhq/bookworm-service/internal/http/handlers/books"
	wsHandlers "github.com/bookwormhq/bookworm-service/internal/http/handlers/websocket"
	"github.com/bookwormhq/bookworm-service/internal/http/middleware"
	"github.com/bookwormhq/bookworm-service/internal/services/media"
	"github.com/bookwormhq/bookworm-service/internal/storage/postgres"
	ws "github.com/bookwormhq/bookworm-service/internal/websocket"
)

// @title Bookworm Service API
// @version 1.0
// @description Social book-review backend: auth, book feed, image upload.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// load config
	cfg := config.MustLoad()

	// database setup
	pg, err := postgres.NewPostgres(cfg)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer pg.Close()
	slog.Info("Connected to Postgres database")

	// redis setup
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		log.Fatal("Failed to connect to redis:", err)
	}
	defer redisClient.Close()
	slog.Info("Connected to Redis")

	store := cache.NewCacheService(pg, redisClient)

	// object store setup
	mediaService, err := media.NewService(cfg)
	if err != nil {
		log.Fatal("Failed to initialize object store:", err)
	}
	slog.Info("Connected to object store")

	// realtime hub
	hub := ws.NewHub()
	go hub.Run()
	publisher := events.NewEventPublisher(hub)

	bookHandlers := books.NewBookHandlers(store, mediaService, publisher, cfg.Env)
	auth := middleware.AuthMiddleware(store, cfg.JWTSecret)
	limits := middleware.NewRateLimitConfig(redisClient)

	// setup server
	router := http.NewServeMux()

	router.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	router.HandleFunc("POST /auth/register", authHandlers.Register(store, cfg.JWTSecret))
	router.HandleFunc("POST /auth/login", authHandlers.Login(store, cfg.JWTSecret))

	router.Handle("POST /books", auth(limits.RateLimitedHandler("books", bookHandlers.Create())))
	router.HandleFunc("GET /books", bookHandlers.Feed())
	router.Handle("GET /books/user", auth(bookHandlers.UserBooks()))
	router.Handle("DELETE /books/{id}", auth(bookHandlers.Delete()))

	router.HandleFunc("GET /ws", wsHandlers.Serve(hub, store, cfg.JWTSecret))

	router.Handle("GET /admin/cache/stats", auth(cache.GetCacheStats(redisClient)))
	router.Handle("GET /swagger/", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	server := http.Server{
		Addr:    cfg.HTTPServer.Address,
		Handler: router,
	}

	log.Println("server started on", cfg.HTTPServer.Address)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %s", err)
		}
	}()

	<-done

	slog.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = server.Shutdown(ctx)
	if err != nil {
		slog.Error("failed to gracefully shutdown server", slog.String("error", err.Error()))
		return
	}

	slog.Info("Server stopped")
}
