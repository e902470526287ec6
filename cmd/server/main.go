package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"school-chat/internal/auth"
	"school-chat/internal/chat"
	"school-chat/internal/db"
	"school-chat/internal/message"
	myMiddleware "school-chat/internal/middleware"
	"school-chat/internal/user"
)

func main() {
	// 1. Config & Flags
	addr := flag.String("addr", ":8080", "http service address")
	flag.Parse()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("❌ DB_DSN is not set")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("❌ JWT_SECRET is not set")
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	// 2. Connect to Database (Platform Layer)
	database, err := db.NewDatabase(dsn)
	if err != nil {
		log.Fatalf("❌ Failed to connect to DB: %v", err)
	}
	log.Println("✅ Connected to PostgreSQL")

	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	log.Println("✅ Database Schema Initialized")

	// 3. Connect to Redis (token revocation list)
	redisClient := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}
	log.Println("✅ Connected to Redis")

	// 4. Collaborators: auth, user directory, message store
	validator := auth.NewValidator(jwtSecret, redisClient)
	userRepo := user.NewRepository(database.Conn)
	msgRepo := message.NewRepository(database.Conn)

	// 5. The real-time core: registries + dispatcher + session handler
	registry := chat.NewRegistry()
	presence := chat.NewPresenceTracker()
	rooms := chat.NewRoomIndex()
	dispatcher := chat.NewDispatcher(registry, presence, rooms)

	chatHandler := chat.NewHandler(dispatcher, msgRepo, userRepo, validator, msgRepo)
	userHandler := user.NewHandler(userRepo)

	// Opportunistic pruning of stale offline presence records
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			if n := presence.Prune(24 * time.Hour); n > 0 {
				log.Printf("pruned %d stale presence records", n)
			}
		}
	}()

	authMiddleware := myMiddleware.NewAuthMiddleware(validator)

	// 6. Define Routes
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// WebSocket endpoint authenticates itself via the token query param so
	// failures close with a websocket policy-violation code.
	r.Get("/ws/chat", chatHandler.ServeChat)

	// Protected REST routes (Require JWT)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Handle)
		r.Get("/api/presence/online", chatHandler.OnlineUsers)
		r.Get("/api/users/search", userHandler.Search)
	})

	srv := &http.Server{Addr: *addr, Handler: r}
	go func() {
		log.Printf("🚀 Server starting on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	// Graceful shutdown: tell connected clients we're going away before
	// the listener dies.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Println("Shutdown signal received")

	dispatcher.CloseAll("server shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
