package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adjaraux/academy-backend/internal/config"
	"github.com/Adjaraux/academy-backend/internal/database"
	"github.com/Adjaraux/academy-backend/internal/handlers"
	"github.com/Adjaraux/academy-backend/internal/middleware"
	"github.com/Adjaraux/academy-backend/internal/navigation"
	"github.com/Adjaraux/academy-backend/internal/repository"
	"github.com/Adjaraux/academy-backend/internal/router"
	"github.com/Adjaraux/academy-backend/internal/services"
	"github.com/Adjaraux/academy-backend/internal/websocket"
	"github.com/Adjaraux/academy-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting Academy Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations"); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Initialize Repositories ────
	courseRepo := repository.NewCourseRepo(pool)
	questionRepo := repository.NewQuestionRepo(pool)
	attemptRepo := repository.NewAttemptRepo(pool)
	progressRepo := repository.NewProgressRepo(pool)

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	eventPublisher := services.NewEventPublisher(redisClients.PubSub)
	lockStateService := services.NewLockStateService(courseRepo, progressRepo, redisClients.Queue)
	attemptService := services.NewAttemptService(attemptRepo, questionRepo, courseRepo)
	mediaService := services.NewMediaService(cfg.JWTSecret, redisClients.Queue, cfg.PublicURL)
	completionService := services.NewCompletionService(
		progressRepo,
		courseRepo,
		questionRepo,
		attemptRepo,
		lockStateService,
		eventPublisher,
		redisClients.Queue,
	)

	controller := navigation.NewController(
		courseRepo,
		questionRepo,
		progressRepo,
		attemptService,
		mediaService,
		lockStateService,
		completionService,
	)

	// ──── Initialize Handlers ────
	courseHandler := handlers.NewCourseHandler(courseRepo, progressRepo, lockStateService)
	playerHandler := handlers.NewPlayerHandler(controller, completionService)
	quizHandler := handlers.NewQuizHandler(controller, attemptService)
	mediaHandler := handlers.NewMediaHandler(mediaService, cfg.StoragePath)

	// ──── Step 5: Start Lock Recompute Workers ────
	workerPool := worker.NewPool(redisClients.Queue, lockStateService, eventPublisher, cfg.WorkerCount)
	workerPool.Start()
	log.Printf("✓ Worker pool started (%d goroutines)", cfg.WorkerCount)

	// ──── Step 6: Start Attempt Expiry Sweeper ────
	expirySweeper := services.NewExpirySweeper(attemptRepo, attemptService, eventPublisher)
	expirySweeper.Start()
	log.Println("✓ Attempt expiry sweeper started")

	// ──── Step 7: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, cfg.JWTSecret)
	log.Println("✓ WebSocket hub started")

	// ──── Step 8: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		courseHandler,
		playerHandler,
		quizHandler,
		mediaHandler,
		wsHub,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		workerPool.Stop()
		expirySweeper.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ Academy Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
