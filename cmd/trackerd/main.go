package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"bustrack-backend/config"
	"bustrack-backend/internal/api"
	"bustrack-backend/internal/auth"
	"bustrack-backend/internal/db"
	"bustrack-backend/internal/gps"
	"bustrack-backend/internal/persist"
	"bustrack-backend/internal/realtime"
	"bustrack-backend/internal/relay"
	"bustrack-backend/internal/store"
)

func main() {
	logger := log.New(os.Stdout, "bustrack ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	if cfg.Auth.JWTAccessSecret == "" {
		logger.Fatalf("JWT access secret must be configured (auth.jwt_access_secret or JWT_ACCESS_SECRET)")
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	verifier := auth.NewJWTVerifier(cfg.Auth.JWTAccessSecret)

	// The Redis client backs both the fast location cache and the relay; it
	// is a process-wide resource held for the process lifetime. Without a
	// configured endpoint the gateway runs as a single broadcast domain.
	var locations gps.LocationCache
	var rly relay.Relay
	var redisRelay *relay.RedisRelay
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Printf("Warning: redis at %s unreachable at startup: %v", cfg.Redis.Addr, err)
		}
		locations = gps.NewRedisCache(client)
		redisRelay = relay.NewRedisRelay(client)
		rly = redisRelay
		logger.Printf("shared cache/relay enabled at %s", cfg.Redis.Addr)
	} else {
		locations = gps.NewMemoryCache(cfg.Gateway.LocationTTL)
		rly = relay.NewMemoryRelay()
		logger.Println("no redis endpoint configured; running in single-process mode")
	}

	workerPool := persist.NewWorkerPool(cfg.WorkerPool.Size, appStore)
	workerPool.Start(ctx)

	dispatcher := realtime.NewDispatcher(
		uuid.NewString(),
		realtime.Config{
			PersistEveryN: cfg.Gateway.PersistEveryN,
			LocationTTL:   cfg.Gateway.LocationTTL,
		},
		verifier,
		appStore,
		locations,
		rly,
		workerPool,
	)

	// Subscriptions are registered by the dispatcher; start the receive loop.
	if redisRelay != nil {
		go redisRelay.Run(ctx)
	}

	router := api.NewRouter(cfg, appStore, dispatcher, locations, verifier)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
