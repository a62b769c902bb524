package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/stocktrail/stocktrail/internal/adapter/cache"
	httpadapter "github.com/stocktrail/stocktrail/internal/adapter/http"
	"github.com/stocktrail/stocktrail/internal/adapter/persistence"
	"github.com/stocktrail/stocktrail/internal/config"
	"github.com/stocktrail/stocktrail/internal/ports"
	"github.com/stocktrail/stocktrail/internal/service/logger"
	"github.com/stocktrail/stocktrail/internal/service/pin"
	"github.com/stocktrail/stocktrail/internal/service/token"
	"github.com/stocktrail/stocktrail/internal/usecase"
)

func main() {
	ctx := context.Background()

	// .env is optional; real deployments use the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	structuredLogger := logger.NewStructuredLogger(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		ServiceName: "ledger-engine",
	})
	structuredLogger.Info(ctx, "Application starting", map[string]interface{}{
		"env": cfg.Server.Environment,
	})

	// Connect to database
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxConnections)
	db.SetConnMaxIdleTime(cfg.Database.MaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	structuredLogger.Info(ctx, "Database connection established", map[string]interface{}{
		"host": cfg.Database.Host,
		"name": cfg.Database.DBName,
	})

	// Redis backs submission idempotency keys; the engine degrades to
	// raw at-least-once semantics without it.
	var idempotencyStore ports.IdempotencyStore
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		structuredLogger.Warn(ctx, "Redis unavailable, idempotency keys disabled", map[string]interface{}{
			"addr":  cfg.Redis.Addr,
			"error": err.Error(),
		})
	} else {
		idempotencyStore = cache.NewRedisIdempotencyStore(redisClient, cfg.Redis.IdempotencyTTL)
		defer redisClient.Close()
	}

	// Repositories and engine
	itemRepo := persistence.NewPostgresItemRepository(db)
	ledgerRepo := persistence.NewPostgresLedgerRepository(db)
	projector := usecase.NewSnapshotProjector(ledgerRepo, itemRepo)
	ledgerUseCase := usecase.NewLedgerUseCase(itemRepo, ledgerRepo, projector, idempotencyStore, structuredLogger)

	// Boundary services
	var tokenService ports.TokenService
	if cfg.Security.JWTSecret != "" {
		jwtService, err := token.NewJWTService(cfg.Security.JWTSecret, cfg.Security.JWTExpiration)
		if err != nil {
			log.Fatalf("Failed to initialize JWT service: %v", err)
		}
		tokenService = jwtService
	} else {
		structuredLogger.Warn(ctx, "JWT secret not set, API runs unauthenticated", nil)
	}

	var pinVerifier ports.PinVerifier
	if cfg.Security.CorrectionPinHash != "" {
		pinVerifier = pin.NewBcryptPinService(cfg.Security.CorrectionPinHash, 0)
	}

	inventoryHandler := httpadapter.NewInventoryHandler(ledgerUseCase, pinVerifier)
	server := httpadapter.NewServer(httpadapter.ServerConfig{
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}, inventoryHandler, tokenService)

	go func() {
		if err := server.Start(); err != nil {
			structuredLogger.Error(ctx, "HTTP server stopped", err, nil)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancelShutdown := context.WithTimeout(ctx, 10*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		structuredLogger.Error(ctx, "Graceful shutdown failed", err, nil)
	}
	structuredLogger.Info(ctx, "Application stopped", nil)
}
