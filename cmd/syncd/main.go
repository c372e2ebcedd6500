// Package main is the entry point for the Owlet sync backend.
//
// The daemon is intentionally small: PostgreSQL holds account progress
// totals, Redis enforces the daily coin cap, and a thin REST surface
// serves the three endpoints the client speaks.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/owlet-learn/owlet-core/config"
	"github.com/owlet-learn/owlet-core/internal/infrastructure/persistence/postgres"
	"github.com/owlet-learn/owlet-core/internal/infrastructure/persistence/redis"
	httpserver "github.com/owlet-learn/owlet-core/internal/interface/http"
	"github.com/owlet-learn/owlet-core/pkg/datekey"
	"github.com/owlet-learn/owlet-core/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// Configuration and logging
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Options{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
	}).With(logger.Component("syncd"))

	log.Info("starting sync backend",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("timezone", cfg.App.Timezone),
	)

	if cfg.App.Location != nil {
		datekey.SetReferenceZone(cfg.App.Location)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Database
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	dbConn, err := postgres.NewConnection(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection")
		dbConn.Close()
	}()

	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("migrations applied")

	progressRepo := postgres.NewProgressRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// Redis: daily coin cap + hot progress cache (both optional)
	// ─────────────────────────────────────────────────────────────────────────
	var progressStore httpserver.ProgressStore = progressRepo
	var capCounter httpserver.CoinCap

	if !cfg.Redis.Disabled {
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		client, err := redis.NewClient(redisCfg)
		if err != nil {
			// Progress still syncs without redis, it just loses the
			// daily ceiling and the hot cache. Degrade instead of
			// refusing to start.
			log.Warn("redis unavailable, coin cap and progress cache disabled", logger.Err(err))
		} else {
			defer func() { _ = client.Close() }()

			cache := redis.NewProgressCache(client, redis.DefaultProgressTTL)
			progressStore = redis.NewCachedProgressStore(progressRepo, cache, log)

			if cfg.Sync.DailyCoinCap > 0 {
				counter, err := redis.NewCapCounter(client, cfg.Sync.DailyCoinCap)
				if err != nil {
					return fmt.Errorf("failed to create cap counter: %w", err)
				}
				capCounter = counter
				log.Info("daily coin cap enabled", logger.Int("cap", cfg.Sync.DailyCoinCap))
			}
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Token signing
	// ─────────────────────────────────────────────────────────────────────────
	secret := cfg.Auth.JWTSecret
	if secret == "" {
		// Config validation already rejects this in production.
		secret = uuid.NewString()
		log.Warn("AUTH_JWT_SECRET not set, using an ephemeral secret; tokens will not survive restarts")
	}

	tokens, err := httpserver.NewTokenIssuer(secret, cfg.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("failed to create token issuer: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// HTTP server
	// ─────────────────────────────────────────────────────────────────────────
	serverCfg := httpserver.DefaultConfig()
	serverCfg.Addr = cfg.HTTP.Addr
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	serverCfg.DevTokenEndpoint = cfg.Auth.DevTokenEndpoint

	server := httpserver.NewServer(serverCfg, httpserver.Dependencies{
		Progress: progressStore,
		Cap:      capCounter,
		Tokens:   tokens,
		DB:       dbConn,
		Logger:   log,
	})

	errCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// Graceful shutdown
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownTimeout := cfg.App.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	log.Info("sync backend stopped")
	return nil
}
