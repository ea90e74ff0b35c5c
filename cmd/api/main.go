// Package main is the entry point for the linkshort API server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/jmdto/linkshort/internal/analytics"
	"github.com/jmdto/linkshort/internal/auth"
	"github.com/jmdto/linkshort/internal/cache"
	"github.com/jmdto/linkshort/internal/clicks"
	"github.com/jmdto/linkshort/internal/config"
	"github.com/jmdto/linkshort/internal/database"
	"github.com/jmdto/linkshort/internal/handlers"
	"github.com/jmdto/linkshort/internal/repository"
	"github.com/jmdto/linkshort/internal/server"
	"github.com/jmdto/linkshort/internal/services"
	"github.com/jmdto/linkshort/internal/shortcode"
	"github.com/jmdto/linkshort/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(os.Stdout, cfg.App.LogLevel)
	log.Info("starting linkshort", "env", cfg.App.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.NewPool(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	migrator, err := database.NewMigrator(pool)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	applied, err := migrator.Up(ctx)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	if applied > 0 {
		log.Info("migrations applied", "count", applied)
	}

	var linkRepo repository.LinkRepository = repository.NewPostgresLinkRepository(pool)
	userRepo := repository.NewPostgresUserRepository(pool)

	var redisCache *cache.RedisCache
	if cfg.Redis.Enabled() {
		redisCache, err = cache.NewRedisCache(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisCache.Close()

		linkCache := cache.NewLinkCache(redisCache, cfg.Redis.CacheTTL)
		linkRepo = repository.NewCachedLinkRepository(linkRepo, linkCache)
		log.Info("redis cache enabled", "host", cfg.Redis.Host)
	}

	flusher := clicks.NewStoreFlusher(linkRepo, log)
	counter := clicks.NewCounter(clicks.DefaultConfig(), flusher)
	// Deferred after the pool's Close, so pending clicks flush before the
	// database connection goes away.
	defer counter.Stop()

	notifier := analytics.NewNotifier(&cfg.Analytics, log)
	if cfg.Analytics.Enabled() {
		log.Info("analytics notifier enabled", "endpoint", cfg.Analytics.Endpoint)
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	allocator := shortcode.NewAllocator()

	resolver := services.NewResolver(linkRepo, counter, notifier, log)
	linkService := services.NewLinkService(linkRepo, allocator, cfg.Shortener.BaseURL, log)
	userService := services.NewUserService(userRepo, tokens, log)

	srv := server.New(cfg, log, server.Handlers{
		Redirect: handlers.NewRedirectHandler(resolver, log),
		Link:     handlers.NewLinkHandler(linkService),
		User:     handlers.NewUserHandler(userService),
		Auth:     handlers.NewAuthHandler(userService, cfg.Auth.TokenTTL, cfg.App.IsProduction()),
	}, tokens)

	srv.HealthHandler().AddCheck("database", func() bool {
		checkCtx, checkCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer checkCancel()
		return pool.HealthCheck(checkCtx) == nil
	})
	if redisCache != nil {
		srv.HealthHandler().AddCheck("redis", func() bool {
			checkCtx, checkCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer checkCancel()
			return redisCache.Ping(checkCtx) == nil
		})
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case sig := <-sigCh:
		log.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}
