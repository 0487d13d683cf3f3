package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"shortr/internal/api"
	"shortr/internal/api/handlers"
	"shortr/internal/api/middleware"
	"shortr/internal/engine/idgen"
	"shortr/internal/engine/lease"
	"shortr/internal/engine/links"
	"shortr/internal/engine/ratelimit"
	"shortr/internal/engine/redirect"
	"shortr/internal/pkg/logger"
	"shortr/internal/platform/cache"
	"shortr/internal/platform/config"
	"shortr/internal/platform/database"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger.Init(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate database")
		}
	}

	redisClient, err := cache.NewClient(ctx, cfg.Cache)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to cache")
	}
	defer redisClient.Close()
	store := cache.NewRedisStore(redisClient)

	// Engine
	repo := links.NewRepository(db)
	linkCache := links.NewCache(store, nil, log.Logger)
	allocator := idgen.NewAllocator(store, repo, cfg.IDAllocator.MaxWait, log.Logger)
	if cfg.Shortener.CreationLeaseTTL <= cfg.IDAllocator.MaxWait {
		log.Warn().
			Dur("creation_lease_ttl", cfg.Shortener.CreationLeaseTTL).
			Dur("id_allocator_max_wait", cfg.IDAllocator.MaxWait).
			Msg("creation lease can expire while an id is being allocated")
	}
	shortener := links.NewService(repo, allocator, linkCache, lease.NewLocker(store, cfg.Shortener.CreationLeaseTTL), links.Options{
		MaxURLLength: cfg.Shortener.MaxURLLength,
		Validity:     cfg.Shortener.Validity(),
	}, log.Logger)
	resolver := redirect.NewService(repo, linkCache, nil, log.Logger)

	// HTTP
	builder := handlers.NewLinkBuilder(cfg.Server.BaseURL, cfg.Shortener.APIVersion)
	deps := &api.Dependencies{
		LinkHandler:     handlers.NewLinkHandler(shortener, builder),
		RedirectHandler: handlers.NewRedirectHandler(resolver, builder),
		HealthHandler: handlers.NewHealthHandler(map[string]handlers.Check{
			"database": db.PingContext,
			"cache":    store.Ping,
		}),
		APIVersion: cfg.Shortener.APIVersion,
	}
	if cfg.Metrics.Enabled {
		deps.MetricsHandler = handlers.NewMetricsHandler()
	}
	if cfg.RateLimit.Enabled {
		limiter := ratelimit.NewLimiter(store, cfg.RateLimit.Limit, cfg.RateLimit.Window, log.Logger)
		deps.RateLimit = middleware.NewRateLimitMiddleware(limiter, cfg.RateLimit.TrustForwardedFor)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("api_version", cfg.Shortener.APIVersion).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		log.Error().Err(err).Msg("server failed")
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server stopped")
}
