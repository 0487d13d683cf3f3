package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"shortr/internal/engine/idgen"
	"shortr/internal/engine/links"
	"shortr/internal/pkg/logger"
	"shortr/internal/platform/cache"
	"shortr/internal/platform/config"
	"shortr/internal/platform/database"
	"shortr/internal/workers"
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

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	redisClient, err := cache.NewClient(ctx, cfg.Cache)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to cache")
	}
	defer redisClient.Close()

	allocator := idgen.NewAllocator(cache.NewRedisStore(redisClient), links.NewRepository(db), cfg.IDAllocator.MaxWait, log.Logger)

	workers.RunReconciler(ctx, allocator, cfg.Worker.ReconcileInterval, log.Logger)
}
