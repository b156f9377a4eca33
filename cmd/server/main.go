// Command server exposes the core over HTTP (§11 domain stack): single-symbol
// and portfolio runs synchronously, parameter sweeps asynchronously with
// progress streamed over a websocket, plus an optional nightly cron sweep.
package main

import (
	"context"
	"os"
	"syscall"
	"time"

	"os/signal"

	"github.com/aristath/dca-simulator/internal/archive"
	"github.com/aristath/dca-simulator/internal/batch"
	"github.com/aristath/dca-simulator/internal/config"
	"github.com/aristath/dca-simulator/internal/logging"
	"github.com/aristath/dca-simulator/internal/priceprovider"
	"github.com/aristath/dca-simulator/internal/server"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New(logging.Config{Level: "info", Pretty: true})
		fallback.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logging.New(logging.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	log.Info().Msg("starting simulator server")

	priceCachePath := getEnv("SIMULATOR_PRICE_CACHE_PATH", cfg.DataDir+"/prices.db")
	provider, err := priceprovider.NewSQLiteProvider(priceCachePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open price cache")
	}
	defer provider.Close()

	var cache *batch.ResultCache
	if batchCachePath := getEnv("SIMULATOR_BATCH_CACHE_PATH", ""); batchCachePath != "" {
		cache, err = batch.OpenResultCache(batchCachePath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open batch result cache")
		}
		defer cache.Close()
	}

	var archiver *archive.Archiver
	if cfg.ArchiveEnabled() {
		ctx := context.Background()
		archiver, err = archive.New(ctx, cfg.S3Region, cfg.S3Bucket, log)
		if err != nil {
			log.Warn().Err(err).Msg("archive init failed, continuing without it")
		}
	}

	srv := server.New(server.Config{
		Log:      log,
		Config:   cfg,
		Provider: provider,
		Cache:    cache,
		Archiver: archiver,
	})

	if sweepCfgPath := getEnv("SIMULATOR_NIGHTLY_SWEEP_CONFIG", ""); sweepCfgPath != "" {
		schedule := getEnv("SIMULATOR_NIGHTLY_SWEEP_SCHEDULE", "0 2 * * *")
		if err := srv.ScheduleNightlySweep(schedule, sweepCfgPath); err != nil {
			log.Error().Err(err).Msg("failed to schedule nightly sweep")
		}
	}

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("simulator server stopped")
}
