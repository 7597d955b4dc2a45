package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/noah-isme/resto-pricing/internal/app"
	"github.com/noah-isme/resto-pricing/internal/config"
	"github.com/noah-isme/resto-pricing/internal/events"
	"github.com/noah-isme/resto-pricing/internal/lock"
	"github.com/noah-isme/resto-pricing/internal/obs"
)

// The worker relays outbox events that the API could not hand to Kafka.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("component", "worker").Logger()

	if !cfg.KafkaEnabled() {
		logger.Warn().Msg("KAFKA_BROKERS is empty; nothing to relay")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// the API instance owns migrations
	cfg.RunMigrations = false
	cfg.Obs.MetricsEnabled = false
	deps, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error().Err(err).Msg("close dependencies")
		}
	}()

	relay := events.Relay{
		Store:     events.PGStore{DB: deps.DB},
		Publisher: deps.Bus.Publisher,
		Locker:    lock.Locker{R: deps.Redis, Wait: time.Second},
		Logger:    logger,
		Batch:     cfg.RelayBatch,
	}
	logger.Info().Dur("interval", cfg.RelayInterval).Msg("event relay started")
	if err := relay.Run(ctx, cfg.RelayInterval); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("event relay stopped")
	}
}
