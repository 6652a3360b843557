package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"market-delivery/internal/config"
	"market-delivery/internal/events"
	natspub "market-delivery/internal/events/nats"
	"market-delivery/internal/logger"
	"market-delivery/internal/repo/postgres"
)

// The worker relays the outbox when the API servers run with
// OUTBOX_ENABLED=false.
func main() {
	log := logger.New(logger.LevelNormal, os.Stderr)
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Error("config error: %v", err)
		os.Exit(1)
	}
	log.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db error: %v", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.MigrateOnStart {
		if err := postgres.ApplyMigrations(ctx, pool, "migrations"); err != nil {
			log.Error("migration error: %v", err)
			os.Exit(1)
		}
	}

	publisher, err := natspub.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		log.Error("nats error: %v", err)
		os.Exit(1)
	}
	defer publisher.Close()

	worker := &events.OutboxWorker{
		Repo:         postgres.NewStore(pool),
		Publisher:    publisher,
		PollInterval: cfg.OutboxInterval,
		BatchSize:    cfg.OutboxBatch,
		Logger:       log,
	}

	log.Info("outbox worker running (interval=%s batch=%d subject=%s)", cfg.OutboxInterval, cfg.OutboxBatch, cfg.NATSSubject)
	if err := worker.Start(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		log.Error("worker error: %v", err)
	}
}
