package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"market-delivery/internal/auth"
	"market-delivery/internal/config"
	"market-delivery/internal/confirm"
	"market-delivery/internal/events"
	natspub "market-delivery/internal/events/nats"
	"market-delivery/internal/logger"
	"market-delivery/internal/pricing"
	"market-delivery/internal/remote"
	"market-delivery/internal/repo/postgres"
	"market-delivery/internal/service"
	"market-delivery/internal/tariff"
	"market-delivery/internal/transport/grpcapi"
	"market-delivery/internal/transport/httpapi"
	"market-delivery/internal/transport/thriftapi"
)

const redisTariffKey = "market-delivery:tariff"

func main() {
	log := logger.New(logger.LevelNormal, os.Stderr)
	cfg, err := config.Load()
	if err != nil {
		log.Error("config error: %v", err)
		os.Exit(1)
	}
	log.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server error: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *logger.Logger) error {
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.MigrateOnStart {
		if err := postgres.ApplyMigrations(ctx, pool, "migrations"); err != nil {
			return err
		}
	}
	store := postgres.NewStore(pool)

	var upstream *remote.Client
	if cfg.UpstreamBaseURL != "" {
		upstream = remote.New(cfg.UpstreamBaseURL, cfg.UpstreamToken, &http.Client{Timeout: cfg.UpstreamTimeout})
	}

	var cache tariff.Cache = tariff.NewMemoryCache(cfg.TariffCacheTTL, nil)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unavailable at %s, using in-process tariff cache: %v", cfg.RedisAddr, err)
		} else {
			cache = tariff.NewRedisCache(rdb, redisTariffKey, cfg.TariffCacheTTL)
		}
	}

	// With the remote source the upstream also prices cart delivery, so both
	// fees come from the same place.
	remoteTariff := cfg.TariffSource == config.TariffSourceRemote
	var source tariff.Source = store
	if remoteTariff {
		source = upstream
	}
	estimator := tariff.NewEstimator(source, cache, log)
	var fees pricing.FeeQuoter = estimator
	if remoteTariff {
		fees = upstream
	}

	cart := pricing.NewCalculator(fees, log,
		pricing.WithCommissionRate(decimal.NewFromFloat(cfg.CommissionRate)),
		pricing.WithFallbackFee(decimal.NewFromFloat(cfg.FallbackFee)),
	)

	var confirmer confirm.Confirmer = confirm.LocalConfirmer{}
	if upstream != nil {
		confirmer = upstream
	}
	regret := confirm.NewManager(confirmer, service.NewDecisionRecorder(store), log, confirm.WithWindow(cfg.RegretWindow))
	defer regret.Close()

	svc := service.New(store, estimator, cart,
		service.WithCoverage(cfg.Coverage),
		service.WithPrepTime(cfg.PrepTimeMin),
		service.WithRegretWindow(regret),
		service.WithTariffAdmin(!remoteTariff),
		service.WithLogger(log),
	)
	authenticator := auth.New(cfg.JWTSecret, cfg.JWTTTL)

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.OutboxEnabled {
		natsPublisher, err := natspub.New(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			return err
		}
		publisher = natsPublisher
		defer publisher.Close()
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewServer(svc, authenticator, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpcapi.NewServer(svc, authenticator)
	grpcListener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	thriftServer, err := thriftapi.NewServer(cfg.ThriftAddr, svc, authenticator)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http listening on %s", cfg.HTTPAddr)
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		log.Info("grpc listening on %s", cfg.GRPCAddr)
		err := grpcServer.Serve(grpcListener)
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		log.Info("thrift listening on %s", cfg.ThriftAddr)
		return thriftServer.Serve()
	})

	if cfg.OutboxEnabled {
		worker := &events.OutboxWorker{
			Repo:         store,
			Publisher:    publisher,
			PollInterval: cfg.OutboxInterval,
			BatchSize:    cfg.OutboxBatch,
			Logger:       log,
		}
		g.Go(func() error {
			log.Info("outbox worker running (interval=%s batch=%d)", cfg.OutboxInterval, cfg.OutboxBatch)
			err := worker.Start(ctx)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
		thriftServer.Stop()
		log.Info("shutdown complete, tariff fallbacks served: %d", estimator.Fallbacks())
		return nil
	})

	return g.Wait()
}
