package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fraglink-io/fraglink/config"
	"github.com/fraglink-io/fraglink/internal/app/codefilter"
	"github.com/fraglink-io/fraglink/internal/app/resolver"
	appserver "github.com/fraglink-io/fraglink/internal/app/server"
	"github.com/fraglink-io/fraglink/internal/app/service"
	"github.com/fraglink-io/fraglink/internal/app/store"
	"github.com/fraglink-io/fraglink/internal/infra/logger"
	natsclient "github.com/fraglink-io/fraglink/internal/infra/nats"
	infraPostgres "github.com/fraglink-io/fraglink/internal/infra/postgres"
	infraPrometheus "github.com/fraglink-io/fraglink/internal/infra/prometheus"
	infraRedis "github.com/fraglink-io/fraglink/internal/infra/redis"
	"github.com/fraglink-io/fraglink/internal/infra/slot"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		boot := logger.MustNew(logger.Config{Development: true})
		boot.Fatal("failed to load config", zap.Error(err))
	}

	log := logger.MustNew(logger.Config{
		Development: cfg.Log.Development,
		Level:       cfg.Log.Level,
		Encoding:    cfg.Log.Encoding,
	})
	defer func() { _ = logger.Sync(log) }()

	log.Info("configuration loaded",
		zap.String("addr", cfg.Server.Addr),
		zap.String("base_url", cfg.Server.BaseURL),
		zap.String("store_backend", cfg.Store.Backend),
		zap.Bool("nats_enabled", cfg.NATS.Enabled),
		zap.Bool("prometheus_enabled", cfg.Prometheus.Enabled),
	)

	// Redis serves the redis slot backend, the rate limiter, and the
	// visit tally consumer. Connect only when one of them is in play.
	var redisConn *redis.Client
	needRedis := cfg.Store.Backend == config.StoreBackendRedis ||
		cfg.RateLimit.Enabled ||
		cfg.NATS.Enabled
	if needRedis {
		redisConn, err = infraRedis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisConn.Close()
		log.Info("connected to redis")
	}

	linkSlot, closeSlot := buildSlot(ctx, cfg, log, redisConn)
	defer closeSlot()

	st := store.New(linkSlot, log, cfg.Store.SaveRetries)

	metrics := infraPrometheus.NewMetrics(nil)

	filter := codefilter.New(cfg.Store.ExpectedCodes, 0)
	seed, err := st.Load(ctx)
	if err != nil {
		log.Fatal("failed to load link store", zap.Error(err))
	}
	filter.Seed(seed)
	log.Info("link store loaded", zap.Int("links", len(seed)))

	var visitPub resolver.VisitPublisher
	var consumer *service.VisitConsumer
	if cfg.NATS.Enabled {
		natsConn, js, err := natsclient.Connect(cfg.NATS)
		if err != nil {
			log.Fatal("failed to connect to nats", zap.Error(err))
		}
		defer natsConn.Drain()
		log.Info("connected to nats")

		visitPub = service.NewVisitPublisher(js)

		consumer = service.NewVisitConsumer(js, log, redisConn, metrics)
		if err := consumer.Start(); err != nil {
			log.Fatal("failed to start visit consumer", zap.Error(err))
		}
		defer consumer.Stop()
	}

	res := resolver.New(resolver.Deps{
		Logger:    log,
		Store:     st,
		Filter:    filter,
		Publisher: visitPub,
		Metrics:   metrics,
	})

	links := service.NewLinkService(service.Deps{
		Logger:     log,
		Store:      st,
		Filter:     filter,
		Metrics:    metrics,
		CodeLength: cfg.Store.CodeLength,
	})

	sweepInterval, err := time.ParseDuration(cfg.Store.SweepInterval)
	if err != nil {
		log.Fatal("invalid sweep interval", zap.String("value", cfg.Store.SweepInterval), zap.Error(err))
	}
	sweeper := service.NewExpirySweeper(log, st, metrics, sweepInterval)
	sweeper.Start()
	defer sweeper.Stop()

	if cfg.Prometheus.Enabled {
		promServer := infraPrometheus.NewServer(cfg.Prometheus, metrics.Registry)
		go func() {
			log.Info("prometheus metrics server listening", zap.Int("port", cfg.Prometheus.Port))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("failed to close prometheus server", zap.Error(err))
			}
		}()
	}

	srv := appserver.New(appserver.Dependencies{
		Logger:   log,
		Config:   cfg,
		Store:    st,
		Links:    links,
		Resolver: res,
		Redis:    redisConn,
		Metrics:  metrics,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen(cfg.Server.Addr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal("fiber server exited", zap.Error(err))
		}
	case sig := <-stop:
		log.Info("shutting down", zap.String("signal", sig.String()))
		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", zap.Error(err))
		}
	}
}

// buildSlot materializes the configured slot backend. The returned
// close func releases whatever connections the backend opened.
func buildSlot(ctx context.Context, cfg *config.Config, log *zap.Logger, redisConn *redis.Client) (store.Slot, func()) {
	noop := func() {}

	switch cfg.Store.Backend {
	case config.StoreBackendMemory:
		return slot.NewMemory(), noop

	case config.StoreBackendFile:
		return slot.NewFile(cfg.Store.FilePath), noop

	case config.StoreBackendRedis:
		if redisConn == nil {
			log.Fatal("redis slot backend requires a redis connection")
		}
		return slot.NewRedis(redisConn, cfg.Store.SlotKey), noop

	case config.StoreBackendPostgres:
		gormDB, err := infraPostgres.NewGorm(cfg.Postgres)
		if err != nil {
			log.Fatal("failed to open gorm connection", zap.Error(err))
		}
		if err := infraPostgres.AutoMigrate(ctx, gormDB, &slot.Row{}); err != nil {
			log.Fatal("failed to run database migrations", zap.Error(err))
		}
		sqlDB, err := gormDB.DB()
		if err != nil {
			log.Fatal("failed to access underlying sql db", zap.Error(err))
		}

		pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			log.Fatal("failed to connect to postgres", zap.Error(err))
		}
		log.Info("connected to postgres")

		return slot.NewPostgres(pool, cfg.Store.SlotKey), func() {
			pool.Close()
			_ = sqlDB.Close()
		}

	default:
		log.Fatal("unknown store backend", zap.String("backend", cfg.Store.Backend))
		return nil, noop
	}
}
