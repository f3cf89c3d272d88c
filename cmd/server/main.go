package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"susu/internal/capabilities"
	circlehandler "susu/internal/circle/handler"
	circlemetrics "susu/internal/circle/metrics"
	circleservice "susu/internal/circle/service"
	circlestore "susu/internal/circle/store"
	"susu/internal/events"
	"susu/internal/platform/config"
	"susu/internal/platform/httpserver"
	"susu/internal/platform/logger"
	platformmetrics "susu/internal/platform/metrics"
	"susu/internal/platform/middleware"
	platformredis "susu/internal/platform/redis"
	protocolhandler "susu/internal/protocol/handler"
	protocolservice "susu/internal/protocol/service"
	protocolstore "susu/internal/protocol/store"
	"susu/pkg/domain"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(slog.LevelInfo)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := domain.ParseAccount(cfg.PoolAccount)
	if err != nil {
		return fmt.Errorf("pool account: %w", err)
	}

	// Stores: Postgres when configured, in-memory otherwise.
	var (
		circles  circleservice.CircleStore
		protocol protocolservice.ProtocolStore
	)
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()

		circlePG := circlestore.NewPostgres(db)
		if err := circlePG.EnsureSchema(ctx); err != nil {
			return err
		}
		protocolPG := protocolstore.NewPostgres(db)
		if err := protocolPG.EnsureSchema(ctx); err != nil {
			return err
		}
		circles, protocol = circlePG, protocolPG
		log.Info("using postgres stores")
	} else {
		circles = circlestore.NewInMemoryCircleStore()
		protocol = protocolstore.NewInMemoryProtocolStore()
		log.Warn("postgres not configured, state is in-memory and volatile")
	}

	// Signal publisher: Kafka when configured, in-memory sink otherwise.
	var publisher events.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return fmt.Errorf("kafka publisher: %w", err)
		}
		defer kafka.Close()
		publisher = kafka
		log.Info("publishing signals to kafka", "topic", cfg.KafkaTopic)
	} else {
		publisher = events.NewMemoryPublisher()
		log.Warn("kafka not configured, signals stay in-process")
	}

	// Rate limit window store: Redis when configured, in-process otherwise.
	var window middleware.WindowStore
	if redisClient, err := platformredis.New(cfg.RedisURL); err != nil {
		return fmt.Errorf("redis: %w", err)
	} else if redisClient != nil {
		defer redisClient.Close()
		window = middleware.NewRedisWindowStore(redisClient.Client)
		log.Info("rate limiting via redis")
	} else {
		window = middleware.NewMemoryWindowStore()
	}

	tokens := capabilities.NewTokenService(cfg.JWTSigningKey, cfg.JWTIssuer)
	authorizer := capabilities.NewContextAuthorizer()
	ledger := capabilities.NewInMemoryLedger(pool)
	badges := capabilities.NewInMemoryBadges()
	random := capabilities.NewCryptoRandSource()

	protocolSvc := protocolservice.New(protocol, ledger, authorizer, pool,
		protocolservice.WithLogger(log))
	circleSvc := circleservice.New(circles, ledger, authorizer, random, protocolSvc, pool,
		circleservice.WithLogger(log),
		circleservice.WithPublisher(publisher),
		circleservice.WithBadge(badges),
		circleservice.WithMetrics(circlemetrics.New()),
	)

	limiter := middleware.NewRateLimiter(window, cfg.RateLimit.Requests, cfg.RateLimit.Window, log)

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestMeta)
	r.Use(platformmetrics.NewHTTP().Middleware)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Use(limiter.Limit)
		r.Use(middleware.RequireAuth(tokens, log))
		circlehandler.New(circleSvc, log).Register(r)
		protocolhandler.New(protocolSvc, log).Register(r)
	})

	srv := httpserver.New(cfg.Addr, r)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting susu server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
