// Command coordinator starts the extraction coordination HTTP service.
//
// The service owns the durable store's API surface: repository and binding
// registration, content ingestion, the extractor/index/attribute registries,
// and the work endpoints executors pull from. Health probes live at
// GET /health/live and GET /health/ready.
//
// Usage:
//
//	go run ./cmd/coordinator [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/auth/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/cache"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/coordinator/handler"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/coordinator/router"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/notify"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/store"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/redis"
)

// main loads configuration, connects to PostgreSQL (required), Redis and
// Kafka (optional), wires the handler and middleware chain, and runs the
// HTTP server until SIGINT/SIGTERM.
func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	noAuth := flag.Bool("no-auth", false, "disable api key authentication")
	flag.Parse()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting coordinator service", "port", cfg.Server.Port)

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to postgres")

	st := store.New(db)
	if err := st.Migrate(context.Background()); err != nil {
		slog.Error("failed to migrate schema", "error", err)
		os.Exit(1)
	}

	var catalog *cache.Catalog
	m := metrics.New()
	if redisClient, err := pkgredis.NewClient(cfg.Redis); err != nil {
		slog.Warn("redis unavailable, catalog cache disabled", "error", err)
	} else {
		defer redisClient.Close()
		catalog = cache.New(redisClient, cfg.Redis, m)
		slog.Info("catalog cache enabled", "addr", cfg.Redis.Addr)
	}

	contentProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.ContentIngested)
	defer contentProducer.Close()
	finishedProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.WorkFinished)
	defer finishedProducer.Close()
	notifier := notify.New(contentProducer, nil, finishedProducer)

	var validator *apikey.Validator
	var limiter *ratelimit.Limiter
	if !*noAuth {
		validator = apikey.NewValidator(db)
		limiter = ratelimit.New(time.Minute)
	}

	checker := health.NewChecker()
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if err := st.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	h := handler.New(st, catalog, notifier, validator, m)
	mux := router.New(router.Deps{
		Handler:   h,
		Validator: validator,
		Limiter:   limiter,
		Metrics:   m,
		Health:    checker,
	})

	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if metricsShutdown != nil {
			if err := metricsShutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
	}()
	slog.Info("coordinator service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("coordinator service stopped")
}
