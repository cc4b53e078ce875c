// Command scheduler runs the coordination control loops: draining the
// extraction event log into work items, allocating pending work to live
// executors, and requeueing work whose executor lease has expired.
//
// Several schedulers may run concurrently: work ids are deterministic and
// executor assignment is a conditional claim, so overlapping passes
// converge instead of conflicting.
//
// Usage:
//
//	go run ./cmd/scheduler [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/notify"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/scheduler"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/store"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting scheduler service",
		"drain_interval", cfg.Scheduler.DrainInterval,
		"lease_timeout", cfg.Scheduler.LeaseTimeout,
	)

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

	createdProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.WorkCreated)
	defer createdProducer.Close()
	notifier := notify.New(nil, createdProducer, nil)

	m := metrics.New()
	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(st, notifier, m, cfg.Scheduler)
	if err := sched.Run(ctx); err != nil {
		slog.Error("scheduler stopped with error", "error", err)
		os.Exit(1)
	}
	if metricsShutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := metricsShutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown error", "error", err)
		}
	}
	slog.Info("scheduler service stopped")
}
