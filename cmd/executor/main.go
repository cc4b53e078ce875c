// Command executor runs one extraction executor: it heartbeats its lease,
// polls the work queue for items the scheduler assigned to it, and drives
// each item through extraction to a terminal state.
//
// Usage:
//
//	go run ./cmd/executor [-config configs/development.yaml]
//
// The executor id defaults to a random identifier; set executor.id in the
// config (or EP_EXECUTOR_ID) to keep a stable identity across restarts.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/executor"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/notify"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/internal/store"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/logger"
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

	if cfg.Executor.ID == "" {
		cfg.Executor.ID = "executor-" + uuid.NewString()[:8]
	}
	if cfg.Executor.Extractor == "" {
		slog.Error("executor.extractor must be set")
		os.Exit(1)
	}
	slog.Info("starting executor",
		"executor_id", cfg.Executor.ID,
		"extractor", cfg.Executor.Extractor,
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

	finishedProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.WorkFinished)
	defer finishedProducer.Close()
	notifier := notify.New(nil, nil, finishedProducer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := executor.New(st, notifier, executor.NewKeywordExtractor(cfg.Executor.Extractor), cfg.Executor)

	// Work-created notifications shorten poll latency. They are advisory
	// only; the queue in the store stays authoritative, so the executor
	// works fine if Kafka is down.
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.WorkCreated, func(ctx context.Context, key, value []byte) error {
		note, err := kafka.DecodeJSON[notify.WorkNote](value)
		if err != nil {
			return err
		}
		if note.Extractor == cfg.Executor.Extractor {
			runner.Nudge()
		}
		return nil
	})
	go func() {
		if err := consumer.Start(ctx); err != nil {
			slog.Warn("work notification consumer stopped", "error", err)
		}
	}()

	if err := runner.Run(ctx); err != nil {
		slog.Error("executor stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("executor stopped")
}
