// Package main provides the ingestord worker service: the long-running
// claim/process/commit loops of the durable job-claim and retry engine.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ingestord/ingestord/internal/config"
	"github.com/ingestord/ingestord/internal/ingestion"
	"github.com/ingestord/ingestord/internal/notify"
	"github.com/ingestord/ingestord/internal/policy"
	"github.com/ingestord/ingestord/internal/store"
	"github.com/ingestord/ingestord/internal/worker"
)

const (
	version = "1.0.0-dev"
	name    = "ingestord-worker"
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	logLevel := config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))

	logger.Info("starting ingestord worker service", slog.String("service", name), slog.String("version", version))

	storeConfig := store.LoadConfig()

	conn, err := store.NewConnection(storeConfig)
	if err != nil {
		logger.Error("failed to connect to database",
			slog.String("database", storeConfig.MaskDatabaseURL()),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	jobStore, err := store.New(conn, logger)
	if err != nil {
		logger.Error("failed to create job store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	publisher := loadPublisher(logger)
	defer func() { _ = publisher.Close() }()

	workerCfg := loadWorkerConfig()

	overrides, err := policy.LoadConfig(config.GetEnvStr(policy.ConfigPathEnvVar, ""))
	if err != nil {
		logger.Error("failed to load tenant policy overrides", slog.String("error", err.Error()))
		os.Exit(1)
	}

	resolver := policy.NewResolver(overrides, workerCfg.DefaultRetry)

	pool := worker.NewPool(jobStore, publisher, resolver, workerCfg, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("worker pool starting",
		slog.Int("concurrency", workerCfg.Concurrency),
		slog.Duration("poll_interval", workerCfg.PollInterval),
		slog.Duration("idle_backoff_max", workerCfg.IdleBackoffMax),
	)

	pool.Run(ctx)

	logger.Info("ingestord worker service stopped")
}

// loadPublisher builds the job-event notification publisher. An empty
// KAFKA_BROKERS disables publishing entirely.
func loadPublisher(logger *slog.Logger) notify.Publisher {
	brokers := config.ParseCommaSeparatedList(config.GetEnvStr("KAFKA_BROKERS", ""))
	if len(brokers) == 0 {
		logger.Warn("KAFKA_BROKERS not configured - job-event notifications disabled")

		return notify.NopPublisher{}
	}

	topic := config.GetEnvStr("KAFKA_TOPIC", notify.DefaultTopic)

	publisher, err := notify.NewKafkaPublisher(brokers, topic, logger)
	if err != nil {
		logger.Error("failed to create Kafka publisher, notifications disabled", slog.String("error", err.Error()))

		return notify.NopPublisher{}
	}

	logger.Info("job-event notifications enabled", slog.Any("brokers", brokers), slog.String("topic", topic))

	return publisher
}

func loadWorkerConfig() worker.Config {
	pollSeconds := config.GetEnvInt("WORKER_POLL_SECONDS", 1)
	idleBackoffMaxSeconds := config.GetEnvInt("WORKER_IDLE_BACKOFF_MAX_SECONDS", pollSeconds)

	return worker.Config{
		Concurrency:             config.GetEnvInt("WORKER_CONCURRENCY", 2),
		PollInterval:            time.Duration(pollSeconds) * time.Second,
		IdleBackoffMax:          time.Duration(idleBackoffMaxSeconds) * time.Second,
		StaleLockTimeoutSeconds: config.GetEnvInt("STALE_LOCK_TIMEOUT_SECONDS", 300),
		DefaultRetry: ingestion.RetryConfig{
			MaxAttempts:        config.GetEnvInt("MAX_ATTEMPTS", ingestion.DefaultMaxAttempts),
			BaseBackoffSeconds: config.GetEnvInt("BASE_BACKOFF_SECONDS", ingestion.DefaultBaseBackoffSeconds),
		},
	}
}
