package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/pixguard/pixguard/internal/config"
	"github.com/pixguard/pixguard/internal/events/kafka"
	"github.com/pixguard/pixguard/internal/fraud"
	"github.com/pixguard/pixguard/internal/interfaces"
	"github.com/pixguard/pixguard/internal/logging"
	"github.com/pixguard/pixguard/internal/pipeline"
	"github.com/pixguard/pixguard/internal/server"
	"github.com/pixguard/pixguard/internal/storage/memory"
	"github.com/pixguard/pixguard/internal/storage/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	store, health, closeStore, err := buildStore(logger, cfg.Database)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	evaluator := fraud.NewEvaluator(evaluatorOptions(cfg.Fraud))

	var publisher interfaces.EventPublisher
	var consumer *kafka.Consumer
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher

		consumer = kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, logger)
		defer consumer.Close()
	} else {
		logger.Warn("no kafka brokers configured, decisions will not be relayed")
	}

	decisionPipeline := pipeline.New(store, evaluator, publisher, logger, cfg.Fraud.PublishTimeout)

	router := server.NewRouter(logger, server.RouterDependencies{
		Health:         health,
		API:            server.NewAPIHandlers(logger, decisionPipeline),
		MetricsEnabled: cfg.HTTP.MetricsEnabled,
	})
	srv := server.New(logger, cfg.HTTP, router)

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	if consumer != nil {
		go func() {
			if err := consumer.Run(consumerCtx); err != nil {
				logger.Error("decision consumer stopped unexpectedly", "error", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			logger.Error("server stopped unexpectedly", "error", err)
		}
	}

	stopConsumer()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}

	decisionPipeline.Close()
}

func buildStore(logger *slog.Logger, cfg config.DatabaseConfig) (interfaces.TransactionStore, server.HealthService, func(), error) {
	if cfg.URL == "" {
		logger.Warn("no DATABASE_URL configured, using in-memory store")
		return memory.NewStore(), nil, func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening database: %w", err)
	}

	store := postgres.NewStore(db)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, nil, err
	}

	closeStore := func() {
		if err := db.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
			logger.Warn("closing database failed", "error", err)
		}
	}
	return store, server.ProbeFunc(store.Ping), closeStore, nil
}

func evaluatorOptions(cfg config.FraudConfig) fraud.Options {
	opts := fraud.DefaultOptions()
	if len(cfg.BlacklistedKeys) > 0 {
		opts.BlacklistedKeys = cfg.BlacklistedKeys
	}
	if len(cfg.SuspiciousTokens) > 0 {
		opts.SuspiciousTokens = cfg.SuspiciousTokens
	}
	if cfg.VelocityLimit > 0 {
		opts.Thresholds.VelocityLimit = cfg.VelocityLimit
	}
	return opts
}
