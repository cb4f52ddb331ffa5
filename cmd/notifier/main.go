package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	emailconsumer "labbook/internal/notifications/consumer"
	"labbook/internal/notifications/mailer"
	"labbook/pkg/config"
	"labbook/pkg/kafka"
	kafka_config "labbook/pkg/kafka/config"
	kafka_middleware "labbook/pkg/kafka/middleware"
)

const (
	ServiceName = "labbook-notifier"

	metricsInterval = time.Minute
)

func main() {
	cfg := config.LoadWorker(ServiceName)
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Labbook notifier")

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	m, err := mailer.NewSMTPMailer(cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize mailer", "error", err)
	}

	consumer, err := kafka.NewConsumer(
		kafkaCfg,
		kafkaCfg.Email.Topic,
		kafkaCfg.Email.ConsumerGroup,
		kafkaCfg.Email.DLQTopic,
		emailconsumer.NewEmailHandler(m, cfg.Log),
		cfg.Log,
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}

	metrics := &kafka_middleware.Metrics{}
	if kafkaCfg.EnableMiddleware {
		consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
	}
	consumer.Use(metrics.ConsumerMiddleware())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go reportMetrics(ctx, cfg, metrics)

	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		cfg.Log.Error("Consumer stopped unexpectedly", "error", err)
	}

	cfg.Log.Info("Shutting down notifier")
	if err := consumer.Close(); err != nil {
		cfg.Log.Error("Failed to close consumer", "error", err)
	}
	logMetrics(cfg, metrics.Snapshot())
}

func reportMetrics(ctx context.Context, cfg *config.Config, metrics *kafka_middleware.Metrics) {
	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logMetrics(cfg, metrics.Snapshot())
		}
	}
}

func logMetrics(cfg *config.Config, s kafka_middleware.Snapshot) {
	cfg.Log.Info("Email delivery totals",
		"consumed", s.Consumed,
		"failed", s.ConsumeFailed,
		"avg_duration", s.AvgConsumeDuration,
	)
}
