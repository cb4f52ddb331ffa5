package main

import (
	"context"

	bookingshandler "labbook/internal/bookings/handler"
	bookingsrepository "labbook/internal/bookings/repository"
	bookingsservice "labbook/internal/bookings/service"
	bookingsvalidator "labbook/internal/bookings/validator"
	"labbook/internal/health"
	labshandler "labbook/internal/labs/handler"
	labsrepository "labbook/internal/labs/repository"
	labsservice "labbook/internal/labs/service"
	labsvalidator "labbook/internal/labs/validator"
	"labbook/internal/notifications/dispatcher"
	notificationshandler "labbook/internal/notifications/handler"
	"labbook/internal/notifications/mailer"
	notificationsrepository "labbook/internal/notifications/repository"
	notificationsservice "labbook/internal/notifications/service"
	reportshandler "labbook/internal/reports/handler"
	reportsrepository "labbook/internal/reports/repository"
	reportsservice "labbook/internal/reports/service"
	usersrepository "labbook/internal/users/repository"
	"labbook/pkg/app"
	"labbook/pkg/auth"
	"labbook/pkg/config"
	"labbook/pkg/contracts"
	"labbook/pkg/kafka"
	kafka_config "labbook/pkg/kafka/config"
	kafka_middleware "labbook/pkg/kafka/middleware"
	"labbook/pkg/lock"
)

const ServiceName = "labbook-api"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	if cfg.LockBackend == config.LockBackendRedis {
		cfg.SetRedis()
	}

	cfg.Log.Info("Starting Labbook API")

	queue, queueMetrics := initMailQueue(cfg)
	handlers, notifier := initHandlers(cfg, queue)

	checks := map[string]health.Check{"mongo": health.MongoCheck(cfg.Client.Mongo)}
	if cfg.Client.Redis != nil {
		checks["redis"] = health.RedisCheck(cfg.Client.Redis)
	}

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(
		handlers,
		auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer),
		checks,
		notifier,
		contracts.CloserFunc(func(context.Context) error {
			if queueMetrics != nil {
				logQueueMetrics(cfg, queueMetrics.Snapshot())
			}
			return nil
		}),
	)
	serverApp.Run()
}

// initMailQueue publishes email jobs to Kafka when enabled, otherwise sends
// them over SMTP from the dispatcher workers.
func initMailQueue(cfg *config.Config) (dispatcher.MailQueue, *kafka_middleware.Metrics) {
	if !cfg.KafkaEnabled {
		m, err := mailer.NewSMTPMailer(cfg)
		if err != nil {
			cfg.Log.Fatal("Failed to initialize mailer", "error", err)
		}
		cfg.Log.Info("Kafka disabled, sending email directly", "smtp_host", cfg.SMTPHost)
		return dispatcher.NewDirectMailQueue(m), nil
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	producer, err := kafka.NewProducer(kafkaCfg, kafkaCfg.Email.Topic, kafkaCfg.Email.DLQTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}

	metrics := &kafka_middleware.Metrics{}
	if kafkaCfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	}
	producer.Use(metrics.ProducerMiddleware())

	cfg.Log.Info("Email jobs published to Kafka", "topic", kafkaCfg.Email.Topic, "dlq_topic", kafkaCfg.Email.DLQTopic)
	return dispatcher.NewKafkaMailQueue(producer, kafkaCfg), metrics
}

func initHandlers(cfg *config.Config, queue dispatcher.MailQueue) (contracts.Handlers, *dispatcher.Dispatcher) {
	userRepo := usersrepository.NewMongoUserRepository(cfg)
	labRepo := labsrepository.NewMongoLabRepository(cfg)
	bookingRepo := bookingsrepository.NewMongoBookingRepository(cfg)
	notificationRepo := notificationsrepository.NewMongoNotificationRepository(cfg)

	notifier := dispatcher.New(notificationRepo, userRepo, queue, cfg)

	labService := labsservice.NewLabService(
		labRepo,
		bookingRepo,
		labsvalidator.NewLabValidator(cfg.Log),
		cfg,
	)
	bookingService := bookingsservice.NewBookingService(
		bookingRepo,
		labRepo,
		userRepo,
		notifier,
		lock.New(cfg),
		bookingsvalidator.NewBookingValidator(cfg.Log),
		cfg,
	)
	notificationService := notificationsservice.NewNotificationService(notificationRepo, notifier, cfg)
	reportService := reportsservice.NewReportService(
		reportsrepository.NewMongoReportRepository(cfg),
		reportsrepository.NewMongoStatsRepository(cfg),
		labRepo,
		userRepo,
		notifier,
		cfg,
	)

	cfg.Log.Info("Services initialized", "database", cfg.MongoDatabaseName)

	return contracts.Handlers{
		labshandler.NewLabHandler(labService, cfg.Log),
		bookingshandler.NewBookingHandler(bookingService, reportService, cfg.Log),
		notificationshandler.NewNotificationHandler(notificationService, cfg.Log),
		reportshandler.NewReportHandler(reportService, cfg.Log),
	}, notifier
}

func logQueueMetrics(cfg *config.Config, s kafka_middleware.Snapshot) {
	cfg.Log.Info("Email queue totals",
		"published", s.Published,
		"publish_failed", s.PublishFailed,
		"avg_publish_duration", s.AvgPublishDuration,
	)
}
