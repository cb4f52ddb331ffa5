package kafka_config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"labbook/pkg/logger"
)

// Config holds the broker connection, the email routing shared by the API
// (producer side) and the notifier (consumer side), and the client tuning.
type Config struct {
	Brokers          []string
	ClientID         string
	EnableMiddleware bool

	Email    EmailRoute
	Producer ProducerConfig
	Consumer ConsumerConfig
}

// EmailRoute names where email jobs are published and who consumes them.
type EmailRoute struct {
	Topic         string
	DLQTopic      string
	ConsumerGroup string
}

type ProducerConfig struct {
	MaxAttempts  int
	BatchTimeout time.Duration
	RequireAcks  int    // -1 all, 0 none, 1 leader
	Compression  string // none, gzip, snappy, lz4, zstd
	Async        bool
}

type ConsumerConfig struct {
	StartOffset       int64 // -1 newest, -2 oldest
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	CommitInterval    time.Duration
	HeartbeatInterval time.Duration
	SessionTimeout    time.Duration
	RebalanceTimeout  time.Duration
	MaxRetries        int
}

var (
	compressions = map[string]bool{"none": true, "gzip": true, "snappy": true, "lz4": true, "zstd": true}
	acks         = map[int]bool{-1: true, 0: true, 1: true}
)

// Load reads the Kafka settings from the environment and validates them.
func Load() (*Config, error) {
	cfg := fromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromEnv() *Config {
	return &Config{
		Brokers:          splitBrokers(getEnvStr(EnvBrokers, DefaultBrokers)),
		ClientID:         getEnvStr(EnvClientID, DefaultClientID),
		EnableMiddleware: getEnvBool(EnvEnableMiddleware, DefaultEnableMiddleware),

		Email: EmailRoute{
			Topic:         getEnvStr(EnvEmailTopic, DefaultEmailTopic),
			DLQTopic:      getEnvStr(EnvEmailDLQTopic, DefaultEmailDLQTopic),
			ConsumerGroup: getEnvStr(EnvEmailConsumerGroup, DefaultEmailConsumerGroup),
		},

		Producer: ProducerConfig{
			MaxAttempts:  getEnvInt(EnvProducerMaxAttempts, DefaultProducerMaxAttempts),
			BatchTimeout: getEnvDuration(EnvProducerBatchTimeout, DefaultProducerBatchTimeout),
			RequireAcks:  getEnvInt(EnvProducerRequireAcks, DefaultProducerRequireAcks),
			Compression:  strings.ToLower(getEnvStr(EnvProducerCompression, DefaultProducerCompression)),
			Async:        getEnvBool(EnvProducerAsync, DefaultProducerAsync),
		},

		Consumer: ConsumerConfig{
			StartOffset:       int64(getEnvInt(EnvConsumerStartOffset, DefaultConsumerStartOffset)),
			MinBytes:          getEnvInt(EnvConsumerMinBytes, DefaultConsumerMinBytes),
			MaxBytes:          getEnvInt(EnvConsumerMaxBytes, DefaultConsumerMaxBytes),
			MaxWait:           getEnvDuration(EnvConsumerMaxWait, DefaultConsumerMaxWait),
			CommitInterval:    getEnvDuration(EnvConsumerCommitInterval, DefaultConsumerCommitInterval),
			HeartbeatInterval: getEnvDuration(EnvConsumerHeartbeatInterval, DefaultConsumerHeartbeatInterval),
			SessionTimeout:    getEnvDuration(EnvConsumerSessionTimeout, DefaultConsumerSessionTimeout),
			RebalanceTimeout:  getEnvDuration(EnvConsumerRebalanceTimeout, DefaultConsumerRebalanceTimeout),
			MaxRetries:        getEnvInt(EnvConsumerMaxRetries, DefaultConsumerMaxRetries),
		},
	}
}

func splitBrokers(raw string) []string {
	brokers := make([]string, 0)
	for _, broker := range strings.Split(raw, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}

func (cfg *Config) Validate() error {
	var problems []string

	if len(cfg.Brokers) == 0 {
		problems = append(problems, "At least one Kafka broker is required")
	}
	if cfg.ClientID == "" {
		problems = append(problems, "ClientID cannot be empty")
	}

	problems = append(problems, cfg.Email.validate()...)
	problems = append(problems, cfg.Producer.validate()...)
	problems = append(problems, cfg.Consumer.validate()...)

	if len(problems) > 0 {
		errMsg := "Kafka configuration validation failed:\n"
		for i, p := range problems {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, p)
		}
		return fmt.Errorf("%s", errMsg)
	}
	return nil
}

func (r EmailRoute) validate() []string {
	var problems []string
	if r.Topic == "" {
		problems = append(problems, "Email topic cannot be empty")
	}
	if r.ConsumerGroup == "" {
		problems = append(problems, "Email consumer group cannot be empty")
	}
	if r.DLQTopic != "" && r.DLQTopic == r.Topic {
		problems = append(problems, fmt.Sprintf("Email DLQ topic must differ from the email topic, got: %s", r.DLQTopic))
	}
	return problems
}

func (p ProducerConfig) validate() []string {
	var problems []string
	if p.MaxAttempts <= 0 {
		problems = append(problems, fmt.Sprintf("Producer MaxAttempts must be positive, got: %d", p.MaxAttempts))
	}
	if p.BatchTimeout <= 0 {
		problems = append(problems, fmt.Sprintf("Producer BatchTimeout must be positive, got: %s", p.BatchTimeout))
	}
	if !compressions[p.Compression] {
		problems = append(problems, fmt.Sprintf("Producer Compression must be one of [none, gzip, snappy, lz4, zstd], got: %s", p.Compression))
	}
	if !acks[p.RequireAcks] {
		problems = append(problems, fmt.Sprintf("Producer RequireAcks must be -1, 0, or 1, got: %d", p.RequireAcks))
	}
	return problems
}

func (c ConsumerConfig) validate() []string {
	var problems []string
	if c.StartOffset < -2 {
		problems = append(problems, fmt.Sprintf("Consumer StartOffset must be -1 (newest), -2 (oldest), or >= 0, got: %d", c.StartOffset))
	}
	if c.MinBytes <= 0 || c.MaxBytes < c.MinBytes {
		problems = append(problems, fmt.Sprintf("Consumer byte bounds must satisfy 0 < MinBytes <= MaxBytes, got: %d..%d", c.MinBytes, c.MaxBytes))
	}
	for name, d := range map[string]time.Duration{
		"MaxWait":           c.MaxWait,
		"CommitInterval":    c.CommitInterval,
		"HeartbeatInterval": c.HeartbeatInterval,
		"SessionTimeout":    c.SessionTimeout,
		"RebalanceTimeout":  c.RebalanceTimeout,
	} {
		if d <= 0 {
			problems = append(problems, fmt.Sprintf("Consumer %s must be positive, got: %s", name, d))
		}
	}
	if c.HeartbeatInterval >= c.SessionTimeout {
		problems = append(problems, fmt.Sprintf("Consumer HeartbeatInterval (%s) must be shorter than SessionTimeout (%s)", c.HeartbeatInterval, c.SessionTimeout))
	}
	if c.MaxRetries < 0 {
		problems = append(problems, fmt.Sprintf("Consumer MaxRetries cannot be negative, got: %d", c.MaxRetries))
	}
	return problems
}

func (cfg *Config) LogConfiguration(log *logger.Logger) {
	log.Info("Kafka configuration loaded successfully",
		"brokers", cfg.Brokers,
		"client_id", cfg.ClientID,
		"email_topic", cfg.Email.Topic,
		"email_dlq_topic", cfg.Email.DLQTopic,
		"email_consumer_group", cfg.Email.ConsumerGroup,
		"producer_max_attempts", cfg.Producer.MaxAttempts,
		"producer_require_acks", cfg.Producer.RequireAcks,
		"producer_compression", cfg.Producer.Compression,
		"consumer_start_offset", cfg.Consumer.StartOffset,
		"consumer_max_retries", cfg.Consumer.MaxRetries,
		"enable_middleware", cfg.EnableMiddleware,
	)
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
