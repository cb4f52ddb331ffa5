package kafka_config

import "time"

const (
	DefaultBrokers          = "localhost:9092"
	DefaultClientID         = "labbook"
	DefaultEnableMiddleware = true

	DefaultEmailTopic         = "labbook.email"
	DefaultEmailDLQTopic      = "labbook.email.dlq"
	DefaultEmailConsumerGroup = "labbook-notifier"

	DefaultProducerMaxAttempts  = 5
	DefaultProducerBatchTimeout = 10 * time.Millisecond
	DefaultProducerRequireAcks  = -1
	DefaultProducerCompression  = "none"
	DefaultProducerAsync        = false

	DefaultConsumerStartOffset       = -2 // oldest
	DefaultConsumerMinBytes          = 1
	DefaultConsumerMaxBytes          = 1024 * 1024 // 1MB
	DefaultConsumerMaxWait           = 500 * time.Millisecond
	DefaultConsumerCommitInterval    = 1 * time.Second
	DefaultConsumerHeartbeatInterval = 3 * time.Second
	DefaultConsumerSessionTimeout    = 30 * time.Second
	DefaultConsumerRebalanceTimeout  = 60 * time.Second
	DefaultConsumerMaxRetries        = 3
)
