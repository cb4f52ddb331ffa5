package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "labbook"
	DefaultMongoConnTimeout  = 10 * time.Second
	DefaultMongoTransactions = false

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultJWTIssuer = "labbook"

	DefaultRateLimitRequests = 120
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultPageSize        = 10
	DefaultPaginationLimit = 100

	DefaultLockBackend = LockBackendMongo
	DefaultLockTTL     = 45 * time.Second
	DefaultLockWait    = 3 * time.Second

	DefaultRedisAddr = "localhost:6379"
	DefaultRedisDB   = 0

	DefaultNotifyWorkers   = 4
	DefaultNotifyQueueSize = 256

	DefaultKafkaEnabled = false

	DefaultSMTPHost = "localhost"
	DefaultSMTPPort = 587
	DefaultSMTPFrom = "Lab Booking <no-reply@labbook.local>"

	DefaultCancellationWindow = 2 * time.Hour
	DefaultReminderLead       = 1 * time.Hour
	DefaultWorkdayHours       = 8

	DefaultAppBaseURL = "http://localhost:3000"
)

const (
	LockBackendMemory = "memory"
	LockBackendMongo  = "mongo"
	LockBackendRedis  = "redis"
)
