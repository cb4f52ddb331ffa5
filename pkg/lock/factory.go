package lock

import (
	"labbook/pkg/config"
)

// New builds the slot Locker for the configured backend. SetMongo or SetRedis
// must already have been called on cfg for the distributed backends.
func New(cfg *config.Config) Locker {
	local := NewKeyedMutex(cfg.LockWait)

	switch cfg.LockBackend {
	case config.LockBackendMongo:
		db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
		cfg.Log.Info("Using mongo slot locks", "collection", SlotLockCollection, "ttl", cfg.LockTTL)
		return NewGuard(local, NewMongoLocker(db, cfg.LockTTL, cfg.LockWait))
	case config.LockBackendRedis:
		cfg.Log.Info("Using redis slot locks", "addr", cfg.RedisAddr, "ttl", cfg.LockTTL)
		return NewGuard(local, NewRedisLocker(cfg.Client.Redis, cfg.LockTTL, cfg.LockWait))
	default:
		cfg.Log.Info("Using in-process slot locks")
		return NewGuard(local, nil)
	}
}
