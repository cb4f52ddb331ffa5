package lock

import (
	"context"
	"fmt"
	"time"

	"labbook/pkg/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const SlotLockCollection = "Slot_locks"

// MongoLocker keeps advisory lock documents keyed by _id. A duplicate key on
// insert means another request holds the slot.
type MongoLocker struct {
	collection *mongo.Collection
	ttl        time.Duration
	wait       time.Duration
}

func NewMongoLocker(db *mongo.Database, ttl, wait time.Duration) *MongoLocker {
	return &MongoLocker{
		collection: db.Collection(SlotLockCollection),
		ttl:        ttl,
		wait:       wait,
	}
}

func (l *MongoLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	token := uuid.NewString()

	err := retry(ctx, l.wait, func(ctx context.Context) (bool, error) {
		now := time.Now().UTC()
		doc := &model.SlotLock{
			ID:        key,
			Token:     token,
			ExpiresAt: now.Add(l.ttl),
			CreatedAt: now,
		}

		_, err := l.collection.InsertOne(ctx, doc)
		if err == nil {
			return true, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return false, fmt.Errorf("failed to acquire slot lock: %w", err)
		}

		// The TTL monitor runs about once a minute; clear a stale holder now.
		if _, err := l.collection.DeleteOne(ctx, bson.M{
			"_id":        key,
			"expires_at": bson.M{"$lt": now},
		}); err != nil {
			return false, fmt.Errorf("failed to clear expired slot lock: %w", err)
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) error {
		_, err := l.collection.DeleteOne(ctx, bson.M{"_id": key, "token": token})
		if err != nil {
			return fmt.Errorf("failed to release slot lock: %w", err)
		}
		return nil
	}, nil
}
