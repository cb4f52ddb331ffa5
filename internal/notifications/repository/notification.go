package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	notificationserrors "labbook/internal/notifications/errors"
	"labbook/pkg/config"
	mongotx "labbook/pkg/db/mongo"
	"labbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Notifications"

	statsDays = 7
)

type mongoNotificationRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	now        func() time.Time
}

type NotificationRepository interface {
	Create(ctx context.Context, notification *model.Notification) error
	CreateMany(ctx context.Context, notifications []*model.Notification) error
	List(ctx context.Context, filter model.NotificationFilter) ([]*model.Notification, error)
	Count(ctx context.Context, filter model.NotificationFilter) (int64, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, id, userID string) (*model.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, id, userID string) error
	Stats(ctx context.Context) (*model.NotificationStats, error)
}

func NewMongoNotificationRepository(cfg *config.Config) NotificationRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoNotificationRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		now:        time.Now,
	}
}

func (r *mongoNotificationRepository) Create(ctx context.Context, notification *model.Notification) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = r.now().UTC()
	}

	result, err := r.collection.InsertOne(ctx, notification)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		notification.ID = oid.Hex()
	}
	return nil
}

// CreateMany inserts a broadcast in one round trip. Inserts are unordered so
// one bad document does not drop the rest.
func (r *mongoNotificationRepository) CreateMany(ctx context.Context, notifications []*model.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := r.now().UTC()
	docs := make([]any, 0, len(notifications))
	for _, n := range notifications {
		if n.CreatedAt.IsZero() {
			n.CreatedAt = now
		}
		docs = append(docs, n)
	}

	result, err := r.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("failed to create notifications: %w", err)
	}

	for i, id := range result.InsertedIDs {
		if oid, ok := id.(primitive.ObjectID); ok && i < len(notifications) {
			notifications[i].ID = oid.Hex()
		}
	}
	return nil
}

func (r *mongoNotificationRepository) List(ctx context.Context, filter model.NotificationFilter) ([]*model.Notification, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	limit := config.NormalizePaginationLimit(filter.Limit)
	page := config.NormalizePage(filter.Page)

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(page-1) * int64(limit))

	cursor, err := r.collection.Find(ctx, buildListFilter(filter, r.now()), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer cursor.Close(ctx)

	var notifications []*model.Notification
	if err = cursor.All(ctx, &notifications); err != nil {
		return nil, fmt.Errorf("failed to decode notifications: %w", err)
	}
	return notifications, nil
}

func (r *mongoNotificationRepository) Count(ctx context.Context, filter model.NotificationFilter) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, buildListFilter(filter, r.now()))
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return count, nil
}

func (r *mongoNotificationRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	return r.Count(ctx, model.NotificationFilter{UserID: userID, UnreadOnly: true})
}

func (r *mongoNotificationRepository) MarkRead(ctx context.Context, id, userID string) (*model.Notification, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", notificationserrors.ErrInvalidID, id)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var notification model.Notification
	err = r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": objectID, "user_id": userID},
		bson.M{"$set": bson.M{"is_read": true}},
		opts,
	).Decode(&notification)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", notificationserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to mark notification read: %w", err)
	}
	return &notification, nil
}

func (r *mongoNotificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.UpdateMany(ctx,
		bson.M{"user_id": userID, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return result.ModifiedCount, nil
}

func (r *mongoNotificationRepository) Delete(ctx context.Context, id, userID string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", notificationserrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID, "user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", notificationserrors.ErrNotFound, id)
	}
	return nil
}

func (r *mongoNotificationRepository) Stats(ctx context.Context) (*model.NotificationStats, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.collection.Aggregate(ctx, statsPipeline())
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate notification stats: %w", err)
	}
	defer cursor.Close(ctx)

	var stats []model.NotificationStats
	if err = cursor.All(ctx, &stats); err != nil {
		return nil, fmt.Errorf("failed to decode notification stats: %w", err)
	}
	if len(stats) == 0 {
		return &model.NotificationStats{}, nil
	}
	return &stats[0], nil
}

func statsPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$facet", Value: bson.M{
			"by_type": bson.A{
				bson.M{"$group": bson.M{
					"_id":    "$type",
					"total":  bson.M{"$sum": 1},
					"unread": bson.M{"$sum": bson.M{"$cond": bson.A{bson.M{"$eq": bson.A{"$is_read", false}}, 1, 0}}},
				}},
				bson.M{"$sort": bson.D{{Key: "total", Value: -1}, {Key: "_id", Value: 1}}},
			},
			"daily": bson.A{
				bson.M{"$group": bson.M{
					"_id":   bson.M{"$dateToString": bson.M{"format": "%Y-%m-%d", "date": "$created_at"}},
					"count": bson.M{"$sum": 1},
				}},
				bson.M{"$sort": bson.M{"_id": -1}},
				bson.M{"$limit": statsDays},
			},
		}}},
	}
}

// buildListFilter hides notifications whose expiry has passed but that the
// TTL monitor has not reaped yet.
func buildListFilter(filter model.NotificationFilter, now time.Time) bson.M {
	query := bson.M{
		"user_id": filter.UserID,
		"$or": bson.A{
			bson.M{"expires_at": bson.M{"$exists": false}},
			bson.M{"expires_at": bson.M{"$gt": now.UTC()}},
		},
	}
	if filter.UnreadOnly {
		query["is_read"] = false
	}
	if filter.Type != "" {
		query["type"] = filter.Type
	}
	return query
}
