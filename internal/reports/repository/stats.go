package repository

import (
	"context"
	"fmt"
	"time"

	bookingsrepository "labbook/internal/bookings/repository"
	"labbook/pkg/config"
	mongotx "labbook/pkg/db/mongo"
	"labbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// BookingMatch narrows an aggregation over bookings. Zero fields do not
// filter.
type BookingMatch struct {
	From     *time.Time
	To       *time.Time
	LabID    string
	Statuses []model.BookingStatus
}

// StatusTotal is one status bucket of a booking aggregation.
type StatusTotal struct {
	Status       string `bson:"_id"`
	Count        int64  `bson:"count"`
	Participants int64  `bson:"participants"`
	Minutes      int64  `bson:"minutes"`
}

// StatsRepository runs read-only aggregations over the bookings collection.
type StatsRepository interface {
	StatusTotals(ctx context.Context, match BookingMatch) ([]StatusTotal, error)
	LabCounts(ctx context.Context, match BookingMatch, limit int) ([]model.LabCount, error)
	DailyTrend(ctx context.Context, since time.Time) ([]model.DailyCount, error)
	LabUsage(ctx context.Context, match BookingMatch) ([]model.LabUsage, error)
	PeakHours(ctx context.Context, match BookingMatch, limit int) ([]model.HourCount, error)
	UserCounts(ctx context.Context, match BookingMatch, limit int) ([]model.UserCount, error)
	DailyCounts(ctx context.Context, match BookingMatch) ([]model.DailyCount, error)
	UserActivity(ctx context.Context, match BookingMatch) ([]model.UserBookings, error)
}

type mongoStatsRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoStatsRepository(cfg *config.Config) StatsRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoStatsRepository{
		cfg:        cfg,
		collection: db.Collection(bookingsrepository.CollectionName),
	}
}

func (r *mongoStatsRepository) StatusTotals(ctx context.Context, match BookingMatch) ([]StatusTotal, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: buildMatch(match)}},
		{{Key: "$group", Value: bson.M{
			"_id":          "$status",
			"count":        bson.M{"$sum": 1},
			"participants": bson.M{"$sum": "$participants"},
			"minutes":      bson.M{"$sum": "$duration"},
		}}},
	}

	var totals []StatusTotal
	if err := r.aggregate(ctx, pipeline, &totals); err != nil {
		return nil, fmt.Errorf("failed to aggregate booking statuses: %w", err)
	}
	return totals, nil
}

// LabCounts returns booking counts per lab, most booked first. A limit of 0
// returns every lab.
func (r *mongoStatsRepository) LabCounts(ctx context.Context, match BookingMatch, limit int) ([]model.LabCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: buildMatch(match)}},
		{{Key: "$group", Value: bson.M{"_id": "$lab_id", "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: limit}})
	}

	var counts []model.LabCount
	if err := r.aggregate(ctx, pipeline, &counts); err != nil {
		return nil, fmt.Errorf("failed to aggregate bookings by lab: %w", err)
	}
	return counts, nil
}

// DailyTrend counts bookings created per UTC day since the given instant.
func (r *mongoStatsRepository) DailyTrend(ctx context.Context, since time.Time) ([]model.DailyCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"created_at": bson.M{"$gte": since.UTC()}}}},
		{{Key: "$group", Value: bson.M{
			"_id":   bson.M{"$dateToString": bson.M{"format": "%Y-%m-%d", "date": "$created_at"}},
			"count": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}

	var trend []model.DailyCount
	if err := r.aggregate(ctx, pipeline, &trend); err != nil {
		return nil, fmt.Errorf("failed to aggregate booking trend: %w", err)
	}
	return trend, nil
}

func (r *mongoStatsRepository) LabUsage(ctx context.Context, match BookingMatch) ([]model.LabUsage, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: buildMatch(match)}},
		{{Key: "$group", Value: bson.M{
			"_id":            "$lab_id",
			"booking_count":  bson.M{"$sum": 1},
			"booked_minutes": bson.M{"$sum": "$duration"},
		}}},
	}

	var usage []model.LabUsage
	if err := r.aggregate(ctx, pipeline, &usage); err != nil {
		return nil, fmt.Errorf("failed to aggregate lab usage: %w", err)
	}
	return usage, nil
}

// PeakHours buckets bookings by the hour they start in. Stored start times
// are zero-padded so the first two bytes are the hour.
func (r *mongoStatsRepository) PeakHours(ctx context.Context, match BookingMatch, limit int) ([]model.HourCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: buildMatch(match)}},
		{{Key: "$group", Value: bson.M{
			"_id":   bson.M{"$concat": bson.A{bson.M{"$substrBytes": bson.A{"$start_time", 0, 2}}, ":00"}},
			"count": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: limit}})
	}

	var hours []model.HourCount
	if err := r.aggregate(ctx, pipeline, &hours); err != nil {
		return nil, fmt.Errorf("failed to aggregate peak hours: %w", err)
	}
	return hours, nil
}

// UserCounts returns bookings per requester, most active first. A limit of 0
// returns every user.
func (r *mongoStatsRepository) UserCounts(ctx context.Context, match BookingMatch, limit int) ([]model.UserCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: buildMatch(match)}},
		{{Key: "$group", Value: bson.M{
			"_id":          "$user_id",
			"count":        bson.M{"$sum": 1},
			"participants": bson.M{"$sum": "$participants"},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: limit}})
	}

	var counts []model.UserCount
	if err := r.aggregate(ctx, pipeline, &counts); err != nil {
		return nil, fmt.Errorf("failed to aggregate bookings by user: %w", err)
	}
	return counts, nil
}

// DailyCounts counts bookings per booked day, oldest first. Unlike
// DailyTrend it groups on the slot date, not the creation time.
func (r *mongoStatsRepository) DailyCounts(ctx context.Context, match BookingMatch) ([]model.DailyCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: buildMatch(match)}},
		{{Key: "$group", Value: bson.M{
			"_id":   bson.M{"$dateToString": bson.M{"format": "%Y-%m-%d", "date": "$date"}},
			"count": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}

	var days []model.DailyCount
	if err := r.aggregate(ctx, pipeline, &days); err != nil {
		return nil, fmt.Errorf("failed to aggregate bookings by day: %w", err)
	}
	return days, nil
}

func (r *mongoStatsRepository) UserActivity(ctx context.Context, match BookingMatch) ([]model.UserBookings, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: buildMatch(match)}},
		{{Key: "$group", Value: bson.M{
			"_id":          "$user_id",
			"total":        bson.M{"$sum": 1},
			"approved":     countWhere(model.StatusApproved),
			"pending":      countWhere(model.StatusPending),
			"participants": bson.M{"$sum": "$participants"},
			"first_date":   bson.M{"$min": "$date"},
			"last_date":    bson.M{"$max": "$date"},
		}}},
	}

	var activity []model.UserBookings
	if err := r.aggregate(ctx, pipeline, &activity); err != nil {
		return nil, fmt.Errorf("failed to aggregate user activity: %w", err)
	}
	return activity, nil
}

func countWhere(status model.BookingStatus) bson.M {
	return bson.M{"$sum": bson.M{"$cond": bson.A{bson.M{"$eq": bson.A{"$status", status}}, 1, 0}}}
}

func (r *mongoStatsRepository) aggregate(ctx context.Context, pipeline mongo.Pipeline, out any) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	return cursor.All(ctx, out)
}

func buildMatch(match BookingMatch) bson.M {
	filter := bson.M{}
	if match.From != nil || match.To != nil {
		dateRange := bson.M{}
		if match.From != nil {
			dateRange["$gte"] = *match.From
		}
		if match.To != nil {
			dateRange["$lte"] = *match.To
		}
		filter["date"] = dateRange
	}
	if match.LabID != "" {
		filter["lab_id"] = match.LabID
	}
	if len(match.Statuses) > 0 {
		filter["status"] = bson.M{"$in": match.Statuses}
	}
	return filter
}
