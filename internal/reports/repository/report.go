package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	reportserrors "labbook/internal/reports/errors"
	"labbook/pkg/config"
	mongotx "labbook/pkg/db/mongo"
	"labbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Reports"
)

type mongoReportRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

// ReportRepository stores generated reports. Reports are write-once.
type ReportRepository interface {
	Create(ctx context.Context, report *model.Report) error
	FindByID(ctx context.Context, id string) (*model.Report, error)
	List(ctx context.Context, page, limit int) ([]*model.Report, error)
	Count(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context, from, to *time.Time) (*model.ReportStats, error)
}

func NewMongoReportRepository(cfg *config.Config) ReportRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoReportRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoReportRepository) Create(ctx context.Context, report *model.Report) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.InsertOne(ctx, report)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		report.ID = oid.Hex()
	}
	return nil
}

func (r *mongoReportRepository) FindByID(ctx context.Context, id string) (*model.Report, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", reportserrors.ErrInvalidID, id)
	}

	var report model.Report
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&report)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", reportserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find report: %w", err)
	}
	return &report, nil
}

// List returns reports newest first. The summary is left out of listings.
func (r *mongoReportRepository) List(ctx context.Context, page, limit int) ([]*model.Report, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	limit = config.NormalizePaginationLimit(limit)
	page = config.NormalizePage(page)

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetProjection(bson.M{"summary": 0}).
		SetLimit(int64(limit)).
		SetSkip(int64(page-1) * int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer cursor.Close(ctx)

	var reports []*model.Report
	if err = cursor.All(ctx, &reports); err != nil {
		return nil, fmt.Errorf("failed to decode reports: %w", err)
	}
	return reports, nil
}

func (r *mongoReportRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count reports: %w", err)
	}
	return count, nil
}

func (r *mongoReportRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", reportserrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", reportserrors.ErrNotFound, id)
	}
	return nil
}

// Stats groups reports created in [from, to] in a single $facet pass. The
// monthly trend keeps the latest trendMonths months, newest first.
func (r *mongoReportRepository) Stats(ctx context.Context, from, to *time.Time) (*model.ReportStats, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.collection.Aggregate(ctx, statsPipeline(from, to))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate reports: %w", err)
	}
	defer cursor.Close(ctx)

	var results []model.ReportStats
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode report stats: %w", err)
	}
	if len(results) == 0 {
		return &model.ReportStats{}, nil
	}
	return &results[0], nil
}

const trendMonths = 12

func statsPipeline(from, to *time.Time) mongo.Pipeline {
	match := bson.M{}
	if from != nil || to != nil {
		created := bson.M{}
		if from != nil {
			created["$gte"] = *from
		}
		if to != nil {
			created["$lte"] = *to
		}
		match["created_at"] = created
	}

	groupBy := func(field any) bson.A {
		return bson.A{
			bson.M{"$group": bson.M{"_id": field, "count": bson.M{"$sum": 1}}},
			bson.M{"$sort": bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}},
		}
	}

	return mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$facet", Value: bson.M{
			"by_type":   groupBy("$type"),
			"by_status": groupBy("$status"),
			"by_format": groupBy("$format"),
			"monthly_trend": bson.A{
				bson.M{"$group": bson.M{
					"_id":   bson.M{"$dateToString": bson.M{"format": "%Y-%m", "date": "$created_at"}},
					"count": bson.M{"$sum": 1},
				}},
				bson.M{"$sort": bson.M{"_id": -1}},
				bson.M{"$limit": trendMonths},
			},
		}}},
	}
}
