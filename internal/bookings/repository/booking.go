package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	bookingserrors "labbook/internal/bookings/errors"
	"labbook/pkg/config"
	mongotx "labbook/pkg/db/mongo"
	"labbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Bookings"
)

// DefaultSort is applied when a listing does not ask for an order.
const DefaultSort = "-date,-startTime"

var sortFields = map[string]string{
	"date":      "date",
	"startTime": "start_time",
	"createdAt": "created_at",
}

// StatusChange moves a booking from one status to another. The update only
// applies while the stored status still equals From.
type StatusChange struct {
	From               model.BookingStatus
	To                 model.BookingStatus
	AdminNotes         *string
	CancellationReason *string
}

type mongoBookingRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	Update(ctx context.Context, id string, booking *model.Booking) error
	Transition(ctx context.Context, id string, change StatusChange) error
	Delete(ctx context.Context, id string) error
	FindConflicts(ctx context.Context, query model.SlotQuery) ([]*model.Booking, error)
	List(ctx context.Context, filter model.BookingFilter) ([]*model.Booking, error)
	Count(ctx context.Context, filter model.BookingFilter) (int64, error)
	FindByUser(ctx context.Context, userID string) ([]*model.Booking, error)
	FindByLab(ctx context.Context, labID string, from, to *time.Time) ([]*model.Booking, error)
	CountByStatusForLab(ctx context.Context, labID string) (map[string]int64, error)
	CountByLab(ctx context.Context) ([]model.LabBookingCount, error)
	FindUpcomingForLab(ctx context.Context, labID string, from time.Time, limit int) ([]*model.Booking, error)
	CountApprovedFrom(ctx context.Context, labID string, from time.Time) (int64, error)
	CancelPendingForLab(ctx context.Context, labID string, from time.Time, reason string) (int64, error)
	BusyLabs(ctx context.Context, query model.SlotQuery) ([]string, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo, cfg.MongoTransactions),
	}
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	booking.CreatedAt = now
	booking.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, booking)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		booking.ID = oid.Hex()
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	var booking model.Booking
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}

	return &booking, nil
}

func (r *mongoBookingRepository) Update(ctx context.Context, id string, booking *model.Booking) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	booking.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	update := bson.M{
		"$set": bson.M{
			"lab_id":       booking.LabID,
			"title":        booking.Title,
			"description":  booking.Description,
			"date":         booking.Date,
			"start_time":   booking.StartTime,
			"end_time":     booking.EndTime,
			"duration":     booking.Duration,
			"participants": booking.Participants,
			"recurring":    booking.Recurring,
			"updated_at":   booking.UpdatedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	if result.MatchedCount == 0 {
		return bookingserrors.ErrNotFound
	}
	return nil
}

func (r *mongoBookingRepository) Transition(ctx context.Context, id string, change StatusChange) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	set := bson.M{
		"status":     change.To,
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	}
	if change.AdminNotes != nil {
		set["admin_notes"] = *change.AdminNotes
	}
	if change.CancellationReason != nil {
		set["cancellation_reason"] = *change.CancellationReason
	}

	filter := bson.M{"_id": objectID, "status": change.From}
	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	if result.MatchedCount == 0 {
		return bookingserrors.ErrStatusChanged
	}
	return nil
}

func (r *mongoBookingRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	if result.DeletedCount == 0 {
		return bookingserrors.ErrNotFound
	}
	return nil
}

// conflictFilter matches bookings on query.Date whose [start_time, end_time)
// overlaps the query's. Touching slots do not match. It relies on clock times
// being stored zero-padded, which makes string order equal clock order. An
// empty LabID matches every lab.
func conflictFilter(query model.SlotQuery) bson.M {
	statuses := query.Statuses
	if len(statuses) == 0 {
		statuses = model.BlockingStatuses
	}

	filter := bson.M{
		"date":       query.Date,
		"status":     bson.M{"$in": statuses},
		"start_time": bson.M{"$lt": query.EndTime},
		"end_time":   bson.M{"$gt": query.StartTime},
	}
	if query.LabID != "" {
		filter["lab_id"] = query.LabID
	}
	if query.ExcludeID != "" {
		if oid, err := primitive.ObjectIDFromHex(query.ExcludeID); err == nil {
			filter["_id"] = bson.M{"$ne": oid}
		}
	}
	return filter
}

func (r *mongoBookingRepository) FindConflicts(ctx context.Context, query model.SlotQuery) ([]*model.Booking, error) {
	if query.LabID == "" {
		return nil, errors.New("conflict lookup requires a lab id")
	}

	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := conflictFilter(query)
	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}})
	return r.find(ctx, filter, opts)
}

func (r *mongoBookingRepository) List(ctx context.Context, filter model.BookingFilter) ([]*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	limit := config.NormalizePaginationLimit(filter.Limit)
	page := config.NormalizePage(filter.Page)

	opts := options.Find().
		SetSort(ParseSort(filter.Sort)).
		SetLimit(int64(limit)).
		SetSkip(int64(page-1) * int64(limit))

	return r.find(ctx, buildListFilter(filter), opts)
}

func (r *mongoBookingRepository) Count(ctx context.Context, filter model.BookingFilter) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, buildListFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

func (r *mongoBookingRepository) FindByUser(ctx context.Context, userID string) ([]*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(ParseSort(DefaultSort))
	return r.find(ctx, bson.M{"user_id": userID}, opts)
}

func (r *mongoBookingRepository) FindByLab(ctx context.Context, labID string, from, to *time.Time) ([]*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"lab_id": labID}
	if dateRange := dateRangeFilter(from, to); dateRange != nil {
		filter["date"] = dateRange
	}

	opts := options.Find().SetSort(bson.D{
		{Key: "date", Value: 1},
		{Key: "start_time", Value: 1},
	})
	return r.find(ctx, filter, opts)
}

func (r *mongoBookingRepository) CountByStatusForLab(ctx context.Context, labID string) (map[string]int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"lab_id": labID}}},
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate lab bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status string `bson:"_id"`
		Count  int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode lab booking counts: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// CountByLab tallies every booking per lab, with the approved share.
func (r *mongoBookingRepository) CountByLab(ctx context.Context) ([]model.LabBookingCount, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   "$lab_id",
			"total": bson.M{"$sum": 1},
			"approved": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$status", model.StatusApproved}}, 1, 0,
			}}},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate bookings by lab: %w", err)
	}
	defer cursor.Close(ctx)

	var counts []model.LabBookingCount
	if err := cursor.All(ctx, &counts); err != nil {
		return nil, fmt.Errorf("failed to decode lab booking counts: %w", err)
	}
	return counts, nil
}

func (r *mongoBookingRepository) FindUpcomingForLab(ctx context.Context, labID string, from time.Time, limit int) ([]*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"lab_id": labID,
		"status": model.StatusApproved,
		"date":   bson.M{"$gte": from},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: 1}, {Key: "start_time", Value: 1}}).
		SetLimit(int64(limit))

	return r.find(ctx, filter, opts)
}

func (r *mongoBookingRepository) CountApprovedFrom(ctx context.Context, labID string, from time.Time) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{
		"lab_id": labID,
		"status": model.StatusApproved,
		"date":   bson.M{"$gte": from},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count approved bookings: %w", err)
	}
	return count, nil
}

func (r *mongoBookingRepository) CancelPendingForLab(ctx context.Context, labID string, from time.Time, reason string) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"lab_id": labID,
		"status": model.StatusPending,
		"date":   bson.M{"$gte": from},
	}
	update := bson.M{"$set": bson.M{
		"status":              model.StatusCancelled,
		"cancellation_reason": reason,
		"updated_at":          time.Now().UTC().Truncate(time.Millisecond),
	}}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel pending bookings: %w", err)
	}
	return result.ModifiedCount, nil
}

// BusyLabs returns the ids of labs holding a booking that overlaps the slot
// on query.Date. query.LabID is ignored.
func (r *mongoBookingRepository) BusyLabs(ctx context.Context, query model.SlotQuery) ([]string, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	query.LabID = ""
	filter := conflictFilter(query)

	values, err := r.collection.Distinct(ctx, "lab_id", filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find busy labs: %w", err)
	}

	ids := make([]string, 0, len(values))
	for _, v := range values {
		if id, ok := v.(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *mongoBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}

func (r *mongoBookingRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Booking, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

func buildListFilter(f model.BookingFilter) bson.M {
	filter := bson.M{}

	if len(f.Statuses) > 0 {
		filter["status"] = bson.M{"$in": f.Statuses}
	}
	if f.LabID != "" {
		filter["lab_id"] = f.LabID
	}
	if f.UserID != "" {
		filter["user_id"] = f.UserID
	}
	if dateRange := dateRangeFilter(f.DateFrom, f.DateTo); dateRange != nil {
		filter["date"] = dateRange
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(search), Options: "i"}
		filter["$or"] = []bson.M{
			{"title": pattern},
			{"description": pattern},
		}
	}

	return filter
}

func dateRangeFilter(from, to *time.Time) bson.M {
	if from == nil && to == nil {
		return nil
	}
	dateRange := bson.M{}
	if from != nil {
		dateRange["$gte"] = *from
	}
	if to != nil {
		dateRange["$lte"] = *to
	}
	return dateRange
}

// ParseSort turns a comma separated list such as "-date,startTime" into a
// sort document. Unknown fields are dropped; an empty result falls back to
// DefaultSort.
func ParseSort(raw string) bson.D {
	var sort bson.D
	seen := map[string]bool{}

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		direction := 1
		if strings.HasPrefix(part, "-") {
			direction = -1
			part = part[1:]
		}
		field, ok := sortFields[part]
		if !ok || seen[field] {
			continue
		}
		seen[field] = true
		sort = append(sort, bson.E{Key: field, Value: direction})
	}

	if len(sort) == 0 && raw != DefaultSort {
		return ParseSort(DefaultSort)
	}
	return sort
}

// ValidSort reports whether every element of raw names a sortable field.
func ValidSort(raw string) bool {
	if strings.TrimSpace(raw) == "" {
		return true
	}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimPrefix(strings.TrimSpace(part), "-")
		if _, ok := sortFields[part]; !ok {
			return false
		}
	}
	return true
}
