package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	labserrors "labbook/internal/labs/errors"
	"labbook/pkg/config"
	mongotx "labbook/pkg/db/mongo"
	"labbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Labs"
)

const DefaultSort = "name"

var sortFields = map[string]string{
	"name":      "name",
	"code":      "code",
	"capacity":  "capacity",
	"createdAt": "created_at",
}

type mongoLabRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type LabRepository interface {
	Create(ctx context.Context, lab *model.Lab) error
	FindByID(ctx context.Context, id string) (*model.Lab, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]*model.Lab, error)
	Update(ctx context.Context, id string, lab *model.Lab) error
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error

	AddEquipment(ctx context.Context, id string, item model.Equipment) error
	UpdateEquipment(ctx context.Context, id, name string, item model.Equipment) error
	RemoveEquipment(ctx context.Context, id, name string) error

	List(ctx context.Context, filter model.LabFilter) ([]*model.Lab, error)
	Count(ctx context.Context, filter model.LabFilter) (int64, error)
	FindActive(ctx context.Context) ([]*model.Lab, error)
	Inventory(ctx context.Context) (*model.LabInventory, error)

	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoLabRepository(cfg *config.Config) LabRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoLabRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo, cfg.MongoTransactions),
	}
}

func (r *mongoLabRepository) Create(ctx context.Context, lab *model.Lab) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	lab.CreatedAt = now
	lab.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, lab)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", labserrors.ErrDuplicate, lab.Code)
		}
		return fmt.Errorf("failed to create lab: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		lab.ID = oid.Hex()
	}
	return nil
}

func (r *mongoLabRepository) FindByID(ctx context.Context, id string) (*model.Lab, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", labserrors.ErrInvalidID, id)
	}

	var lab model.Lab
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&lab)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", labserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find lab: %w", err)
	}
	return &lab, nil
}

// FindByIDs skips malformed ids; missing labs are simply absent from the map.
func (r *mongoLabRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*model.Lab, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectIDs := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			objectIDs = append(objectIDs, oid)
		}
	}
	if len(objectIDs) == 0 {
		return map[string]*model.Lab{}, nil
	}

	labs, err := r.find(ctx, bson.M{"_id": bson.M{"$in": objectIDs}}, options.Find())
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*model.Lab, len(labs))
	for _, lab := range labs {
		byID[lab.ID] = lab
	}
	return byID, nil
}

func (r *mongoLabRepository) Update(ctx context.Context, id string, lab *model.Lab) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", labserrors.ErrInvalidID, id)
	}

	lab.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	update := bson.M{
		"$set": bson.M{
			"name":            lab.Name,
			"code":            lab.Code,
			"description":     lab.Description,
			"capacity":        lab.Capacity,
			"equipment":       lab.Equipment,
			"facilities":      lab.Facilities,
			"location":        lab.Location,
			"operating_hours": lab.OperatingHours,
			"maintained_by":   lab.MaintainedBy,
			"updated_at":      lab.UpdatedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", labserrors.ErrDuplicate, lab.Code)
		}
		return fmt.Errorf("failed to update lab: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", labserrors.ErrNotFound, id)
	}
	return nil
}

func (r *mongoLabRepository) SetActive(ctx context.Context, id string, active bool) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", labserrors.ErrInvalidID, id)
	}

	update := bson.M{"$set": bson.M{
		"is_active":  active,
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return fmt.Errorf("failed to update lab status: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", labserrors.ErrNotFound, id)
	}
	return nil
}

func (r *mongoLabRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", labserrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete lab: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", labserrors.ErrNotFound, id)
	}
	return nil
}

// AddEquipment appends item unless an entry with the same name exists.
func (r *mongoLabRepository) AddEquipment(ctx context.Context, id string, item model.Equipment) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", labserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "equipment.name": bson.M{"$ne": item.Name}}
	update := bson.M{
		"$push": bson.M{"equipment": item},
		"$set":  bson.M{"updated_at": time.Now().UTC().Truncate(time.Millisecond)},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to add equipment: %w", err)
	}
	if result.MatchedCount == 0 {
		return r.explainMiss(ctx, objectID, "", item.Name)
	}
	return nil
}

// UpdateEquipment replaces the entry called name. A rename must not collide
// with another entry.
func (r *mongoLabRepository) UpdateEquipment(ctx context.Context, id, name string, item model.Equipment) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", labserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "equipment.name": name}
	if item.Name != name {
		filter["equipment.name"] = bson.M{"$eq": name, "$ne": item.Name}
	}
	update := bson.M{"$set": bson.M{
		"equipment.$[item]": item,
		"updated_at":        time.Now().UTC().Truncate(time.Millisecond),
	}}
	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []any{bson.M{"item.name": name}},
	})

	result, err := r.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to update equipment: %w", err)
	}
	if result.MatchedCount == 0 {
		return r.explainMiss(ctx, objectID, name, item.Name)
	}
	return nil
}

func (r *mongoLabRepository) RemoveEquipment(ctx context.Context, id, name string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", labserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "equipment.name": name}
	update := bson.M{
		"$pull": bson.M{"equipment": bson.M{"name": name}},
		"$set":  bson.M{"updated_at": time.Now().UTC().Truncate(time.Millisecond)},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to remove equipment: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", labserrors.ErrEquipmentNotFound, name)
	}
	return nil
}

// explainMiss finds out why a guarded equipment write matched nothing: the
// lab is gone, the entry called current is gone, or next is taken.
func (r *mongoLabRepository) explainMiss(ctx context.Context, objectID primitive.ObjectID, current, next string) error {
	filter := bson.M{"_id": objectID}
	n, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to check lab: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", labserrors.ErrNotFound, objectID.Hex())
	}

	if current != "" {
		filter["equipment.name"] = current
		n, err = r.collection.CountDocuments(ctx, filter)
		if err != nil {
			return fmt.Errorf("failed to check equipment: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", labserrors.ErrEquipmentNotFound, current)
		}
	}
	return fmt.Errorf("%w: %s", labserrors.ErrDuplicateEquipment, next)
}

func (r *mongoLabRepository) List(ctx context.Context, filter model.LabFilter) ([]*model.Lab, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	limit := config.NormalizePaginationLimit(filter.Limit)
	page := config.NormalizePage(filter.Page)

	opts := options.Find().
		SetSort(ParseSort(filter.Sort)).
		SetLimit(int64(limit)).
		SetSkip(config.NormalizeOffset(int64(page-1) * int64(limit)))

	return r.find(ctx, buildListFilter(filter), opts)
}

func (r *mongoLabRepository) Count(ctx context.Context, filter model.LabFilter) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, buildListFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count labs: %w", err)
	}
	return count, nil
}

func (r *mongoLabRepository) FindActive(ctx context.Context) ([]*model.Lab, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	return r.find(ctx, bson.M{"is_active": true}, opts)
}

func (r *mongoLabRepository) Inventory(ctx context.Context) (*model.LabInventory, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.collection.Aggregate(ctx, inventoryPipeline())
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate labs: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Totals    []model.LabInventory         `bson:"totals"`
		Equipment []model.EquipmentStatusCount `bson:"equipment"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode lab inventory: %w", err)
	}

	inventory := &model.LabInventory{}
	if len(results) == 0 {
		return inventory, nil
	}
	if len(results[0].Totals) > 0 {
		*inventory = results[0].Totals[0]
	}
	inventory.Equipment = results[0].Equipment
	return inventory, nil
}

func inventoryPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$facet", Value: bson.M{
			"totals": bson.A{
				bson.M{"$group": bson.M{
					"_id":            nil,
					"total":          bson.M{"$sum": 1},
					"active":         bson.M{"$sum": bson.M{"$cond": bson.A{"$is_active", 1, 0}}},
					"total_capacity": bson.M{"$sum": "$capacity"},
				}},
			},
			"equipment": bson.A{
				bson.M{"$unwind": "$equipment"},
				bson.M{"$group": bson.M{
					"_id":      "$equipment.status",
					"items":    bson.M{"$sum": 1},
					"quantity": bson.M{"$sum": "$equipment.quantity"},
					"lab_ids":  bson.M{"$addToSet": "$_id"},
				}},
				bson.M{"$project": bson.M{"items": 1, "quantity": 1, "labs": bson.M{"$size": "$lab_ids"}}},
				bson.M{"$sort": bson.M{"_id": 1}},
			},
		}}},
	}
}

func (r *mongoLabRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}

func (r *mongoLabRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Lab, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query labs: %w", err)
	}
	defer cursor.Close(ctx)

	var labs []*model.Lab
	if err = cursor.All(ctx, &labs); err != nil {
		return nil, fmt.Errorf("failed to decode labs: %w", err)
	}
	return labs, nil
}

func buildListFilter(f model.LabFilter) bson.M {
	filter := bson.M{}

	if f.IsActive != nil {
		filter["is_active"] = *f.IsActive
	}
	if f.MinCapacity > 0 {
		filter["capacity"] = bson.M{"$gte": f.MinCapacity}
	}
	if f.Facility != "" {
		filter["facilities"] = f.Facility
	}
	if building := strings.TrimSpace(f.Building); building != "" {
		filter["location.building"] = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(building) + "$", Options: "i"}
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(search), Options: "i"}
		filter["$or"] = []bson.M{
			{"name": pattern},
			{"code": pattern},
			{"description": pattern},
		}
	}

	return filter
}

// ParseSort accepts a comma separated list of sortable fields, each
// optionally prefixed with "-". Anything unknown falls back to DefaultSort.
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

	if len(sort) == 0 {
		return bson.D{{Key: sortFields[DefaultSort], Value: 1}}
	}
	return sort
}

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
