package repository

import (
	"context"
	"fmt"
	"time"

	"archie-core-shopee-layer/internal/domain"
	"archie-core-shopee-layer/internal/infrastructure/repository/entity"
	"archie-core-shopee-layer/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRawRecordRepository implements RawRecordRepository using MongoDB
type MongoRawRecordRepository struct {
	ordersCollection *mongo.Collection
	itemsCollection  *mongo.Collection
}

// NewMongoRawRecordRepository creates a new MongoDB raw record repository
func NewMongoRawRecordRepository(db *mongo.Database) *MongoRawRecordRepository {
	return &MongoRawRecordRepository{
		ordersCollection: db.Collection(entity.RawOrdersCollection),
		itemsCollection:  db.Collection(entity.RawItemsCollection),
	}
}

func (r *MongoRawRecordRepository) collectionFor(kind domain.EntityKind) *mongo.Collection {
	if kind == domain.EntityKindItem {
		return r.itemsCollection
	}
	return r.ordersCollection
}

// EnsureIndexes creates the unique key index on both raw collections
func (r *MongoRawRecordRepository) EnsureIndexes(ctx context.Context) error {
	for _, coll := range []*mongo.Collection{r.ordersCollection, r.itemsCollection} {
		if err := ensureKeyIndex(ctx, coll); err != nil {
			return err
		}
	}
	return nil
}

// Upsert inserts or overwrites the record identified by its key
func (r *MongoRawRecordRepository) Upsert(ctx context.Context, record *domain.RawEntityRecord) error {
	set, err := entity.RawRecordSet(record)
	if err != nil {
		return fmt.Errorf("failed to build raw record: %w", err)
	}
	createdAt := record.LastSyncedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	opts := options.Update().SetUpsert(true)
	filter := entity.KeyFilter(record.Key)
	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"created_at": createdAt},
	}

	_, err = r.collectionFor(record.Kind).UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert raw record: %w", err)
	}

	return nil
}

// MongoPresentedRecordRepository implements PresentedRecordRepository using MongoDB
type MongoPresentedRecordRepository struct {
	ordersCollection *mongo.Collection
	itemsCollection  *mongo.Collection
	now              func() time.Time
}

// NewMongoPresentedRecordRepository creates a new MongoDB presented record repository
func NewMongoPresentedRecordRepository(db *mongo.Database) *MongoPresentedRecordRepository {
	return &MongoPresentedRecordRepository{
		ordersCollection: db.Collection(entity.PresentedOrdersCollection),
		itemsCollection:  db.Collection(entity.PresentedItemsCollection),
		now:              time.Now,
	}
}

func (r *MongoPresentedRecordRepository) collectionFor(kind domain.EntityKind) *mongo.Collection {
	if kind == domain.EntityKindItem {
		return r.itemsCollection
	}
	return r.ordersCollection
}

// EnsureIndexes creates the unique key index on both presented collections
func (r *MongoPresentedRecordRepository) EnsureIndexes(ctx context.Context) error {
	for _, coll := range []*mongo.Collection{r.ordersCollection, r.itemsCollection} {
		if err := ensureKeyIndex(ctx, coll); err != nil {
			return err
		}
	}
	return nil
}

// Upsert writes the presented fields without touching shipping_info.label
func (r *MongoPresentedRecordRepository) Upsert(ctx context.Context, record *domain.PresentedRecord) error {
	set, err := entity.PresentedRecordSet(record)
	if err != nil {
		return fmt.Errorf("failed to build presented record: %w", err)
	}

	opts := options.Update().SetUpsert(true)
	filter := entity.KeyFilter(record.Key)
	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"created_at": r.now()},
	}

	_, err = r.collectionFor(record.Kind).UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert presented record: %w", err)
	}

	return nil
}

// PatchShippingLabel sets shipping_info.label on an existing presented record
func (r *MongoPresentedRecordRepository) PatchShippingLabel(ctx context.Context, kind domain.EntityKind, key domain.RecordKey, label *domain.ShippingLabel) error {
	update := bson.M{"$set": entity.ShippingLabelSet(label, r.now())}

	result, err := r.collectionFor(kind).UpdateOne(ctx, entity.KeyFilter(key), update)
	if err != nil {
		return fmt.Errorf("failed to patch shipping label: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("presented record not found: %s", key.ExternalID)
	}

	return nil
}

func ensureKeyIndex(ctx context.Context, coll *mongo.Collection) error {
	indexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "tenant_id", Value: 1},
			{Key: "marketplace", Value: 1},
			{Key: "external_id", Value: 1},
		},
		Options: options.Index().SetUnique(true).SetName("record_key_unique"),
	}
	if _, err := coll.Indexes().CreateOne(ctx, indexModel); err != nil {
		return fmt.Errorf("failed to create index on %s: %w", coll.Name(), err)
	}
	return nil
}

var (
	_ ports.RawRecordRepository       = (*MongoRawRecordRepository)(nil)
	_ ports.PresentedRecordRepository = (*MongoPresentedRecordRepository)(nil)
)
