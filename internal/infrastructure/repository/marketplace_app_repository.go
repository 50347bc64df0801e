package repository

import (
	"context"
	"fmt"

	"archie-core-shopee-layer/internal/domain"
	"archie-core-shopee-layer/internal/infrastructure/repository/entity"
	"archie-core-shopee-layer/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoMarketplaceAppRepository implements MarketplaceAppRepository using MongoDB.
// Works with the marketplace_apps collection, one active document per marketplace.
type MongoMarketplaceAppRepository struct {
	collection *mongo.Collection
}

// NewMongoMarketplaceAppRepository creates a new MongoDB repository
func NewMongoMarketplaceAppRepository(db *mongo.Database) *MongoMarketplaceAppRepository {
	return &MongoMarketplaceAppRepository{
		collection: db.Collection("marketplace_apps"),
	}
}

// GetByMarketplace retrieves the most recently updated active application of a marketplace
func (r *MongoMarketplaceAppRepository) GetByMarketplace(ctx context.Context, marketplace string) (*domain.MarketplaceApp, error) {
	var doc entity.MongoMarketplaceAppDoc
	filter := bson.M{
		"marketplace": marketplace,
		"active":      true,
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "updated_at", Value: -1}})

	err := r.collection.FindOne(ctx, filter, opts).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get marketplace app: %w", err)
	}

	return doc.ToDomain(), nil
}

var _ ports.MarketplaceAppRepository = (*MongoMarketplaceAppRepository)(nil)
