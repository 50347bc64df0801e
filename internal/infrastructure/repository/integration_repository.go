package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"archie-core-shopee-layer/internal/domain"
	"archie-core-shopee-layer/internal/infrastructure/repository/entity"
	"archie-core-shopee-layer/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoIntegrationRepository implements IntegrationRepository using MongoDB
type MongoIntegrationRepository struct {
	collection *mongo.Collection
}

// NewMongoIntegrationRepository creates a new MongoDB integration repository
func NewMongoIntegrationRepository(db *mongo.Database) *MongoIntegrationRepository {
	return &MongoIntegrationRepository{
		collection: db.Collection("integrations"),
	}
}

// ListByTenant retrieves the integrations of a tenant for one marketplace
func (r *MongoIntegrationRepository) ListByTenant(ctx context.Context, tenantID string, marketplace string) ([]*domain.IntegrationCredential, error) {
	filter := bson.M{
		"tenant_id":   tenantID,
		"marketplace": marketplace,
	}
	return r.find(ctx, filter)
}

// ListByShopID retrieves the integrations bound to a marketplace shop.
// Shop ids written by older importers are numeric, so both forms are matched.
func (r *MongoIntegrationRepository) ListByShopID(ctx context.Context, shopID string, marketplace string) ([]*domain.IntegrationCredential, error) {
	ids := bson.A{shopID}
	if n, err := strconv.ParseInt(shopID, 10, 64); err == nil {
		ids = append(ids, n)
	}
	filter := bson.M{
		"shop_id":     bson.M{"$in": ids},
		"marketplace": marketplace,
	}
	return r.find(ctx, filter)
}

func (r *MongoIntegrationRepository) find(ctx context.Context, filter bson.M) ([]*domain.IntegrationCredential, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list integrations: %w", err)
	}
	defer cursor.Close(ctx)

	var integrations []*domain.IntegrationCredential
	for cursor.Next(ctx) {
		var doc entity.MongoIntegrationDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode integration: %w", err)
		}
		integrations = append(integrations, doc.ToDomain())
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return integrations, nil
}

// UpdateTokens replaces the encrypted token pair of an integration
func (r *MongoIntegrationRepository) UpdateTokens(ctx context.Context, integrationID string, encryptedAccess string, encryptedRefresh string, expiresAt time.Time) error {
	var filter bson.M
	if objID, err := primitive.ObjectIDFromHex(integrationID); err == nil {
		filter = bson.M{"_id": objID}
	} else {
		filter = bson.M{"_id": integrationID}
	}

	update := bson.M{
		"$set": bson.M{
			"encrypted_access_token":  encryptedAccess,
			"encrypted_refresh_token": encryptedRefresh,
			"token_expires_at":        expiresAt,
			"updated_at":              time.Now(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update integration tokens: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("integration not found: %s", integrationID)
	}
	return nil
}

var _ ports.IntegrationRepository = (*MongoIntegrationRepository)(nil)
