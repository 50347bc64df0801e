package entity

import (
	"time"

	"archie-core-shopee-layer/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoIntegrationDoc represents a marketplace integration in MongoDB
type MongoIntegrationDoc struct {
	ID                    primitive.ObjectID `bson:"_id,omitempty"`
	TenantID              string             `bson:"tenant_id"`
	CompanyID             string             `bson:"company_id"`
	Marketplace           string             `bson:"marketplace"`
	ShopID                string             `bson:"shop_id"`
	EncryptedAccessToken  string             `bson:"encrypted_access_token"`
	EncryptedRefreshToken string             `bson:"encrypted_refresh_token"`
	TokenExpiresAt        *time.Time         `bson:"token_expires_at,omitempty"`
	Config                map[string]string  `bson:"config,omitempty"`
	CreatedAt             time.Time          `bson:"created_at"`
	UpdatedAt             time.Time          `bson:"updated_at"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoIntegrationDoc) ToDomain() *domain.IntegrationCredential {
	return &domain.IntegrationCredential{
		ID:                    d.ID.Hex(),
		TenantID:              d.TenantID,
		CompanyID:             d.CompanyID,
		Marketplace:           d.Marketplace,
		ShopID:                d.ShopID,
		EncryptedAccessToken:  d.EncryptedAccessToken,
		EncryptedRefreshToken: d.EncryptedRefreshToken,
		TokenExpiresAt:        d.TokenExpiresAt,
		Config:                d.Config,
		CreatedAt:             d.CreatedAt,
		UpdatedAt:             d.UpdatedAt,
	}
}

// MongoIntegrationDocFromDomain converts a domain entity to a MongoDB document
func MongoIntegrationDocFromDomain(integration *domain.IntegrationCredential) *MongoIntegrationDoc {
	doc := &MongoIntegrationDoc{
		TenantID:              integration.TenantID,
		CompanyID:             integration.CompanyID,
		Marketplace:           integration.Marketplace,
		ShopID:                integration.ShopID,
		EncryptedAccessToken:  integration.EncryptedAccessToken,
		EncryptedRefreshToken: integration.EncryptedRefreshToken,
		TokenExpiresAt:        integration.TokenExpiresAt,
		Config:                integration.Config,
		CreatedAt:             integration.CreatedAt,
		UpdatedAt:             integration.UpdatedAt,
	}

	if integration.ID != "" {
		if objID, err := primitive.ObjectIDFromHex(integration.ID); err == nil {
			doc.ID = objID
		}
	}

	return doc
}

// MongoMarketplaceAppDoc represents a partner application in the marketplace_apps collection
type MongoMarketplaceAppDoc struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty"`
	Marketplace         string             `bson:"marketplace"`
	PartnerID           int64              `bson:"partner_id"`
	EncryptedPartnerKey string             `bson:"encrypted_partner_key"`
	Active              bool               `bson:"active"`
	UpdatedAt           time.Time          `bson:"updated_at"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoMarketplaceAppDoc) ToDomain() *domain.MarketplaceApp {
	return &domain.MarketplaceApp{
		ID:                  d.ID.Hex(),
		Marketplace:         d.Marketplace,
		PartnerID:           d.PartnerID,
		EncryptedPartnerKey: d.EncryptedPartnerKey,
		UpdatedAt:           d.UpdatedAt,
	}
}
