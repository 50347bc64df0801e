package ports

import (
	"context"
	"time"

	"archie-core-shopee-layer/internal/domain"
)

// IntegrationRepository defines the read/write contract for integration credentials
type IntegrationRepository interface {
	// ListByTenant returns every integration of a tenant for one marketplace
	ListByTenant(ctx context.Context, tenantID string, marketplace string) ([]*domain.IntegrationCredential, error)

	// ListByShopID returns the integrations bound to a marketplace shop
	ListByShopID(ctx context.Context, shopID string, marketplace string) ([]*domain.IntegrationCredential, error)

	// UpdateTokens replaces the encrypted token pair and its expiry
	UpdateTokens(ctx context.Context, integrationID string, encryptedAccess string, encryptedRefresh string, expiresAt time.Time) error
}

// MarketplaceAppRepository defines the lookup of per-platform partner applications
type MarketplaceAppRepository interface {
	// GetByMarketplace returns nil, nil when no application is stored for the marketplace
	GetByMarketplace(ctx context.Context, marketplace string) (*domain.MarketplaceApp, error)
}

// EncryptionService encrypts credentials at rest
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}
