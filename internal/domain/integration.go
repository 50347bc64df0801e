package domain

import "time"

// MarketplaceShopee is the marketplace name stored on integrations and records
const MarketplaceShopee = "shopee"

// IntegrationCredential represents one tenant's connection to one marketplace shop
// Tokens are stored encrypted; use the credentials service to obtain plaintext values
type IntegrationCredential struct {
	ID                    string            `json:"id"`
	TenantID              string            `json:"tenant_id"`   // Organization that owns the integration
	CompanyID             string            `json:"company_id"`  // Company inside the organization
	Marketplace           string            `json:"marketplace"` // e.g. "shopee"
	ShopID                string            `json:"shop_id"`     // Shop/account id on the marketplace
	EncryptedAccessToken  string            `json:"-"`
	EncryptedRefreshToken string            `json:"-"`
	TokenExpiresAt        *time.Time        `json:"token_expires_at,omitempty"`
	Config                map[string]string `json:"config,omitempty"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

// MarketplaceApp is the stored partner application of one marketplace
type MarketplaceApp struct {
	ID                  string
	Marketplace         string
	PartnerID           int64
	EncryptedPartnerKey string
	UpdatedAt           time.Time
}

// AppKeys is the per-platform application key pair used to sign requests
type AppKeys struct {
	PartnerID  int64
	PartnerKey string
}

// Valid reports whether both halves of the key pair are present
func (k AppKeys) Valid() bool {
	return k.PartnerID > 0 && k.PartnerKey != ""
}
