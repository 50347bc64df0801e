package ports

import (
	"context"
	"encoding/json"

	"archie-core-shopee-layer/internal/domain"
	"archie-core-shopee-layer/internal/infrastructure/shopee"
)

// MarketplaceClient defines the signed marketplace operations used by a sync pass.
// Every call takes the run's AuthContext; token refresh happens inside the client.
type MarketplaceClient interface {
	// Token lifecycle
	Prime(ctx context.Context, auth *domain.AuthContext) error

	// Orders
	ListOrders(ctx context.Context, auth *domain.AuthContext, q shopee.ListQuery) (*shopee.ListPage, error)
	GetOrderDetails(ctx context.Context, auth *domain.AuthContext, orderSNs []string) ([]shopee.OrderDetail, error)
	GetEscrowDetail(ctx context.Context, auth *domain.AuthContext, orderSN string) (json.RawMessage, error)
	GetShipmentList(ctx context.Context, auth *domain.AuthContext, orderSN string) ([]shopee.Package, error)
	GetPackageDetail(ctx context.Context, auth *domain.AuthContext, packageNumbers []string) ([]shopee.Package, error)
	GetShippingParameter(ctx context.Context, auth *domain.AuthContext, orderSN, packageNumber string) (json.RawMessage, error)
	GetBuyerInvoiceInfo(ctx context.Context, auth *domain.AuthContext, orderSN string) (json.RawMessage, error)

	// Shipping documents
	GetShippingDocumentParameter(ctx context.Context, auth *domain.AuthContext, ref shopee.DocumentRef) (*shopee.DocumentParameter, error)
	CreateShippingDocument(ctx context.Context, auth *domain.AuthContext, ref shopee.DocumentRef) error
	GetShippingDocumentResult(ctx context.Context, auth *domain.AuthContext, ref shopee.DocumentRef) (*shopee.DocumentResult, error)
	DownloadShippingDocument(ctx context.Context, auth *domain.AuthContext, ref shopee.DocumentRef) (*shopee.Document, error)

	// Items
	ListItems(ctx context.Context, auth *domain.AuthContext, q shopee.ListQuery) (*shopee.ListPage, error)
	GetItemBaseInfo(ctx context.Context, auth *domain.AuthContext, itemIDs []string) ([]shopee.ItemDetail, error)
	GetModelList(ctx context.Context, auth *domain.AuthContext, itemID string) (json.RawMessage, error)
	GetItemExtraInfo(ctx context.Context, auth *domain.AuthContext, itemID string) (json.RawMessage, error)
}

// MarketplaceClientPool manages marketplace clients per partner application
type MarketplaceClientPool interface {
	GetClient(keys domain.AppKeys) (MarketplaceClient, error)
}

// MarketplaceClientPoolFunc adapts a function to MarketplaceClientPool
type MarketplaceClientPoolFunc func(keys domain.AppKeys) (MarketplaceClient, error)

// GetClient calls f(keys)
func (f MarketplaceClientPoolFunc) GetClient(keys domain.AppKeys) (MarketplaceClient, error) {
	return f(keys)
}
