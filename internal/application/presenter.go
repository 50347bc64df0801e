package application

import (
	"time"

	"archie-core-shopee-layer/internal/domain"

	"github.com/shopspring/decimal"
)

// Present builds the downstream view of an enriched entity
func Present(e *EnrichedEntity, integration *domain.IntegrationCredential, now time.Time) *domain.PresentedRecord {
	record := &domain.PresentedRecord{
		Key:         recordKey(integration, e.ExternalID),
		Kind:        e.Kind,
		CompanyID:   integration.CompanyID,
		ShopID:      integration.ShopID,
		Status:      e.Status(),
		StatusLabel: e.Composite.StatusLabel,
		TotalAmount: decimal.Zero,
		UpdatedAt:   now,
	}

	switch {
	case e.Order != nil:
		order := e.Order
		record.Title = order.BuyerUsername
		record.TotalAmount = order.TotalAmount
		record.Currency = order.Currency
		for _, line := range order.ItemList {
			record.Quantity += line.ModelQuantityPurchased
		}
		record.SourceCreatedAt = unixTime(order.CreateTime)

		record.ShippingInfo.Carrier = order.ShippingCarrier
		if len(e.Packages) > 0 {
			pkg := e.Packages[0]
			if pkg.ShippingCarrier != "" {
				record.ShippingInfo.Carrier = pkg.ShippingCarrier
			}
			record.ShippingInfo.PackageNumber = pkg.PackageNumber
			record.ShippingInfo.TrackingNumber = pkg.TrackingNumber
		}
		if tracked := trackedPackage(e.Packages); tracked != nil {
			record.ShippingInfo.PackageNumber = tracked.PackageNumber
			record.ShippingInfo.TrackingNumber = tracked.TrackingNumber
		}

	case e.Item != nil:
		item := e.Item
		record.Title = item.ItemName
		if len(item.PriceInfo) > 0 {
			record.TotalAmount = item.PriceInfo[0].CurrentPrice
			record.Currency = item.PriceInfo[0].Currency
		}
		if item.StockInfoV2 != nil {
			record.Quantity = item.StockInfoV2.SummaryInfo.TotalAvailableStock
		}
		record.SourceCreatedAt = unixTime(item.CreateTime)
	}

	return record
}

func recordKey(integration *domain.IntegrationCredential, externalID string) domain.RecordKey {
	return domain.RecordKey{
		TenantID:    integration.TenantID,
		Marketplace: domain.MarketplaceShopee,
		ExternalID:  externalID,
	}
}

func unixTime(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
