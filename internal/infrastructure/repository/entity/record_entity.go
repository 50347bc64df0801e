package entity

import (
	"encoding/base64"
	"fmt"
	"time"

	"archie-core-shopee-layer/internal/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Collection names per entity kind
const (
	RawOrdersCollection       = "raw_orders"
	RawItemsCollection        = "raw_items"
	PresentedOrdersCollection = "presented_orders"
	PresentedItemsCollection  = "presented_items"
)

// KeyFilter is the unique-key filter shared by raw and presented collections
func KeyFilter(key domain.RecordKey) bson.M {
	return bson.M{
		"tenant_id":   key.TenantID,
		"marketplace": key.Marketplace,
		"external_id": key.ExternalID,
	}
}

// RawRecordSet builds the $set document of a raw record upsert.
// The JSON payload is stored as a native document so it can be queried.
func RawRecordSet(record *domain.RawEntityRecord) (bson.M, error) {
	var payload bson.M
	if len(record.Payload) > 0 {
		if err := bson.UnmarshalExtJSON(record.Payload, false, &payload); err != nil {
			return nil, fmt.Errorf("failed to convert payload: %w", err)
		}
	}
	return bson.M{
		"kind":           string(record.Kind),
		"company_id":     record.CompanyID,
		"integration_id": record.IntegrationID,
		"shop_id":        record.ShopID,
		"payload":        payload,
		"last_synced_at": record.LastSyncedAt,
		"updated_at":     record.LastSyncedAt,
	}, nil
}

// PresentedRecordSet builds the dotted $set document of a presented record upsert.
// Dotted shipping_info paths keep shipping_info.label intact.
func PresentedRecordSet(record *domain.PresentedRecord) (bson.M, error) {
	amount, err := primitive.ParseDecimal128(record.TotalAmount.String())
	if err != nil {
		return nil, fmt.Errorf("failed to convert total amount: %w", err)
	}
	set := bson.M{
		"kind":                          string(record.Kind),
		"company_id":                    record.CompanyID,
		"shop_id":                       record.ShopID,
		"status":                        record.Status,
		"status_label":                  record.StatusLabel,
		"title":                         record.Title,
		"total_amount":                  amount,
		"currency":                      record.Currency,
		"quantity":                      record.Quantity,
		"shipping_info.carrier":         record.ShippingInfo.Carrier,
		"shipping_info.package_number":  record.ShippingInfo.PackageNumber,
		"shipping_info.tracking_number": record.ShippingInfo.TrackingNumber,
		"updated_at":                    record.UpdatedAt,
	}
	if record.SourceCreatedAt != nil {
		set["source_created_at"] = *record.SourceCreatedAt
	}
	return set, nil
}

// ShippingLabelSet builds the dotted $set document of a label patch
func ShippingLabelSet(label *domain.ShippingLabel, now time.Time) bson.M {
	set := bson.M{
		"shipping_info.label.document_type":   label.DocumentType,
		"shipping_info.label.status":          label.Status,
		"shipping_info.label.tracking_number": label.TrackingNumber,
		"shipping_info.label.package_number":  label.PackageNumber,
		"shipping_info.label.acquired_at":     label.AcquiredAt,
		"updated_at":                          now,
	}
	if label.HasContent() {
		set["shipping_info.label.content"] = base64.StdEncoding.EncodeToString(label.Content)
		set["shipping_info.label.content_type"] = label.ContentType
		set["shipping_info.label.size"] = len(label.Content)
	}
	return set
}
