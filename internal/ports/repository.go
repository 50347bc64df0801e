package ports

import (
	"context"

	"archie-core-shopee-layer/internal/domain"
)

// RawRecordRepository persists composite records
type RawRecordRepository interface {
	// Upsert inserts or overwrites the record identified by its key
	Upsert(ctx context.Context, record *domain.RawEntityRecord) error
}

// PresentedRecordRepository persists the downstream presented view
type PresentedRecordRepository interface {
	// Upsert writes the presented fields without touching fields it does not own (such as the label)
	Upsert(ctx context.Context, record *domain.PresentedRecord) error

	// PatchShippingLabel adds label metadata to shipping_info, leaving other fields untouched
	PatchShippingLabel(ctx context.Context, kind domain.EntityKind, key domain.RecordKey, label *domain.ShippingLabel) error
}
