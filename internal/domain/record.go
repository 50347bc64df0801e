package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// RecordKey is the unique key of raw and presented records
type RecordKey struct {
	TenantID    string
	Marketplace string
	ExternalID  string
}

// RawEntityRecord is the persisted composite of one external entity.
// Every sync of the same key overwrites Payload; no history is kept.
type RawEntityRecord struct {
	Key           RecordKey
	Kind          EntityKind
	CompanyID     string
	IntegrationID string
	ShopID        string
	Payload       json.RawMessage
	LastSyncedAt  time.Time
}

// PresentedRecord is the downstream view of a raw record consumed by reporting layers
type PresentedRecord struct {
	Key             RecordKey
	Kind            EntityKind
	CompanyID       string
	ShopID          string
	Status          string
	StatusLabel     string
	Title           string // buyer username for orders, item name for items
	TotalAmount     decimal.Decimal
	Currency        string
	Quantity        int64
	SourceCreatedAt *time.Time
	ShippingInfo    ShippingInfo
	UpdatedAt       time.Time
}

// ShippingInfo is the shipping sub-document of a presented record
type ShippingInfo struct {
	Carrier        string
	PackageNumber  string
	TrackingNumber string
}

// ShippingLabel is the label metadata (and optional binary) patched into a presented record
type ShippingLabel struct {
	DocumentType   string
	Status         string
	TrackingNumber string
	PackageNumber  string
	Content        []byte
	ContentType    string
	AcquiredAt     time.Time
}

// HasContent reports whether a label binary was downloaded
func (l *ShippingLabel) HasContent() bool {
	return l != nil && len(l.Content) > 0
}
