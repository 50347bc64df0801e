package application

import (
	"encoding/json"
	"sync"

	"archie-core-shopee-layer/internal/domain"
	"archie-core-shopee-layer/internal/infrastructure/shopee"
)

// Composite is the raw payload persisted per entity: the detail object plus every secondary document
type Composite struct {
	ListEntry         json.RawMessage   `json:"list_entry,omitempty"`
	Detail            json.RawMessage   `json:"detail"`
	Escrow            json.RawMessage   `json:"escrow,omitempty"`
	Packages          []json.RawMessage `json:"packages,omitempty"`
	ShippingParameter json.RawMessage   `json:"shipping_parameter,omitempty"`
	BuyerInvoice      json.RawMessage   `json:"buyer_invoice,omitempty"`
	ShippingDocument  *ShippingDocument `json:"shipping_document,omitempty"`
	ModelList         json.RawMessage   `json:"model_list,omitempty"`
	ExtraInfo         json.RawMessage   `json:"extra_info,omitempty"`
	StatusLabel       string            `json:"status_label"`
	EnrichmentErrors  map[string]string `json:"enrichment_errors,omitempty"`
}

// ShippingDocument is the label metadata kept in the composite; the binary never is
type ShippingDocument struct {
	DocumentType   string `json:"document_type"`
	Status         string `json:"status"`
	PackageNumber  string `json:"package_number,omitempty"`
	TrackingNumber string `json:"tracking_number,omitempty"`
	Downloaded     bool   `json:"downloaded"`
}

// EnrichedEntity is one entity ready to persist
type EnrichedEntity struct {
	ExternalID string
	Kind       domain.EntityKind
	Order      *shopee.OrderDetail
	Item       *shopee.ItemDetail
	Packages   []shopee.Package
	Composite  *Composite
	// Label travels beside the composite to the persister
	Label *domain.ShippingLabel

	mu sync.Mutex
}

func (e *EnrichedEntity) recordError(task string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Composite.EnrichmentErrors == nil {
		e.Composite.EnrichmentErrors = make(map[string]string)
	}
	e.Composite.EnrichmentErrors[task] = err.Error()
}

// Status returns the upstream status of the entity
func (e *EnrichedEntity) Status() string {
	if e.Order != nil {
		return e.Order.OrderStatus
	}
	if e.Item != nil {
		return e.Item.ItemStatus
	}
	return ""
}
