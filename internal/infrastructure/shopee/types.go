package shopee

import (
	"encoding/json"
	"strconv"
	"time"

	"archie-core-shopee-layer/internal/domain"

	"github.com/shopspring/decimal"
)

// envelope is the common response wrapper of shop-level endpoints
type envelope struct {
	Error     string          `json:"error"`
	Message   string          `json:"message"`
	RequestID string          `json:"request_id"`
	Warning   json.RawMessage `json:"warning,omitempty"`
	Response  json.RawMessage `json:"response"`
}

// tokenResponse is returned by the refresh endpoint without the response wrapper
type tokenResponse struct {
	Error        string `json:"error"`
	Message      string `json:"message"`
	RequestID    string `json:"request_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpireIn     int64  `json:"expire_in"`
	PartnerID    int64  `json:"partner_id"`
	ShopID       int64  `json:"shop_id"`
}

// TokenGrant is a freshly issued token pair
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// ListQuery parameterizes one listing page
type ListQuery struct {
	TimeRangeField string
	TimeFrom       time.Time
	TimeTo         time.Time
	PageSize       int
	Statuses       []string
	Cursor         string
}

// ListEntry is one listed entity: its id plus the raw listing object
type ListEntry struct {
	ID  string
	Raw json.RawMessage
}

// ListPage is one page of listing results
type ListPage struct {
	Entries []ListEntry
	Cursor  domain.ListCursor
}

type orderListResponse struct {
	More       bool              `json:"more"`
	NextCursor string            `json:"next_cursor"`
	OrderList  []json.RawMessage `json:"order_list"`
}

type orderListEntry struct {
	OrderSN     string `json:"order_sn"`
	OrderStatus string `json:"order_status"`
}

type itemListResponse struct {
	Item        []json.RawMessage `json:"item"`
	TotalCount  int               `json:"total_count"`
	HasNextPage bool              `json:"has_next_page"`
	NextOffset  int               `json:"next_offset"`
}

type itemListEntry struct {
	ItemID     int64  `json:"item_id"`
	ItemStatus string `json:"item_status"`
	UpdateTime int64  `json:"update_time"`
}

// OrderItem is one line of an order
type OrderItem struct {
	ItemID                 int64           `json:"item_id"`
	ItemName               string          `json:"item_name"`
	ItemSKU                string          `json:"item_sku"`
	ModelID                int64           `json:"model_id"`
	ModelQuantityPurchased int64           `json:"model_quantity_purchased"`
	ModelDiscountedPrice   decimal.Decimal `json:"model_discounted_price"`
}

// InvoiceData is the invoice block of an order detail
type InvoiceData struct {
	Number        string `json:"number"`
	InvoiceStatus string `json:"invoice_status"`
}

// Package is one logistics package of an order
type Package struct {
	PackageNumber   string          `json:"package_number"`
	LogisticsStatus string          `json:"logistics_status"`
	ShippingCarrier string          `json:"shipping_carrier"`
	TrackingNumber  string          `json:"tracking_number"`
	Raw             json.RawMessage `json:"-"`
}

func (p *Package) UnmarshalJSON(b []byte) error {
	type alias Package
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*p = Package(a)
	p.Raw = append(json.RawMessage(nil), b...)
	return nil
}

// OrderDetail is the typed subset of an order detail; Raw keeps the full object
type OrderDetail struct {
	OrderSN         string          `json:"order_sn"`
	OrderStatus     string          `json:"order_status"`
	Currency        string          `json:"currency"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	BuyerUsername   string          `json:"buyer_username"`
	ShippingCarrier string          `json:"shipping_carrier"`
	CreateTime      int64           `json:"create_time"`
	UpdateTime      int64           `json:"update_time"`
	InvoiceData     *InvoiceData    `json:"invoice_data,omitempty"`
	ItemList        []OrderItem     `json:"item_list"`
	PackageList     []Package       `json:"package_list"`
	Raw             json.RawMessage `json:"-"`
}

func (d *OrderDetail) UnmarshalJSON(b []byte) error {
	type alias OrderDetail
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*d = OrderDetail(a)
	d.Raw = append(json.RawMessage(nil), b...)
	return nil
}

// InvoiceStatus returns the invoice sub-status, empty when absent
func (d *OrderDetail) InvoiceStatus() string {
	if d.InvoiceData == nil {
		return ""
	}
	return d.InvoiceData.InvoiceStatus
}

type orderDetailResponse struct {
	OrderList []OrderDetail `json:"order_list"`
}

type shipmentListResponse struct {
	More       bool   `json:"more"`
	NextCursor string `json:"next_cursor"`
	OrderList  []struct {
		OrderSN       string `json:"order_sn"`
		PackageNumber string `json:"package_number"`
	} `json:"order_list"`
}

type packageDetailResponse struct {
	PackageList []Package `json:"package_list"`
}

// PriceInfo is one price entry of an item
type PriceInfo struct {
	Currency      string          `json:"currency"`
	OriginalPrice decimal.Decimal `json:"original_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
}

// StockInfo is the stock summary of an item
type StockInfo struct {
	SummaryInfo struct {
		TotalReservedStock  int64 `json:"total_reserved_stock"`
		TotalAvailableStock int64 `json:"total_available_stock"`
	} `json:"summary_info"`
}

// ItemDetail is the typed subset of an item base info; Raw keeps the full object
type ItemDetail struct {
	ItemID      int64           `json:"item_id"`
	ItemName    string          `json:"item_name"`
	ItemSKU     string          `json:"item_sku"`
	ItemStatus  string          `json:"item_status"`
	HasModel    bool            `json:"has_model"`
	CreateTime  int64           `json:"create_time"`
	UpdateTime  int64           `json:"update_time"`
	PriceInfo   []PriceInfo     `json:"price_info"`
	StockInfoV2 *StockInfo      `json:"stock_info_v2,omitempty"`
	Raw         json.RawMessage `json:"-"`
}

func (d *ItemDetail) UnmarshalJSON(b []byte) error {
	type alias ItemDetail
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*d = ItemDetail(a)
	d.Raw = append(json.RawMessage(nil), b...)
	return nil
}

// ID returns the item id as the external id string
func (d *ItemDetail) ID() string {
	return strconv.FormatInt(d.ItemID, 10)
}

type itemBaseInfoResponse struct {
	ItemList []ItemDetail `json:"item_list"`
}

// DocumentRef identifies the package a shipping document is requested for
type DocumentRef struct {
	OrderSN        string `json:"order_sn"`
	PackageNumber  string `json:"package_number,omitempty"`
	TrackingNumber string `json:"tracking_number,omitempty"`
	DocumentType   string `json:"shipping_document_type,omitempty"`
}

// DocumentParameter is the suggested document type of a package
type DocumentParameter struct {
	OrderSN             string   `json:"order_sn"`
	PackageNumber       string   `json:"package_number"`
	SuggestDocumentType string   `json:"suggest_shipping_document_type"`
	SelectableTypes     []string `json:"selectable_shipping_document_type"`
	FailError           string   `json:"fail_error"`
	FailMessage         string   `json:"fail_message"`
}

// DocumentResult is the generation status of a shipping document
type DocumentResult struct {
	OrderSN       string `json:"order_sn"`
	PackageNumber string `json:"package_number"`
	Status        string `json:"status"`
	FailError     string `json:"fail_error"`
	FailMessage   string `json:"fail_message"`
}

// Ready reports whether the document can be downloaded
func (r *DocumentResult) Ready() bool {
	return r != nil && r.Status == "READY"
}

// Document is a downloaded shipping document
type Document struct {
	Content     []byte
	ContentType string
}

type documentParameterResponse struct {
	ResultList []DocumentParameter `json:"result_list"`
}

type documentResultResponse struct {
	ResultList []DocumentResult `json:"result_list"`
}

type documentOrderList struct {
	OrderList []DocumentRef `json:"order_list"`
	// set on download requests only
	ShippingDocumentType string `json:"shipping_document_type,omitempty"`
}
