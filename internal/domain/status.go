package domain

import "strings"

// Order statuses reported by the marketplace
const (
	OrderStatusUnpaid           = "UNPAID"
	OrderStatusReadyToShip      = "READY_TO_SHIP"
	OrderStatusProcessed        = "PROCESSED"
	OrderStatusRetryShip        = "RETRY_SHIP"
	OrderStatusShipped          = "SHIPPED"
	OrderStatusToConfirmReceive = "TO_CONFIRM_RECEIVE"
	OrderStatusInCancel         = "IN_CANCEL"
	OrderStatusCancelled        = "CANCELLED"
	OrderStatusToReturn         = "TO_RETURN"
	OrderStatusCompleted        = "COMPLETED"
	OrderStatusInvoicePending   = "INVOICE_PENDING"
)

// Item statuses reported by the marketplace
const (
	ItemStatusNormal       = "NORMAL"
	ItemStatusBanned       = "BANNED"
	ItemStatusUnlist       = "UNLIST"
	ItemStatusReviewing    = "REVIEWING"
	ItemStatusSellerDelete = "SELLER_DELETE"
	ItemStatusShopeeDelete = "SHOPEE_DELETE"
)

// DefaultOrderStatusFilter is applied when the caller sends no recognized order status.
// Kept for compatibility with existing callers; see DESIGN.md open questions.
const DefaultOrderStatusFilter = OrderStatusReadyToShip

// DefaultItemStatusFilter is applied when the caller sends no recognized item status
const DefaultItemStatusFilter = ItemStatusNormal

var orderStatusLabels = map[string]string{
	OrderStatusUnpaid:           "Awaiting payment",
	OrderStatusReadyToShip:      "Ready to ship",
	OrderStatusProcessed:        "Processed",
	OrderStatusRetryShip:        "Retry shipment",
	OrderStatusShipped:          "Shipped",
	OrderStatusToConfirmReceive: "Awaiting delivery confirmation",
	OrderStatusInCancel:         "Cancellation requested",
	OrderStatusCancelled:        "Cancelled",
	OrderStatusToReturn:         "Return requested",
	OrderStatusCompleted:        "Completed",
	OrderStatusInvoicePending:   "Invoice pending",
}

var itemStatusLabels = map[string]string{
	ItemStatusNormal:       "Active",
	ItemStatusBanned:       "Banned",
	ItemStatusUnlist:       "Unlisted",
	ItemStatusReviewing:    "Under review",
	ItemStatusSellerDelete: "Deleted by seller",
	ItemStatusShopeeDelete: "Deleted by marketplace",
}

// Invoice sub-statuses that still allow a buyer invoice lookup
var pendingInvoiceStatuses = map[string]struct{}{
	"PENDING":       {},
	"WAITING":       {},
	"TO_BE_ISSUED":  {},
	"INVOICE_ERROR": {},
}

// StatusLabel returns the human readable label for a status.
// A pending invoice sub-status takes precedence over the order status.
func StatusLabel(kind EntityKind, status, invoiceStatus string) string {
	status = strings.ToUpper(strings.TrimSpace(status))
	if kind == EntityKindItem {
		if label, ok := itemStatusLabels[status]; ok {
			return label
		}
		return status
	}
	if IsInvoicePending(status, invoiceStatus) && status != OrderStatusInvoicePending {
		return orderStatusLabels[OrderStatusInvoicePending]
	}
	if label, ok := orderStatusLabels[status]; ok {
		return label
	}
	if status == "" {
		return "Unknown"
	}
	return status
}

// NormalizeStatusFilter keeps the recognized statuses for the kind and applies the default.
// Orders accept a single status; items accept several.
func NormalizeStatusFilter(kind EntityKind, statuses []string) []string {
	known := orderStatusLabels
	fallback := DefaultOrderStatusFilter
	if kind == EntityKindItem {
		known = itemStatusLabels
		fallback = DefaultItemStatusFilter
	}

	var out []string
	for _, s := range UniqueIDs(statuses) {
		s = strings.ToUpper(s)
		if _, ok := known[s]; ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return []string{fallback}
	}
	if kind == EntityKindOrder {
		return out[:1]
	}
	return out
}

// IsReadyToShip reports whether shipping parameters can be requested for the order
func IsReadyToShip(status string) bool {
	return status == OrderStatusReadyToShip || status == OrderStatusRetryShip
}

// IsShippable reports whether the order can have packages on the marketplace
func IsShippable(status string) bool {
	switch status {
	case OrderStatusReadyToShip, OrderStatusRetryShip, OrderStatusProcessed,
		OrderStatusShipped, OrderStatusToConfirmReceive, OrderStatusCompleted:
		return true
	}
	return false
}

// IsInvoicePending reports whether a buyer invoice lookup is eligible
func IsInvoicePending(status, invoiceStatus string) bool {
	if status == OrderStatusInvoicePending {
		return true
	}
	_, ok := pendingInvoiceStatuses[strings.ToUpper(strings.TrimSpace(invoiceStatus))]
	return ok
}
