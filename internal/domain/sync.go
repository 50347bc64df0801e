package domain

import (
	"fmt"
	"strings"
	"time"
)

// EntityKind selects which marketplace entity a sync pass pulls
type EntityKind string

const (
	EntityKindOrder EntityKind = "order"
	EntityKindItem  EntityKind = "item"
)

// IsValid returns true if the kind is supported
func (k EntityKind) IsValid() bool {
	return k == EntityKindOrder || k == EntityKindItem
}

const (
	TimeRangeCreate = "create_time"
	TimeRangeUpdate = "update_time"

	DefaultPageSize = 50
	MaxPageSize     = 100

	// MaxDetailBatch is the most ids one detail call accepts
	MaxDetailBatch = 50
)

// SyncLimits bounds what a single request may ask for
type SyncLimits struct {
	MaxWindow time.Duration
}

// DefaultSyncLimits returns the platform limits (15 day listing window)
func DefaultSyncLimits() SyncLimits {
	return SyncLimits{MaxWindow: 15 * 24 * time.Hour}
}

// SyncRequest is the input envelope of one sync invocation
type SyncRequest struct {
	OrganizationID string
	ShopID         string
	IDs            []string // explicit order_sn / item_id list; takes precedence over listing
	TimeFrom       time.Time
	TimeTo         time.Time
	TimeRangeField string
	PageSize       int
	Statuses       []string
}

// HasExplicitIDs reports whether listing must be skipped
func (r *SyncRequest) HasExplicitIDs() bool {
	return len(r.IDs) > 0
}

// Normalize validates the request and applies defaults in place.
// The window is swapped when inverted and clamped to the maximum span, ending at TimeTo.
func (r *SyncRequest) Normalize(kind EntityKind, limits SyncLimits, now time.Time) error {
	if !kind.IsValid() {
		return fmt.Errorf("%w: unsupported entity kind %q", ErrInvalidRequest, kind)
	}
	r.OrganizationID = strings.TrimSpace(r.OrganizationID)
	r.ShopID = strings.TrimSpace(r.ShopID)
	if r.OrganizationID == "" && r.ShopID == "" {
		return fmt.Errorf("%w: organizationId or shop_id is required", ErrInvalidRequest)
	}

	r.IDs = UniqueIDs(r.IDs)

	if r.TimeTo.IsZero() {
		r.TimeTo = now
	}
	if r.TimeFrom.IsZero() {
		r.TimeFrom = r.TimeTo.Add(-limits.MaxWindow)
	}
	if r.TimeFrom.After(r.TimeTo) {
		r.TimeFrom, r.TimeTo = r.TimeTo, r.TimeFrom
	}
	if limits.MaxWindow > 0 && r.TimeTo.Sub(r.TimeFrom) > limits.MaxWindow {
		r.TimeFrom = r.TimeTo.Add(-limits.MaxWindow)
	}

	switch kind {
	case EntityKindItem:
		r.TimeRangeField = TimeRangeUpdate
	default:
		if r.TimeRangeField != TimeRangeCreate && r.TimeRangeField != TimeRangeUpdate {
			r.TimeRangeField = TimeRangeCreate
		}
	}

	if r.PageSize <= 0 {
		r.PageSize = DefaultPageSize
	}
	if r.PageSize > MaxPageSize {
		r.PageSize = MaxPageSize
	}

	r.Statuses = NormalizeStatusFilter(kind, r.Statuses)
	return nil
}

// UniqueIDs trims, drops empties and deduplicates while keeping first-seen order
func UniqueIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Chunk splits ids into batches of at most size elements
func Chunk(ids []string, size int) [][]string {
	if size <= 0 {
		size = DefaultPageSize
	}
	batches := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[start:end])
	}
	return batches
}

// ListCursor is the continuation state returned by a listing page
type ListCursor struct {
	Next string
	More bool
}

// Exhausted reports whether pagination must stop
func (c ListCursor) Exhausted() bool {
	return !c.More || c.Next == ""
}

// SyncResult is the per-integration summary returned to the caller
type SyncResult struct {
	IntegrationID string `json:"integration_id"`
	ShopID        string `json:"shop_id,omitempty"`
	Fetched       int    `json:"fetched"`
	Updated       int    `json:"updated"`
	Error         string `json:"error,omitempty"`
}

// SyncResponse aggregates every integration processed by one invocation
type SyncResponse struct {
	OK            bool         `json:"ok"`
	Results       []SyncResult `json:"results,omitempty"`
	Error         string       `json:"error,omitempty"`
	CorrelationID string       `json:"correlationId"`
}
