package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"archie-core-shopee-layer/internal/domain"
	"archie-core-shopee-layer/internal/infrastructure/shopee"
	"archie-core-shopee-layer/internal/ports"

	"github.com/rs/zerolog"
)

// Listing is the id set a sync pass works on
type Listing struct {
	IDs     []string
	Entries map[string]json.RawMessage // light list entry per id, empty for explicit ids
	Pages   int
	// Err is set when pagination stopped early on a failed page; IDs holds what was gathered
	Err error
}

// ListFetcher walks the listing endpoint of a kind or takes the explicit id list
type ListFetcher struct {
	maxPages int
	logger   zerolog.Logger
}

// NewListFetcher creates a list fetcher with a page ceiling
func NewListFetcher(maxPages int, logger zerolog.Logger) *ListFetcher {
	if maxPages <= 0 {
		maxPages = 100
	}
	return &ListFetcher{
		maxPages: maxPages,
		logger:   logger,
	}
}

// Collect returns the deduplicated ids to sync.
// The returned error is fatal for the integration (auth abandoned or canceled);
// any other page failure ends pagination and is reported on Listing.Err.
func (f *ListFetcher) Collect(ctx context.Context, client ports.MarketplaceClient, auth *domain.AuthContext, kind domain.EntityKind, req *domain.SyncRequest) (*Listing, error) {
	if req.HasExplicitIDs() {
		return &Listing{IDs: domain.UniqueIDs(req.IDs)}, nil
	}

	listing := &Listing{Entries: make(map[string]json.RawMessage)}
	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return listing, err
		}
		if listing.Pages >= f.maxPages {
			f.logger.Warn().
				Str("integration_id", auth.IntegrationID).
				Int("pages", listing.Pages).
				Msg("Page ceiling reached, stopping pagination")
			break
		}

		q := shopee.ListQuery{
			TimeRangeField: req.TimeRangeField,
			TimeFrom:       req.TimeFrom,
			TimeTo:         req.TimeTo,
			PageSize:       req.PageSize,
			Statuses:       req.Statuses,
			Cursor:         cursor,
		}
		var (
			page *shopee.ListPage
			err  error
		)
		if kind == domain.EntityKindItem {
			page, err = client.ListItems(ctx, auth, q)
		} else {
			page, err = client.ListOrders(ctx, auth, q)
		}
		if err != nil {
			if errors.Is(err, domain.ErrAuthAbandoned) || ctx.Err() != nil {
				return listing, err
			}
			f.logger.Warn().
				Err(err).
				Str("integration_id", auth.IntegrationID).
				Int("page", listing.Pages+1).
				Int("gathered", len(listing.IDs)).
				Msg("Listing page failed, keeping gathered ids")
			listing.Err = fmt.Errorf("listing stopped at page %d: %w", listing.Pages+1, err)
			break
		}
		listing.Pages++

		for _, entry := range page.Entries {
			if _, seen := listing.Entries[entry.ID]; seen {
				continue
			}
			listing.Entries[entry.ID] = entry.Raw
			listing.IDs = append(listing.IDs, entry.ID)
		}

		if page.Cursor.Exhausted() {
			break
		}
		cursor = page.Cursor.Next
	}

	f.logger.Debug().
		Str("integration_id", auth.IntegrationID).
		Int("pages", listing.Pages).
		Int("ids", len(listing.IDs)).
		Msg("Listing collected")
	return listing, nil
}
