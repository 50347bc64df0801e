package application

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"archie-core-shopee-layer/internal/domain"
	"archie-core-shopee-layer/internal/infrastructure/lock"
	"archie-core-shopee-layer/internal/infrastructure/shopee"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncService_TwoPagesOfOrders(t *testing.T) {
	f := newSyncFixture(newIntegration("int-1", "org-1", "111"))
	f.client.pages[""] = orderPage("SN", 0, 50, "page-2")
	f.client.pages["page-2"] = orderPage("SN", 50, 50, "")

	resp := f.service().Run(context.Background(), domain.EntityKindOrder, domain.SyncRequest{
		OrganizationID: "org-1",
		TimeFrom:       time.Now().Add(-24 * time.Hour),
		TimeTo:         time.Now(),
	})

	require.True(t, resp.OK, resp.Error)
	assert.NotEmpty(t, resp.CorrelationID)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, domain.SyncResult{IntegrationID: "int-1", ShopID: "111", Fetched: 100, Updated: 100}, resp.Results[0])

	assert.Equal(t, 2, f.client.listCalls)
	require.Len(t, f.client.detailBatches, 2)
	assert.Len(t, f.client.detailBatches[0], 50)
	assert.Len(t, f.client.detailBatches[1], 50)
	assert.Equal(t, "SN050", f.client.detailBatches[1][0])
	assert.Equal(t, 100, f.raw.count())
	assert.Equal(t, 100, f.client.count("escrow"))
}

func TestSyncService_ExplicitIDsSkipListing(t *testing.T) {
	f := newSyncFixture(newIntegration("int-1", "org-1", "111"))

	resp := f.service().Run(context.Background(), domain.EntityKindOrder, domain.SyncRequest{
		ShopID: "111",
		IDs:    []string{"A", "B", "A"},
	})

	require.True(t, resp.OK, resp.Error)
	assert.Equal(t, 0, f.client.listCalls)
	assert.Equal(t, [][]string{{"A", "B"}}, f.client.detailBatches)
	assert.Equal(t, 2, resp.Results[0].Fetched)
	assert.Equal(t, 2, resp.Results[0].Updated)
}

func TestSyncService_CompositeAndPresentedRecord(t *testing.T) {
	f := newSyncFixture(newIntegration("int-1", "org-1", "111"))
	f.client.statuses["A"] = domain.OrderStatusReadyToShip
	f.client.packages["A"] = []shopee.Package{{PackageNumber: "PKG-1", TrackingNumber: "TRK-1", ShippingCarrier: "SPX"}}

	resp := f.service().Run(context.Background(), domain.EntityKindOrder, domain.SyncRequest{
		OrganizationID: "org-1",
		IDs:            []string{"A"},
	})
	require.True(t, resp.OK, resp.Error)
	assert.Equal(t, 1, resp.Results[0].Updated)

	raw := f.raw.get("org-1", "A")
	require.NotNil(t, raw)
	assert.Equal(t, "company-org-1", raw.CompanyID)

	var composite Composite
	require.NoError(t, json.Unmarshal(raw.Payload, &composite))
	assert.Equal(t, "Ready to ship", composite.StatusLabel)
	assert.JSONEq(t, `{"order_sn":"A","escrow_amount":"10.00"}`, string(composite.Escrow))
	assert.NotEmpty(t, composite.ShippingParameter)
	require.NotNil(t, composite.ShippingDocument)
	assert.True(t, composite.ShippingDocument.Downloaded)
	assert.Equal(t, "THERMAL_AIR_WAYBILL", composite.ShippingDocument.DocumentType)
	assert.NotContains(t, string(raw.Payload), "%PDF")
	assert.Empty(t, composite.EnrichmentErrors)

	key := "org-1/shopee/A"
	presented := f.presented.records[key]
	require.NotNil(t, presented)
	assert.Equal(t, "buyer-A", presented.Title)
	assert.Equal(t, "SPX", presented.ShippingInfo.Carrier)
	assert.Equal(t, "TRK-1", presented.ShippingInfo.TrackingNumber)

	label := f.presented.labels[key]
	require.NotNil(t, label)
	assert.Equal(t, "READY", label.Status)
	assert.Equal(t, []byte("%PDF-1.4"), label.Content)
	assert.Equal(t, "application/pdf", label.ContentType)
}

func TestSyncService_LabelNotReadyKeepsMetadataOnly(t *testing.T) {
	f := newSyncFixture(newIntegration("int-1", "org-1", "111"))
	f.client.statuses["A"] = domain.OrderStatusProcessed
	f.client.packages["A"] = []shopee.Package{{PackageNumber: "PKG-1", TrackingNumber: "TRK-1"}}
	f.client.docStatus = "PROCESSING"

	resp := f.service().Run(context.Background(), domain.EntityKindOrder, domain.SyncRequest{
		OrganizationID: "org-1",
		IDs:            []string{"A"},
	})
	require.True(t, resp.OK, resp.Error)

	assert.Equal(t, 1, f.client.count("document_result"))
	assert.Equal(t, 0, f.client.count("download_document"))
	assert.Equal(t, 0, f.client.count("shipping_parameter"))

	label := f.presented.labels["org-1/shopee/A"]
	require.NotNil(t, label)
	assert.Equal(t, "PROCESSING", label.Status)
	assert.False(t, label.HasContent())
}

func TestSyncService_EnrichmentFailureIsRecorded(t *testing.T) {
	f := newSyncFixture(newIntegration("int-1", "org-1", "111"))
	f.client.taskErr["escrow"] = fmt.Errorf("%w: get_escrow_detail", shopee.ErrHostsExhausted)

	resp := f.service().Run(context.Background(), domain.EntityKindOrder, domain.SyncRequest{
		OrganizationID: "org-1",
		IDs:            []string{"A"},
	})
	require.True(t, resp.OK, resp.Error)
	assert.Equal(t, 1, resp.Results[0].Updated)

	var composite Composite
	require.NoError(t, json.Unmarshal(f.raw.get("org-1", "A").Payload, &composite))
	assert.Contains(t, composite.EnrichmentErrors["escrow"], "all hosts exhausted")
}

func TestSyncService_EntityFailureDoesNotAffectNeighbours(t *testing.T) {
	f := newSyncFixture(newIntegration("int-1", "org-1", "111"))
	for _, sn := range []string{"A", "B", "C"} {
		f.client.statuses[sn] = domain.OrderStatusReadyToShip
		f.client.packages[sn] = []shopee.Package{{PackageNumber: "PKG-" + sn, TrackingNumber: "TRK-" + sn}}
	}
	f.client.taskErr["escrow:B"] = fmt.Errorf("%w: get_escrow_detail", shopee.ErrHostsExhausted)

	resp := f.service().Run(context.Background(), domain.EntityKindOrder, domain.SyncRequest{
		OrganizationID: "org-1",
		IDs:            []string{"A", "B", "C"},
	})
	require.True(t, resp.OK, resp.Error)
	assert.Len(t, f.client.detailBatches, 1)
	assert.Equal(t, 3, resp.Results[0].Updated)
	assert.Empty(t, resp.Results[0].Error)

	for _, sn := range []string{"A", "C"} {
		raw := f.raw.get("org-1", sn)
		require.NotNil(t, raw, sn)
		var composite Composite
		require.NoError(t, json.Unmarshal(raw.Payload, &composite))
		assert.JSONEq(t, fmt.Sprintf(`{"order_sn":%q,"escrow_amount":"10.00"}`, sn), string(composite.Escrow))
		assert.NotEmpty(t, composite.ShippingParameter, sn)
		require.NotNil(t, composite.ShippingDocument, sn)
		assert.Equal(t, "PKG-"+sn, composite.ShippingDocument.PackageNumber)
		assert.Empty(t, composite.EnrichmentErrors, sn)

		label := f.presented.labels["org-1/shopee/"+sn]
		require.NotNil(t, label, sn)
		assert.Equal(t, "TRK-"+sn, label.TrackingNumber)
	}

	raw := f.raw.get("org-1", "B")
	require.NotNil(t, raw)
	var composite Composite
	require.NoError(t, json.Unmarshal(raw.Payload, &composite))
	assert.Empty(t, composite.Escrow)
	require.Len(t, composite.EnrichmentErrors, 1)
	assert.Contains(t, composite.EnrichmentErrors["escrow"], "all hosts exhausted")
	// the remaining tasks of B still ran
	assert.NotEmpty(t, composite.ShippingParameter)
	require.NotNil(t, composite.ShippingDocument)
	assert.Equal(t, "TRK-B", f.presented.labels["org-1/shopee/B"].TrackingNumber)
}

func TestSyncService_BatchFailureIsIsolated(t *testing.T) {
	f := newSyncFixture(newIntegration("int-1", "org-1", "111"))
	f.cfg.BatchSize = 2
	f.client.detailErr = func(_ *domain.AuthContext, batch []string) error {
		if batch[0] == "A" {
			return fmt.Errorf("%w: get_order_detail", shopee.ErrHostsExhausted)
		}
		return nil
	}

	resp := f.service().Run(context.Background(), domain.EntityKindOrder, domain.SyncRequest{
		OrganizationID: "org-1",
		IDs:            []string{"A", "B", "C", "D"},
	})

	require.True(t, resp.OK, resp.Error)
	assert.Len(t, f.client.detailBatches, 2)
	assert.Equal(t, 4, resp.Results[0].Fetched)
	assert.Equal(t, 2, resp.Results[0].Updated)
	assert.Empty(t, resp.Results[0].Error)
	assert.Nil(t, f.raw.get("org-1", "A"))
	assert.NotNil(t, f.raw.get("org-1", "C"))
}

func TestSyncService_BatchSizeIsCappedAtDetailLimit(t *testing.T) {
	f := newSyncFixture(newIntegration("int-1", "org-1", "111"))
	f.cfg.BatchSize = domain.MaxPageSize
	var ids []string
	for i := 0; i < 120; i++ {
		ids = append(ids, fmt.Sprintf("SN%03d", i))
	}

	resp := f.service().Run(context.Background(), domain.EntityKindOrder, domain.SyncRequest{
		OrganizationID: "org-1",
		IDs:            ids,
	})
	require.True(t, resp.OK, resp.Error)
	assert.Equal(t, 120, resp.Results[0].Updated)

	var sizes []int
	for _, batch := range f.client.detailBatches {
		sizes = append(sizes, len(batch))
	}
	assert.Equal(t, []int{50, 50, 20}, sizes)
}

func TestSyncService_PersistFailureCountsFetchedOnly(t *testing.T) {
	f := newSyncFixture(newIntegration("int-1", "org-1", "111"))
	f.raw.failFor["B"] = true

	resp := f.service().Run(context.Background(), domain.EntityKindOrder, domain.SyncRequest{
		OrganizationID: "org-1",
		IDs:            []string{"A", "B", "C"},
	})

	require.True(t, resp.OK, resp.Error)
	assert.Equal(t, 3, resp.Results[0].Fetched)
	assert.Equal(t, 2, resp.Results[0].Updated)
}

func TestSyncService_AuthAbandonContinuesSiblings(t *testing.T) {
	f := newSyncFixture(
		newIntegration("int-1", "org-1", "111"),
		newIntegration("int-2", "org-1", "222"),
	)
	f.client.detailErr = func(auth *domain.AuthContext, _ []string) error {
		if auth.IntegrationID == "int-1" {
			return fmt.Errorf("%w: refresh failed", domain.ErrAuthAbandoned)
		}
		return nil
	}

	resp := f.service().Run(context.Background(), domain.EntityKindOrder, domain.SyncRequest{
		OrganizationID: "org-1",
		IDs:            []string{"A", "B"},
	})

	require.True(t, resp.OK, resp.Error)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "int-1", resp.Results[0].IntegrationID)
	assert.Equal(t, 0, resp.Results[0].Updated)
	assert.Contains(t, resp.Results[0].Error, "authentication failed")
	assert.Equal(t, "int-2", resp.Results[1].IntegrationID)
	assert.Equal(t, 2, resp.Results[1].Updated)
	assert.Empty(t, resp.Results[1].Error)
}

func TestSyncService_PrimeFailureAbandonsIntegration(t *testing.T) {
	f := newSyncFixture(newIntegration("int-1", "org-1", "111"))
	f.client.primeErr = domain.ErrAuthAbandoned

	resp := f.service().Run(context.Background(), domain.EntityKindOrder, domain.SyncRequest{OrganizationID: "org-1"})

	require.True(t, resp.OK)
	assert.Equal(t, domain.ErrAuthAbandoned.Error(), resp.Results[0].Error)
	assert.Equal(t, 0, f.client.listCalls)
}

func TestSyncService_ListingFailureKeepsGatheredIDs(t *testing.T) {
	f := newSyncFixture(newIntegration("int-1", "org-1", "111"))
	f.client.pages[""] = orderPage("SN", 0, 50, "page-2")
	f.client.pageErrs["page-2"] = fmt.Errorf("%w: get_order_list", shopee.ErrHostsExhausted)

	resp := f.service().Run(context.Background(), domain.EntityKindOrder, domain.SyncRequest{OrganizationID: "org-1"})

	require.True(t, resp.OK)
	assert.Equal(t, 50, resp.Results[0].Fetched)
	assert.Equal(t, 50, resp.Results[0].Updated)
	assert.Contains(t, resp.Results[0].Error, "listing stopped at page 2")
}

func TestSyncService_Items(t *testing.T) {
	f := newSyncFixture(newIntegration("int-1", "org-1", "111"))
	f.client.hasModel["1002"] = true

	resp := f.service().Run(context.Background(), domain.EntityKindItem, domain.SyncRequest{
		OrganizationID: "org-1",
		IDs:            []string{"1001", "1002"},
	})

	require.True(t, resp.OK, resp.Error)
	assert.Equal(t, 2, resp.Results[0].Updated)
	assert.Equal(t, 1, f.client.count("model_list"))
	assert.Equal(t, 2, f.client.count("extra_info"))
	assert.Equal(t, 0, f.client.count("escrow"))

	raw := f.raw.get("org-1", "1002")
	require.NotNil(t, raw)
	assert.Equal(t, domain.EntityKindItem, raw.Kind)

	var composite Composite
	require.NoError(t, json.Unmarshal(raw.Payload, &composite))
	assert.Equal(t, "Active", composite.StatusLabel)
	assert.NotEmpty(t, composite.ModelList)
	assert.Equal(t, "item 1002", f.presented.records["org-1/shopee/1002"].Title)
}

func TestSyncService_RepeatedRunOverwrites(t *testing.T) {
	f := newSyncFixture(newIntegration("int-1", "org-1", "111"))
	svc := f.service()
	req := domain.SyncRequest{OrganizationID: "org-1", IDs: []string{"A"}}

	require.True(t, svc.Run(context.Background(), domain.EntityKindOrder, req).OK)
	f.client.statuses["A"] = domain.OrderStatusCancelled
	require.True(t, svc.Run(context.Background(), domain.EntityKindOrder, req).OK)

	assert.Equal(t, 1, f.raw.count())
	assert.Equal(t, 2, f.raw.writes)
	assert.Equal(t, domain.OrderStatusCancelled, f.presented.records["org-1/shopee/A"].Status)
}

func TestSyncService_ConfigurationErrors(t *testing.T) {
	t.Run("missing app keys", func(t *testing.T) {
		f := newSyncFixture(newIntegration("int-1", "org-1", "111"))
		f.fallbackKeys = domain.AppKeys{}

		resp := f.service().Run(context.Background(), domain.EntityKindOrder, domain.SyncRequest{OrganizationID: "org-1"})
		assert.False(t, resp.OK)
		assert.Contains(t, resp.Error, "configuration error")
		assert.NotEmpty(t, resp.CorrelationID)
		assert.Empty(t, resp.Results)
	})

	t.Run("stored app wins over global keys", func(t *testing.T) {
		f := newSyncFixture(newIntegration("int-1", "org-1", "111"))
		f.apps.app = &domain.MarketplaceApp{Marketplace: domain.MarketplaceShopee, PartnerID: 42, EncryptedPartnerKey: "enc:stored"}

		resp := f.service().Run(context.Background(), domain.EntityKindOrder, domain.SyncRequest{OrganizationID: "org-1"})
		require.True(t, resp.OK, resp.Error)
		assert.Equal(t, []domain.AppKeys{{PartnerID: 42, PartnerKey: "stored"}}, f.poolKeysSeen)
	})

	t.Run("client creation failure", func(t *testing.T) {
		f := newSyncFixture(newIntegration("int-1", "org-1", "111"))
		f.poolErr = shopee.ErrMissingAppKeys

		resp := f.service().Run(context.Background(), domain.EntityKindOrder, domain.SyncRequest{OrganizationID: "org-1"})
		assert.False(t, resp.OK)
		assert.Contains(t, resp.Error, "configuration error")
	})
}

func TestSyncService_RequestErrors(t *testing.T) {
	f := newSyncFixture(newIntegration("int-1", "org-1", "111"))
	svc := f.service()

	resp := svc.Run(context.Background(), domain.EntityKindOrder, domain.SyncRequest{})
	assert.False(t, resp.OK)
	assert.Contains(t, resp.Error, "organizationId or shop_id is required")

	resp = svc.Run(context.Background(), domain.EntityKindOrder, domain.SyncRequest{OrganizationID: "org-unknown"})
	assert.False(t, resp.OK)
	assert.Equal(t, "no integrations found", resp.Error)
}

func TestSyncService_SkipsIntegrationAlreadyRunning(t *testing.T) {
	memLock := lock.NewMemorySyncLock()
	f := newSyncFixture(
		newIntegration("int-1", "org-1", "111"),
		newIntegration("int-2", "org-1", "222"),
	)
	f.lock = memLock

	held, err := memLock.Acquire(context.Background(), "int-1:order", time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	resp := f.service().Run(context.Background(), domain.EntityKindOrder, domain.SyncRequest{
		OrganizationID: "org-1",
		IDs:            []string{"A"},
	})

	require.True(t, resp.OK)
	assert.Equal(t, "sync already running", resp.Results[0].Error)
	assert.Equal(t, 0, resp.Results[0].Fetched)
	assert.Equal(t, 1, resp.Results[1].Updated)

	// the lock of the finished integration was released
	acquired, err := memLock.Acquire(context.Background(), "int-2:order", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}
