package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"archie-core-shopee-layer/internal/domain"
	"archie-core-shopee-layer/internal/infrastructure/shopee"
	"archie-core-shopee-layer/internal/ports"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// defaultDocumentType is requested when the marketplace suggests none
const defaultDocumentType = "NORMAL_AIR_WAYBILL"

// enrichTask is one best-effort secondary lookup of an entity
type enrichTask struct {
	name    string
	applies func(e *EnrichedEntity) bool
	run     func(ctx context.Context, client ports.MarketplaceClient, auth *domain.AuthContext, e *EnrichedEntity, now time.Time) error
}

// Enricher turns a batch of ids into composite entities
type Enricher struct {
	concurrency int
	orderTasks  []enrichTask
	itemTasks   []enrichTask
	logger      zerolog.Logger
	now         func() time.Time
}

// NewEnricher creates an enricher; concurrency bounds how many entities of a batch run at once
func NewEnricher(concurrency int, logger zerolog.Logger) *Enricher {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Enricher{
		concurrency: concurrency,
		orderTasks:  orderTasks(),
		itemTasks:   itemTasks(),
		logger:      logger,
		now:         time.Now,
	}
}

// Enrich fetches the batch details in one call, then runs the per-entity task list.
// A failed detail call returns no entities. When auth is abandoned or ctx is done during
// the tasks, no further entity is started and only the entities whose task list ran to
// the end are returned together with the error.
func (en *Enricher) Enrich(
	ctx context.Context,
	client ports.MarketplaceClient,
	auth *domain.AuthContext,
	kind domain.EntityKind,
	batch []string,
	entries map[string]json.RawMessage,
) ([]*EnrichedEntity, error) {
	entities, err := en.fetchDetails(ctx, client, auth, kind, batch, entries)
	if err != nil {
		return nil, err
	}

	tasks := en.orderTasks
	if kind == domain.EntityKindItem {
		tasks = en.itemTasks
	}

	var g errgroup.Group
	g.SetLimit(en.concurrency)
	finished := make([]bool, len(entities))
	scheduled := 0
	for i, entity := range entities {
		if !auth.IsValid() || ctx.Err() != nil {
			break
		}
		scheduled++
		g.Go(func() error {
			if err := en.runTasks(ctx, client, auth, entity, tasks); err != nil {
				return err
			}
			finished[i] = true
			return nil
		})
	}
	err = g.Wait()
	if err == nil && scheduled < len(entities) {
		if err = ctx.Err(); err == nil {
			err = domain.ErrAuthAbandoned
		}
	}
	if err == nil {
		return entities, nil
	}

	done := make([]*EnrichedEntity, 0, len(entities))
	for i, entity := range entities {
		if finished[i] {
			done = append(done, entity)
		}
	}
	en.logger.Warn().
		Err(err).
		Str("integration_id", auth.IntegrationID).
		Int("finished", len(done)).
		Int("dropped", len(entities)-len(done)).
		Msg("Enrichment interrupted, dropping unfinished entities")
	return done, err
}

func (en *Enricher) fetchDetails(
	ctx context.Context,
	client ports.MarketplaceClient,
	auth *domain.AuthContext,
	kind domain.EntityKind,
	batch []string,
	entries map[string]json.RawMessage,
) ([]*EnrichedEntity, error) {
	var entities []*EnrichedEntity

	if kind == domain.EntityKindItem {
		items, err := client.GetItemBaseInfo(ctx, auth, batch)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch item details: %w", err)
		}
		for i := range items {
			item := &items[i]
			entities = append(entities, &EnrichedEntity{
				ExternalID: item.ID(),
				Kind:       kind,
				Item:       item,
				Composite: &Composite{
					ListEntry:   entries[item.ID()],
					Detail:      item.Raw,
					StatusLabel: domain.StatusLabel(kind, item.ItemStatus, ""),
				},
			})
		}
	} else {
		orders, err := client.GetOrderDetails(ctx, auth, batch)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch order details: %w", err)
		}
		for i := range orders {
			order := &orders[i]
			entity := &EnrichedEntity{
				ExternalID: order.OrderSN,
				Kind:       kind,
				Order:      order,
				Packages:   append([]shopee.Package(nil), order.PackageList...),
				Composite: &Composite{
					ListEntry:   entries[order.OrderSN],
					Detail:      order.Raw,
					Packages:    rawPackages(order.PackageList),
					StatusLabel: domain.StatusLabel(kind, order.OrderStatus, order.InvoiceStatus()),
				},
			}
			entities = append(entities, entity)
		}
	}

	if len(entities) < len(batch) {
		en.logger.Warn().
			Str("integration_id", auth.IntegrationID).
			Int("requested", len(batch)).
			Int("returned", len(entities)).
			Msg("Detail call returned fewer entities than requested")
	}
	return entities, nil
}

// runTasks runs the applicable tasks of one entity in order.
// Only an abandoned auth context or cancellation stops the list; the entity is then unfinished.
func (en *Enricher) runTasks(ctx context.Context, client ports.MarketplaceClient, auth *domain.AuthContext, e *EnrichedEntity, tasks []enrichTask) error {
	for _, task := range tasks {
		if !task.applies(e) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !auth.IsValid() {
			return domain.ErrAuthAbandoned
		}
		err := task.run(ctx, client, auth, e, en.now())
		if err == nil {
			continue
		}
		e.recordError(task.name, err)
		if errors.Is(err, domain.ErrAuthAbandoned) || ctx.Err() != nil {
			return err
		}
		en.logger.Debug().
			Err(err).
			Str("integration_id", auth.IntegrationID).
			Str("external_id", e.ExternalID).
			Str("task", task.name).
			Msg("Enrichment task failed")
	}
	return nil
}

func orderTasks() []enrichTask {
	return []enrichTask{
		{
			name:    "escrow",
			applies: func(e *EnrichedEntity) bool { return true },
			run: func(ctx context.Context, client ports.MarketplaceClient, auth *domain.AuthContext, e *EnrichedEntity, _ time.Time) error {
				escrow, err := client.GetEscrowDetail(ctx, auth, e.ExternalID)
				if err != nil {
					return err
				}
				e.Composite.Escrow = escrow
				return nil
			},
		},
		{
			name: "shipment_list",
			applies: func(e *EnrichedEntity) bool {
				return len(e.Packages) == 0 && domain.IsShippable(e.Order.OrderStatus)
			},
			run: func(ctx context.Context, client ports.MarketplaceClient, auth *domain.AuthContext, e *EnrichedEntity, _ time.Time) error {
				packages, err := client.GetShipmentList(ctx, auth, e.ExternalID)
				if err != nil {
					return err
				}
				e.Packages = packages
				return nil
			},
		},
		{
			name:    "package_detail",
			applies: func(e *EnrichedEntity) bool { return len(packageNumbers(e.Packages)) > 0 },
			run: func(ctx context.Context, client ports.MarketplaceClient, auth *domain.AuthContext, e *EnrichedEntity, _ time.Time) error {
				details, err := client.GetPackageDetail(ctx, auth, packageNumbers(e.Packages))
				if err != nil {
					return err
				}
				if len(details) > 0 {
					e.Packages = details
				}
				e.Composite.Packages = rawPackages(e.Packages)
				return nil
			},
		},
		{
			name:    "shipping_parameter",
			applies: func(e *EnrichedEntity) bool { return domain.IsReadyToShip(e.Order.OrderStatus) },
			run: func(ctx context.Context, client ports.MarketplaceClient, auth *domain.AuthContext, e *EnrichedEntity, _ time.Time) error {
				param, err := client.GetShippingParameter(ctx, auth, e.ExternalID, firstPackage(e.Packages).PackageNumber)
				if err != nil {
					return err
				}
				e.Composite.ShippingParameter = param
				return nil
			},
		},
		{
			name: "buyer_invoice",
			applies: func(e *EnrichedEntity) bool {
				return domain.IsInvoicePending(e.Order.OrderStatus, e.Order.InvoiceStatus())
			},
			run: func(ctx context.Context, client ports.MarketplaceClient, auth *domain.AuthContext, e *EnrichedEntity, _ time.Time) error {
				invoice, err := client.GetBuyerInvoiceInfo(ctx, auth, e.ExternalID)
				if err != nil {
					return err
				}
				e.Composite.BuyerInvoice = invoice
				return nil
			},
		},
		{
			name:    "shipping_document",
			applies: func(e *EnrichedEntity) bool { return trackedPackage(e.Packages) != nil },
			run:     acquireShippingDocument,
		},
	}
}

func itemTasks() []enrichTask {
	return []enrichTask{
		{
			name:    "model_list",
			applies: func(e *EnrichedEntity) bool { return e.Item.HasModel },
			run: func(ctx context.Context, client ports.MarketplaceClient, auth *domain.AuthContext, e *EnrichedEntity, _ time.Time) error {
				models, err := client.GetModelList(ctx, auth, e.ExternalID)
				if err != nil {
					return err
				}
				e.Composite.ModelList = models
				return nil
			},
		},
		{
			name:    "extra_info",
			applies: func(e *EnrichedEntity) bool { return true },
			run: func(ctx context.Context, client ports.MarketplaceClient, auth *domain.AuthContext, e *EnrichedEntity, _ time.Time) error {
				extra, err := client.GetItemExtraInfo(ctx, auth, e.ExternalID)
				if err != nil {
					return err
				}
				e.Composite.ExtraInfo = extra
				return nil
			},
		},
	}
}

// acquireShippingDocument runs parameter, create, a single result check and the download when ready.
// The label metadata is kept even when the binary is not available yet.
func acquireShippingDocument(ctx context.Context, client ports.MarketplaceClient, auth *domain.AuthContext, e *EnrichedEntity, now time.Time) error {
	pkg := trackedPackage(e.Packages)
	ref := shopee.DocumentRef{
		OrderSN:        e.ExternalID,
		PackageNumber:  pkg.PackageNumber,
		TrackingNumber: pkg.TrackingNumber,
	}

	param, err := client.GetShippingDocumentParameter(ctx, auth, ref)
	if err != nil {
		return fmt.Errorf("document parameter: %w", err)
	}
	ref.DocumentType = param.SuggestDocumentType
	if ref.DocumentType == "" {
		ref.DocumentType = defaultDocumentType
	}

	if err := client.CreateShippingDocument(ctx, auth, ref); err != nil {
		return fmt.Errorf("create document: %w", err)
	}

	result, err := client.GetShippingDocumentResult(ctx, auth, ref)
	if err != nil {
		return fmt.Errorf("document result: %w", err)
	}

	label := &domain.ShippingLabel{
		DocumentType:   ref.DocumentType,
		Status:         result.Status,
		TrackingNumber: ref.TrackingNumber,
		PackageNumber:  ref.PackageNumber,
		AcquiredAt:     now,
	}
	e.Label = label
	e.Composite.ShippingDocument = &ShippingDocument{
		DocumentType:   label.DocumentType,
		Status:         label.Status,
		PackageNumber:  label.PackageNumber,
		TrackingNumber: label.TrackingNumber,
	}
	if !result.Ready() {
		return nil
	}

	doc, err := client.DownloadShippingDocument(ctx, auth, ref)
	if err != nil {
		return fmt.Errorf("download document: %w", err)
	}
	label.Content = doc.Content
	label.ContentType = doc.ContentType
	e.Composite.ShippingDocument.Downloaded = true
	return nil
}

func packageNumbers(packages []shopee.Package) []string {
	var numbers []string
	for _, p := range packages {
		if p.PackageNumber != "" {
			numbers = append(numbers, p.PackageNumber)
		}
	}
	return numbers
}

func rawPackages(packages []shopee.Package) []json.RawMessage {
	var out []json.RawMessage
	for _, p := range packages {
		if len(p.Raw) > 0 {
			out = append(out, p.Raw)
		}
	}
	return out
}

func firstPackage(packages []shopee.Package) shopee.Package {
	if len(packages) == 0 {
		return shopee.Package{}
	}
	return packages[0]
}

// trackedPackage returns the first package with a tracking number
func trackedPackage(packages []shopee.Package) *shopee.Package {
	for i := range packages {
		if packages[i].TrackingNumber != "" {
			return &packages[i]
		}
	}
	return nil
}
