package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"archie-core-shopee-layer/internal/domain"
	"archie-core-shopee-layer/internal/infrastructure/shopee"
	"archie-core-shopee-layer/internal/ports"

	"github.com/rs/zerolog"
)

// fakeEncryption marks values instead of encrypting them
type fakeEncryption struct{}

func (fakeEncryption) Encrypt(plaintext string) (string, error) {
	return "enc:" + plaintext, nil
}

func (fakeEncryption) Decrypt(ciphertext string) (string, error) {
	if !strings.HasPrefix(ciphertext, "enc:") {
		return "", errors.New("malformed ciphertext")
	}
	return strings.TrimPrefix(ciphertext, "enc:"), nil
}

type tokenUpdate struct {
	access    string
	refresh   string
	expiresAt time.Time
}

type fakeIntegrationRepo struct {
	mu           sync.Mutex
	integrations []*domain.IntegrationCredential
	updates      map[string]tokenUpdate
	err          error
}

func newFakeIntegrationRepo(integrations ...*domain.IntegrationCredential) *fakeIntegrationRepo {
	return &fakeIntegrationRepo{
		integrations: integrations,
		updates:      make(map[string]tokenUpdate),
	}
}

func (r *fakeIntegrationRepo) ListByTenant(_ context.Context, tenantID, marketplace string) ([]*domain.IntegrationCredential, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []*domain.IntegrationCredential
	for _, i := range r.integrations {
		if i.TenantID == tenantID && i.Marketplace == marketplace {
			out = append(out, i)
		}
	}
	return out, nil
}

func (r *fakeIntegrationRepo) ListByShopID(_ context.Context, shopID, marketplace string) ([]*domain.IntegrationCredential, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []*domain.IntegrationCredential
	for _, i := range r.integrations {
		if i.ShopID == shopID && i.Marketplace == marketplace {
			out = append(out, i)
		}
	}
	return out, nil
}

func (r *fakeIntegrationRepo) UpdateTokens(_ context.Context, integrationID, encryptedAccess, encryptedRefresh string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates[integrationID] = tokenUpdate{access: encryptedAccess, refresh: encryptedRefresh, expiresAt: expiresAt}
	return nil
}

type fakeAppRepo struct {
	app *domain.MarketplaceApp
	err error
}

func (r *fakeAppRepo) GetByMarketplace(_ context.Context, marketplace string) (*domain.MarketplaceApp, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.app == nil || r.app.Marketplace != marketplace {
		return nil, nil
	}
	return r.app, nil
}

type fakeRawRepo struct {
	mu      sync.Mutex
	records map[string]*domain.RawEntityRecord
	writes  int
	failFor map[string]bool
}

func newFakeRawRepo() *fakeRawRepo {
	return &fakeRawRepo{
		records: make(map[string]*domain.RawEntityRecord),
		failFor: make(map[string]bool),
	}
}

func (r *fakeRawRepo) Upsert(_ context.Context, record *domain.RawEntityRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFor[record.Key.ExternalID] {
		return errors.New("write conflict")
	}
	r.writes++
	r.records[recordKeyString(record.Key)] = record
	return nil
}

func (r *fakeRawRepo) get(tenant, externalID string) *domain.RawEntityRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[recordKeyString(domain.RecordKey{TenantID: tenant, Marketplace: domain.MarketplaceShopee, ExternalID: externalID})]
}

func (r *fakeRawRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

type fakePresentedRepo struct {
	mu      sync.Mutex
	records map[string]*domain.PresentedRecord
	labels  map[string]*domain.ShippingLabel
	err     error
}

func newFakePresentedRepo() *fakePresentedRepo {
	return &fakePresentedRepo{
		records: make(map[string]*domain.PresentedRecord),
		labels:  make(map[string]*domain.ShippingLabel),
	}
}

func (r *fakePresentedRepo) Upsert(_ context.Context, record *domain.PresentedRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.records[recordKeyString(record.Key)] = record
	return nil
}

func (r *fakePresentedRepo) PatchShippingLabel(_ context.Context, _ domain.EntityKind, key domain.RecordKey, label *domain.ShippingLabel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.labels[recordKeyString(key)] = label
	return nil
}

func recordKeyString(key domain.RecordKey) string {
	return key.TenantID + "/" + key.Marketplace + "/" + key.ExternalID
}

// fakeClient is an in-memory marketplace.
// Listing pages are keyed by cursor; details are synthesized from the statuses map.
type fakeClient struct {
	mu sync.Mutex

	pages     map[string]*shopee.ListPage
	pageErrs  map[string]error
	listCalls int

	statuses      map[string]string
	packages      map[string][]shopee.Package
	detailBatches [][]string
	detailErr     func(auth *domain.AuthContext, batch []string) error

	hasModel   map[string]bool
	calls      map[string]int
	taskErr    map[string]error
	docStatus  string
	primeErr   error
	primeCalls int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		pages:     make(map[string]*shopee.ListPage),
		pageErrs:  make(map[string]error),
		statuses:  make(map[string]string),
		packages:  make(map[string][]shopee.Package),
		hasModel:  make(map[string]bool),
		calls:     make(map[string]int),
		taskErr:   make(map[string]error),
		docStatus: "READY",
	}
}

var _ ports.MarketplaceClient = (*fakeClient)(nil)

// record counts a call and returns the error configured for "name:id", falling back to "name".
// An abandoned-auth error invalidates the context the way the token manager does.
func (c *fakeClient) record(auth *domain.AuthContext, name, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[name]++
	err, ok := c.taskErr[name+":"+id]
	if !ok {
		err = c.taskErr[name]
	}
	if errors.Is(err, domain.ErrAuthAbandoned) && auth != nil {
		auth.Invalidate()
	}
	return err
}

func (c *fakeClient) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[name]
}

func (c *fakeClient) Prime(_ context.Context, auth *domain.AuthContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.primeCalls++
	return c.primeErr
}

func (c *fakeClient) list(q shopee.ListQuery) (*shopee.ListPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listCalls++
	if err := c.pageErrs[q.Cursor]; err != nil {
		return nil, err
	}
	page, ok := c.pages[q.Cursor]
	if !ok {
		return &shopee.ListPage{}, nil
	}
	return page, nil
}

func (c *fakeClient) ListOrders(_ context.Context, _ *domain.AuthContext, q shopee.ListQuery) (*shopee.ListPage, error) {
	return c.list(q)
}

func (c *fakeClient) ListItems(_ context.Context, _ *domain.AuthContext, q shopee.ListQuery) (*shopee.ListPage, error) {
	return c.list(q)
}

func (c *fakeClient) beginBatch(auth *domain.AuthContext, batch []string) error {
	c.mu.Lock()
	c.detailBatches = append(c.detailBatches, append([]string(nil), batch...))
	fn := c.detailErr
	c.mu.Unlock()
	if fn != nil {
		return fn(auth, batch)
	}
	return nil
}

func (c *fakeClient) GetOrderDetails(_ context.Context, auth *domain.AuthContext, orderSNs []string) ([]shopee.OrderDetail, error) {
	if err := c.beginBatch(auth, orderSNs); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []shopee.OrderDetail
	for _, sn := range orderSNs {
		status := c.statuses[sn]
		if status == "" {
			status = domain.OrderStatusCompleted
		}
		raw, _ := json.Marshal(map[string]string{"order_sn": sn, "order_status": status})
		var detail shopee.OrderDetail
		_ = json.Unmarshal(raw, &detail)
		detail.BuyerUsername = "buyer-" + sn
		detail.PackageList = c.packages[sn]
		out = append(out, detail)
	}
	return out, nil
}

func (c *fakeClient) GetEscrowDetail(_ context.Context, auth *domain.AuthContext, orderSN string) (json.RawMessage, error) {
	if err := c.record(auth, "escrow", orderSN); err != nil {
		return nil, err
	}
	return json.RawMessage(fmt.Sprintf(`{"order_sn":%q,"escrow_amount":"10.00"}`, orderSN)), nil
}

func (c *fakeClient) GetShipmentList(_ context.Context, auth *domain.AuthContext, orderSN string) ([]shopee.Package, error) {
	if err := c.record(auth, "shipment_list", orderSN); err != nil {
		return nil, err
	}
	return nil, nil
}

func (c *fakeClient) GetPackageDetail(_ context.Context, auth *domain.AuthContext, packageNumbers []string) ([]shopee.Package, error) {
	if err := c.record(auth, "package_detail", strings.Join(packageNumbers, ",")); err != nil {
		return nil, err
	}
	return nil, nil
}

func (c *fakeClient) GetShippingParameter(_ context.Context, auth *domain.AuthContext, orderSN, packageNumber string) (json.RawMessage, error) {
	if err := c.record(auth, "shipping_parameter", orderSN); err != nil {
		return nil, err
	}
	return json.RawMessage(`{"pickup":{}}`), nil
}

func (c *fakeClient) GetBuyerInvoiceInfo(_ context.Context, auth *domain.AuthContext, orderSN string) (json.RawMessage, error) {
	if err := c.record(auth, "buyer_invoice", orderSN); err != nil {
		return nil, err
	}
	return json.RawMessage(`{"invoice_info_list":[]}`), nil
}

func (c *fakeClient) GetShippingDocumentParameter(_ context.Context, auth *domain.AuthContext, ref shopee.DocumentRef) (*shopee.DocumentParameter, error) {
	if err := c.record(auth, "document_parameter", ref.OrderSN); err != nil {
		return nil, err
	}
	return &shopee.DocumentParameter{OrderSN: ref.OrderSN, SuggestDocumentType: "THERMAL_AIR_WAYBILL"}, nil
}

func (c *fakeClient) CreateShippingDocument(_ context.Context, auth *domain.AuthContext, ref shopee.DocumentRef) error {
	return c.record(auth, "create_document", ref.OrderSN)
}

func (c *fakeClient) GetShippingDocumentResult(_ context.Context, auth *domain.AuthContext, ref shopee.DocumentRef) (*shopee.DocumentResult, error) {
	if err := c.record(auth, "document_result", ref.OrderSN); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return &shopee.DocumentResult{OrderSN: ref.OrderSN, Status: c.docStatus}, nil
}

func (c *fakeClient) DownloadShippingDocument(_ context.Context, auth *domain.AuthContext, ref shopee.DocumentRef) (*shopee.Document, error) {
	if err := c.record(auth, "download_document", ref.OrderSN); err != nil {
		return nil, err
	}
	return &shopee.Document{Content: []byte("%PDF-1.4"), ContentType: "application/pdf"}, nil
}

func (c *fakeClient) GetItemBaseInfo(_ context.Context, auth *domain.AuthContext, itemIDs []string) ([]shopee.ItemDetail, error) {
	if err := c.beginBatch(auth, itemIDs); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []shopee.ItemDetail
	for _, id := range itemIDs {
		raw := fmt.Sprintf(`{"item_id":%s,"item_name":"item %s","item_status":"NORMAL","has_model":%t}`, id, id, c.hasModel[id])
		var detail shopee.ItemDetail
		_ = json.Unmarshal([]byte(raw), &detail)
		out = append(out, detail)
	}
	return out, nil
}

func (c *fakeClient) GetModelList(_ context.Context, auth *domain.AuthContext, itemID string) (json.RawMessage, error) {
	if err := c.record(auth, "model_list", itemID); err != nil {
		return nil, err
	}
	return json.RawMessage(`{"model":[]}`), nil
}

func (c *fakeClient) GetItemExtraInfo(_ context.Context, auth *domain.AuthContext, itemID string) (json.RawMessage, error) {
	if err := c.record(auth, "extra_info", itemID); err != nil {
		return nil, err
	}
	return json.RawMessage(`{"sale":3}`), nil
}

// orderPage builds a listing page of order numbers prefix-from..prefix-(from+n-1)
func orderPage(prefix string, from, n int, next string) *shopee.ListPage {
	page := &shopee.ListPage{Cursor: domain.ListCursor{Next: next, More: next != ""}}
	for i := from; i < from+n; i++ {
		id := fmt.Sprintf("%s%03d", prefix, i)
		page.Entries = append(page.Entries, shopee.ListEntry{
			ID:  id,
			Raw: json.RawMessage(fmt.Sprintf(`{"order_sn":%q}`, id)),
		})
	}
	return page
}

func newIntegration(id, tenant, shop string) *domain.IntegrationCredential {
	return &domain.IntegrationCredential{
		ID:                    id,
		TenantID:              tenant,
		CompanyID:             "company-" + tenant,
		Marketplace:           domain.MarketplaceShopee,
		ShopID:                shop,
		EncryptedAccessToken:  "enc:access-" + id,
		EncryptedRefreshToken: "enc:refresh-" + id,
	}
}

// syncFixture wires a SyncService over fakes
type syncFixture struct {
	client        *fakeClient
	integrations  *fakeIntegrationRepo
	apps          *fakeAppRepo
	raw           *fakeRawRepo
	presented     *fakePresentedRepo
	lock          ports.SyncLock
	cfg           SyncConfig
	fallbackKeys  domain.AppKeys
	poolErr       error
	poolKeysSeen  []domain.AppKeys
	poolKeysMutex sync.Mutex
}

func newSyncFixture(integrations ...*domain.IntegrationCredential) *syncFixture {
	cfg := DefaultSyncConfig()
	return &syncFixture{
		client:       newFakeClient(),
		integrations: newFakeIntegrationRepo(integrations...),
		apps:         &fakeAppRepo{},
		raw:          newFakeRawRepo(),
		presented:    newFakePresentedRepo(),
		cfg:          cfg,
		fallbackKeys: domain.AppKeys{PartnerID: 2001887, PartnerKey: "partner-key"},
	}
}

func (f *syncFixture) service() *SyncService {
	logger := zerolog.Nop()
	credentials := NewCredentialsService(f.integrations, f.apps, fakeEncryption{}, f.fallbackKeys, logger)
	resolver := NewIntegrationService(f.integrations, logger)
	pool := ports.MarketplaceClientPoolFunc(func(keys domain.AppKeys) (ports.MarketplaceClient, error) {
		f.poolKeysMutex.Lock()
		f.poolKeysSeen = append(f.poolKeysSeen, keys)
		f.poolKeysMutex.Unlock()
		if f.poolErr != nil {
			return nil, f.poolErr
		}
		return f.client, nil
	})
	persister := NewPersister(f.raw, f.presented, nil, logger)
	return NewSyncService(credentials, resolver, pool, f.lock, persister, f.cfg, nil, logger)
}
