package executors

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"catalogsync/internal/catalog/models"
	"catalogsync/internal/supplier/clients"
	supplier "catalogsync/internal/supplier/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGate struct {
	limited  map[string]bool
	cooldown time.Duration
}

func (g *fakeGate) IsRateLimited(endpoint string) bool { return g.limited[endpoint] }
func (g *fakeGate) RemainingCooldown(endpoint string) time.Duration {
	if g.limited[endpoint] {
		return g.cooldown
	}
	return 0
}

type fakeAPI struct {
	inventory    *supplier.InventoryResponse
	inventoryErr error
	details      map[string]*supplier.InventoryResponse
	detailsErr   error
	pricing      *supplier.PricingResponse
	kits         *supplier.KitResponse
	calls        int
}

func (a *fakeAPI) GetDetails(_ context.Context, partNumber string) (*supplier.InventoryResponse, error) {
	a.calls++
	if a.detailsErr != nil {
		return nil, a.detailsErr
	}
	if resp, ok := a.details[partNumber]; ok {
		return resp, nil
	}
	return &supplier.InventoryResponse{Success: true}, nil
}

func (a *fakeAPI) CheckInventory(_ context.Context, _ string) (*supplier.InventoryResponse, error) {
	a.calls++
	if a.inventoryErr != nil {
		return nil, a.inventoryErr
	}
	return a.inventory, nil
}

func (a *fakeAPI) GetPricing(_ context.Context, _ string) (*supplier.PricingResponse, error) {
	a.calls++
	return a.pricing, nil
}

func (a *fakeAPI) GetKitComponents(_ context.Context, _ string) (*supplier.KitResponse, error) {
	a.calls++
	return a.kits, nil
}

type fakeCatalog struct {
	existing  map[string]bool
	records   map[string]*models.CatalogRecord
	inserted  []models.CatalogRecord
	updated   []models.CatalogRecord
	upserted  []models.CatalogRecord
	stale     []models.CatalogRecord
	statuses  map[string]models.SyncStatus
	insertErr error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		existing: make(map[string]bool),
		records:  make(map[string]*models.CatalogRecord),
		statuses: make(map[string]models.SyncStatus),
	}
}

func (c *fakeCatalog) GetByPartNumber(partNumber string) (*models.CatalogRecord, error) {
	return c.records[partNumber], nil
}

func (c *fakeCatalog) ExistingPartNumbers(partNumbers []string) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, pn := range partNumbers {
		if c.existing[pn] {
			out[pn] = true
		}
	}
	return out, nil
}

func (c *fakeCatalog) InsertBatch(records []models.CatalogRecord) error {
	if c.insertErr != nil {
		return c.insertErr
	}
	c.inserted = append(c.inserted, records...)
	return nil
}

func (c *fakeCatalog) UpdateBatch(records []models.CatalogRecord) error {
	c.updated = append(c.updated, records...)
	return nil
}

func (c *fakeCatalog) Upsert(record models.CatalogRecord) error {
	c.upserted = append(c.upserted, record)
	return nil
}

func (c *fakeCatalog) StaleRecords(_ time.Time, _ int) ([]models.CatalogRecord, error) {
	return c.stale, nil
}

func (c *fakeCatalog) MarkSyncStatus(partNumber string, status models.SyncStatus, _ time.Time) error {
	c.statuses[partNumber] = status
	return nil
}

func (c *fakeCatalog) Count() (int, error) { return len(c.records), nil }

type fakePrices struct {
	existing map[string]bool
	upserted []models.PriceRecord
}

func (p *fakePrices) ExistingPartNumbers(partNumbers []string) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, pn := range partNumbers {
		if p.existing[pn] {
			out[pn] = true
		}
	}
	return out, nil
}

func (p *fakePrices) UpsertBatch(records []models.PriceRecord) error {
	p.upserted = append(p.upserted, records...)
	return nil
}

type fakeKits struct {
	existing map[string]bool
	upserted []models.KitComponentRecord
}

func (k *fakeKits) ExistingKeys(records []models.KitComponentRecord) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, rec := range records {
		key := rec.KitPartNumber + "|" + rec.ComponentPartNumber
		if k.existing[key] {
			out[key] = true
		}
	}
	return out, nil
}

func (k *fakeKits) UpsertBatch(records []models.KitComponentRecord) error {
	k.upserted = append(k.upserted, records...)
	return nil
}

type fakeSyncLog struct {
	nextID   int64
	started  []models.SyncType
	finished map[int64]models.SyncResult
}

func newFakeSyncLog() *fakeSyncLog {
	return &fakeSyncLog{finished: make(map[int64]models.SyncResult)}
}

func (l *fakeSyncLog) Start(syncType models.SyncType, _ models.Channel) (int64, error) {
	l.nextID++
	l.started = append(l.started, syncType)
	return l.nextID, nil
}

func (l *fakeSyncLog) Finish(id int64, result models.SyncResult, _ *time.Time) error {
	l.finished[id] = result
	return nil
}

func newTestApiExecutor(api SupplierAPI, gate RateStatus, catalog *fakeCatalog,
	prices *fakePrices, kits *fakeKits, syncLog *fakeSyncLog) *ApiExecutor {

	e := NewApiExecutor(api, gate, catalog, prices, kits, syncLog, io.Discard)
	e.sleep = func(time.Duration) {}
	return e
}

func inventoryItems(n int) []supplier.InventoryItem {
	items := make([]supplier.InventoryItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, supplier.InventoryItem{
			PartNumber: fmt.Sprintf("P-%03d", i),
			VendorCode: "ABC",
			Quantity:   i,
		})
	}
	return items
}

func TestApiSyncFullInventory(t *testing.T) {
	catalog := newFakeCatalog()
	for i := 0; i < 20; i++ {
		catalog.existing[fmt.Sprintf("P-%03d", i)] = true
	}
	api := &fakeAPI{inventory: &supplier.InventoryResponse{Success: true, Data: inventoryItems(120)}}
	syncLog := newFakeSyncLog()
	e := newTestApiExecutor(api, &fakeGate{limited: map[string]bool{}}, catalog, &fakePrices{}, &fakeKits{}, syncLog)

	result := e.SyncFull(context.Background(), models.SyncTypeInventory)

	assert.True(t, result.Success)
	assert.Equal(t, models.SyncRunCompleted, result.Status)
	assert.Equal(t, 120, result.Processed)
	assert.Equal(t, 20, result.Updated)
	assert.Equal(t, 100, result.Added)
	assert.Equal(t, 0, result.Failed)
	assert.Len(t, catalog.inserted, 100)
	assert.Len(t, catalog.updated, 20)

	logged := syncLog.finished[1]
	assert.Equal(t, models.SyncRunCompleted, logged.Status)
	assert.Equal(t, 120, logged.Processed)
}

func TestApiSyncFullGatedFailsFast(t *testing.T) {
	api := &fakeAPI{}
	gate := &fakeGate{limited: map[string]bool{clients.EndpointInventory: true}, cooldown: 45 * time.Second}
	syncLog := newFakeSyncLog()
	e := newTestApiExecutor(api, gate, newFakeCatalog(), &fakePrices{}, &fakeKits{}, syncLog)

	result := e.SyncFull(context.Background(), models.SyncTypeInventory)

	assert.Equal(t, models.SyncRunRateLimited, result.Status)
	assert.Equal(t, 45*time.Second, result.RetryAfter)
	assert.Zero(t, api.calls, "no network call while gated")
	assert.Equal(t, models.SyncRunRateLimited, syncLog.finished[1].Status)
}

func TestApiSyncFullSupplierThrottle(t *testing.T) {
	api := &fakeAPI{inventoryErr: fmt.Errorf("request failed: %w", clients.ErrRateLimited)}
	gate := &fakeGate{limited: map[string]bool{}}
	e := newTestApiExecutor(api, gate, newFakeCatalog(), &fakePrices{}, &fakeKits{}, newFakeSyncLog())

	result := e.SyncFull(context.Background(), models.SyncTypeInventory)
	assert.Equal(t, models.SyncRunRateLimited, result.Status)
	assert.True(t, result.Success, "rate limited run is not a failure")
}

func TestApiSyncFullPricing(t *testing.T) {
	prices := &fakePrices{existing: map[string]bool{"P-1": true}}
	api := &fakeAPI{pricing: &supplier.PricingResponse{Success: true, Data: []supplier.PricingItem{
		{PartNumber: "P-1", ListPrice: 10},
		{PartNumber: "P-2", ListPrice: 20},
	}}}
	e := newTestApiExecutor(api, &fakeGate{limited: map[string]bool{}}, newFakeCatalog(), prices, &fakeKits{}, newFakeSyncLog())

	result := e.SyncFull(context.Background(), models.SyncTypePricing)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Added)
	assert.Len(t, prices.upserted, 2)
}

func TestApiSyncOneNotFound(t *testing.T) {
	catalog := newFakeCatalog()
	api := &fakeAPI{details: map[string]*supplier.InventoryResponse{
		"MISSING": {Success: true},
	}}
	e := newTestApiExecutor(api, &fakeGate{limited: map[string]bool{}}, catalog, &fakePrices{}, &fakeKits{}, newFakeSyncLog())

	result := e.SyncOne(context.Background(), "MISSING")

	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, models.SyncStatusNotFound, catalog.statuses["MISSING"])
	assert.True(t, result.Success, "a missing part does not fail the run")
}

func TestApiSyncOneUpsert(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.records["X-1"] = &models.CatalogRecord{PartNumber: "X-1"}
	api := &fakeAPI{details: map[string]*supplier.InventoryResponse{
		"X-1": {Success: true, Data: []supplier.InventoryItem{{PartNumber: "X-1", VendorCode: "ABC", Quantity: 4}}},
	}}
	e := newTestApiExecutor(api, &fakeGate{limited: map[string]bool{}}, catalog, &fakePrices{}, &fakeKits{}, newFakeSyncLog())

	result := e.SyncOne(context.Background(), "X-1")

	assert.Equal(t, 1, result.Updated)
	assert.Zero(t, result.Failed)
	require.Len(t, catalog.upserted, 1)
	assert.Equal(t, 4, catalog.upserted[0].Quantity)
}

func TestApiSyncIncremental(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.stale = []models.CatalogRecord{
		{PartNumber: "S-1"}, {PartNumber: "S-2"}, {PartNumber: "S-3"},
	}
	api := &fakeAPI{details: map[string]*supplier.InventoryResponse{
		"S-1": {Success: true, Data: []supplier.InventoryItem{{PartNumber: "S-1", VendorCode: "ABC"}}},
		"S-2": {Success: true, Data: []supplier.InventoryItem{{PartNumber: "S-2", VendorCode: "ABC"}}},
		"S-3": {Success: true, Data: []supplier.InventoryItem{{PartNumber: "S-3", VendorCode: "ABC"}}},
	}}
	e := newTestApiExecutor(api, &fakeGate{limited: map[string]bool{}}, catalog, &fakePrices{}, &fakeKits{}, newFakeSyncLog())

	result := e.SyncIncremental(context.Background(), models.SyncTypeInventory, 6*time.Hour)

	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 3, result.Added)
	assert.Len(t, catalog.upserted, 3)
}
