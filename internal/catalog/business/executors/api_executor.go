package executors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"catalogsync/internal/catalog/business/transform"
	"catalogsync/internal/catalog/models"
	"catalogsync/internal/supplier/clients"
	"catalogsync/pkg/logger"
)

// Generous ceiling for one incremental pass. Stale rows beyond it wait for
// the next interval.
const incrementalScanLimit = 1000

// ApiExecutor syncs through the supplier's request/response channel. Every
// run checks the rate gate up front and reports rate_limited instead of
// hammering a throttled endpoint.
type ApiExecutor struct {
	api     SupplierAPI
	gate    RateStatus
	catalog CatalogStore
	prices  PriceStore
	kits    KitStore
	syncLog SyncLog
	log     logger.Logger

	sleep func(time.Duration)
	now   func() time.Time
}

func NewApiExecutor(api SupplierAPI, gate RateStatus, catalog CatalogStore,
	prices PriceStore, kits KitStore, syncLog SyncLog, writer io.Writer) *ApiExecutor {

	_log := logger.NewLogger(writer, "[ApiExecutor]")
	return &ApiExecutor{
		api:     api,
		gate:    gate,
		catalog: catalog,
		prices:  prices,
		kits:    kits,
		syncLog: syncLog,
		log:     _log,
		sleep:   time.Sleep,
		now:     time.Now,
	}
}

func endpointFor(syncType models.SyncType) string {
	switch syncType {
	case models.SyncTypePricing:
		return clients.EndpointPricing
	case models.SyncTypeKits:
		return clients.EndpointDetails
	default:
		return clients.EndpointInventory
	}
}

// SyncFull pulls the supplier's complete dataset for one sync type and
// reconciles it against the catalog in batches.
func (e *ApiExecutor) SyncFull(ctx context.Context, syncType models.SyncType) models.SyncResult {
	started := e.now()
	logID, err := e.syncLog.Start(syncType, models.ChannelAPI)
	if err != nil {
		e.log.Log("failed to open sync log for %s: %v", syncType, err)
	}

	endpoint := endpointFor(syncType)
	if e.gate.IsRateLimited(endpoint) {
		result := models.SyncResult{
			Status:     models.SyncRunRateLimited,
			RetryAfter: e.gate.RemainingCooldown(endpoint),
			Errors:     []string{fmt.Sprintf("endpoint %s is cooling down", endpoint)},
		}
		return finalize(e.syncLog, logID, syncType, models.ChannelAPI, result, started)
	}

	var result models.SyncResult
	switch syncType {
	case models.SyncTypePricing:
		result = e.fullPricing(ctx)
	case models.SyncTypeKits:
		result = e.fullKits(ctx)
	default:
		result = e.fullInventory(ctx)
	}
	return finalize(e.syncLog, logID, syncType, models.ChannelAPI, result, started)
}

func (e *ApiExecutor) fullInventory(ctx context.Context) models.SyncResult {
	resp, err := e.api.CheckInventory(ctx, "")
	if err != nil {
		return e.channelFailure("inventory", err)
	}
	if !resp.Success {
		return failedResult(fmt.Sprintf("supplier rejected inventory request: %s", resp.Error))
	}

	syncedAt := e.now()
	records := make([]models.CatalogRecord, 0, len(resp.Data))
	for _, item := range resp.Data {
		records = append(records, transform.FromAPIInventory(item, syncedAt))
	}
	return writeCatalogBatches(e.catalog, records)
}

func (e *ApiExecutor) fullPricing(ctx context.Context) models.SyncResult {
	resp, err := e.api.GetPricing(ctx, "")
	if err != nil {
		return e.channelFailure("pricing", err)
	}
	if !resp.Success {
		return failedResult(fmt.Sprintf("supplier rejected pricing request: %s", resp.Error))
	}

	syncedAt := e.now()
	records := make([]models.PriceRecord, 0, len(resp.Data))
	for _, item := range resp.Data {
		records = append(records, transform.FromAPIPricing(item, syncedAt))
	}
	return writePriceBatches(e.prices, records)
}

func (e *ApiExecutor) fullKits(ctx context.Context) models.SyncResult {
	resp, err := e.api.GetKitComponents(ctx, "")
	if err != nil {
		return e.channelFailure("kits", err)
	}
	if !resp.Success {
		return failedResult(fmt.Sprintf("supplier rejected kit request: %s", resp.Error))
	}

	records := make([]models.KitComponentRecord, 0, len(resp.Data))
	for _, item := range resp.Data {
		records = append(records, transform.FromAPIKit(item))
	}
	return writeKitBatches(e.kits, records)
}

// SyncIncremental refreshes catalog rows whose last sync is older than the
// staleness threshold, one part per request in small paced batches.
func (e *ApiExecutor) SyncIncremental(ctx context.Context, syncType models.SyncType, staleness time.Duration) models.SyncResult {
	started := e.now()
	logID, err := e.syncLog.Start(syncType, models.ChannelAPI)
	if err != nil {
		e.log.Log("failed to open sync log for %s: %v", syncType, err)
	}

	endpoint := endpointFor(syncType)
	if e.gate.IsRateLimited(endpoint) {
		result := models.SyncResult{
			Status:     models.SyncRunRateLimited,
			RetryAfter: e.gate.RemainingCooldown(endpoint),
			Errors:     []string{fmt.Sprintf("endpoint %s is cooling down", endpoint)},
		}
		return finalize(e.syncLog, logID, syncType, models.ChannelAPI, result, started)
	}

	stale, err := e.catalog.StaleRecords(e.now().Add(-staleness), incrementalScanLimit)
	if err != nil {
		return finalize(e.syncLog, logID, syncType, models.ChannelAPI,
			failedResult(fmt.Sprintf("failed to load stale records: %v", err)), started)
	}
	e.log.Log("incremental %s: %d stale records", syncType, len(stale))

	result := models.SyncResult{Status: models.SyncRunCompleted}
	for i, rec := range stale {
		if i > 0 && i%incrementalBatchSize == 0 {
			e.sleep(incrementalBatchDelay)
		}
		one := e.refreshPart(ctx, syncType, rec.PartNumber)
		result.Processed++
		result.Updated += one.Updated
		result.Added += one.Added
		result.Failed += one.Failed
		result.Errors = append(result.Errors, one.Errors...)

		if one.Status == models.SyncRunRateLimited {
			// Stop the pass; the remainder stays stale and the scheduler
			// retries after the cooldown.
			result.Status = models.SyncRunRateLimited
			result.RetryAfter = one.RetryAfter
			break
		}
	}
	return finalize(e.syncLog, logID, syncType, models.ChannelAPI, result, started)
}

// SyncOne refreshes a single part through the API, marking the catalog row
// not_found or error when the supplier cannot serve it.
func (e *ApiExecutor) SyncOne(ctx context.Context, partNumber string) models.SyncResult {
	started := e.now()
	logID, err := e.syncLog.Start(models.SyncTypeInventory, models.ChannelAPI)
	if err != nil {
		e.log.Log("failed to open sync log for part %s: %v", partNumber, err)
	}
	result := e.refreshPart(ctx, models.SyncTypeInventory, partNumber)
	result.Processed = 1
	return finalize(e.syncLog, logID, models.SyncTypeInventory, models.ChannelAPI, result, started)
}

func (e *ApiExecutor) refreshPart(ctx context.Context, syncType models.SyncType, partNumber string) models.SyncResult {
	switch syncType {
	case models.SyncTypePricing:
		return e.refreshPartPricing(ctx, partNumber)
	case models.SyncTypeKits:
		return e.refreshPartKits(ctx, partNumber)
	default:
		return e.refreshPartInventory(ctx, partNumber)
	}
}

func (e *ApiExecutor) refreshPartInventory(ctx context.Context, partNumber string) models.SyncResult {
	resp, err := e.api.GetDetails(ctx, partNumber)
	if err != nil {
		if errors.Is(err, clients.ErrRateLimited) {
			return models.SyncResult{
				Status:     models.SyncRunRateLimited,
				RetryAfter: e.gate.RemainingCooldown(clients.EndpointDetails),
				Failed:     1,
				Errors:     []string{fmt.Sprintf("%s: rate limited", partNumber)},
			}
		}
		e.markStatus(partNumber, models.SyncStatusError)
		return models.SyncResult{
			Status: models.SyncRunCompleted,
			Failed: 1,
			Errors: []string{fmt.Sprintf("%s: %v", partNumber, err)},
		}
	}
	if !resp.Success || len(resp.Data) == 0 {
		e.markStatus(partNumber, models.SyncStatusNotFound)
		return models.SyncResult{
			Status: models.SyncRunCompleted,
			Failed: 1,
			Errors: []string{fmt.Sprintf("%s: not found at supplier", partNumber)},
		}
	}

	record := transform.FromAPIInventory(resp.Data[0], e.now())
	existed, err := e.catalog.GetByPartNumber(record.PartNumber)
	if err != nil {
		return models.SyncResult{
			Status: models.SyncRunCompleted,
			Failed: 1,
			Errors: []string{fmt.Sprintf("%s: lookup failed: %v", partNumber, err)},
		}
	}
	if err := e.catalog.Upsert(record); err != nil {
		e.markStatus(partNumber, models.SyncStatusError)
		return models.SyncResult{
			Status: models.SyncRunCompleted,
			Failed: 1,
			Errors: []string{fmt.Sprintf("%s: write failed: %v", partNumber, err)},
		}
	}
	if existed != nil {
		return models.SyncResult{Status: models.SyncRunCompleted, Updated: 1}
	}
	return models.SyncResult{Status: models.SyncRunCompleted, Added: 1}
}

func (e *ApiExecutor) refreshPartPricing(ctx context.Context, partNumber string) models.SyncResult {
	resp, err := e.api.GetPricing(ctx, partNumber)
	if err != nil {
		if errors.Is(err, clients.ErrRateLimited) {
			return models.SyncResult{
				Status:     models.SyncRunRateLimited,
				RetryAfter: e.gate.RemainingCooldown(clients.EndpointPricing),
				Failed:     1,
				Errors:     []string{fmt.Sprintf("%s: rate limited", partNumber)},
			}
		}
		return models.SyncResult{
			Status: models.SyncRunCompleted,
			Failed: 1,
			Errors: []string{fmt.Sprintf("%s: %v", partNumber, err)},
		}
	}
	if !resp.Success || len(resp.Data) == 0 {
		return models.SyncResult{
			Status: models.SyncRunCompleted,
			Failed: 1,
			Errors: []string{fmt.Sprintf("%s: no pricing at supplier", partNumber)},
		}
	}

	syncedAt := e.now()
	records := make([]models.PriceRecord, 0, len(resp.Data))
	for _, item := range resp.Data {
		records = append(records, transform.FromAPIPricing(item, syncedAt))
	}
	if err := e.prices.UpsertBatch(records); err != nil {
		return models.SyncResult{
			Status: models.SyncRunCompleted,
			Failed: 1,
			Errors: []string{fmt.Sprintf("%s: price write failed: %v", partNumber, err)},
		}
	}
	return models.SyncResult{Status: models.SyncRunCompleted, Updated: 1}
}

func (e *ApiExecutor) refreshPartKits(ctx context.Context, partNumber string) models.SyncResult {
	resp, err := e.api.GetKitComponents(ctx, partNumber)
	if err != nil {
		if errors.Is(err, clients.ErrRateLimited) {
			return models.SyncResult{
				Status:     models.SyncRunRateLimited,
				RetryAfter: e.gate.RemainingCooldown(clients.EndpointDetails),
				Failed:     1,
				Errors:     []string{fmt.Sprintf("%s: rate limited", partNumber)},
			}
		}
		return models.SyncResult{
			Status: models.SyncRunCompleted,
			Failed: 1,
			Errors: []string{fmt.Sprintf("%s: %v", partNumber, err)},
		}
	}
	if !resp.Success || len(resp.Data) == 0 {
		// Not every part is a kit; nothing to update is not an error here.
		return models.SyncResult{Status: models.SyncRunCompleted}
	}

	records := make([]models.KitComponentRecord, 0, len(resp.Data))
	for _, item := range resp.Data {
		records = append(records, transform.FromAPIKit(item))
	}
	if err := e.kits.UpsertBatch(records); err != nil {
		return models.SyncResult{
			Status: models.SyncRunCompleted,
			Failed: 1,
			Errors: []string{fmt.Sprintf("%s: kit write failed: %v", partNumber, err)},
		}
	}
	return models.SyncResult{Status: models.SyncRunCompleted, Updated: len(records)}
}

func (e *ApiExecutor) markStatus(partNumber string, status models.SyncStatus) {
	if err := e.catalog.MarkSyncStatus(partNumber, status, e.now()); err != nil {
		e.log.Log("failed to mark %s as %s: %v", partNumber, status, err)
	}
}

func (e *ApiExecutor) channelFailure(what string, err error) models.SyncResult {
	if errors.Is(err, clients.ErrRateLimited) {
		endpoint := clients.EndpointInventory
		switch what {
		case "pricing":
			endpoint = clients.EndpointPricing
		case "kits":
			endpoint = clients.EndpointDetails
		}
		return models.SyncResult{
			Status:     models.SyncRunRateLimited,
			RetryAfter: e.gate.RemainingCooldown(endpoint),
			Errors:     []string{fmt.Sprintf("%s request rate limited", what)},
		}
	}
	return failedResult(fmt.Sprintf("%s request failed: %v", what, err))
}

func failedResult(msg string) models.SyncResult {
	return models.SyncResult{
		Status: models.SyncRunFailed,
		Errors: []string{msg},
	}
}
