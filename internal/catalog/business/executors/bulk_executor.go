package executors

import (
	"context"
	"fmt"
	"io"
	"time"

	"catalogsync/internal/catalog/business/transform"
	"catalogsync/internal/catalog/models"
	supplier "catalogsync/internal/supplier/models"
	"catalogsync/pkg/logger"
)

// BulkExecutor syncs through the supplier's file-transfer channel. A whole
// feed is downloaded, parsed and reconciled in one run; the .inf modification
// stamp short-circuits runs when the feed has not changed.
type BulkExecutor struct {
	feed    BulkFeed
	stamps  FeedStamps
	catalog CatalogStore
	prices  PriceStore
	kits    KitStore
	syncLog SyncLog
	log     logger.Logger

	now func() time.Time
}

func NewBulkExecutor(feed BulkFeed, stamps FeedStamps, catalog CatalogStore,
	prices PriceStore, kits KitStore, syncLog SyncLog, writer io.Writer) *BulkExecutor {

	_log := logger.NewLogger(writer, "[BulkExecutor]")
	return &BulkExecutor{
		feed:    feed,
		stamps:  stamps,
		catalog: catalog,
		prices:  prices,
		kits:    kits,
		syncLog: syncLog,
		log:     _log,
		now:     time.Now,
	}
}

// SyncFull ingests the complete feed for one sync type.
func (e *BulkExecutor) SyncFull(ctx context.Context, syncType models.SyncType) models.SyncResult {
	started := e.now()
	logID, err := e.syncLog.Start(syncType, models.ChannelBulk)
	if err != nil {
		e.log.Log("failed to open sync log for %s: %v", syncType, err)
	}

	resource := feedResourceFor(syncType)
	if skip, stamp := e.feedUnchanged(ctx, resource); skip {
		e.log.Log("%s feed unchanged since %s, skipping", resource, stamp.Format(time.RFC3339))
		result := models.SyncResult{Status: models.SyncRunCompleted}
		return finalize(e.syncLog, logID, syncType, models.ChannelBulk, result, started)
	}

	payload, err := e.feed.Fetch(ctx, resource)
	if err != nil {
		return finalize(e.syncLog, logID, syncType, models.ChannelBulk,
			failedResult(fmt.Sprintf("feed fetch failed: %v", err)), started)
	}
	e.log.Log("fetched %s feed: %d rows, %d parse errors", resource, len(payload.Rows), len(payload.Errors))

	result := e.ingest(syncType, payload)
	if len(payload.Errors) > 0 {
		result.Errors = append(result.Errors, payload.Errors...)
	}
	// Only a fully clean ingest advances the stamp; failed batches must be
	// retried on the next run even if the feed has not changed.
	if result.Status == models.SyncRunCompleted && result.Failed == 0 {
		e.recordStamp(ctx, resource)
	}
	return finalize(e.syncLog, logID, syncType, models.ChannelBulk, result, started)
}

func (e *BulkExecutor) ingest(syncType models.SyncType, payload *supplier.FeedPayload) models.SyncResult {
	syncedAt := e.now()
	switch syncType {
	case models.SyncTypePricing:
		records := make([]models.PriceRecord, 0, len(payload.Rows))
		for _, row := range payload.Rows {
			records = append(records, transform.FromBulkPricing(row, syncedAt))
		}
		return writePriceBatches(e.prices, records)
	case models.SyncTypeKits:
		records := make([]models.KitComponentRecord, 0, len(payload.Rows))
		for _, row := range payload.Rows {
			records = append(records, transform.FromBulkKit(row))
		}
		return writeKitBatches(e.kits, records)
	default:
		records := make([]models.CatalogRecord, 0, len(payload.Rows))
		for _, row := range payload.Rows {
			records = append(records, transform.FromBulkInventory(row, syncedAt))
		}
		return writeCatalogBatches(e.catalog, records)
	}
}

// feedUnchanged compares the remote .inf stamp against the last ingested one.
// Any failure along the way means "ingest anyway".
func (e *BulkExecutor) feedUnchanged(ctx context.Context, resource supplier.FeedResource) (bool, time.Time) {
	remote, err := e.feed.FetchModTime(ctx, resource)
	if err != nil || remote.IsZero() {
		return false, time.Time{}
	}
	last, err := e.stamps.GetFeedStamp(string(resource))
	if err != nil || last.IsZero() {
		return false, time.Time{}
	}
	return !remote.After(last), last
}

func (e *BulkExecutor) recordStamp(ctx context.Context, resource supplier.FeedResource) {
	remote, err := e.feed.FetchModTime(ctx, resource)
	if err != nil || remote.IsZero() {
		remote = e.now()
	}
	if err := e.stamps.SetFeedStamp(string(resource), remote); err != nil {
		e.log.Log("failed to record %s feed stamp: %v", resource, err)
	}
}

// SyncIncremental has no delta form on the file channel; the feed is only
// available whole, so this ingests it fully (the stamp check still applies).
func (e *BulkExecutor) SyncIncremental(ctx context.Context, syncType models.SyncType, _ time.Duration) models.SyncResult {
	return e.SyncFull(ctx, syncType)
}

// SyncOne refreshes one part from the inventory feed. Expensive for a single
// part; callers normally route single-part work to the API executor and fall
// back here only when that channel is down.
func (e *BulkExecutor) SyncOne(ctx context.Context, partNumber string) models.SyncResult {
	started := e.now()
	logID, err := e.syncLog.Start(models.SyncTypeInventory, models.ChannelBulk)
	if err != nil {
		e.log.Log("failed to open sync log for part %s: %v", partNumber, err)
	}

	payload, err := e.feed.Fetch(ctx, supplier.FeedInventory)
	if err != nil {
		return finalize(e.syncLog, logID, models.SyncTypeInventory, models.ChannelBulk,
			failedResult(fmt.Sprintf("feed fetch failed: %v", err)), started)
	}

	wanted := transform.NormalizePartNumber(partNumber)
	result := models.SyncResult{Status: models.SyncRunCompleted, Processed: 1}
	found := false
	for _, row := range payload.Rows {
		if transform.NormalizePartNumber(row.PartNumber) != wanted {
			continue
		}
		found = true
		record := transform.FromBulkInventory(row, e.now())
		existed, lookupErr := e.catalog.GetByPartNumber(record.PartNumber)
		if lookupErr != nil {
			result.Failed = 1
			result.Errors = append(result.Errors, fmt.Sprintf("%s: lookup failed: %v", partNumber, lookupErr))
			break
		}
		if err := e.catalog.Upsert(record); err != nil {
			result.Failed = 1
			result.Errors = append(result.Errors, fmt.Sprintf("%s: write failed: %v", partNumber, err))
			break
		}
		if existed != nil {
			result.Updated = 1
		} else {
			result.Added = 1
		}
		break
	}
	if !found {
		if err := e.catalog.MarkSyncStatus(wanted, models.SyncStatusNotFound, e.now()); err != nil {
			e.log.Log("failed to mark %s as not_found: %v", wanted, err)
		}
		result.Failed = 1
		result.Errors = append(result.Errors, fmt.Sprintf("%s: not present in feed", partNumber))
	}
	return finalize(e.syncLog, logID, models.SyncTypeInventory, models.ChannelBulk, result, started)
}
