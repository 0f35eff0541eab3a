package executors

import (
	"context"
	"fmt"
	"time"

	"catalogsync/internal/catalog/models"
	"catalogsync/metrics"
	supplier "catalogsync/internal/supplier/models"
)

const (
	// Full syncs and staging writes work in fixed-size batches.
	fullSyncBatchSize = 100
	// Incremental refreshes go one record at a time in small batches with a
	// pause in between, to stay under the supplier's rate limits.
	incrementalBatchSize  = 10
	incrementalBatchDelay = 2 * time.Second
)

// SyncExecutor performs syncs over one supplier channel.
type SyncExecutor interface {
	SyncFull(ctx context.Context, syncType models.SyncType) models.SyncResult
	SyncIncremental(ctx context.Context, syncType models.SyncType, staleness time.Duration) models.SyncResult
	SyncOne(ctx context.Context, partNumber string) models.SyncResult
}

// CatalogStore is the slice of the catalog repository the executors touch.
type CatalogStore interface {
	GetByPartNumber(partNumber string) (*models.CatalogRecord, error)
	ExistingPartNumbers(partNumbers []string) (map[string]bool, error)
	InsertBatch(records []models.CatalogRecord) error
	UpdateBatch(records []models.CatalogRecord) error
	Upsert(record models.CatalogRecord) error
	StaleRecords(olderThan time.Time, limit int) ([]models.CatalogRecord, error)
	MarkSyncStatus(partNumber string, status models.SyncStatus, at time.Time) error
	Count() (int, error)
}

type PriceStore interface {
	ExistingPartNumbers(partNumbers []string) (map[string]bool, error)
	UpsertBatch(records []models.PriceRecord) error
}

type KitStore interface {
	ExistingKeys(records []models.KitComponentRecord) (map[string]bool, error)
	UpsertBatch(records []models.KitComponentRecord) error
}

// SyncLog appends to and finalizes the audit trail.
type SyncLog interface {
	Start(syncType models.SyncType, channel models.Channel) (int64, error)
	Finish(id int64, result models.SyncResult, rateLimitResetAt *time.Time) error
}

// SupplierAPI is the request/response channel surface the API executor uses.
type SupplierAPI interface {
	GetDetails(ctx context.Context, partNumber string) (*supplier.InventoryResponse, error)
	CheckInventory(ctx context.Context, partNumber string) (*supplier.InventoryResponse, error)
	GetPricing(ctx context.Context, partNumber string) (*supplier.PricingResponse, error)
	GetKitComponents(ctx context.Context, kitPartNumber string) (*supplier.KitResponse, error)
}

// RateStatus is the read side of the rate gate.
type RateStatus interface {
	IsRateLimited(endpoint string) bool
	RemainingCooldown(endpoint string) time.Duration
}

// BulkFeed is the file-transfer channel surface the bulk executor uses.
type BulkFeed interface {
	Fetch(ctx context.Context, resource supplier.FeedResource) (*supplier.FeedPayload, error)
	FetchModTime(ctx context.Context, resource supplier.FeedResource) (time.Time, error)
}

// FeedStamps stores per-resource feed modification times so an unchanged
// feed is not re-ingested.
type FeedStamps interface {
	GetFeedStamp(resource string) (time.Time, error)
	SetFeedStamp(resource string, stamp time.Time) error
}

func feedResourceFor(syncType models.SyncType) supplier.FeedResource {
	switch syncType {
	case models.SyncTypePricing:
		return supplier.FeedPricing
	case models.SyncTypeKits:
		return supplier.FeedKits
	default:
		return supplier.FeedInventory
	}
}

// finalize stamps duration and success, records metrics, and closes the sync
// log entry. Success means the run did not fail outright; partial per-item
// failures are tolerated.
func finalize(log SyncLog, logID int64, syncType models.SyncType, channel models.Channel,
	result models.SyncResult, started time.Time) models.SyncResult {

	result.Duration = time.Since(started)
	result.Success = result.Status != models.SyncRunFailed

	var resetAt *time.Time
	if result.Status == models.SyncRunRateLimited && result.RetryAfter > 0 {
		t := time.Now().Add(result.RetryAfter)
		resetAt = &t
	}
	if logID > 0 {
		// A failed log write must not turn a completed sync into an error.
		if err := log.Finish(logID, result, resetAt); err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
	}

	metrics.RecordSyncRun(string(syncType), string(channel), string(result.Status), result.Duration)
	metrics.RecordSyncItems(string(syncType), result.Processed, result.Updated, result.Added, result.Failed)
	return result
}

// writeCatalogBatches reconciles canonical records against the catalog in
// fixed-size batches, splitting each batch into inserts and updates by an
// existence query. A failed batch counts its records as failed and the run
// moves on.
func writeCatalogBatches(store CatalogStore, records []models.CatalogRecord) models.SyncResult {
	result := models.SyncResult{Status: models.SyncRunCompleted}
	for start := 0; start < len(records); start += fullSyncBatchSize {
		end := start + fullSyncBatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		partNumbers := make([]string, 0, len(batch))
		for _, r := range batch {
			partNumbers = append(partNumbers, r.PartNumber)
		}
		existing, err := store.ExistingPartNumbers(partNumbers)
		if err != nil {
			result.Failed += len(batch)
			result.Errors = append(result.Errors, fmt.Sprintf("existence check failed: %v", err))
			result.Processed += len(batch)
			continue
		}

		var inserts, updates []models.CatalogRecord
		for _, r := range batch {
			if existing[r.PartNumber] {
				updates = append(updates, r)
			} else {
				inserts = append(inserts, r)
			}
		}

		if len(updates) > 0 {
			if err := store.UpdateBatch(updates); err != nil {
				result.Failed += len(updates)
				result.Errors = append(result.Errors, fmt.Sprintf("update batch failed: %v", err))
			} else {
				result.Updated += len(updates)
			}
		}
		if len(inserts) > 0 {
			if err := store.InsertBatch(inserts); err != nil {
				result.Failed += len(inserts)
				result.Errors = append(result.Errors, fmt.Sprintf("insert batch failed: %v", err))
			} else {
				result.Added += len(inserts)
			}
		}
		result.Processed += len(batch)
	}
	return result
}

func writePriceBatches(store PriceStore, records []models.PriceRecord) models.SyncResult {
	result := models.SyncResult{Status: models.SyncRunCompleted}
	for start := 0; start < len(records); start += fullSyncBatchSize {
		end := start + fullSyncBatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		partNumbers := make([]string, 0, len(batch))
		for _, r := range batch {
			partNumbers = append(partNumbers, r.PartNumber)
		}
		existing, err := store.ExistingPartNumbers(partNumbers)
		if err != nil {
			result.Failed += len(batch)
			result.Errors = append(result.Errors, fmt.Sprintf("price existence check failed: %v", err))
			result.Processed += len(batch)
			continue
		}
		if err := store.UpsertBatch(batch); err != nil {
			result.Failed += len(batch)
			result.Errors = append(result.Errors, fmt.Sprintf("price batch failed: %v", err))
			result.Processed += len(batch)
			continue
		}
		for _, r := range batch {
			if existing[r.PartNumber] {
				result.Updated++
			} else {
				result.Added++
			}
		}
		result.Processed += len(batch)
	}
	return result
}

func writeKitBatches(store KitStore, records []models.KitComponentRecord) models.SyncResult {
	result := models.SyncResult{Status: models.SyncRunCompleted}
	for start := 0; start < len(records); start += fullSyncBatchSize {
		end := start + fullSyncBatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		existing, err := store.ExistingKeys(batch)
		if err != nil {
			result.Failed += len(batch)
			result.Errors = append(result.Errors, fmt.Sprintf("kit existence check failed: %v", err))
			result.Processed += len(batch)
			continue
		}
		if err := store.UpsertBatch(batch); err != nil {
			result.Failed += len(batch)
			result.Errors = append(result.Errors, fmt.Sprintf("kit batch failed: %v", err))
			result.Processed += len(batch)
			continue
		}
		for _, r := range batch {
			if existing[r.KitPartNumber+"|"+r.ComponentPartNumber] {
				result.Updated++
			} else {
				result.Added++
			}
		}
		result.Processed += len(batch)
	}
	return result
}
