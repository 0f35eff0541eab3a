package models

import "time"

// SyncStatus is the per-record supplier sync outcome stored on a catalog row.
type SyncStatus string

const (
	SyncStatusSynced   SyncStatus = "synced"
	SyncStatusFailed   SyncStatus = "failed"
	SyncStatusNotFound SyncStatus = "not_found"
	SyncStatusError    SyncStatus = "error"
)

// CatalogRecord is the canonical inventory row. PartNumber is unique within
// the store. Rows are never deleted: RemovedBySession carries the upload
// session that superseded the row instead.
type CatalogRecord struct {
	ID           int64
	PartNumber   string
	VendorCode   string
	CompositeKey string
	Name         string
	Description  string
	Category     string
	Quantity     int
	QtyEast      int
	QtyCentral   int
	QtyWest      int
	UnitPrice    float64
	Cost         float64

	LastSyncedAt     *time.Time
	SyncStatus       SyncStatus
	UploadSessionID  *string
	RemovedBySession *string
	UpdatedAt        time.Time
}

// PriceRecord holds supplier price tiers for a part. Each pricing sync
// supersedes the previous row for the same part number.
type PriceRecord struct {
	PartNumber    string
	ListPrice     float64
	DealerPrice   float64
	JobberPrice   float64
	RetailPrice   float64
	CoreCharge    float64
	Currency      string
	EffectiveDate time.Time
	UpdatedAt     time.Time
}

// KitComponentRecord is one component line of a kit, keyed by
// (KitPartNumber, ComponentPartNumber).
type KitComponentRecord struct {
	KitPartNumber       string
	ComponentPartNumber string
	Quantity            int
	Required            bool
	Description         string
	UpdatedAt           time.Time
}
