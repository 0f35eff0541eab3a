package models

import "time"

// SessionStatus is the lifecycle of one bulk-file submission.
type SessionStatus string

const (
	SessionProcessing SessionStatus = "processing"
	SessionCompleted  SessionStatus = "completed"
	SessionFailed     SessionStatus = "failed"
	SessionCancelled  SessionStatus = "cancelled"
)

// UploadSession tracks a single bulk-file upload through the validation and
// reconciliation pipeline.
type UploadSession struct {
	ID          string
	Filename    string
	Size        int64
	Status      SessionStatus
	TotalRows   int
	ValidRows   int
	InvalidRows int
	Corrected   int
	Processed   int
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// StagingStatus is the validation state of one staged row.
type StagingStatus string

const (
	StagingValid     StagingStatus = "valid"
	StagingInvalid   StagingStatus = "invalid"
	StagingProcessed StagingStatus = "processed"
)

// StagingAction classifies what reconciling a staged row would do to the
// catalog. It must be resolved to insert or update before reconciliation.
type StagingAction string

const (
	ActionInsert  StagingAction = "insert"
	ActionUpdate  StagingAction = "update"
	ActionUnknown StagingAction = "unknown"
)

// StagingRecord is one row of an uploaded file, holding both the original
// fields as received and the normalized fields the pipeline derived.
type StagingRecord struct {
	ID         int64
	SessionID  string
	LineNumber int

	RawVendorCode   string
	RawPartNumber   string
	RawCompositeKey string
	RawQtyTotal     string

	VendorCode   string
	PartNumber   string
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

	Status      StagingStatus
	Action      StagingAction
	Corrected   bool
	NeedsReview bool
	Notes       []string
	CreatedAt   time.Time
}
