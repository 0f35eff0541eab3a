package models

import "time"

// SyncType selects which slice of the catalog a sync run touches.
type SyncType string

const (
	SyncTypeInventory SyncType = "inventory"
	SyncTypePricing   SyncType = "pricing"
	SyncTypeKits      SyncType = "kits"
)

// AllSyncTypes lists the independent sync types in fan-out order.
var AllSyncTypes = []SyncType{SyncTypeInventory, SyncTypePricing, SyncTypeKits}

// Channel is the supplier channel a sync run goes through.
type Channel string

const (
	ChannelAPI  Channel = "api"
	ChannelBulk Channel = "bulk"
)

// SyncRunStatus is the lifecycle of one sync attempt. Transitions are
// monotonic: running -> completed | failed | rate_limited.
type SyncRunStatus string

const (
	SyncRunRunning     SyncRunStatus = "running"
	SyncRunCompleted   SyncRunStatus = "completed"
	SyncRunFailed      SyncRunStatus = "failed"
	SyncRunRateLimited SyncRunStatus = "rate_limited"
)

// SyncLogEntry is one row of the append-only sync audit trail.
type SyncLogEntry struct {
	ID               int64
	SyncType         SyncType
	Channel          Channel
	Status           SyncRunStatus
	StartedAt        time.Time
	CompletedAt      *time.Time
	Processed        int
	Updated          int
	Added            int
	Failed           int
	ErrorText        string
	RateLimitResetAt *time.Time
}

// SyncResult is the outcome of a single executor run. Success is false only
// when the run as a whole failed; per-item failures are counted, not fatal.
type SyncResult struct {
	Success    bool
	Status     SyncRunStatus
	Processed  int
	Updated    int
	Added      int
	Failed     int
	Errors     []string
	Duration   time.Duration
	RetryAfter time.Duration
}

// PendingStatus is the lifecycle of a queued single-part update request.
type PendingStatus string

const (
	PendingStatusPending    PendingStatus = "pending"
	PendingStatusProcessing PendingStatus = "processing"
	PendingStatusCompleted  PendingStatus = "completed"
	PendingStatusFailed     PendingStatus = "failed"
)

// PendingUpdateRequest is an on-demand refresh of one part, drained by the
// scheduler's queue processor ordered by priority then submission time.
type PendingUpdateRequest struct {
	ID          int64
	PartNumber  string
	RequestedBy string
	Priority    int
	Status      PendingStatus
	RequestedAt time.Time
	ProcessedAt *time.Time
	ErrorText   string
}

// SyncSchedule is the persisted per-type schedule configuration row.
type SyncSchedule struct {
	SyncType   SyncType
	Schedule   string
	Enabled    bool
	LastRunAt  *time.Time
	NextRunAt  *time.Time
	RetryCount int
}
