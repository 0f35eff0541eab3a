package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"catalogsync/internal/catalog/models"
)

type SyncLogRepository struct {
	db *sql.DB
}

func NewSyncLogRepository(db *sql.DB) *SyncLogRepository {
	return &SyncLogRepository{db: db}
}

// Start appends a running entry and returns its id. The entry is finalized
// exactly once; status transitions are monotonic.
func (r *SyncLogRepository) Start(syncType models.SyncType, channel models.Channel) (int64, error) {
	var id int64
	err := r.db.QueryRow(`
		INSERT INTO catalog.sync_log (sync_type, channel, status, started_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id`, syncType, channel, models.SyncRunRunning).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to start sync log entry: %w", err)
	}
	return id, nil
}

// Finish finalizes a running entry with its terminal status and counts.
func (r *SyncLogRepository) Finish(id int64, result models.SyncResult, rateLimitResetAt *time.Time) error {
	errText := ""
	if len(result.Errors) > 0 {
		errText = result.Errors[0]
		for _, e := range result.Errors[1:] {
			errText += "; " + e
		}
	}
	_, err := r.db.Exec(`
		UPDATE catalog.sync_log SET
			status = $2, completed_at = NOW(),
			processed = $3, updated = $4, added = $5, failed = $6,
			error_text = $7, rate_limit_reset_at = $8
		WHERE id = $1 AND status = $9`,
		id, result.Status, result.Processed, result.Updated, result.Added, result.Failed,
		errText, rateLimitResetAt, models.SyncRunRunning)
	if err != nil {
		return fmt.Errorf("failed to finish sync log entry %d: %w", id, err)
	}
	return nil
}

func scanSyncLogEntry(scanner interface{ Scan(...interface{}) error }) (*models.SyncLogEntry, error) {
	var entry models.SyncLogEntry
	var completed, reset sql.NullTime
	var errText sql.NullString
	err := scanner.Scan(
		&entry.ID, &entry.SyncType, &entry.Channel, &entry.Status, &entry.StartedAt, &completed,
		&entry.Processed, &entry.Updated, &entry.Added, &entry.Failed, &errText, &reset,
	)
	if err != nil {
		return nil, err
	}
	if completed.Valid {
		entry.CompletedAt = &completed.Time
	}
	if reset.Valid {
		entry.RateLimitResetAt = &reset.Time
	}
	entry.ErrorText = errText.String
	return &entry, nil
}

const syncLogColumns = `id, sync_type, channel, status, started_at, completed_at,
	processed, updated, added, failed, error_text, rate_limit_reset_at`

// LastEntry returns the most recent entry for a sync type, nil when none.
func (r *SyncLogRepository) LastEntry(syncType models.SyncType) (*models.SyncLogEntry, error) {
	entry, err := scanSyncLogEntry(r.db.QueryRow(`
		SELECT `+syncLogColumns+` FROM catalog.sync_log
		WHERE sync_type = $1 ORDER BY started_at DESC LIMIT 1`, syncType))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last sync log entry: %w", err)
	}
	return entry, nil
}

// LastCompleted returns the most recent completed entry for a sync type.
func (r *SyncLogRepository) LastCompleted(syncType models.SyncType) (*models.SyncLogEntry, error) {
	entry, err := scanSyncLogEntry(r.db.QueryRow(`
		SELECT `+syncLogColumns+` FROM catalog.sync_log
		WHERE sync_type = $1 AND status = $2
		ORDER BY completed_at DESC LIMIT 1`, syncType, models.SyncRunCompleted))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last completed sync: %w", err)
	}
	return entry, nil
}

// RecentErrorCount counts failed runs for a sync type since the cutoff. The
// decision engine reads this as the recent API error rate.
func (r *SyncLogRepository) RecentErrorCount(syncType models.SyncType, channel models.Channel, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM catalog.sync_log
		WHERE sync_type = $1 AND channel = $2 AND status = $3 AND started_at >= $4`,
		syncType, channel, models.SyncRunFailed, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent sync errors: %w", err)
	}
	return count, nil
}

// Recent returns the latest entries across all types, newest first.
func (r *SyncLogRepository) Recent(limit int) ([]models.SyncLogEntry, error) {
	rows, err := r.db.Query(`
		SELECT `+syncLogColumns+` FROM catalog.sync_log
		ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent sync log: %w", err)
	}
	defer rows.Close()

	var entries []models.SyncLogEntry
	for rows.Next() {
		entry, err := scanSyncLogEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync log entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}
