package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"catalogsync/internal/catalog/models"
)

type ScheduleRepository struct {
	db *sql.DB
}

func NewScheduleRepository(db *sql.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

func (r *ScheduleRepository) Get(syncType models.SyncType) (*models.SyncSchedule, error) {
	var s models.SyncSchedule
	var last, next sql.NullTime
	err := r.db.QueryRow(`
		SELECT sync_type, schedule, enabled, last_run_at, next_run_at, retry_count
		FROM catalog.sync_schedules WHERE sync_type = $1`, syncType).Scan(
		&s.SyncType, &s.Schedule, &s.Enabled, &last, &next, &s.RetryCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get sync schedule: %w", err)
	}
	if last.Valid {
		s.LastRunAt = &last.Time
	}
	if next.Valid {
		s.NextRunAt = &next.Time
	}
	return &s, nil
}

func (r *ScheduleRepository) Upsert(s models.SyncSchedule) error {
	_, err := r.db.Exec(`
		INSERT INTO catalog.sync_schedules (sync_type, schedule, enabled, last_run_at, next_run_at, retry_count)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (sync_type) DO UPDATE SET
			schedule = EXCLUDED.schedule,
			enabled = EXCLUDED.enabled,
			last_run_at = EXCLUDED.last_run_at,
			next_run_at = EXCLUDED.next_run_at,
			retry_count = EXCLUDED.retry_count`,
		s.SyncType, s.Schedule, s.Enabled, s.LastRunAt, s.NextRunAt, s.RetryCount)
	if err != nil {
		return fmt.Errorf("failed to upsert sync schedule: %w", err)
	}
	return nil
}

// RecordRun stamps a completed run and the computed next one.
func (r *ScheduleRepository) RecordRun(syncType models.SyncType, lastRun, nextRun time.Time, retryCount int) error {
	_, err := r.db.Exec(`
		UPDATE catalog.sync_schedules
		SET last_run_at = $2, next_run_at = $3, retry_count = $4
		WHERE sync_type = $1`, syncType, lastRun, nextRun, retryCount)
	if err != nil {
		return fmt.Errorf("failed to record schedule run: %w", err)
	}
	return nil
}

// GetFeedStamp returns the stored modification time for a bulk feed
// resource, zero when none is stored yet.
func (r *ScheduleRepository) GetFeedStamp(resource string) (time.Time, error) {
	var stamp time.Time
	err := r.db.QueryRow(`
		SELECT last_update FROM catalog.metadata WHERE key_name = $1`, resource).Scan(&stamp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("failed to get feed stamp: %w", err)
	}
	return stamp, nil
}

// SetFeedStamp stores the feed's modification time after a successful
// bulk run.
func (r *ScheduleRepository) SetFeedStamp(resource string, stamp time.Time) error {
	_, err := r.db.Exec(`
		INSERT INTO catalog.metadata (key_name, last_update)
		VALUES ($1, $2)
		ON CONFLICT (key_name) DO UPDATE SET last_update = EXCLUDED.last_update`,
		resource, stamp)
	if err != nil {
		return fmt.Errorf("failed to set feed stamp: %w", err)
	}
	return nil
}
