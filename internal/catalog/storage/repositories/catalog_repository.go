package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"catalogsync/internal/catalog/models"

	"github.com/lib/pq"
)

const catalogColumns = `part_number, vendor_code, composite_key, name, description, category,
	quantity, qty_east, qty_central, qty_west, unit_price, cost,
	last_synced_at, sync_status, upload_session_id, removed_by_session, updated_at`

type CatalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func scanCatalogRecord(scanner interface{ Scan(...interface{}) error }) (*models.CatalogRecord, error) {
	var rec models.CatalogRecord
	var lastSynced sql.NullTime
	var sessionID, removedBy sql.NullString
	err := scanner.Scan(
		&rec.ID, &rec.PartNumber, &rec.VendorCode, &rec.CompositeKey, &rec.Name, &rec.Description,
		&rec.Category, &rec.Quantity, &rec.QtyEast, &rec.QtyCentral, &rec.QtyWest,
		&rec.UnitPrice, &rec.Cost, &lastSynced, &rec.SyncStatus, &sessionID, &removedBy, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastSynced.Valid {
		rec.LastSyncedAt = &lastSynced.Time
	}
	if sessionID.Valid {
		rec.UploadSessionID = &sessionID.String
	}
	if removedBy.Valid {
		rec.RemovedBySession = &removedBy.String
	}
	return &rec, nil
}

func (r *CatalogRepository) GetByPartNumber(partNumber string) (*models.CatalogRecord, error) {
	query := `SELECT id, ` + catalogColumns + `
			  FROM catalog.records WHERE part_number = $1 AND removed_by_session IS NULL`

	rec, err := scanCatalogRecord(r.db.QueryRow(query, partNumber))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get catalog record: %w", err)
	}
	return rec, nil
}

// GetByCompositeKeys resolves existing rows for a batch of composite keys in
// one query. Removed rows are excluded: a re-uploaded key becomes an insert.
func (r *CatalogRepository) GetByCompositeKeys(keys []string) (map[string]*models.CatalogRecord, error) {
	query := `SELECT id, ` + catalogColumns + `
			  FROM catalog.records WHERE composite_key = ANY($1) AND removed_by_session IS NULL`

	rows, err := r.db.Query(query, pq.Array(keys))
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog records by keys: %w", err)
	}
	defer rows.Close()

	found := make(map[string]*models.CatalogRecord)
	for rows.Next() {
		rec, err := scanCatalogRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan catalog record: %w", err)
		}
		found[rec.CompositeKey] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return found, nil
}

// ExistingPartNumbers returns which of the given part numbers already have
// live catalog rows. One batched query per sync batch.
func (r *CatalogRepository) ExistingPartNumbers(partNumbers []string) (map[string]bool, error) {
	query := `SELECT part_number FROM catalog.records
			  WHERE part_number = ANY($1) AND removed_by_session IS NULL`

	rows, err := r.db.Query(query, pq.Array(partNumbers))
	if err != nil {
		return nil, fmt.Errorf("failed to query existing part numbers: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]bool)
	for rows.Next() {
		var pn string
		if err := rows.Scan(&pn); err != nil {
			return nil, fmt.Errorf("failed to scan part number: %w", err)
		}
		existing[pn] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return existing, nil
}

// InsertBatch writes new catalog rows inside one transaction.
func (r *CatalogRepository) InsertBatch(records []models.CatalogRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin insert batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO catalog.records (` + catalogColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,NULL,NOW())
		ON CONFLICT (part_number) DO UPDATE SET
			vendor_code = EXCLUDED.vendor_code,
			composite_key = EXCLUDED.composite_key,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			quantity = EXCLUDED.quantity,
			qty_east = EXCLUDED.qty_east,
			qty_central = EXCLUDED.qty_central,
			qty_west = EXCLUDED.qty_west,
			unit_price = EXCLUDED.unit_price,
			cost = EXCLUDED.cost,
			last_synced_at = EXCLUDED.last_synced_at,
			sync_status = EXCLUDED.sync_status,
			upload_session_id = EXCLUDED.upload_session_id,
			removed_by_session = NULL,
			updated_at = NOW()`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		_, err := stmt.Exec(
			rec.PartNumber, rec.VendorCode, rec.CompositeKey, rec.Name, rec.Description, rec.Category,
			rec.Quantity, rec.QtyEast, rec.QtyCentral, rec.QtyWest, rec.UnitPrice, rec.Cost,
			rec.LastSyncedAt, rec.SyncStatus, rec.UploadSessionID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert record %s: %w", rec.PartNumber, err)
		}
	}
	return tx.Commit()
}

// UpdateBatch rewrites existing rows by part number inside one transaction.
func (r *CatalogRepository) UpdateBatch(records []models.CatalogRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin update batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		UPDATE catalog.records SET
			vendor_code = $2, composite_key = $3, name = $4, description = $5, category = $6,
			quantity = $7, qty_east = $8, qty_central = $9, qty_west = $10,
			unit_price = $11, cost = $12, last_synced_at = $13, sync_status = $14,
			upload_session_id = COALESCE($15, upload_session_id),
			removed_by_session = NULL, updated_at = NOW()
		WHERE part_number = $1`)
	if err != nil {
		return fmt.Errorf("failed to prepare update: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		_, err := stmt.Exec(
			rec.PartNumber, rec.VendorCode, rec.CompositeKey, rec.Name, rec.Description, rec.Category,
			rec.Quantity, rec.QtyEast, rec.QtyCentral, rec.QtyWest, rec.UnitPrice, rec.Cost,
			rec.LastSyncedAt, rec.SyncStatus, rec.UploadSessionID,
		)
		if err != nil {
			return fmt.Errorf("failed to update record %s: %w", rec.PartNumber, err)
		}
	}
	return tx.Commit()
}

// Upsert writes one record, inserting or replacing by part number.
func (r *CatalogRepository) Upsert(rec models.CatalogRecord) error {
	return r.InsertBatch([]models.CatalogRecord{rec})
}

// StaleRecords returns live rows whose last successful per-record sync is
// older than the threshold, oldest first.
func (r *CatalogRepository) StaleRecords(olderThan time.Time, limit int) ([]models.CatalogRecord, error) {
	query := `SELECT id, ` + catalogColumns + `
			  FROM catalog.records
			  WHERE removed_by_session IS NULL
			    AND (last_synced_at IS NULL OR last_synced_at < $1)
			  ORDER BY last_synced_at ASC NULLS FIRST
			  LIMIT $2`

	rows, err := r.db.Query(query, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale records: %w", err)
	}
	defer rows.Close()

	var records []models.CatalogRecord
	for rows.Next() {
		rec, err := scanCatalogRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stale record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return records, nil
}

// MarkSyncStatus stamps the per-record sync outcome without touching data
// fields. Used by syncOne for not_found and error outcomes.
func (r *CatalogRepository) MarkSyncStatus(partNumber string, status models.SyncStatus, at time.Time) error {
	_, err := r.db.Exec(`
		UPDATE catalog.records SET sync_status = $2, last_synced_at = $3, updated_at = NOW()
		WHERE part_number = $1`, partNumber, status, at)
	if err != nil {
		return fmt.Errorf("failed to mark sync status for %s: %w", partNumber, err)
	}
	return nil
}

// MarkRemovedBySession soft-deletes rows previously attributed to an upload
// whose composite key is absent from the new file's valid key set.
func (r *CatalogRepository) MarkRemovedBySession(sessionID string, keepKeys []string) (int64, error) {
	res, err := r.db.Exec(`
		UPDATE catalog.records SET removed_by_session = $1, updated_at = NOW()
		WHERE upload_session_id IS NOT NULL
		  AND removed_by_session IS NULL
		  AND NOT (composite_key = ANY($2))`, sessionID, pq.Array(keepKeys))
	if err != nil {
		return 0, fmt.Errorf("failed to mark removed rows: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of live catalog rows.
func (r *CatalogRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM catalog.records WHERE removed_by_session IS NULL`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count catalog records: %w", err)
	}
	return count, nil
}
