package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"catalogsync/internal/catalog/models"

	"github.com/lib/pq"
)

// stagingWriteBatch bounds the size of one staging write transaction.
const stagingWriteBatch = 100

type StagingRepository struct {
	db *sql.DB
}

func NewStagingRepository(db *sql.DB) *StagingRepository {
	return &StagingRepository{db: db}
}

func (r *StagingRepository) CreateSession(session models.UploadSession) error {
	_, err := r.db.Exec(`
		INSERT INTO catalog.upload_sessions
			(id, filename, size, status, total_rows, valid_rows, invalid_rows, corrected_rows, processed_rows, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW())`,
		session.ID, session.Filename, session.Size, session.Status,
		session.TotalRows, session.ValidRows, session.InvalidRows, session.Corrected, session.Processed)
	if err != nil {
		return fmt.Errorf("failed to create upload session: %w", err)
	}
	return nil
}

func (r *StagingRepository) GetSession(id string) (*models.UploadSession, error) {
	var s models.UploadSession
	var completed sql.NullTime
	err := r.db.QueryRow(`
		SELECT id, filename, size, status, total_rows, valid_rows, invalid_rows,
		       corrected_rows, processed_rows, created_at, completed_at
		FROM catalog.upload_sessions WHERE id = $1`, id).Scan(
		&s.ID, &s.Filename, &s.Size, &s.Status, &s.TotalRows, &s.ValidRows, &s.InvalidRows,
		&s.Corrected, &s.Processed, &s.CreatedAt, &completed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get upload session: %w", err)
	}
	if completed.Valid {
		s.CompletedAt = &completed.Time
	}
	return &s, nil
}

// FinishSession terminates a session with its final status and counts.
func (r *StagingRepository) FinishSession(id string, status models.SessionStatus, processed int) error {
	_, err := r.db.Exec(`
		UPDATE catalog.upload_sessions
		SET status = $2, processed_rows = $3, completed_at = NOW()
		WHERE id = $1`, id, status, processed)
	if err != nil {
		return fmt.Errorf("failed to finish upload session: %w", err)
	}
	return nil
}

// CreateStagingRecords persists staged rows with COPY, batched to bound
// transaction size.
func (r *StagingRepository) CreateStagingRecords(records []models.StagingRecord) error {
	for start := 0; start < len(records); start += stagingWriteBatch {
		end := start + stagingWriteBatch
		if end > len(records) {
			end = len(records)
		}
		if err := r.copyBatch(records[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *StagingRepository) copyBatch(records []models.StagingRecord) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin staging batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(pq.CopyInSchema("catalog", "staging_records",
		"session_id", "line_number",
		"raw_vendor_code", "raw_part_number", "raw_composite_key", "raw_qty_total",
		"vendor_code", "part_number", "composite_key", "name", "description", "category",
		"quantity", "qty_east", "qty_central", "qty_west", "unit_price", "cost",
		"status", "action", "corrected", "needs_review", "notes"))
	if err != nil {
		return fmt.Errorf("failed to prepare staging copy: %w", err)
	}

	for _, rec := range records {
		_, err := stmt.Exec(
			rec.SessionID, rec.LineNumber,
			rec.RawVendorCode, rec.RawPartNumber, rec.RawCompositeKey, rec.RawQtyTotal,
			rec.VendorCode, rec.PartNumber, rec.CompositeKey, rec.Name, rec.Description, rec.Category,
			rec.Quantity, rec.QtyEast, rec.QtyCentral, rec.QtyWest, rec.UnitPrice, rec.Cost,
			rec.Status, rec.Action, rec.Corrected, rec.NeedsReview, strings.Join(rec.Notes, "\n"),
		)
		if err != nil {
			return fmt.Errorf("staging copy error at line %d: %w", rec.LineNumber, err)
		}
	}
	if _, err := stmt.Exec(); err != nil {
		return fmt.Errorf("final staging copy exec error: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("failed to close staging copy: %w", err)
	}
	return tx.Commit()
}

const stagingColumns = `id, session_id, line_number,
	raw_vendor_code, raw_part_number, raw_composite_key, raw_qty_total,
	vendor_code, part_number, composite_key, name, description, category,
	quantity, qty_east, qty_central, qty_west, unit_price, cost,
	status, action, corrected, needs_review, notes, created_at`

func scanStagingRecord(scanner interface{ Scan(...interface{}) error }) (*models.StagingRecord, error) {
	var rec models.StagingRecord
	var notes string
	err := scanner.Scan(
		&rec.ID, &rec.SessionID, &rec.LineNumber,
		&rec.RawVendorCode, &rec.RawPartNumber, &rec.RawCompositeKey, &rec.RawQtyTotal,
		&rec.VendorCode, &rec.PartNumber, &rec.CompositeKey, &rec.Name, &rec.Description, &rec.Category,
		&rec.Quantity, &rec.QtyEast, &rec.QtyCentral, &rec.QtyWest, &rec.UnitPrice, &rec.Cost,
		&rec.Status, &rec.Action, &rec.Corrected, &rec.NeedsReview, &notes, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if notes != "" {
		rec.Notes = strings.Split(notes, "\n")
	}
	return &rec, nil
}

func (r *StagingRepository) GetByID(id int64) (*models.StagingRecord, error) {
	rec, err := scanStagingRecord(r.db.QueryRow(
		`SELECT `+stagingColumns+` FROM catalog.staging_records WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get staging record: %w", err)
	}
	return rec, nil
}

// StagingFilter narrows ListBySession. Zero values mean no filtering.
type StagingFilter struct {
	Status      models.StagingStatus
	NeedsReview *bool
	Limit       int
}

func (r *StagingRepository) ListBySession(sessionID string, filter StagingFilter) ([]models.StagingRecord, error) {
	query := `SELECT ` + stagingColumns + ` FROM catalog.staging_records WHERE session_id = $1`
	args := []interface{}{sessionID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.NeedsReview != nil {
		args = append(args, *filter.NeedsReview)
		query += fmt.Sprintf(" AND needs_review = $%d", len(args))
	}
	query += " ORDER BY line_number ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list staging records: %w", err)
	}
	defer rows.Close()

	var records []models.StagingRecord
	for rows.Next() {
		rec, err := scanStagingRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan staging record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return records, nil
}

// UpdateActions sets the action classification for a batch of staging rows.
func (r *StagingRepository) UpdateActions(ids []int64, action models.StagingAction) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.Exec(`
		UPDATE catalog.staging_records SET action = $2 WHERE id = ANY($1)`,
		pq.Array(ids), action)
	if err != nil {
		return fmt.Errorf("failed to update staging actions: %w", err)
	}
	return nil
}

// MarkProcessed finalizes a staging row after reconciliation.
func (r *StagingRepository) MarkProcessed(id int64) error {
	_, err := r.db.Exec(`
		UPDATE catalog.staging_records SET status = $2 WHERE id = $1`,
		id, models.StagingProcessed)
	if err != nil {
		return fmt.Errorf("failed to mark staging record processed: %w", err)
	}
	return nil
}

// ValidKeys returns the composite keys of all valid rows in a session,
// the keep-set for soft deletion.
func (r *StagingRepository) ValidKeys(sessionID string) ([]string, error) {
	rows, err := r.db.Query(`
		SELECT composite_key FROM catalog.staging_records
		WHERE session_id = $1 AND status IN ($2, $3)`,
		sessionID, models.StagingValid, models.StagingProcessed)
	if err != nil {
		return nil, fmt.Errorf("failed to query valid staging keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan staging key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return keys, nil
}

// IncrementSessionProcessed bumps the session's processed counter after rows
// are reconciled.
func (r *StagingRepository) IncrementSessionProcessed(sessionID string, delta int) error {
	_, err := r.db.Exec(`
		UPDATE catalog.upload_sessions SET processed_rows = processed_rows + $2
		WHERE id = $1`, sessionID, delta)
	if err != nil {
		return fmt.Errorf("failed to bump session processed count: %w", err)
	}
	return nil
}
