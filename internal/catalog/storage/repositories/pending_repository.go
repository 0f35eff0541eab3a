package repositories

import (
	"database/sql"
	"fmt"

	"catalogsync/internal/catalog/models"
)

type PendingRepository struct {
	db *sql.DB
}

func NewPendingRepository(db *sql.DB) *PendingRepository {
	return &PendingRepository{db: db}
}

// Enqueue records an on-demand part refresh request.
func (r *PendingRepository) Enqueue(partNumber, requestedBy string, priority int) (int64, error) {
	var id int64
	err := r.db.QueryRow(`
		INSERT INTO catalog.pending_updates (part_number, requested_by, priority, status, requested_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id`, partNumber, requestedBy, priority, models.PendingStatusPending).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue update request: %w", err)
	}
	return id, nil
}

// Dequeue claims up to limit pending requests ordered by priority then
// submission time, marking them processing in the same statement.
func (r *PendingRepository) Dequeue(limit int) ([]models.PendingUpdateRequest, error) {
	rows, err := r.db.Query(`
		UPDATE catalog.pending_updates SET status = $1
		WHERE id IN (
			SELECT id FROM catalog.pending_updates
			WHERE status = $2
			ORDER BY priority DESC, requested_at ASC
			LIMIT $3
		)
		RETURNING id, part_number, requested_by, priority, status, requested_at`,
		models.PendingStatusProcessing, models.PendingStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue update requests: %w", err)
	}
	defer rows.Close()

	var requests []models.PendingUpdateRequest
	for rows.Next() {
		var req models.PendingUpdateRequest
		err := rows.Scan(&req.ID, &req.PartNumber, &req.RequestedBy, &req.Priority, &req.Status, &req.RequestedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan update request: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return requests, nil
}

// Complete finalizes a claimed request.
func (r *PendingRepository) Complete(id int64, status models.PendingStatus, errText string) error {
	_, err := r.db.Exec(`
		UPDATE catalog.pending_updates
		SET status = $2, error_text = $3, processed_at = NOW()
		WHERE id = $1`, id, status, errText)
	if err != nil {
		return fmt.Errorf("failed to complete update request %d: %w", id, err)
	}
	return nil
}

// PendingCount returns how many requests are waiting.
func (r *PendingRepository) PendingCount() (int, error) {
	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM catalog.pending_updates WHERE status = $1`,
		models.PendingStatusPending).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending requests: %w", err)
	}
	return count, nil
}
