package repositories

import (
	"database/sql"
	"fmt"

	"catalogsync/internal/catalog/models"

	"github.com/lib/pq"
)

type KitRepository struct {
	db *sql.DB
}

func NewKitRepository(db *sql.DB) *KitRepository {
	return &KitRepository{db: db}
}

func kitKey(kit, component string) string {
	return kit + "|" + component
}

// ExistingKeys returns which (kit, component) pairs already exist. Keys use
// the same "kit|component" form the executor partitions on.
func (r *KitRepository) ExistingKeys(records []models.KitComponentRecord) (map[string]bool, error) {
	kits := make([]string, len(records))
	for i, rec := range records {
		kits[i] = rec.KitPartNumber
	}

	rows, err := r.db.Query(`
		SELECT kit_part_number, component_part_number
		FROM catalog.kit_components WHERE kit_part_number = ANY($1)`, pq.Array(kits))
	if err != nil {
		return nil, fmt.Errorf("failed to query existing kit components: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]bool)
	for rows.Next() {
		var kit, component string
		if err := rows.Scan(&kit, &component); err != nil {
			return nil, fmt.Errorf("failed to scan kit component: %w", err)
		}
		existing[kitKey(kit, component)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return existing, nil
}

// UpsertBatch writes kit component rows keyed by (kit, component).
func (r *KitRepository) UpsertBatch(records []models.KitComponentRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin kit batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO catalog.kit_components
			(kit_part_number, component_part_number, quantity, required, description, updated_at)
		VALUES ($1,$2,$3,$4,$5,NOW())
		ON CONFLICT (kit_part_number, component_part_number) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			required = EXCLUDED.required,
			description = EXCLUDED.description,
			updated_at = NOW()`)
	if err != nil {
		return fmt.Errorf("failed to prepare kit upsert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		_, err := stmt.Exec(rec.KitPartNumber, rec.ComponentPartNumber, rec.Quantity, rec.Required, rec.Description)
		if err != nil {
			return fmt.Errorf("failed to upsert kit component %s/%s: %w",
				rec.KitPartNumber, rec.ComponentPartNumber, err)
		}
	}
	return tx.Commit()
}

func (r *KitRepository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM catalog.kit_components`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count kit components: %w", err)
	}
	return count, nil
}
