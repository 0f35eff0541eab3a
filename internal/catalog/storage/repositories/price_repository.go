package repositories

import (
	"database/sql"
	"fmt"

	"catalogsync/internal/catalog/models"

	"github.com/lib/pq"
)

type PriceRepository struct {
	db *sql.DB
}

func NewPriceRepository(db *sql.DB) *PriceRepository {
	return &PriceRepository{db: db}
}

// ExistingPartNumbers returns which parts already carry a price row.
func (r *PriceRepository) ExistingPartNumbers(partNumbers []string) (map[string]bool, error) {
	rows, err := r.db.Query(
		`SELECT part_number FROM catalog.prices WHERE part_number = ANY($1)`, pq.Array(partNumbers))
	if err != nil {
		return nil, fmt.Errorf("failed to query existing price rows: %w", err)
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

// UpsertBatch supersedes price rows wholesale: each sync replaces the full
// tier set for a part rather than merging fields.
func (r *PriceRepository) UpsertBatch(records []models.PriceRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin price batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO catalog.prices
			(part_number, list_price, dealer_price, jobber_price, retail_price,
			 core_charge, currency, effective_date, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW())
		ON CONFLICT (part_number) DO UPDATE SET
			list_price = EXCLUDED.list_price,
			dealer_price = EXCLUDED.dealer_price,
			jobber_price = EXCLUDED.jobber_price,
			retail_price = EXCLUDED.retail_price,
			core_charge = EXCLUDED.core_charge,
			currency = EXCLUDED.currency,
			effective_date = EXCLUDED.effective_date,
			updated_at = NOW()`)
	if err != nil {
		return fmt.Errorf("failed to prepare price upsert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		_, err := stmt.Exec(
			rec.PartNumber, rec.ListPrice, rec.DealerPrice, rec.JobberPrice, rec.RetailPrice,
			rec.CoreCharge, rec.Currency, rec.EffectiveDate,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert price for %s: %w", rec.PartNumber, err)
		}
	}
	return tx.Commit()
}

func (r *PriceRepository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM catalog.prices`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count price rows: %w", err)
	}
	return count, nil
}
