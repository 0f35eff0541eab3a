package catalog

import (
	"database/sql"
	"fmt"
	"log"
)

type CreateMigrationsInfra struct{}

func (m *CreateMigrationsInfra) UpMigration(db *sql.DB) error {
	query := `
	CREATE SCHEMA IF NOT EXISTS migrations;
	CREATE TABLE IF NOT EXISTS migrations.migrations (
		name VARCHAR(255) PRIMARY KEY,
		time TIMESTAMP NOT NULL
	);`
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to create migrations infra: %w", err)
	}
	return nil
}

type CreateCatalogSchema struct{}

func (m *CreateCatalogSchema) UpMigration(db *sql.DB) error {
	query := `
	CREATE SCHEMA IF NOT EXISTS catalog;`
	_, err := db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create schema catalog: %w", err)
	}
	return nil
}

type CreateCatalogRecordsTable struct{}

func (m *CreateCatalogRecordsTable) UpMigration(db *sql.DB) error {
	if ok, err := checkAndSkipMigration(db, "catalog.records"); err != nil {
		return err
	} else if ok {
		return nil
	}
	query := `
	CREATE TABLE IF NOT EXISTS catalog.records (
		id SERIAL PRIMARY KEY,
		part_number VARCHAR(64) NOT NULL UNIQUE,
		vendor_code VARCHAR(16) NOT NULL,
		composite_key VARCHAR(96) NOT NULL,
		name VARCHAR(255) NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		category VARCHAR(128) NOT NULL DEFAULT '',
		quantity INT NOT NULL DEFAULT 0,
		qty_east INT NOT NULL DEFAULT 0,
		qty_central INT NOT NULL DEFAULT 0,
		qty_west INT NOT NULL DEFAULT 0,
		unit_price NUMERIC(12,2) NOT NULL DEFAULT 0,
		cost NUMERIC(12,2) NOT NULL DEFAULT 0,
		last_synced_at TIMESTAMP,
		sync_status VARCHAR(16) NOT NULL DEFAULT 'synced',
		upload_session_id VARCHAR(36),
		removed_by_session VARCHAR(36),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_catalog_records_composite_key ON catalog.records (composite_key);
	CREATE INDEX IF NOT EXISTS idx_catalog_records_last_synced ON catalog.records (last_synced_at);`
	if err := executeAndMarkMigration(db, query, "catalog.records"); err != nil {
		return err
	}
	log.Println("Migration 'catalog.records' completed successfully.")
	return nil
}

type CreatePricesTable struct{}

func (m *CreatePricesTable) UpMigration(db *sql.DB) error {
	if ok, err := checkAndSkipMigration(db, "catalog.prices"); err != nil {
		return err
	} else if ok {
		return nil
	}
	query := `
	CREATE TABLE IF NOT EXISTS catalog.prices (
		part_number VARCHAR(64) PRIMARY KEY,
		list_price NUMERIC(12,2) NOT NULL DEFAULT 0,
		dealer_price NUMERIC(12,2) NOT NULL DEFAULT 0,
		jobber_price NUMERIC(12,2) NOT NULL DEFAULT 0,
		retail_price NUMERIC(12,2) NOT NULL DEFAULT 0,
		core_charge NUMERIC(12,2) NOT NULL DEFAULT 0,
		currency VARCHAR(8) NOT NULL DEFAULT 'USD',
		effective_date TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);`
	if err := executeAndMarkMigration(db, query, "catalog.prices"); err != nil {
		return err
	}
	log.Println("Migration 'catalog.prices' completed successfully.")
	return nil
}

type CreateKitComponentsTable struct{}

func (m *CreateKitComponentsTable) UpMigration(db *sql.DB) error {
	if ok, err := checkAndSkipMigration(db, "catalog.kit_components"); err != nil {
		return err
	} else if ok {
		return nil
	}
	query := `
	CREATE TABLE IF NOT EXISTS catalog.kit_components (
		kit_part_number VARCHAR(64) NOT NULL,
		component_part_number VARCHAR(64) NOT NULL,
		quantity INT NOT NULL DEFAULT 1,
		required BOOLEAN NOT NULL DEFAULT TRUE,
		description TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
		PRIMARY KEY (kit_part_number, component_part_number)
	);`
	if err := executeAndMarkMigration(db, query, "catalog.kit_components"); err != nil {
		return err
	}
	log.Println("Migration 'catalog.kit_components' completed successfully.")
	return nil
}

type CreateSyncLogTable struct{}

func (m *CreateSyncLogTable) UpMigration(db *sql.DB) error {
	if ok, err := checkAndSkipMigration(db, "catalog.sync_log"); err != nil {
		return err
	} else if ok {
		return nil
	}
	query := `
	CREATE TABLE IF NOT EXISTS catalog.sync_log (
		id SERIAL PRIMARY KEY,
		sync_type VARCHAR(16) NOT NULL,
		channel VARCHAR(8) NOT NULL,
		status VARCHAR(16) NOT NULL,
		started_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP,
		processed INT NOT NULL DEFAULT 0,
		updated INT NOT NULL DEFAULT 0,
		added INT NOT NULL DEFAULT 0,
		failed INT NOT NULL DEFAULT 0,
		error_text TEXT NOT NULL DEFAULT '',
		rate_limit_reset_at TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_sync_log_type_started ON catalog.sync_log (sync_type, started_at DESC);`
	if err := executeAndMarkMigration(db, query, "catalog.sync_log"); err != nil {
		return err
	}
	log.Println("Migration 'catalog.sync_log' completed successfully.")
	return nil
}

type CreateUploadSessionsTable struct{}

func (m *CreateUploadSessionsTable) UpMigration(db *sql.DB) error {
	if ok, err := checkAndSkipMigration(db, "catalog.upload_sessions"); err != nil {
		return err
	} else if ok {
		return nil
	}
	query := `
	CREATE TABLE IF NOT EXISTS catalog.upload_sessions (
		id VARCHAR(36) PRIMARY KEY,
		filename VARCHAR(255) NOT NULL,
		size BIGINT NOT NULL DEFAULT 0,
		status VARCHAR(16) NOT NULL,
		total_rows INT NOT NULL DEFAULT 0,
		valid_rows INT NOT NULL DEFAULT 0,
		invalid_rows INT NOT NULL DEFAULT 0,
		corrected_rows INT NOT NULL DEFAULT 0,
		processed_rows INT NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		completed_at TIMESTAMP
	);`
	if err := executeAndMarkMigration(db, query, "catalog.upload_sessions"); err != nil {
		return err
	}
	log.Println("Migration 'catalog.upload_sessions' completed successfully.")
	return nil
}

type CreateStagingRecordsTable struct{}

func (m *CreateStagingRecordsTable) UpMigration(db *sql.DB) error {
	if ok, err := checkAndSkipMigration(db, "catalog.staging_records"); err != nil {
		return err
	} else if ok {
		return nil
	}
	query := `
	CREATE TABLE IF NOT EXISTS catalog.staging_records (
		id SERIAL PRIMARY KEY,
		session_id VARCHAR(36) NOT NULL REFERENCES catalog.upload_sessions(id),
		line_number INT NOT NULL,
		raw_vendor_code VARCHAR(64) NOT NULL DEFAULT '',
		raw_part_number VARCHAR(128) NOT NULL DEFAULT '',
		raw_composite_key VARCHAR(128) NOT NULL DEFAULT '',
		raw_qty_total VARCHAR(32) NOT NULL DEFAULT '',
		vendor_code VARCHAR(16) NOT NULL DEFAULT '',
		part_number VARCHAR(64) NOT NULL DEFAULT '',
		composite_key VARCHAR(96) NOT NULL DEFAULT '',
		name VARCHAR(255) NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		category VARCHAR(128) NOT NULL DEFAULT '',
		quantity INT NOT NULL DEFAULT 0,
		qty_east INT NOT NULL DEFAULT 0,
		qty_central INT NOT NULL DEFAULT 0,
		qty_west INT NOT NULL DEFAULT 0,
		unit_price NUMERIC(12,2) NOT NULL DEFAULT 0,
		cost NUMERIC(12,2) NOT NULL DEFAULT 0,
		status VARCHAR(16) NOT NULL,
		action VARCHAR(8) NOT NULL DEFAULT 'unknown',
		corrected BOOLEAN NOT NULL DEFAULT FALSE,
		needs_review BOOLEAN NOT NULL DEFAULT FALSE,
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_staging_session_status ON catalog.staging_records (session_id, status);`
	if err := executeAndMarkMigration(db, query, "catalog.staging_records"); err != nil {
		return err
	}
	log.Println("Migration 'catalog.staging_records' completed successfully.")
	return nil
}

type CreatePendingUpdatesTable struct{}

func (m *CreatePendingUpdatesTable) UpMigration(db *sql.DB) error {
	if ok, err := checkAndSkipMigration(db, "catalog.pending_updates"); err != nil {
		return err
	} else if ok {
		return nil
	}
	query := `
	CREATE TABLE IF NOT EXISTS catalog.pending_updates (
		id SERIAL PRIMARY KEY,
		part_number VARCHAR(64) NOT NULL,
		requested_by VARCHAR(64) NOT NULL DEFAULT '',
		priority INT NOT NULL DEFAULT 0,
		status VARCHAR(16) NOT NULL,
		requested_at TIMESTAMP NOT NULL DEFAULT NOW(),
		processed_at TIMESTAMP,
		error_text TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_pending_updates_status ON catalog.pending_updates (status, priority DESC, requested_at ASC);`
	if err := executeAndMarkMigration(db, query, "catalog.pending_updates"); err != nil {
		return err
	}
	log.Println("Migration 'catalog.pending_updates' completed successfully.")
	return nil
}

type CreateSyncSchedulesTable struct{}

func (m *CreateSyncSchedulesTable) UpMigration(db *sql.DB) error {
	if ok, err := checkAndSkipMigration(db, "catalog.sync_schedules"); err != nil {
		return err
	} else if ok {
		return nil
	}
	query := `
	CREATE TABLE IF NOT EXISTS catalog.sync_schedules (
		sync_type VARCHAR(16) PRIMARY KEY,
		schedule VARCHAR(32) NOT NULL DEFAULT '',
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		last_run_at TIMESTAMP,
		next_run_at TIMESTAMP,
		retry_count INT NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS catalog.metadata (
		key_name VARCHAR(64) PRIMARY KEY,
		last_update TIMESTAMP NOT NULL
	);`
	if err := executeAndMarkMigration(db, query, "catalog.sync_schedules"); err != nil {
		return err
	}
	log.Println("Migration 'catalog.sync_schedules' completed successfully.")
	return nil
}

func checkAndSkipMigration(db *sql.DB, migrationName string) (bool, error) {
	var migrationExists bool
	err := db.QueryRow("SELECT EXISTS (SELECT 1 FROM migrations.migrations WHERE name = $1)", migrationName).Scan(&migrationExists)
	if err != nil {
		return migrationExists, fmt.Errorf("failed to check migration status: %w", err)
	}
	if migrationExists {
		log.Printf("Migration '%s' already completed. Skipping.\n", migrationName)
		return migrationExists, nil
	}
	return migrationExists, nil
}

func executeAndMarkMigration(db *sql.DB, query string, migrationName string) error {
	_, err := db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to execute migration '%s': %w", migrationName, err)
	}
	_, err = db.Exec("INSERT INTO migrations.migrations (name, time) VALUES ($1, current_timestamp)", migrationName)
	if err != nil {
		return fmt.Errorf("failed to mark migration '%s' as complete: %w", migrationName, err)
	}
	return nil
}
