package storage

import (
	"database/sql"
	"fmt"
	"sort"
)

// Migration represents a database schema migration
type Migration struct {
	SQL         string
	Description string
	Version     int
}

// migrations is the registry of all database migrations in order.
// Each migration must have a unique version number and is applied
// in ascending order inside its own transaction.
var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema with scans and results tables",
		SQL: `
			CREATE TABLE IF NOT EXISTS schema_version (
				version INTEGER PRIMARY KEY,
				applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);

			CREATE TABLE IF NOT EXISTS scans (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				domain TEXT NOT NULL,
				started_at TEXT NOT NULL,
				finished_at TEXT NOT NULL,
				total INTEGER NOT NULL,
				completed INTEGER NOT NULL,
				resolved INTEGER NOT NULL,
				groups_run INTEGER NOT NULL,
				concurrency INTEGER NOT NULL,
				interrupted BOOLEAN NOT NULL
			);

			CREATE TABLE IF NOT EXISTS results (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				scan_id INTEGER NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
				position INTEGER NOT NULL,
				candidate TEXT NOT NULL,
				addresses TEXT NOT NULL,
				elapsed_ms REAL NOT NULL
			);
		`,
	},
	{
		Version:     2,
		Description: "Add indexes for per-scan result listing and domain history",
		SQL: `
			-- Speeds up: SELECT ... FROM results WHERE scan_id = ? ORDER BY position
			CREATE INDEX IF NOT EXISTS idx_results_scan_position ON results(scan_id, position);

			-- Speeds up: SELECT ... FROM scans WHERE domain = ? ORDER BY started_at DESC
			CREATE INDEX IF NOT EXISTS idx_scans_domain_started ON scans(domain, started_at);

			CREATE INDEX IF NOT EXISTS idx_results_candidate ON results(candidate);
		`,
	},
}

// getMigrations returns all migrations sorted by version
func getMigrations() []Migration {
	result := make([]Migration, len(migrations))
	copy(result, migrations)

	sort.Slice(result, func(i, j int) bool {
		return result[i].Version < result[j].Version
	})

	return result
}

// getCurrentVersion returns the current schema version from the database.
// Returns 0 if the schema_version table doesn't exist (fresh database).
func getCurrentVersion(db *sql.DB) (int, error) {
	var tableExists bool
	err := db.QueryRow(`
		SELECT 1 FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableExists)

	if err == sql.ErrNoRows {
		return 0, nil
	} else if err != nil {
		return 0, fmt.Errorf("failed to check schema_version table: %w", err)
	}

	var version int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to query schema version: %w", err)
	}

	return version, nil
}

// applyMigration applies a single migration within a transaction
func applyMigration(db *sql.DB, migration Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.Exec(migration.SQL); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO schema_version (version, applied_at)
		VALUES (?, CURRENT_TIMESTAMP)
	`, migration.Version)
	if err != nil {
		return fmt.Errorf("failed to record migration version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	return nil
}

// runMigrations applies all pending migrations in order. A failure leaves
// the database at the last successfully applied version.
func runMigrations(db *sql.DB) error {
	currentVersion, err := getCurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	for _, migration := range getMigrations() {
		if migration.Version <= currentVersion {
			continue
		}
		if err := applyMigration(db, migration); err != nil {
			return fmt.Errorf(
				"failed to apply migration v%d (%s): %w",
				migration.Version,
				migration.Description,
				err,
			)
		}
	}

	return nil
}
