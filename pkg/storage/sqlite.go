// Package storage contains the scan history layer; this file provides
// the SQLite implementation.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db     *sql.DB
	cfg    *Config
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStorage creates a new SQLite storage backend
func NewSQLiteStorage(cfg *Config) (*SQLiteStorage, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	db.SetMaxOpenConns(1) // SQLite works best with single connection
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if pingErr := db.Ping(); pingErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, pingErr)
	}

	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout),
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
	}
	if cfg.WALMode {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}

	for _, pragma := range pragmas {
		if _, pragmaErr := db.Exec(pragma); pragmaErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", pragmaErr)
		}
	}

	if migrationErr := runMigrations(db); migrationErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", migrationErr)
	}

	return &SQLiteStorage{
		db:  db,
		cfg: cfg,
	}, nil
}

// SaveScan stores a scan summary and its results in one transaction and
// returns the new scan ID. Result positions default to slice order.
func (s *SQLiteStorage) SaveScan(ctx context.Context, scan *ScanRecord, results []*ResultRecord) (int64, error) {
	if scan == nil {
		return 0, fmt.Errorf("%w: nil scan", ErrQueryFailed)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO scans
		(domain, started_at, finished_at, total, completed, resolved, groups_run, concurrency, interrupted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		scan.Domain,
		formatSQLiteTime(scan.StartedAt),
		formatSQLiteTime(scan.FinishedAt),
		scan.Total,
		scan.Completed,
		scan.Resolved,
		scan.Groups,
		scan.Concurrency,
		scan.Interrupted,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}

	scanID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}

	if len(results) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO results (scan_id, position, candidate, addresses, elapsed_ms)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return 0, fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for i, r := range results {
			addrs, err := encodeAddresses(r.Addresses)
			if err != nil {
				return 0, fmt.Errorf("failed to encode addresses for %s: %w", r.Candidate, err)
			}

			position := r.Position
			if position == 0 {
				position = i + 1
			}

			if _, err := stmt.ExecContext(ctx, scanID, position, r.Candidate, addrs, r.ElapsedMs); err != nil {
				return 0, fmt.Errorf("%w: %v", ErrQueryFailed, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	scan.ID = scanID
	return scanID, nil
}

// GetScan returns a scan summary by ID
func (s *SQLiteStorage) GetScan(ctx context.Context, id int64) (*ScanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, domain, started_at, finished_at, total, completed, resolved, groups_run, concurrency, interrupted
		FROM scans
		WHERE id = ?
	`, id)

	scan, err := scanScanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}

	return scan, nil
}

// GetResults returns the results of a scan in completion order
func (s *SQLiteStorage) GetResults(ctx context.Context, scanID int64) ([]*ResultRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scan_id, position, candidate, addresses, elapsed_ms
		FROM results
		WHERE scan_id = ?
		ORDER BY position ASC
	`, scanID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]*ResultRecord, 0)
	for rows.Next() {
		var r ResultRecord
		var addrs string
		if err := rows.Scan(&r.ID, &r.ScanID, &r.Position, &r.Candidate, &addrs, &r.ElapsedMs); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
		}
		if r.Addresses, err = decodeAddresses(addrs); err != nil {
			return nil, fmt.Errorf("failed to decode addresses for %s: %w", r.Candidate, err)
		}
		results = append(results, &r)
	}

	return results, rows.Err()
}

// RecentScans returns the newest scans first. An empty domain matches all.
func (s *SQLiteStorage) RecentScans(ctx context.Context, domain string, limit int) ([]*ScanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, domain, started_at, finished_at, total, completed, resolved, groups_run, concurrency, interrupted
		FROM scans
		WHERE (? = '' OR domain = ?)
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, domain, domain, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	defer func() { _ = rows.Close() }()

	scans := make([]*ScanRecord, 0, limit)
	for rows.Next() {
		scan, err := scanScanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
		}
		scans = append(scans, scan)
	}

	return scans, rows.Err()
}

// Cleanup removes scans started before olderThan along with their results
// and returns how many scans were deleted.
func (s *SQLiteStorage) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("cleanup begin transaction failed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	cutoff := formatSQLiteTime(olderThan)

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM results
		WHERE scan_id IN (SELECT id FROM scans WHERE started_at < ?)
	`, cutoff); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM scans WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("cleanup commit failed: %w", err)
	}

	deleted, _ := res.RowsAffected()
	return deleted, nil
}

// Close closes the storage backend
func (s *SQLiteStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	return s.db.Close()
}

// Ping checks if the storage is reachable
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}

	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScanRecord(row rowScanner) (*ScanRecord, error) {
	var scan ScanRecord
	var startedAt, finishedAt string

	err := row.Scan(
		&scan.ID,
		&scan.Domain,
		&startedAt,
		&finishedAt,
		&scan.Total,
		&scan.Completed,
		&scan.Resolved,
		&scan.Groups,
		&scan.Concurrency,
		&scan.Interrupted,
	)
	if err != nil {
		return nil, err
	}

	scan.StartedAt = parseSQLiteTime(startedAt)
	scan.FinishedAt = parseSQLiteTime(finishedAt)
	return &scan, nil
}

func encodeAddresses(addrs []string) (string, error) {
	if addrs == nil {
		addrs = []string{}
	}
	data, err := json.Marshal(addrs)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeAddresses(raw string) ([]string, error) {
	if raw == "" {
		return []string{}, nil
	}
	var addrs []string
	if err := json.Unmarshal([]byte(raw), &addrs); err != nil {
		return nil, err
	}
	return addrs, nil
}
