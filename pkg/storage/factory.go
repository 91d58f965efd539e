package storage

import (
	"context"
	"fmt"
	"time"
)

// New creates a new storage instance based on the configuration.
// A disabled configuration yields a no-op storage.
func New(cfg *Config) (Storage, error) {
	if cfg == nil {
		cfg = &Config{}
		*cfg = DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if !cfg.Enabled {
		return NewNoOpStorage(), nil
	}

	sqlite, err := NewSQLiteStorage(cfg)
	if err != nil {
		return nil, err
	}
	return sqlite, nil
}

// NoOpStorage is a no-op storage that does nothing
// Used when scan history is disabled
type NoOpStorage struct{}

// NewNoOpStorage creates a new no-op storage
func NewNoOpStorage() *NoOpStorage {
	return &NoOpStorage{}
}

// SaveScan does nothing
func (n *NoOpStorage) SaveScan(ctx context.Context, scan *ScanRecord, results []*ResultRecord) (int64, error) {
	return 0, nil
}

// GetScan always reports ErrNotFound
func (n *NoOpStorage) GetScan(ctx context.Context, id int64) (*ScanRecord, error) {
	return nil, ErrNotFound
}

// GetResults returns an empty slice
func (n *NoOpStorage) GetResults(ctx context.Context, scanID int64) ([]*ResultRecord, error) {
	return []*ResultRecord{}, nil
}

// RecentScans returns an empty slice
func (n *NoOpStorage) RecentScans(ctx context.Context, domain string, limit int) ([]*ScanRecord, error) {
	return []*ScanRecord{}, nil
}

// Cleanup does nothing
func (n *NoOpStorage) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	return 0, nil
}

// Close does nothing
func (n *NoOpStorage) Close() error {
	return nil
}

// Ping does nothing
func (n *NoOpStorage) Ping(ctx context.Context) error {
	return nil
}
