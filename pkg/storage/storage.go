package storage

import (
	"context"
	"time"
)

// Storage defines the interface for scan history backends.
// Implementations must be thread-safe.
type Storage interface {
	// Scans
	SaveScan(ctx context.Context, scan *ScanRecord, results []*ResultRecord) (int64, error)
	GetScan(ctx context.Context, id int64) (*ScanRecord, error)
	GetResults(ctx context.Context, scanID int64) ([]*ResultRecord, error)
	RecentScans(ctx context.Context, domain string, limit int) ([]*ScanRecord, error)

	// Maintenance
	Cleanup(ctx context.Context, olderThan time.Time) (int64, error)
	Close() error
	Ping(ctx context.Context) error
}

// ScanRecord summarizes one scan run
type ScanRecord struct {
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Domain      string    `json:"domain"`
	ID          int64     `json:"id"`
	Total       int64     `json:"total"`
	Completed   int64     `json:"completed"`
	Resolved    int64     `json:"resolved"`
	Groups      int       `json:"groups"`
	Concurrency int       `json:"concurrency"`
	Interrupted bool      `json:"interrupted"`
}

// ResultRecord is one resolved candidate of a scan. Position keeps the
// completion order the scanner reported.
type ResultRecord struct {
	Candidate string   `json:"candidate"`
	Addresses []string `json:"addresses"`
	ID        int64    `json:"id"`
	ScanID    int64    `json:"scan_id"`
	Position  int      `json:"position"`
	ElapsedMs float64  `json:"elapsed_ms"`
}

// Config represents storage configuration
type Config struct {
	Path        string `yaml:"path"`         // Database file path
	BusyTimeout int    `yaml:"busy_timeout"` // Busy timeout in milliseconds
	WALMode     bool   `yaml:"wal_mode"`     // Enable WAL mode
	Enabled     bool   `yaml:"enabled"`
}

// DefaultConfig returns a default storage configuration
func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		Path:        "./domain-hunter.db",
		BusyTimeout: 5000,
		WALMode:     true,
	}
}

// Validate validates the storage configuration
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Path == "" {
		return ErrInvalidConfig
	}

	if c.BusyTimeout < 0 {
		c.BusyTimeout = 5000
	}

	return nil
}
