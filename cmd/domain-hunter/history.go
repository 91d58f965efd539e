package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"domain-hunter/pkg/config"
	"domain-hunter/pkg/logging"
	"domain-hunter/pkg/resolver"
	"domain-hunter/pkg/scanner"
	"domain-hunter/pkg/storage"
)

// historyTimeout bounds every scan history operation
const historyTimeout = 10 * time.Second

// scanRecords converts a report into its storage form. Result positions
// follow the completion order of the report.
func scanRecords(report *scanner.Report, concurrency int) (*storage.ScanRecord, []*storage.ResultRecord) {
	scan := &storage.ScanRecord{
		Domain:      report.Domain,
		StartedAt:   report.StartedAt,
		FinishedAt:  report.FinishedAt,
		Total:       report.Total,
		Completed:   report.Completed,
		Resolved:    int64(len(report.Results)),
		Groups:      report.Groups,
		Concurrency: concurrency,
		Interrupted: report.Interrupted,
	}

	results := make([]*storage.ResultRecord, 0, len(report.Results))
	for i, outcome := range report.Results {
		results = append(results, &storage.ResultRecord{
			Position:  i + 1,
			Candidate: outcome.Candidate,
			Addresses: outcome.Addresses,
			ElapsedMs: float64(outcome.Elapsed.Microseconds()) / 1000.0,
		})
	}

	return scan, results
}

// resultOutcomes turns stored results back into outcomes for the output
// writer
func resultOutcomes(results []*storage.ResultRecord) []resolver.Outcome {
	outcomes := make([]resolver.Outcome, 0, len(results))
	for _, r := range results {
		outcomes = append(outcomes, resolver.Outcome{
			Candidate: r.Candidate,
			Addresses: r.Addresses,
			Elapsed:   time.Duration(r.ElapsedMs * float64(time.Millisecond)),
			Status:    resolver.StatusResolved,
		})
	}
	return outcomes
}

// openHistory opens the scan history database and checks that it answers
func openHistory(ctx context.Context, cfg *config.StorageConfig) (storage.Storage, error) {
	stor, err := storage.New(&storage.Config{
		Enabled:     true,
		Path:        cfg.DatabasePath,
		BusyTimeout: cfg.BusyTimeout,
		WALMode:     cfg.WALMode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open scan history: %w", err)
	}

	if err := stor.Ping(ctx); err != nil {
		_ = stor.Close()
		return nil, fmt.Errorf("scan history unavailable: %w", err)
	}

	return stor, nil
}

// saveHistory stores the report in the configured database and prunes scans
// past the retention window. It runs on its own context so an interrupted
// scan is still recorded. A failed prune is logged and does not fail the
// save.
func saveHistory(cfg *config.StorageConfig, report *scanner.Report, concurrency int, logger *logging.Logger) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()

	stor, err := openHistory(ctx, cfg)
	if err != nil {
		return 0, err
	}
	defer func() { _ = stor.Close() }()

	scan, results := scanRecords(report, concurrency)
	id, err := stor.SaveScan(ctx, scan, results)
	if err != nil {
		return 0, fmt.Errorf("failed to save scan: %w", err)
	}

	if cfg.RetentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -cfg.RetentionDays)
		pruned, err := stor.Cleanup(ctx, cutoff)
		if err != nil {
			logger.Warn("Failed to prune scan history", "path", cfg.DatabasePath, "error", err)
		} else if pruned > 0 {
			logger.Info("Pruned scan history", "scans", pruned, "older_than", cutoff.Format(time.RFC3339))
		}
	}

	return id, nil
}

// runHistory serves --history and --show-scan: it reads the scan database
// and never starts a scan.
func runHistory(ctx context.Context, cfg *config.Config, opts *options, ui *console) int {
	if _, err := os.Stat(cfg.Storage.DatabasePath); err != nil {
		ui.fail(fmt.Sprintf("No scan history at %s", cfg.Storage.DatabasePath))
		return exitFailure
	}

	ctx, cancel := context.WithTimeout(ctx, historyTimeout)
	defer cancel()

	stor, err := openHistory(ctx, &cfg.Storage)
	if err != nil {
		ui.fail(err.Error())
		return exitFailure
	}
	defer func() { _ = stor.Close() }()

	if opts.showScan > 0 {
		return showScan(ctx, stor, opts.showScan, cfg.Scan.Quiet, ui)
	}

	scans, err := stor.RecentScans(ctx, scanner.NormalizeDomain(cfg.Scan.Domain), opts.history)
	if err != nil {
		ui.fail(fmt.Sprintf("Failed to list scans: %v", err))
		return exitFailure
	}
	if len(scans) == 0 {
		ui.info("No scans recorded.")
		return exitOK
	}

	ui.scans(scans)
	return exitOK
}

func showScan(ctx context.Context, stor storage.Storage, id int64, quiet bool, ui *console) int {
	scan, err := stor.GetScan(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		ui.fail(fmt.Sprintf("Scan %d not found", id))
		return exitFailure
	}
	if err != nil {
		ui.fail(fmt.Sprintf("Failed to load scan %d: %v", id, err))
		return exitFailure
	}

	results, err := stor.GetResults(ctx, id)
	if err != nil {
		ui.fail(fmt.Sprintf("Failed to load results of scan %d: %v", id, err))
		return exitFailure
	}

	if !quiet {
		ui.scans([]*storage.ScanRecord{scan})
	}
	if err := ui.results(resultOutcomes(results)); err != nil {
		return exitFailure
	}
	return exitOK
}
