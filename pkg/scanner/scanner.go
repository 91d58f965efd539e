// Package scanner is the concurrent resolution engine: it expands a wordlist
// into candidate names, resolves them in bounded groups and collects the
// names that answered.
package scanner

import (
	"context"
	"errors"
	"sync"
	"time"

	"domain-hunter/pkg/logging"
	"domain-hunter/pkg/progress"
	"domain-hunter/pkg/resolver"
)

// Resolver resolves one candidate. Implementations never fail: errors are
// folded into the outcome.
type Resolver interface {
	Resolve(ctx context.Context, candidate string) resolver.Outcome
}

// MetricsRecorder receives per-lookup measurements.
// This interface keeps the scanner independent from the telemetry package.
type MetricsRecorder interface {
	RecordOutcome(ctx context.Context, outcome resolver.Outcome)
	AddInFlight(ctx context.Context, delta int64)
	AddGroups(ctx context.Context, count int64)
}

// DisplayFactory builds the progress display once the total is known
type DisplayFactory func(total int64) progress.Display

// Report is what a scan hands to the output sinks
type Report struct {
	StartedAt   time.Time
	FinishedAt  time.Time
	Domain      string
	Results     []resolver.Outcome
	Total       int64
	Completed   int64
	Groups      int
	Interrupted bool
}

// Duration returns the wall-clock time of the scan
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Scanner wires the resolver, scheduler, collector and progress reporter
type Scanner struct {
	resolver    Resolver
	logger      *logging.Logger
	metrics     MetricsRecorder
	display     DisplayFactory
	onResult    func(resolver.Outcome)
	concurrency int
}

// Option configures a Scanner
type Option func(*Scanner)

// WithConcurrency sets the group size (default 50)
func WithConcurrency(n int) Option {
	return func(s *Scanner) { s.concurrency = n }
}

// WithLogger sets the logger
func WithLogger(logger *logging.Logger) Option {
	return func(s *Scanner) { s.logger = logger }
}

// WithMetrics sets the metrics recorder
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Scanner) { s.metrics = m }
}

// WithDisplay sets how progress is shown
func WithDisplay(f DisplayFactory) Option {
	return func(s *Scanner) { s.display = f }
}

// WithResultHandler registers a callback invoked for every resolved
// candidate as soon as it completes. It runs on the resolving goroutine.
func WithResultHandler(fn func(resolver.Outcome)) Option {
	return func(s *Scanner) { s.onResult = fn }
}

// New creates a scanner
func New(r Resolver, opts ...Option) (*Scanner, error) {
	s := &Scanner{
		resolver:    r,
		concurrency: 50,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.concurrency <= 0 {
		return nil, ErrInvalidConcurrency
	}
	if s.logger == nil {
		s.logger = logging.NewDiscard()
	}
	if s.metrics == nil {
		s.metrics = nopMetrics{}
	}
	if s.display == nil {
		s.display = func(int64) progress.Display { return progress.NopDisplay{} }
	}

	return s, nil
}

// Scan resolves every label under domain. An interrupted scan is not an
// error: the partial report comes back with Interrupted set.
func (s *Scanner) Scan(ctx context.Context, domain string, labels []string) (*Report, error) {
	candidates := GenerateCandidates(domain, labels)
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}

	scheduler, err := NewScheduler(s.concurrency, s.logger)
	if err != nil {
		return nil, err
	}

	total := int64(len(candidates))
	reporter := progress.New(total, s.display(total))
	collector := NewCollector()

	// Tasks abandoned on interrupt may still finish; they must not touch the
	// collector, the display or the callback once the scan has returned.
	// Tasks hold the read side while they publish; Scan takes the write
	// side to stop them before it builds the report.
	var (
		stopMu  sync.RWMutex
		stopped bool
	)

	task := func(ctx context.Context, candidate string) {
		s.metrics.AddInFlight(ctx, 1)
		outcome := s.resolver.Resolve(ctx, candidate)
		s.metrics.AddInFlight(ctx, -1)
		s.metrics.RecordOutcome(ctx, outcome)

		stopMu.RLock()
		defer stopMu.RUnlock()
		if stopped {
			return
		}
		if collector.Record(outcome) && s.onResult != nil {
			s.onResult(outcome)
		}
		reporter.Advance()
	}

	s.logger.Info("Scan started",
		"domain", NormalizeDomain(domain),
		"candidates", total,
		"concurrency", s.concurrency,
	)

	groups, runErr := scheduler.Run(ctx, candidates, task)
	stopMu.Lock()
	stopped = true
	stopMu.Unlock()
	s.metrics.AddGroups(ctx, int64(groups))

	if closeErr := reporter.Close(); closeErr != nil {
		s.logger.Warn("Failed to close progress display", "error", closeErr)
	}

	state := reporter.State()
	report := &Report{
		StartedAt:   state.StartedAt,
		FinishedAt:  time.Now(),
		Domain:      NormalizeDomain(domain),
		Results:     collector.Results(),
		Total:       state.Total,
		Completed:   state.Completed,
		Groups:      groups,
		Interrupted: runErr != nil,
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		return report, runErr
	}

	s.logger.Info("Scan finished",
		"domain", report.Domain,
		"resolved", len(report.Results),
		"completed", report.Completed,
		"total", report.Total,
		"groups", report.Groups,
		"interrupted", report.Interrupted,
		"duration", report.Duration(),
	)

	return report, nil
}

type nopMetrics struct{}

func (nopMetrics) RecordOutcome(context.Context, resolver.Outcome) {}
func (nopMetrics) AddInFlight(context.Context, int64)              {}
func (nopMetrics) AddGroups(context.Context, int64)                {}
