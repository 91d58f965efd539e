package scanner

import (
	"context"

	"domain-hunter/pkg/logging"

	"golang.org/x/sync/errgroup"
)

// Task handles a single candidate. It must not panic and has no error
// return: per-candidate failures stay inside the task.
type Task func(ctx context.Context, candidate string)

// Scheduler runs candidates in consecutive groups of at most concurrency
// names. Every task of a group finishes before the next group starts, so no
// more than concurrency tasks are ever in flight.
type Scheduler struct {
	logger      *logging.Logger
	concurrency int
}

// NewScheduler creates a scheduler with the given group size
func NewScheduler(concurrency int, logger *logging.Logger) (*Scheduler, error) {
	if concurrency <= 0 {
		return nil, ErrInvalidConcurrency
	}
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Scheduler{
		logger:      logger,
		concurrency: concurrency,
	}, nil
}

// Concurrency returns the group size
func (s *Scheduler) Concurrency() int {
	return s.concurrency
}

// Run starts one task per candidate, group by group, and returns the number
// of groups it launched. When ctx is cancelled no further group is started,
// the wait on the current group is abandoned and ctx.Err() is returned.
func (s *Scheduler) Run(ctx context.Context, candidates []string, task Task) (int, error) {
	groups := 0

	for idx, group := range Partition(candidates, s.concurrency) {
		if err := ctx.Err(); err != nil {
			return groups, err
		}
		groups++

		s.logger.Debug("Starting group",
			"group", idx+1,
			"size", len(group),
		)

		var g errgroup.Group
		for _, candidate := range group {
			g.Go(func() error {
				task(ctx, candidate)
				return nil
			})
		}

		done := make(chan struct{})
		go func() {
			_ = g.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			s.logger.Debug("Abandoning in-flight group", "group", idx+1)
			return groups, ctx.Err()
		}
	}

	return groups, nil
}

// Partition splits candidates into consecutive groups of at most n entries.
// The last group may be smaller. Empty input yields no groups.
func Partition(candidates []string, n int) [][]string {
	if n <= 0 || len(candidates) == 0 {
		return nil
	}

	groups := make([][]string, 0, (len(candidates)+n-1)/n)
	for start := 0; start < len(candidates); start += n {
		end := min(start+n, len(candidates))
		groups = append(groups, candidates[start:end])
	}
	return groups
}
