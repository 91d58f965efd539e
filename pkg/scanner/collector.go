package scanner

import (
	"sync"

	"domain-hunter/pkg/resolver"
)

// Collector is an append-only, mutex-guarded store of resolved outcomes
type Collector struct {
	results []resolver.Outcome
	mu      sync.Mutex
}

// NewCollector creates an empty collector
func NewCollector() *Collector {
	return &Collector{}
}

// Record appends outcome if it carries at least one address and reports
// whether it was kept. Safe for concurrent use.
func (c *Collector) Record(outcome resolver.Outcome) bool {
	if !outcome.Resolved() {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, outcome)
	return true
}

// Results returns a copy of the outcomes in the order they were recorded
func (c *Collector) Results() []resolver.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]resolver.Outcome, len(c.results))
	copy(out, c.results)
	return out
}

// Len returns the number of recorded outcomes
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}
