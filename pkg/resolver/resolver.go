// Package resolver turns a candidate name into an Outcome. Every lookup is a
// single attempt and every failure collapses into an empty address list.
package resolver

import (
	"context"
	"fmt"
	"net"
	"time"

	"domain-hunter/pkg/config"
	"domain-hunter/pkg/logging"
)

// Lookuper performs one address lookup (A and AAAA) for host
type Lookuper interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Resolver wraps a Lookuper with timing and error normalization.
// It holds no per-lookup state and is safe for concurrent use.
type Resolver struct {
	lookuper Lookuper
	logger   *logging.Logger
	timeout  time.Duration
}

// New creates a resolver for the configured backend.
//
// Example:
//
//	r, err := resolver.New(&cfg.Resolver, logger)
//	outcome := r.Resolve(ctx, "www.example.com")
func New(cfg *config.ResolverConfig, logger *logging.Logger) (*Resolver, error) {
	if logger == nil {
		logger = logging.NewDiscard()
	}

	upstreams, err := normalizeUpstreams(cfg.Upstreams)
	if err != nil {
		return nil, err
	}

	var lookuper Lookuper
	switch cfg.Backend {
	case config.BackendSystem, "":
		lookuper = NewSystemLookuper(upstreams)
	case config.BackendDNS:
		if len(upstreams) == 0 {
			return nil, fmt.Errorf("resolver backend %q needs at least one upstream", cfg.Backend)
		}
		lookuper = NewExchangeLookuper(upstreams, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unknown resolver backend: %s", cfg.Backend)
	}

	if len(upstreams) == 0 {
		logger.Debug("No upstream DNS servers configured, using system default resolver")
	} else {
		logger.Debug("DNS resolver initialized",
			"backend", cfg.Backend,
			"upstreams", upstreams,
			"timeout", cfg.Timeout,
		)
	}

	return NewWithLookuper(lookuper, cfg.Timeout, logger), nil
}

// NewWithLookuper creates a resolver around an arbitrary Lookuper.
// A zero timeout leaves the deadline to the caller's context.
func NewWithLookuper(lookuper Lookuper, timeout time.Duration, logger *logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Resolver{
		lookuper: lookuper,
		logger:   logger,
		timeout:  timeout,
	}
}

// Resolve looks up candidate once. It never returns an error: expected
// negatives are dropped silently and anything else is logged.
func (r *Resolver) Resolve(ctx context.Context, candidate string) Outcome {
	lookupCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	addrs, err := r.lookuper.LookupHost(lookupCtx, candidate)
	elapsed := time.Since(start)

	outcome := Outcome{
		Candidate: candidate,
		Elapsed:   elapsed,
	}

	if len(addrs) > 0 {
		outcome.Addresses = addrs
		outcome.Status = StatusResolved
		return outcome
	}

	if err == nil {
		err = fmt.Errorf("%w: %s", ErrNotFound, candidate)
	}
	outcome.Err = err

	if IsExpected(err) {
		outcome.Status = StatusNoAnswer
		r.logger.Debug("Candidate did not resolve",
			"candidate", candidate,
			"error", err,
		)
		return outcome
	}

	outcome.Status = StatusError
	r.logger.Error("Error resolving",
		"candidate", candidate,
		"error", err,
	)
	return outcome
}

// normalizeUpstreams adds the default DNS port to upstreams without one
func normalizeUpstreams(upstreams []string) ([]string, error) {
	out := make([]string, 0, len(upstreams))
	for _, upstream := range upstreams {
		if upstream == "" {
			return nil, fmt.Errorf("empty upstream address")
		}
		if _, _, err := net.SplitHostPort(upstream); err != nil {
			upstream = net.JoinHostPort(upstream, "53")
		}
		out = append(out, upstream)
	}
	return out, nil
}
