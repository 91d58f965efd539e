package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/miekg/dns"
)

// ExchangeLookuper sends raw A and AAAA queries with miekg/dns. Each lookup
// talks to exactly one upstream, picked round-robin, and is never retried.
type ExchangeLookuper struct {
	upstreams []string
	index     atomic.Uint32
	timeout   time.Duration

	// Connection pool
	clientPool sync.Pool
}

// NewExchangeLookuper creates a lookuper querying upstreams over UDP
func NewExchangeLookuper(upstreams []string, timeout time.Duration) *ExchangeLookuper {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	l := &ExchangeLookuper{
		upstreams: upstreams,
		timeout:   timeout,
	}

	l.clientPool.New = func() any {
		return &dns.Client{
			Net:     "udp",
			Timeout: l.timeout,
		}
	}

	return l
}

// LookupHost asks for A, then AAAA records of host on a single upstream.
// Any failure of the A query (NXDOMAIN, SERVFAIL, timeout, malformed reply)
// ends the lookup without an AAAA query. An AAAA failure only surfaces when
// the A query found nothing.
func (l *ExchangeLookuper) LookupHost(ctx context.Context, host string) ([]string, error) {
	if len(l.upstreams) == 0 {
		return nil, fmt.Errorf("no upstream DNS servers configured")
	}

	upstream := l.selectUpstream()
	name := dns.Fqdn(host)

	v4, err := l.query(ctx, upstream, name, dns.TypeA)
	if err != nil {
		return nil, err
	}

	v6, err := l.query(ctx, upstream, name, dns.TypeAAAA)
	if err != nil && len(v4) == 0 {
		return nil, err
	}

	addrs := append(v4, v6...)
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: %s has no address records", ErrNotFound, host)
	}
	return addrs, nil
}

// query performs one exchange and extracts the records of qtype from the
// answer section, following whatever CNAME chain the upstream included.
func (l *ExchangeLookuper) query(ctx context.Context, upstream, name string, qtype uint16) ([]string, error) {
	m := new(dns.Msg)
	m.SetQuestion(name, qtype)
	m.RecursionDesired = true

	client := l.clientPool.Get().(*dns.Client)
	defer l.clientPool.Put(client)

	resp, _, err := client.ExchangeContext(ctx, m, upstream)
	if err != nil {
		return nil, classifyExchangeError(upstream, err)
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: received nil response from %s", ErrMalformed, upstream)
	}

	switch resp.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	default:
		return nil, fmt.Errorf("%w: upstream %s returned %s for %s",
			ErrServerFailure, upstream, dns.RcodeToString[resp.Rcode], name)
	}

	var addrs []string
	for _, rr := range resp.Answer {
		switch record := rr.(type) {
		case *dns.A:
			if qtype == dns.TypeA {
				addrs = append(addrs, record.A.String())
			}
		case *dns.AAAA:
			if qtype == dns.TypeAAAA {
				addrs = append(addrs, record.AAAA.String())
			}
		}
	}
	return addrs, nil
}

// classifyExchangeError wraps transport errors from the client
func classifyExchangeError(upstream string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %s: %v", ErrTimeout, upstream, err)
	}

	var wireErr *dns.Error
	if errors.As(err, &wireErr) {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, upstream, err)
	}

	return fmt.Errorf("exchange with %s failed: %w", upstream, err)
}

// selectUpstream selects the next upstream server using round-robin
func (l *ExchangeLookuper) selectUpstream() string {
	idx := (l.index.Add(1) - 1) % uint32(len(l.upstreams))
	return l.upstreams[idx]
}

// Upstreams returns the list of configured upstream servers
func (l *ExchangeLookuper) Upstreams() []string {
	return l.upstreams
}
