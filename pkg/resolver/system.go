package resolver

import (
	"context"
	"net"
	"sync/atomic"
	"time"
)

// SystemLookuper resolves names with Go's net.Resolver. With upstreams set,
// each lookup is pinned to one upstream picked round-robin; without them the
// host's resolver configuration is used.
type SystemLookuper struct {
	resolvers []*net.Resolver
	upstreams []string
	index     atomic.Uint32
}

// NewSystemLookuper creates a lookuper that sends queries to upstreams, or
// to the system resolver when upstreams is empty
func NewSystemLookuper(upstreams []string) *SystemLookuper {
	l := &SystemLookuper{upstreams: upstreams}

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	for _, upstream := range upstreams {
		l.resolvers = append(l.resolvers, &net.Resolver{
			PreferGo: true,
			Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
				return dialer.DialContext(ctx, network, upstream)
			},
		})
	}

	return l
}

// LookupHost queries the "ip" network so both A and AAAA records come back
func (l *SystemLookuper) LookupHost(ctx context.Context, host string) ([]string, error) {
	ips, err := l.selectResolver().LookupIP(ctx, "ip", host)
	if err != nil {
		return nil, normalizeNetError(err)
	}

	addrs := make([]string, 0, len(ips))
	for _, ip := range ips {
		addrs = append(addrs, ip.String())
	}
	return addrs, nil
}

// Upstreams returns the configured upstream DNS servers
func (l *SystemLookuper) Upstreams() []string {
	return l.upstreams
}

// selectResolver selects the next upstream resolver using round-robin
func (l *SystemLookuper) selectResolver() *net.Resolver {
	if len(l.resolvers) == 0 {
		return net.DefaultResolver
	}
	idx := (l.index.Add(1) - 1) % uint32(len(l.resolvers))
	return l.resolvers[idx]
}
