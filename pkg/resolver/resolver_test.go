package resolver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"testing"
	"time"

	"domain-hunter/pkg/config"
	"domain-hunter/pkg/logging"
	"domain-hunter/pkg/resolver/resolvertest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getTestLogger() *logging.Logger {
	return logging.NewDiscard()
}

// stubLookuper returns canned answers without touching the network
type stubLookuper struct {
	addrs []string
	err   error
	delay time.Duration
}

func (s *stubLookuper) LookupHost(ctx context.Context, host string) ([]string, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.addrs, s.err
}

func TestNew(t *testing.T) {
	logger := getTestLogger()

	tests := []struct {
		name    string
		cfg     config.ResolverConfig
		wantErr bool
	}{
		{
			name: "system without upstreams",
			cfg:  config.ResolverConfig{Backend: config.BackendSystem},
		},
		{
			name: "system with upstreams",
			cfg:  config.ResolverConfig{Backend: config.BackendSystem, Upstreams: []string{"1.1.1.1:53"}},
		},
		{
			name: "dns with upstreams",
			cfg:  config.ResolverConfig{Backend: config.BackendDNS, Upstreams: []string{"1.1.1.1", "8.8.8.8:53"}},
		},
		{
			name:    "dns without upstreams",
			cfg:     config.ResolverConfig{Backend: config.BackendDNS},
			wantErr: true,
		},
		{
			name:    "unknown backend",
			cfg:     config.ResolverConfig{Backend: "doh"},
			wantErr: true,
		},
		{
			name:    "empty upstream entry",
			cfg:     config.ResolverConfig{Backend: config.BackendDNS, Upstreams: []string{""}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(&tt.cfg, logger)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, r)
		})
	}
}

func TestNormalizeUpstreams(t *testing.T) {
	got, err := normalizeUpstreams([]string{"1.1.1.1", "8.8.8.8:5353", "::1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1.1.1.1:53", "8.8.8.8:5353", "[::1]:53"}, got)
}

func TestResolve_Success(t *testing.T) {
	r := NewWithLookuper(&stubLookuper{addrs: []string{"192.0.2.1", "2001:db8::1"}}, time.Second, getTestLogger())

	out := r.Resolve(context.Background(), "www.example.com")

	assert.Equal(t, "www.example.com", out.Candidate)
	assert.Equal(t, []string{"192.0.2.1", "2001:db8::1"}, out.Addresses)
	assert.True(t, out.Resolved())
	assert.Equal(t, StatusResolved, out.Status)
	assert.NoError(t, out.Err)
	assert.GreaterOrEqual(t, out.ElapsedSeconds(), 0.0)
}

func TestResolve_ElapsedCoversLookup(t *testing.T) {
	r := NewWithLookuper(&stubLookuper{addrs: []string{"192.0.2.1"}, delay: 30 * time.Millisecond}, time.Second, getTestLogger())

	out := r.Resolve(context.Background(), "slow.example.com")

	assert.GreaterOrEqual(t, out.Elapsed, 30*time.Millisecond)
}

func TestResolve_ExpectedNegativesAreSilent(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"not found", fmt.Errorf("%w: x", ErrNotFound)},
		{"timeout", fmt.Errorf("%w: x", ErrTimeout)},
		{"servfail", fmt.Errorf("%w: x", ErrServerFailure)},
		{"canceled", context.Canceled},
		{"no error, no addresses", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := logging.NewWithWriter(&buf, &config.LoggingConfig{Level: "error"})
			r := NewWithLookuper(&stubLookuper{err: tt.err}, time.Second, logger)

			out := r.Resolve(context.Background(), "nope.example.com")

			assert.False(t, out.Resolved())
			assert.Empty(t, out.Addresses)
			assert.Equal(t, StatusNoAnswer, out.Status)
			assert.Error(t, out.Err)
			assert.Empty(t, buf.String(), "expected negatives must not be logged as errors")
		})
	}
}

func TestResolve_UnexpectedErrorIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, &config.LoggingConfig{Level: "error"})
	r := NewWithLookuper(&stubLookuper{err: errors.New("connection reset by peer")}, time.Second, logger)

	out := r.Resolve(context.Background(), "broken.example.com")

	assert.False(t, out.Resolved())
	assert.Equal(t, StatusError, out.Status)
	assert.Contains(t, buf.String(), "broken.example.com")
	assert.Contains(t, buf.String(), "connection reset by peer")
}

func TestResolve_TimeoutBoundsLookup(t *testing.T) {
	r := NewWithLookuper(&stubLookuper{addrs: []string{"192.0.2.1"}, delay: 5 * time.Second}, 20*time.Millisecond, getTestLogger())

	start := time.Now()
	out := r.Resolve(context.Background(), "hang.example.com")

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.False(t, out.Resolved())
	assert.Equal(t, StatusNoAnswer, out.Status)
}

func TestIsExpected(t *testing.T) {
	assert.True(t, IsExpected(fmt.Errorf("wrap: %w", ErrNotFound)))
	assert.True(t, IsExpected(context.DeadlineExceeded))
	assert.False(t, IsExpected(fmt.Errorf("%w: bad", ErrMalformed)))
	assert.False(t, IsExpected(errors.New("other")))
}

func TestNormalizeNetError(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"not found", &net.DNSError{Err: "no such host", Name: "x", IsNotFound: true}, ErrNotFound},
		{"timeout", &net.DNSError{Err: "i/o timeout", Name: "x", IsTimeout: true}, ErrTimeout},
		{"servfail", &net.DNSError{Err: "server misbehaving", Name: "x", IsTemporary: true}, ErrServerFailure},
		{"malformed", &net.DNSError{Err: "cannot unmarshal DNS message", Name: "x"}, ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, normalizeNetError(tt.in), tt.want)
		})
	}

	other := errors.New("weird")
	assert.Equal(t, other, normalizeNetError(other))
	assert.NoError(t, normalizeNetError(nil))
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "resolved", StatusResolved.String())
	assert.Equal(t, "no_answer", StatusNoAnswer.String())
	assert.Equal(t, "error", StatusError.String())
	assert.Equal(t, "unknown", Status(42).String())
}

// Backend tests below run against an in-process DNS server.

func backends(addr string) map[string]config.ResolverConfig {
	return map[string]config.ResolverConfig{
		config.BackendSystem: {Backend: config.BackendSystem, Upstreams: []string{addr}, Timeout: 2 * time.Second},
		config.BackendDNS:    {Backend: config.BackendDNS, Upstreams: []string{addr}, Timeout: 2 * time.Second},
	}
}

func TestBackends_ResolveAgainstServer(t *testing.T) {
	srv := resolvertest.NewServer(t, map[string][]string{
		"www.example.com":  {"192.0.2.10", "2001:db8::10"},
		"mail.example.com": {"192.0.2.25"},
	})

	for name, cfg := range backends(srv.Addr()) {
		t.Run(name, func(t *testing.T) {
			r, err := New(&cfg, getTestLogger())
			require.NoError(t, err)
			ctx := context.Background()

			www := r.Resolve(ctx, "www.example.com")
			require.True(t, www.Resolved(), "www: %v", www.Err)
			got := append([]string(nil), www.Addresses...)
			sort.Strings(got)
			assert.Equal(t, []string{"192.0.2.10", "2001:db8::10"}, got)

			mail := r.Resolve(ctx, "mail.example.com")
			require.True(t, mail.Resolved(), "mail: %v", mail.Err)
			assert.Equal(t, []string{"192.0.2.25"}, mail.Addresses)

			missing := r.Resolve(ctx, "doesnotexist123.example.com")
			assert.False(t, missing.Resolved())
			assert.Equal(t, StatusNoAnswer, missing.Status)
			assert.ErrorIs(t, missing.Err, ErrNotFound)
		})
	}
}

func TestExchangeLookuper_ServFail(t *testing.T) {
	srv := resolvertest.NewServer(t, map[string][]string{"flaky.example.com": {"192.0.2.1"}})
	srv.SetBehavior("flaky.example.com", resolvertest.ServFail)

	l := NewExchangeLookuper([]string{srv.Addr()}, time.Second)
	_, err := l.LookupHost(context.Background(), "flaky.example.com")

	assert.ErrorIs(t, err, ErrServerFailure)
	assert.True(t, IsExpected(err))
	assert.Equal(t, int64(1), srv.Queries(), "SERVFAIL on A must not be followed by AAAA")
}

func TestExchangeLookuper_Timeout(t *testing.T) {
	srv := resolvertest.NewServer(t, nil)
	srv.SetBehavior("silent.example.com", resolvertest.Drop)

	l := NewExchangeLookuper([]string{srv.Addr()}, 100*time.Millisecond)
	_, err := l.LookupHost(context.Background(), "silent.example.com")

	require.Error(t, err)
	assert.True(t, IsExpected(err), "timeout should be an expected negative, got %v", err)
	assert.Equal(t, int64(1), srv.Queries(), "timed-out A must not be followed by AAAA")
}

func TestExchangeLookuper_NXDOMAINSkipsAAAA(t *testing.T) {
	srv := resolvertest.NewServer(t, nil)

	l := NewExchangeLookuper([]string{srv.Addr()}, time.Second)
	_, err := l.LookupHost(context.Background(), "missing.example.com")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int64(1), srv.Queries(), "single attempt, no AAAA after NXDOMAIN")
}

func TestExchangeLookuper_NoRetry(t *testing.T) {
	srv := resolvertest.NewServer(t, map[string][]string{"v4only.example.com": {"192.0.2.7"}})

	l := NewExchangeLookuper([]string{srv.Addr()}, time.Second)
	addrs, err := l.LookupHost(context.Background(), "v4only.example.com")

	require.NoError(t, err)
	assert.Equal(t, []string{"192.0.2.7"}, addrs)
	assert.Equal(t, int64(2), srv.Queries(), "exactly one A and one AAAA query")
}

func TestExchangeLookuper_Malformed(t *testing.T) {
	srv := resolvertest.NewServer(t, nil)
	srv.SetBehavior("garbage.example.com", resolvertest.Garbage)

	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, &config.LoggingConfig{Level: "error"})
	r := NewWithLookuper(NewExchangeLookuper([]string{srv.Addr()}, 300*time.Millisecond), 300*time.Millisecond, logger)

	out := r.Resolve(context.Background(), "garbage.example.com")

	assert.False(t, out.Resolved())
	assert.Empty(t, out.Addresses)
	if out.Status == StatusError {
		assert.True(t, strings.Contains(buf.String(), "garbage.example.com"))
	}
}

func TestExchangeLookuper_RoundRobin(t *testing.T) {
	records := map[string][]string{"www.example.com": {"192.0.2.1"}}
	srv1 := resolvertest.NewServer(t, records)
	srv2 := resolvertest.NewServer(t, records)

	l := NewExchangeLookuper([]string{srv1.Addr(), srv2.Addr()}, time.Second)
	assert.Equal(t, []string{srv1.Addr(), srv2.Addr()}, l.Upstreams())

	for i := 0; i < 4; i++ {
		addrs, err := l.LookupHost(context.Background(), "www.example.com")
		require.NoError(t, err)
		assert.Equal(t, []string{"192.0.2.1"}, addrs)
	}

	assert.Equal(t, int64(4), srv1.Queries())
	assert.Equal(t, int64(4), srv2.Queries())
}

func TestSystemLookuper_Upstreams(t *testing.T) {
	l := NewSystemLookuper([]string{"1.1.1.1:53", "8.8.8.8:53"})
	assert.Equal(t, []string{"1.1.1.1:53", "8.8.8.8:53"}, l.Upstreams())

	empty := NewSystemLookuper(nil)
	assert.Same(t, net.DefaultResolver, empty.selectResolver())
}
