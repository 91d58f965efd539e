package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	// ErrNotFound is returned when the name does not exist or has no address records
	ErrNotFound = errors.New("no such host")

	// ErrTimeout is returned when the lookup did not complete in time
	ErrTimeout = errors.New("lookup timed out")

	// ErrServerFailure is returned when the upstream answered with SERVFAIL, REFUSED
	// or another DNS-level error code
	ErrServerFailure = errors.New("server failure")

	// ErrMalformed is returned when a response could not be parsed
	ErrMalformed = errors.New("malformed response")
)

// IsExpected reports whether err belongs to the expected-negative class:
// the name simply does not resolve and nothing needs to be reported.
func IsExpected(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrServerFailure) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// normalizeNetError maps the errors produced by net.Resolver onto the package
// sentinels. Errors that fit no class are returned unchanged.
func normalizeNetError(err error) error {
	if err == nil {
		return nil
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		switch {
		case dnsErr.IsNotFound:
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case dnsErr.IsTimeout:
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		case strings.Contains(dnsErr.Err, "cannot unmarshal"):
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		case strings.Contains(dnsErr.Err, "server misbehaving"), dnsErr.IsTemporary:
			return fmt.Errorf("%w: %v", ErrServerFailure, err)
		}
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	return err
}
