package resolver

import "time"

// Status tags how a lookup ended
type Status int

const (
	// StatusResolved means at least one address was returned
	StatusResolved Status = iota
	// StatusNoAnswer covers the expected negatives: NXDOMAIN, timeouts, SERVFAIL
	StatusNoAnswer
	// StatusError covers everything else (malformed responses, transport failures)
	StatusError
)

// String returns the label used in logs and metrics
func (s Status) String() string {
	switch s {
	case StatusResolved:
		return "resolved"
	case StatusNoAnswer:
		return "no_answer"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Outcome is the result of a single resolution attempt. Addresses is empty
// whenever the lookup failed, whatever the cause.
type Outcome struct {
	Err       error
	Candidate string
	Addresses []string
	Elapsed   time.Duration
	Status    Status
}

// Resolved reports whether the candidate produced any address
func (o Outcome) Resolved() bool {
	return len(o.Addresses) > 0
}

// ElapsedSeconds returns the lookup duration in seconds
func (o Outcome) ElapsedSeconds() float64 {
	return o.Elapsed.Seconds()
}
