package scanner

import "errors"

var (
	// ErrNoCandidates is returned when the wordlist produced nothing to resolve
	ErrNoCandidates = errors.New("no candidates to resolve")

	// ErrInvalidConcurrency is returned for a batch size below one
	ErrInvalidConcurrency = errors.New("concurrency must be a positive integer")
)
