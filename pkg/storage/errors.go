package storage

import "errors"

var (
	// ErrNotFound is returned when a scan is not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConnectionFailed is returned when connection to storage fails
	ErrConnectionFailed = errors.New("connection failed")

	// ErrQueryFailed is returned when a query fails
	ErrQueryFailed = errors.New("query failed")

	// ErrClosed is returned when attempting to use a closed storage
	ErrClosed = errors.New("storage is closed")
)
