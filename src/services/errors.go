package services

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for explicit error handling
// These errors allow callers to distinguish between different failure modes
// using errors.Is() instead of string matching

var (
	// ErrExhausted indicates no active key has remaining quota
	ErrExhausted = errors.New("all api keys exhausted")

	// ErrKeyNotFound indicates the requested key does not exist in the pool
	ErrKeyNotFound = errors.New("key not found")

	// ErrQuotaAlreadyExhausted indicates usage was confirmed for a key already at its limit
	ErrQuotaAlreadyExhausted = errors.New("key quota already exhausted")

	// ErrStoreUnavailable indicates the state store could not be read or written
	ErrStoreUnavailable = errors.New("state store unavailable")

	// ErrInvalidRequest indicates a malformed request rejected at the transport boundary
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidCredentials indicates authentication failed
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ExhaustedError carries the retry hint for an exhausted pool
type ExhaustedError struct {
	RetryAfter time.Time
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s, retry after %s", ErrExhausted, e.RetryAfter.Format(time.RFC3339))
}

func (e *ExhaustedError) Unwrap() error {
	return ErrExhausted
}

// nextMidnightUTC returns the start of the next UTC calendar day
func nextMidnightUTC(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
}
