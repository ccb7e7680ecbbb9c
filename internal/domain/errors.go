package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for domain operations
var (
	// ErrNotFound indicates the requested entity does not exist locally
	ErrNotFound = errors.New("entity not found")

	// ErrRemoteUnavailable indicates the backend is unreachable or timed out
	ErrRemoteUnavailable = errors.New("backend is unreachable")

	// ErrAuthFailed indicates the session token is missing or invalid
	ErrAuthFailed = errors.New("authentication token is invalid")
)

// ValidationError reports caller-supplied entity data that fails required
// field or length constraints. Raised before any durable or remote side
// effect.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

// RemoteRejectedError means the backend was reached but refused the
// operation (auth, constraint, quota). Not retried; optimistic local state
// is rolled back.
type RemoteRejectedError struct {
	StatusCode int
	Reason     string
}

func (e *RemoteRejectedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("backend rejected operation (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("backend rejected operation (status %d): %s", e.StatusCode, e.Reason)
}

// PersistenceError means a durable local storage read or write failed. The
// triggering operation must be treated as not-yet-durable.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("local storage %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsRetryable reports whether err should be retried by queuing (connectivity
// failures), as opposed to surfaced immediately (validation, rejection).
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRemoteUnavailable)
}
