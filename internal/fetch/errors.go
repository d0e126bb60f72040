package fetch

import (
	"errors"
	"fmt"
	"time"
)

// NetworkError wraps a transport failure or an HTTP error status. Transient
// by default; the retry policy decides whether a given instance is retryable.
type NetworkError struct {
	URL string
	// Status is the HTTP status code, or 0 for transport-level failures.
	Status int
	// Offline marks failures raised without I/O because the network monitor
	// reports the client offline.
	Offline bool
	Err     error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Offline:
		return "network offline: " + e.URL
	case e.Status != 0:
		return fmt.Sprintf("http %d: %s", e.Status, e.URL)
	default:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsNetwork reports whether err is a NetworkError.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsOffline reports whether err failed fast because the client was offline.
func IsOffline(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne) && ne.Offline
}

// CircuitOpenError signals a fast-fail on an endpoint whose breaker is open.
// Not retryable until the cooldown elapses.
type CircuitOpenError struct {
	Endpoint   string
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit open for %s (retry in %s)", e.Endpoint, e.RetryAfter.Round(time.Millisecond))
}

// IsCircuitOpen reports whether err is a CircuitOpenError.
func IsCircuitOpen(err error) bool {
	var ce *CircuitOpenError
	return errors.As(err, &ce)
}
