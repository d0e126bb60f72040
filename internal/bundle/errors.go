package bundle

import (
	"errors"
	"fmt"

	"assetd/pkg/types"
)

// BundleLoadError aggregates the failure of a whole bundle load after the
// retry budget was exhausted on at least one constituent asset. Carries the
// partial progress achieved so the caller can degrade gracefully.
type BundleLoadError struct {
	BundleID string
	Progress types.LoadingProgress
	// Failures maps asset id to its terminal error.
	Failures map[string]error
}

func (e *BundleLoadError) Error() string {
	return fmt.Sprintf("bundle %s failed: %d/%d assets loaded, %d failed",
		e.BundleID, e.Progress.Loaded, e.Progress.Total, len(e.Failures))
}

// IsBundleLoad reports whether err is a BundleLoadError.
func IsBundleLoad(err error) bool {
	var be *BundleLoadError
	return errors.As(err, &be)
}

// suspendedError marks a load interrupted by the network going offline. The
// session stays resumable; already-cached assets are kept.
type suspendedError struct{ bundleID string }

func (e suspendedError) Error() string {
	return "bundle load suspended (offline): " + e.bundleID
}

// ErrSuspended constructs the resumable offline failure for a bundle.
func ErrSuspended(bundleID string) error { return suspendedError{bundleID: bundleID} }

// IsSuspended reports whether err indicates a resumable offline suspension.
func IsSuspended(err error) bool {
	var se suspendedError
	return errors.As(err, &se)
}

// sessionNotFoundError signals an unknown session id.
type sessionNotFoundError struct{ id string }

func (e sessionNotFoundError) Error() string { return "session not found: " + e.id }

// ErrSessionNotFound constructs a sessionNotFoundError.
func ErrSessionNotFound(id string) error { return sessionNotFoundError{id: id} }

// IsSessionNotFound reports whether err indicates a missing session id.
func IsSessionNotFound(err error) bool {
	var se sessionNotFoundError
	return errors.As(err, &se)
}
