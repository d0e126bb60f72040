package loader

import (
	"errors"
	"fmt"
)

// DecodeError marks a malformed or unsupported asset payload. Never
// retryable: the same bytes will fail the same way.
type DecodeError struct {
	URL    string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode %s: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("decode %s: %s", e.URL, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsDecode reports whether err is a DecodeError.
func IsDecode(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
