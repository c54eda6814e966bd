package remote

import (
	"errors"
	"fmt"
)

// TransientError is a failure worth retrying: a network blip, a 5xx, or a
// rate-limit/backoff signal from the remote.
type TransientError struct {
	StatusCode  int
	RateLimited bool
	Message     string
	Err         error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient remote error (status %d): %s", e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("transient remote error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("transient remote error: %s", e.Message)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError is a failure that retrying cannot fix: resource not found,
// malformed payload, rejected credentials.
type PermanentError struct {
	StatusCode int
	NotFound   bool
	Message    string
	Err        error
}

func (e *PermanentError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("permanent remote error (status %d): %s", e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("permanent remote error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("permanent remote error: %s", e.Message)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsRateLimited reports whether err carries the remote's rate-limit signal.
func IsRateLimited(err error) bool {
	var te *TransientError
	return errors.As(err, &te) && te.RateLimited
}

// IsNotFound reports whether err is a permanent resource-not-found failure.
func IsNotFound(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe) && pe.NotFound
}
