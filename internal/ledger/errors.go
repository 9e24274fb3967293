package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied is returned when a mutating call targets a record
	// owned by a different user.
	ErrPermissionDenied = errors.New("permission denied")
)

// ValidationError reports a caller mistake: a missing required field, a
// non-positive amount or an invalid enum value. Validation errors are never
// queued for retry.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Terminal reports whether err represents a caller mistake or a vanished
// record rather than a transient condition. Terminal failures are not
// retried by the queue processor.
func Terminal(err error) bool {
	return IsValidation(err) ||
		errors.Is(err, ErrPermissionDenied) ||
		errors.Is(err, ErrNotFound)
}
