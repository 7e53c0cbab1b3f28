package election

import "errors"

// Sentinel kinds for the caller-recoverable error taxonomy. Handlers map each
// kind to an HTTP status; errors.Is works through the wrapping Error type.
var (
	ErrValidation = errors.New("validation failed")
	ErrState      = errors.New("state does not permit the action")
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")
)

// Error carries a machine-readable code and a human-readable reason alongside
// its kind.
type Error struct {
	kind   error
	Code   string
	Reason string
}

func (e *Error) Error() string { return e.Code + ": " + e.Reason }

func (e *Error) Unwrap() error { return e.kind }

// Invalid builds a ValidationError.
func Invalid(code, reason string) error {
	return &Error{kind: ErrValidation, Code: code, Reason: reason}
}

// StateFailure builds a StateError.
func StateFailure(code, reason string) error {
	return &Error{kind: ErrState, Code: code, Reason: reason}
}

// Conflict builds a ConflictError.
func Conflict(code, reason string) error {
	return &Error{kind: ErrConflict, Code: code, Reason: reason}
}

// Missing builds a NotFoundError.
func Missing(code, reason string) error {
	return &Error{kind: ErrNotFound, Code: code, Reason: reason}
}

// CodeOf extracts the machine-readable code, or "" for errors outside the
// taxonomy.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// ReasonOf extracts the human-readable reason, or "" for errors outside the
// taxonomy.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}
