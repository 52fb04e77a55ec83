package shared

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error. The wire adapter maps kinds to HTTP
// statuses and the CLI maps them to exit codes, so every error that crosses
// a boundary should carry one.
type Kind string

const (
	// KindValidation indicates malformed or rule-violating input
	KindValidation Kind = "VALIDATION"

	// KindDependency indicates a referenced record is missing (FK miss)
	KindDependency Kind = "DEPENDENCY"

	// KindConflict indicates a uniqueness or concurrent-write violation
	KindConflict Kind = "CONFLICT"

	// KindBusy indicates the task engine refused admission (pool saturated)
	KindBusy Kind = "BUSY"

	// KindNotFound indicates the requested entity does not exist
	KindNotFound Kind = "NOT_FOUND"

	// KindTimeout indicates a task exceeded its category wall-clock budget
	KindTimeout Kind = "TIMEOUT"

	// KindCancelled indicates a task honored a cancellation request
	KindCancelled Kind = "CANCELLED"

	// KindInterrupted indicates a task was found RUNNING after a restart
	KindInterrupted Kind = "INTERRUPTED"

	// KindNoData indicates a computation had no input rows to work with
	KindNoData Kind = "NO_DATA"

	// KindInternal indicates an unexpected failure
	KindInternal Kind = "INTERNAL"
)

// Error is the base type for all domain errors. It carries a Kind for
// boundary mapping, optional per-item details for the wire shape, and
// optionally wraps a cause.
type Error struct {
	Kind    Kind
	Message string
	Details []string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// NewError creates a domain error with the given kind
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Errorf creates a domain error with a formatted message
func Errorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates a domain error that wraps a cause
func WrapError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// KindOf extracts the kind carried by err. Errors without a domain kind
// report KindInternal.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// Common constructors

func NewValidationError(message string) *Error {
	return NewError(KindValidation, message)
}

// NewValidationDetails carries one message per violation alongside the
// summary, surfaced as the details list on the wire
func NewValidationDetails(message string, details []string) *Error {
	return &Error{Kind: KindValidation, Message: message, Details: details}
}

func NewNotFoundError(entity, key string) *Error {
	return Errorf(KindNotFound, "%s %s not found", entity, key)
}

func NewConflictError(message string) *Error {
	return NewError(KindConflict, message)
}

func NewBusyError(category string) *Error {
	return Errorf(KindBusy, "%s queue is full, please try again later", category)
}

func NewNoDataError(message string) *Error {
	return NewError(KindNoData, message)
}

// FieldError describes a single invalid field. Accumulated by validators
// rather than returned one at a time.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewFieldError(field, message string) *FieldError {
	return &FieldError{Field: field, Message: message}
}
