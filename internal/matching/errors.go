package matching

import (
	"errors"
	"fmt"
)

// Kind classifies engine failures
type Kind string

// Error kinds
const (
	KindNotFound            Kind = "not_found"
	KindInvalidTransition   Kind = "invalid_transition"
	KindValidation          Kind = "validation_error"
	KindPersistenceConflict Kind = "persistence_conflict"
)

// ErrConflict is returned by a Store when concurrent writers collided and the unit of work can be retried.
var ErrConflict = errors.New("concurrent write conflict")

// ErrNotFound is returned by a Store when a referenced row does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned by a Store when a unique constraint rejected the write.
var ErrDuplicate = errors.New("duplicate record")

// Error is the typed result every engine operation fails with
type Error struct {
	Kind    Kind
	Message string
	// CurrentStatus is set for InvalidTransition so callers can explain the conflict
	CurrentStatus string
	Err           error
}

func (e *Error) Error() string {
	if e.CurrentStatus != "" {
		return fmt.Sprintf("%s (current status: %s)", e.Message, e.CurrentStatus)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func notFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func invalidTransition(current string, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidTransition, Message: fmt.Sprintf(format, args...), CurrentStatus: current}
}

func validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func persistenceConflict(attempts int, err error) *Error {
	return &Error{
		Kind:    KindPersistenceConflict,
		Message: fmt.Sprintf("gave up after %d attempts because of concurrent updates, please retry", attempts),
		Err:     err,
	}
}

// KindOf returns the kind of err, or "" when err is not an engine error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err is an engine error of the given kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
