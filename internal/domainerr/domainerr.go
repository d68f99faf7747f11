// Package domainerr defines the error taxonomy shared by the workflow engine,
// the cricket engine and the persistence layer.
//
// Every domain failure is an *Error carrying a Kind and a machine-readable
// Code. Callers match on the kind with errors.Is against the package
// sentinels, or on a specific failure with errors.Is against a coded error.
package domainerr

import (
	"errors"
	"fmt"
)

// Kind classifies a domain failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindPrecondition means the input violates a business rule; nothing was mutated.
	KindPrecondition
	// KindStateConflict means the entity is not in a state that allows the transition.
	KindStateConflict
	// KindForbidden means the actor is not entitled to perform the operation.
	KindForbidden
	// KindNotFound means a referenced entity does not exist.
	KindNotFound
	// KindSequenceExhausted means a yearly identifier space has no codes left.
	KindSequenceExhausted
)

func (k Kind) String() string {
	switch k {
	case KindPrecondition:
		return "precondition_violation"
	case KindStateConflict:
		return "state_conflict"
	case KindForbidden:
		return "authorization_failure"
	case KindNotFound:
		return "not_found"
	case KindSequenceExhausted:
		return "sequence_exhausted"
	default:
		return "unknown"
	}
}

// Error is a classified domain error.
type Error struct {
	Kind     Kind
	Code     string
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target has the same kind and, when target carries a
// code, the same code. Kind sentinels have no code and match every error of
// their kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// With returns a copy of e with the metadata key set.
func (e *Error) With(key, value string) *Error {
	cp := *e
	cp.Metadata = make(map[string]string, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		cp.Metadata[k] = v
	}
	cp.Metadata[key] = value
	return &cp
}

// Kind sentinels.
var (
	ErrPrecondition      = &Error{Kind: KindPrecondition, Message: "precondition violation"}
	ErrStateConflict     = &Error{Kind: KindStateConflict, Message: "state conflict"}
	ErrForbidden         = &Error{Kind: KindForbidden, Message: "not authorized"}
	ErrNotFound          = &Error{Kind: KindNotFound, Message: "not found"}
	ErrSequenceExhausted = &Error{Kind: KindSequenceExhausted, Message: "sequence exhausted"}
)

func newf(kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Precondition returns a KindPrecondition error.
func Precondition(code, format string, args ...any) *Error {
	return newf(KindPrecondition, code, format, args...)
}

// Conflict returns a KindStateConflict error.
func Conflict(code, format string, args ...any) *Error {
	return newf(KindStateConflict, code, format, args...)
}

// Forbidden returns a KindForbidden error.
func Forbidden(code, format string, args ...any) *Error {
	return newf(KindForbidden, code, format, args...)
}

// NotFound returns a KindNotFound error.
func NotFound(code, format string, args ...any) *Error {
	return newf(KindNotFound, code, format, args...)
}

// Exhausted returns a KindSequenceExhausted error.
func Exhausted(code, format string, args ...any) *Error {
	return newf(KindSequenceExhausted, code, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
