// internal/apperr/errors.go
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by how callers are expected to react to it.
type Kind string

const (
	KindTransient         Kind = "transient"
	KindMalformed         Kind = "malformed"
	KindProtocolViolation Kind = "protocol_violation"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindInternal          Kind = "internal"
)

// Stable error codes returned to API callers.
const (
	CodeTransportUnavailable = "TRANSPORT_UNAVAILABLE"
	CodeMalformedMessage     = "MALFORMED_MESSAGE"
	CodeProtocolViolation    = "PROTOCOL_VIOLATION"
	CodeNotFound             = "NOT_FOUND"
	CodeConflict             = "CONFLICT"
	CodeInternal             = "INTERNAL_ERROR"
)

var defaultCodes = map[Kind]string{
	KindTransient:         CodeTransportUnavailable,
	KindMalformed:         CodeMalformedMessage,
	KindProtocolViolation: CodeProtocolViolation,
	KindNotFound:          CodeNotFound,
	KindConflict:          CodeConflict,
	KindInternal:          CodeInternal,
}

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Code:    defaultCodes[kind],
		Message: fmt.Sprintf(format, args...),
	}
}

func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	e := New(kind, format, args...)
	e.Err = err
	return e
}

func NotFound(resource string, key interface{}) *Error {
	return New(KindNotFound, "%s not found: %v", resource, key)
}

func Malformed(format string, args ...interface{}) *Error {
	return New(KindMalformed, format, args...)
}

func ProtocolViolation(format string, args ...interface{}) *Error {
	return New(KindProtocolViolation, format, args...)
}

func Transient(err error, format string, args ...interface{}) *Error {
	return Wrap(KindTransient, err, format, args...)
}

// WithDetails attaches structured details, e.g. a list of validation violations.
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf reports the kind of err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
