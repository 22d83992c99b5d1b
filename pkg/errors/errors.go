// Package errors provides the unified error code system for bookrag.
//
// Error Code Format: AABBCCC (7 digits)
//
//   - AA:  Service/Module code (00-99)
//   - BB:  Category code (00-99)
//   - CCC: Sequence number (000-999)
//
// Usage:
//
//	// Using predefined errors
//	return errors.ErrInvalidRequest.WithMessage("question is required")
//
//	// Wrapping underlying errors
//	return errors.ErrBackendUnavailable.WithCause(err)
package errors

import (
	"fmt"
	"net/http"
)

// Errno represents a structured error with code and message.
type Errno struct {
	// Code is the unique error code.
	Code int `json:"code"`

	// HTTP is the HTTP status code to return.
	HTTP int `json:"-"`

	// Msg is the error message.
	Msg string `json:"message"`

	// cause is the underlying error.
	cause error
}

// New creates a new Errno with the given parameters.
func New(code, httpStatus int, msg string) *Errno {
	return &Errno{
		Code: code,
		HTTP: httpStatus,
		Msg:  msg,
	}
}

// Error implements the error interface.
func (e *Errno) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("errno %d: %s: %v", e.Code, e.Msg, e.cause)
	}
	return fmt.Sprintf("errno %d: %s", e.Code, e.Msg)
}

// Unwrap returns the underlying cause.
func (e *Errno) Unwrap() error {
	return e.cause
}

// WithCause returns a copy of the Errno carrying the given cause.
func (e *Errno) WithCause(cause error) *Errno {
	return &Errno{
		Code:  e.Code,
		HTTP:  e.HTTP,
		Msg:   e.Msg,
		cause: cause,
	}
}

// WithMessage returns a copy of the Errno with a custom message.
func (e *Errno) WithMessage(msg string) *Errno {
	return &Errno{
		Code:  e.Code,
		HTTP:  e.HTTP,
		Msg:   msg,
		cause: e.cause,
	}
}

// WithMessagef returns a copy of the Errno with a formatted message.
func (e *Errno) WithMessagef(format string, args ...interface{}) *Errno {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// HTTPStatus returns the HTTP status code.
func (e *Errno) HTTPStatus() int {
	if e.HTTP != 0 {
		return e.HTTP
	}
	return http.StatusInternalServerError
}

// Is matches two Errnos by code, so errors.Is works across
// WithMessage/WithCause copies.
func (e *Errno) Is(target error) bool {
	if t, ok := target.(*Errno); ok {
		return e.Code == t.Code
	}
	return false
}

// FromError extracts an *Errno from err's chain, or wraps err in
// ErrInternal when none is present.
func FromError(err error) *Errno {
	if err == nil {
		return nil
	}
	for e := err; e != nil; e = unwrap(e) {
		if errno, ok := e.(*Errno); ok {
			return errno
		}
	}
	return ErrInternal.WithCause(err)
}

func unwrap(err error) error {
	u, ok := err.(interface{ Unwrap() error })
	if !ok {
		return nil
	}
	return u.Unwrap()
}
