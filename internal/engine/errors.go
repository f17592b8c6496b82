package engine

import (
	"errors"
	"fmt"
)

// Code classifies an engine failure
type Code string

const (
	CodeNotFound      Code = "NOT_FOUND"
	CodeForbidden     Code = "FORBIDDEN"
	CodeInvalidAction Code = "INVALID_ACTION"
	CodeConflict      Code = "CONFLICT"
	CodeInternal      Code = "INTERNAL"
)

// Sentinels for errors.Is. An *Error matches the sentinel of its code.
var (
	ErrNotFound      = &Error{Code: CodeNotFound, Message: "not found"}
	ErrForbidden     = &Error{Code: CodeForbidden, Message: "forbidden"}
	ErrInvalidAction = &Error{Code: CodeInvalidAction, Message: "invalid action"}
	ErrConflict      = &Error{Code: CodeConflict, Message: "conflict"}
	ErrInternal      = &Error{Code: CodeInternal, Message: "internal error"}
)

// Error is the single structured error returned across the engine boundary
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func newError(code Code, err error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// NotFound builds a NOT_FOUND error
func NotFound(format string, args ...interface{}) *Error {
	return newError(CodeNotFound, nil, format, args...)
}

// Forbidden builds a FORBIDDEN error
func Forbidden(format string, args ...interface{}) *Error {
	return newError(CodeForbidden, nil, format, args...)
}

// InvalidAction builds an INVALID_ACTION error
func InvalidAction(format string, args ...interface{}) *Error {
	return newError(CodeInvalidAction, nil, format, args...)
}

// Conflict builds a CONFLICT error
func Conflict(err error, format string, args ...interface{}) *Error {
	return newError(CodeConflict, err, format, args...)
}

// Internal builds an INTERNAL error wrapping the storage cause
func Internal(err error, format string, args ...interface{}) *Error {
	return newError(CodeInternal, err, format, args...)
}

// CodeOf returns the code of the first *Error in the chain, or INTERNAL
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
