// Package domainerrors defines coded errors shared by services and transports.
//
// Stores return sentinel errors (see pkg/platform/sentinel); services translate
// them into coded errors so handlers can map them to a response without
// inspecting storage details.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_error"
	CodeInvalidInput       Code = "invalid_input"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeTooManyRequests    Code = "too_many_requests"
	CodeTimeout            Code = "timeout"
	CodeInvariantViolation Code = "invariant_violation"
	CodeInternal           Code = "internal_error"
)

// Entity names the kind of resource a NotFound error refers to.
type Entity string

// Error is a coded domain error. Cause is kept for logging and errors.Is/As.
type Error struct {
	Code    Code
	Message string
	Entity  Entity
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a coded error.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap creates a coded error that keeps err as its cause.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Cause: err}
}

// NotFound creates a CodeNotFound error tagged with the missing entity.
func NotFound(entity Entity) *Error {
	return &Error{Code: CodeNotFound, Message: string(entity) + " not found", Entity: entity}
}

// HasCode reports whether any coded error in err's chain has the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if !errors.As(err, &de) {
		return false
	}
	return de.Code == code
}

// Is is an alias of HasCode kept for call sites that read better as a predicate.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the code of the outermost coded error, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// EntityOf returns the entity of a NotFound error, or "" when err carries none.
func EntityOf(err error) Entity {
	var de *Error
	if errors.As(err, &de) {
		return de.Entity
	}
	return ""
}
