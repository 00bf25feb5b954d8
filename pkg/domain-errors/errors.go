// Package domainerrors provides code-carrying errors for the compliance domain.
//
// Every error crossing a service or transport boundary carries a Code so
// callers can branch on the kind of failure without string matching, and so
// the HTTP layer can map failures to statuses in one place. Use New at the
// point a rule is violated and Wrap when adding context to an error from a
// lower layer.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies the kind of a domain error.
type Code string

// Platform codes.
const (
	CodeInternal           Code = "internal"
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation"
	CodeInvalidInput       Code = "invalid_input"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeUnavailable        Code = "unavailable"
	CodeInvariantViolation Code = "invariant_violation"
)

// Compliance input taxonomy. These are structural input failures detected
// before any comparison logic runs; they are never retried.
const (
	// CodeUnknownFeeCategory means the classifier cannot place a fee in a
	// tolerance bucket. Never silently defaulted.
	CodeUnknownFeeCategory Code = "unknown_fee_category"
	// CodeInvalidAmount means a money or APR value is negative or malformed.
	CodeInvalidAmount Code = "invalid_amount"
	// CodeInvalidDateOrdering means the CD receipt date falls after the
	// closing date. Distinct from a late (but valid) delivery.
	CodeInvalidDateOrdering Code = "invalid_date_ordering"
)

// Error is a domain error with a machine-readable code.
type Error struct {
	code    Code
	message string
	cause   error
}

// New creates a domain error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap annotates an existing error with a code and message. The cause
// remains reachable through errors.Is / errors.As.
func Wrap(cause error, code Code, message string) *Error {
	return &Error{code: code, message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap exposes the cause for the standard errors helpers.
func (e *Error) Unwrap() error {
	return e.cause
}

// Code returns the machine-readable code.
func (e *Error) Code() Code {
	return e.code
}

// Message returns the human-readable message without the cause chain.
// Safe to surface to callers for non-internal codes.
func (e *Error) Message() string {
	return e.message
}

// HasCode reports whether err (or any error in its chain) is a domain error
// with the given code.
func HasCode(err error, code Code) bool {
	var d *Error
	for errors.As(err, &d) {
		if d.code == code {
			return true
		}
		err = d.cause
		if err == nil {
			return false
		}
	}
	return false
}

// Is is shorthand for HasCode, reading naturally at call sites:
//
//	if dErrors.Is(err, dErrors.CodeUnauthorized) { ... }
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the code of the outermost domain error in the chain, or
// CodeInternal if err carries no code. Nil errors have no code.
func CodeOf(err error) Code {
	var d *Error
	if errors.As(err, &d) {
		return d.code
	}
	return CodeInternal
}
