// Package apperr defines the coded errors shared by every contentsnap context.
package apperr

import (
	"errors"
	"fmt"
)

// Code classifies an error for callers that need to branch on it.
type Code string

const (
	CodeValidation         Code = "VALIDATION"          // input rejected locally
	CodeServiceUnreachable Code = "SERVICE_UNREACHABLE" // transport failure to the backend
	CodeServerRejection    Code = "SERVER_REJECTION"    // non-2xx from the backend
	CodeScriptInjection    Code = "SCRIPT_INJECTION"    // page content could not be read
	CodeUnknownAction      Code = "UNKNOWN_ACTION"
	CodeNoActiveTab        Code = "NO_ACTIVE_TAB"
	CodeAccessFailed       Code = "ACCESS_FAILED"
	CodeInternal           Code = "INTERNAL"
)

// Error is a coded error with a user-facing message. Err, when set, is the
// underlying cause and is reachable through errors.Is / errors.As.
type Error struct {
	Code    Code
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an error without a cause.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap builds an error around cause.
func Wrap(code Code, msg string, cause error) *Error {
	return &Error{Code: code, Message: msg, Err: cause}
}

// NewValidation creates a VALIDATION error.
func NewValidation(msg string) *Error { return New(CodeValidation, msg) }

// NewUnknownAction creates the error returned for unrecognized action tags.
func NewUnknownAction(action string) *Error {
	return &Error{Code: CodeUnknownAction, Message: fmt.Sprintf("unknown action %q", action)}
}

// CodeOf returns the code of the first *Error in err's chain, or "" when
// there is none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reports whether err carries code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// MessageOf returns the user-facing message of err. Errors without a code
// fall back to err.Error().
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
