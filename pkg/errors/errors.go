// Package errors provides structured error types for fossensics.
//
// Every failure the inspection pipeline can raise carries a machine-readable
// [Code] so callers can tell a missing toolchain apart from a broken artifact
// without matching on message text.
//
// # Error Codes
//
//   - TOOL_NOT_FOUND: no "*-strip" program in the build toolchain
//   - TOOL_FAILED: an external tool could not run or exited non-zero in a
//     stage where that is fatal
//   - MALFORMED_ARTIFACT: an intermediate artifact line has the wrong shape
//   - IO_ERROR: an artifact or directory could not be created, read or written
//   - INVALID_CONFIG / INVALID_PATH: bad user input
//
// # Usage
//
//	err := errors.New(errors.ErrCodeMalformedArtifact, "origins.txt:%d: missing separator", n)
//	if errors.Is(err, errors.ErrCodeMalformedArtifact) {
//	    // Handle broken artifact
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeIO, origErr, "create %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidPath   Code = "INVALID_PATH"
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"

	// Toolchain and external tool errors
	ErrCodeToolNotFound Code = "TOOL_NOT_FOUND"
	ErrCodeToolFailed   Code = "TOOL_FAILED"

	// Artifact errors
	ErrCodeMalformedArtifact Code = "MALFORMED_ARTIFACT"
	ErrCodeIO                Code = "IO_ERROR"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Cause)
		}
		return e.Message
	}
	return err.Error()
}

// ExitError describes an external tool that ran to completion with a
// non-zero status.
type ExitError struct {
	Tool     string
	ExitCode int
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Tool, e.ExitCode)
}

// Code returns the error code for this error type.
func (e *ExitError) Code() Code {
	return ErrCodeToolFailed
}
