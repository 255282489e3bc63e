package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for categorizing errors
const (
	ErrConfig       = "CONFIG"
	ErrSSH          = "SSH"
	ErrConnect      = "CONNECT"
	ErrNotConnected = "NOT_CONNECTED"
	ErrExec         = "EXEC"
	ErrAPI          = "API"
)

// Error is a structured error with code, message, suggestion, and optional cause.
// It renders as:
//
//	✗ <What failed>
//
//	  <Why it failed - technical details>
//
//	  <How to fix it - actionable steps>
type Error struct {
	Code       string
	Message    string
	Suggestion string
	Cause      error
}

// New creates a new structured error with the given code, message, and suggestion.
func New(code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

// Wrap wraps an existing error with a message, defaulting to ErrSSH code.
func Wrap(err error, message string) *Error {
	return &Error{
		Code:    ErrSSH,
		Message: message,
		Cause:   err,
	}
}

// WrapWithCode wraps an existing error with a specific code, message, and suggestion.
func WrapWithCode(err error, code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
		Cause:      err,
	}
}

// NotConnected reports an operation attempted on a host with no live session.
func NotConnected(host string) *Error {
	return &Error{
		Code:       ErrNotConnected,
		Message:    fmt.Sprintf("No session open for %s", host),
		Suggestion: "Connect the host before running commands",
	}
}

func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("✗ %s\n", e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Cause.Error()))
	}

	if e.Suggestion != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Suggestion))
	}

	return b.String()
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode checks if an error is a structured Error with the given code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var rwErr *Error
	if errors.As(err, &rwErr) {
		return rwErr.Code == code
	}
	return false
}

// IsConnection reports whether err is a failed connection attempt.
func IsConnection(err error) bool { return IsCode(err, ErrConnect) }

// IsNotConnected reports whether err came from a command run without a session.
func IsNotConnected(err error) bool { return IsCode(err, ErrNotConnected) }

// IsExecution reports whether err is a remote command failure.
func IsExecution(err error) bool { return IsCode(err, ErrExec) }

// Brief returns just the message line of a structured error, or err.Error()
// for anything else. Used where the multi-line rendering does not fit, such as
// dashboard status lines and JSON responses.
func Brief(err error) string {
	if err == nil {
		return ""
	}
	var rwErr *Error
	if errors.As(err, &rwErr) {
		if rwErr.Cause != nil {
			return rwErr.Message + ": " + firstLine(rwErr.Cause.Error())
		}
		return rwErr.Message
	}
	return firstLine(err.Error())
}

func firstLine(s string) string {
	s = strings.TrimPrefix(strings.TrimSpace(s), "✗ ")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
