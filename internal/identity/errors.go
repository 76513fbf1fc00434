package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/claude/liftlog/internal/remote"
)

// Code classifies identity failures.
type Code string

const (
	CodeConfigurationNotFound Code = "configuration-not-found"
	CodeCancelled             Code = "cancelled"
	CodeNetwork               Code = "network-request-failed"
	CodeRejected              Code = "rejected"
	CodeUnknown               Code = "unknown"
)

// Error is returned by SignIn and SignOut.
type Error struct {
	Code Code
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Classify wraps err in an *Error with the best matching code. A nil err
// stays nil.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var ie *Error
	if errors.As(err, &ie) {
		return ie
	}

	code := CodeUnknown
	switch {
	case errors.Is(err, context.Canceled):
		code = CodeCancelled
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, remote.ErrUnavailable):
		code = CodeNetwork
	case strings.Contains(err.Error(), string(CodeConfigurationNotFound)):
		code = CodeConfigurationNotFound
	case errors.Is(err, remote.ErrPermission), errors.Is(err, remote.ErrInvalid):
		code = CodeRejected
	}
	return &Error{Code: code, Err: err}
}

// CodeOf returns the code of an identity error, or CodeUnknown.
func CodeOf(err error) Code {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Code
	}
	return CodeUnknown
}

// Message is the text shown to a user after a failed sign-in or sign-out.
func Message(err error) string {
	if err == nil {
		return ""
	}
	switch CodeOf(err) {
	case CodeConfigurationNotFound:
		return "This sign-in method is not set up on the server. Use anonymous sign-in for now."
	case CodeCancelled:
		return "Sign-in was cancelled. Please try again."
	case CodeNetwork:
		return "Check your network connection and try again."
	case CodeRejected:
		return "The server refused the request: " + err.Error()
	}
	return "Sign-in failed: " + err.Error()
}
