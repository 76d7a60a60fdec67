package usecase

import (
	"errors"
	"fmt"
)

// ErrorCode classifies why the form refused or failed an event.
type ErrorCode string

const (
	ErrorTooLong      ErrorCode = "TOO_LONG"
	ErrorTextOnly     ErrorCode = "TEXT_ONLY"
	ErrorMediaOnly    ErrorCode = "MEDIA_ONLY"
	ErrorStaleControl ErrorCode = "STALE_CONTROL"
	ErrorInvalidState ErrorCode = "INVALID_STATE"
	ErrorUpstream     ErrorCode = "UPSTREAM_ERROR"
)

// Error is a coded intake failure. Reason is a short machine-readable detail
// such as "brief_too_long"; Err is the chat platform error, if any.
type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := "usecase: " + string(e.Code)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches any *Error with the same code, so callers can test
// errors.Is(err, &Error{Code: ErrorUpstream}).
func (e *Error) Is(target error) bool {
	var t *Error
	if e == nil || !errors.As(target, &t) || t == nil {
		return false
	}
	return e.Code == t.Code
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e.Code
	}
	return ""
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// upstreamError wraps a failed call to the chat platform.
func upstreamError(reason string, err error) error {
	return newError(ErrorUpstream, reason, err)
}
