package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeLaunch            ErrorType = "launch_failure"
	ErrorTypeNavigationTimeout ErrorType = "navigation_timeout"
	ErrorTypeNavigation        ErrorType = "navigation"
	ErrorTypeExtraction        ErrorType = "extraction"
	ErrorTypeCookieParse       ErrorType = "cookie_parse"
	ErrorTypeNotificationSink  ErrorType = "notification_sink"
	ErrorTypeSessionClosed     ErrorType = "session_closed"
	ErrorTypeUnknown           ErrorType = "unknown"
)

// Error is a classified failure. Op names the operation that failed and
// Account, when set, the tracked account it was working for.
type Error struct {
	Type    ErrorType
	Op      string
	Account string
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Type)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Account != "" {
		msg += " (account " + e.Account + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same type, so callers can test against the
// sentinel values below with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type && t.Op == "" && t.Err == nil
}

// Sentinels for errors.Is checks.
var (
	ErrLaunch            = &Error{Type: ErrorTypeLaunch}
	ErrNavigationTimeout = &Error{Type: ErrorTypeNavigationTimeout}
	ErrNavigation        = &Error{Type: ErrorTypeNavigation}
	ErrExtraction        = &Error{Type: ErrorTypeExtraction}
	ErrCookieParse       = &Error{Type: ErrorTypeCookieParse}
	ErrNotificationSink  = &Error{Type: ErrorTypeNotificationSink}
	ErrSessionClosed     = &Error{Type: ErrorTypeSessionClosed}
)

// New wraps err with a type and operation name
func New(t ErrorType, op string, err error) *Error {
	return &Error{Type: t, Op: op, Err: err}
}

// ForAccount returns a copy of e attributed to account
func (e *Error) ForAccount(account string) *Error {
	c := *e
	c.Account = account
	return &c
}

func LaunchFailure(err error) *Error {
	return New(ErrorTypeLaunch, "launch browser", err)
}

func NavigationTimeout(url string, err error) *Error {
	return New(ErrorTypeNavigationTimeout, "navigate "+url, err)
}

func Navigation(url string, err error) *Error {
	return New(ErrorTypeNavigation, "navigate "+url, err)
}

func Extraction(strategy string, err error) *Error {
	return New(ErrorTypeExtraction, "extract "+strategy, err)
}

func CookieParse(source string, err error) *Error {
	return New(ErrorTypeCookieParse, "load cookies "+source, err)
}

func NotificationSink(sink string, err error) *Error {
	return New(ErrorTypeNotificationSink, "deliver "+sink, err)
}

func SessionClosed(op string) *Error {
	return New(ErrorTypeSessionClosed, op, fmt.Errorf("session is closed"))
}

// TypeOf returns the type of the first *Error in err's chain
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsFatal reports whether err stops polling until a manual restart.
// Everything else is isolated to one account within one cycle.
func IsFatal(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeLaunch, ErrorTypeSessionClosed, ErrorTypeCookieParse:
		return true
	default:
		return false
	}
}
