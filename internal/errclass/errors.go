// Package errclass defines the stable, machine-readable error classes
// surfaced by pinchlock. Callers match with errors.Is; the Code is what
// scripts should key on, the Message is for humans.
package errclass

import "fmt"

type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

// WithMessage returns a new Error with the same Code but a specific message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Code: e.Code, Message: msg}
}

// WithMessagef returns a new Error with a formatted message.
func (e *Error) WithMessagef(format string, args ...any) *Error {
	return &Error{Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

var (
	// ErrLockHeld: a live, unexpired lock record exists. Not auto-retried;
	// the caller decides whether to force a release.
	ErrLockHeld = &Error{Code: "E_LOCK_HELD"}

	// ErrLaunchFailed: Chrome never became healthy within the probe budget.
	ErrLaunchFailed = &Error{Code: "E_LAUNCH_FAILED"}

	// ErrChromeUnavailable: no usable Chrome binary or control endpoint.
	ErrChromeUnavailable = &Error{Code: "E_CHROME_UNAVAILABLE"}

	// ErrRunTimeout: the watchdog fired before the consumer exited.
	ErrRunTimeout = &Error{Code: "E_RUN_TIMEOUT"}
)
