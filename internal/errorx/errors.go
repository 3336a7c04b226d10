package errorx

import (
	"errors"
	"fmt"
)

// Error kinds shared by the routing, bus and bot packages. Domain packages
// wrap these so callers can classify failures with errors.Is.
var (
	// ErrResolutionEmpty means no chat qualified as a command target.
	ErrResolutionEmpty = errors.New("no eligible chats")
	// ErrCacheMiss means a callback referenced a command that is no longer cached.
	ErrCacheMiss = errors.New("pending command not found")
	// ErrPermissionDenied means the actor lacks the role a command requires.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrTransient marks a platform failure worth retrying.
	ErrTransient = errors.New("transient platform error")
	// ErrPermanent marks a platform failure that another attempt cannot fix.
	ErrPermanent = errors.New("permanent platform error")
)

// UserError represents an error that can be shown to users
type UserError struct {
	Message string
	Err     error
}

// Error implements the error interface
func (e UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped cause.
func (e UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error
func NewUserError(msg string, err error) UserError {
	return UserError{Message: msg, Err: err}
}

// IsUserError checks if an error is a UserError
func IsUserError(err error) bool {
	var ue UserError
	return errors.As(err, &ue)
}

// UserMessage returns the user-facing text of err if it carries one.
func UserMessage(err error) (string, bool) {
	var ue UserError
	if errors.As(err, &ue) {
		return ue.Message, true
	}
	return "", false
}

// Denied builds a permission error with a user-visible reason.
func Denied(msg string) error {
	return UserError{Message: msg, Err: ErrPermissionDenied}
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }

func (e *transientError) Unwrap() []error { return []error{ErrTransient, e.err} }

// Transient marks err as retryable while keeping it inspectable with
// errors.Is and errors.As.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTransient) {
		return err
	}
	return &transientError{err: err}
}

// IsTransient reports whether err was marked retryable.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() []error { return []error{ErrPermanent, e.err} }

// Permanent marks err as final so Retry gives up on it immediately.
func Permanent(err error) error {
	if err == nil || errors.Is(err, ErrPermanent) {
		return err
	}
	return &permanentError{err: err}
}
