package errorx

import (
	"errors"
	"fmt"
	"runtime/debug"

	"mod-gobot/internal/logger"
)

// PanicError is what a recovered panic turns into. It is final: Retry
// never runs a handler again after it panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic recovered: %v", e.Value)
}

// Unwrap marks the panic as permanent.
func (e *PanicError) Unwrap() error {
	return ErrPermanent
}

// IsPanic reports whether err came from a recovered panic.
func IsPanic(err error) bool {
	var pe *PanicError
	return errors.As(err, &pe)
}

// Handler turns panics in command handlers into errors
type Handler struct {
	// LogStackTraces logs the goroutine stack of every recovered panic
	LogStackTraces bool
	// OnPanic is called after a panic was recovered
	OnPanic func(*PanicError)
}

// NewHandler creates a new recovery handler
func NewHandler() *Handler {
	return &Handler{LogStackTraces: true}
}

// HandleWithRecovery runs fn and converts a panic into a *PanicError
func (h *Handler) HandleWithRecovery(fn func() error) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		pe := &PanicError{Value: r, Stack: debug.Stack()}
		logger.Errorf("%v", pe)
		if h.LogStackTraces {
			logger.Errorf("Stack trace:\n%s", pe.Stack)
		}
		if h.OnPanic != nil {
			h.OnPanic(pe)
		}
		err = pe
	}()

	return fn()
}

// DefaultHandler is the default recovery handler instance
var DefaultHandler = NewHandler()

// HandleWithRecovery is a convenience function using the default handler
func HandleWithRecovery(fn func() error) error {
	return DefaultHandler.HandleWithRecovery(fn)
}
