package engine

import (
	"errors"
	"fmt"
)

// ErrTransient marks network and timeout failures that a caller may
// retry. The orchestrator's polling loop keeps ticking through these;
// one-shot calls surface them as-is.
var ErrTransient = errors.New("transient engine error")

// StatusError is returned for non-2xx engine responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("engine returned status %d: %s", e.Code, e.Body)
}

// IsTransient reports whether err stems from a timeout or connection
// failure rather than an engine-level rejection.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// wrapTransport marks an error that occurred before any engine response
// was received. Such failures are always retryable from the client side.
func wrapTransport(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrTransient, err)
}
