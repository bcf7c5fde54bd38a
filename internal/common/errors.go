package common

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when a component already has a mutation in
	// flight. Callers must not queue the rejected call.
	ErrBusy = errors.New("another operation is in progress")

	// ErrNoSession is returned by operations that require an
	// authenticated identity when none is available.
	ErrNoSession = errors.New("not logged in")

	// ErrAlreadyConnected is returned when a connect targets a server
	// while a tunnel to a different server is still active.
	ErrAlreadyConnected = errors.New("already connected to another server")

	// ErrValidation marks input errors caught before any network call.
	ErrValidation = errors.New("validation error")
)

// Validationf builds an error matching ErrValidation with a caller-facing
// explanation.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
