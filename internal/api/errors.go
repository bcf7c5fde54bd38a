package api

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable is returned for transport-level failures where no
	// response was received.
	ErrUnavailable = errors.New("server unavailable")

	// ErrUnauthorized is returned when the authority rejects the bearer
	// credential. The auth-expired hook has already fired by the time a
	// caller sees this value.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrBadResponse is returned when a 2xx response does not match the
	// endpoint's expected shape.
	ErrBadResponse = errors.New("malformed server response")
)

// RemoteError carries the verbatim failure reason the authority returned
// for a well-formed request (wrong 2FA code, inactive server, and so on).
type RemoteError struct {
	Status int
	Reason string
}

func (e *RemoteError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("server rejected request (status %d)", e.Status)
	}
	return e.Reason
}
