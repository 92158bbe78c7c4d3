package memc

import (
	"errors"
	"fmt"

	"github.com/pior/memc/ascii"
)

// Error types shared with the wire codec.
type (
	ValidationError    = ascii.ValidationError
	ProtocolError      = ascii.ProtocolError
	StoreConflictError = ascii.StoreConflictError
	KeyNotFoundError   = ascii.KeyNotFoundError
	TransportError     = ascii.TransportError
)

var (
	// ErrNoServerReachable is matched by every *NoServerError.
	ErrNoServerReachable = errors.New("memc: no server reachable")

	// ErrPoolClosed is returned by operations on a closed Client.
	ErrPoolClosed = errors.New("memc: pool closed")

	// ErrConnectionClosed is wrapped when the server closes the stream.
	ErrConnectionClosed = ascii.ErrConnectionClosed
)

// NoServerError is returned when every attempt of an operation failed with
// a transport error.
//
// This is the only error leaving the outcome of a write unknown: the request
// may have reached a server before the connection broke. Only retry writes
// that are idempotent (set, delete) without further checks.
type NoServerError struct {
	// Attempts is the number of attempts made.
	Attempts int

	// Err is the last transport error.
	Err error
}

func (e *NoServerError) Error() string {
	return fmt.Sprintf("memc: no server reachable after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap allows errors.Is(err, ErrNoServerReachable) and inspection of the
// last transport error.
func (e *NoServerError) Unwrap() []error {
	return []error{ErrNoServerReachable, e.Err}
}

// IsTransportError reports whether err is, or wraps, a transport failure.
func IsTransportError(err error) bool {
	return ascii.IsTransportError(err)
}

// IsNotFound reports whether err signals a missing key.
func IsNotFound(err error) bool {
	var e *KeyNotFoundError
	return errors.As(err, &e)
}

// IsNotStored reports whether err signals a storage command that was not
// applied, including a cas token mismatch.
func IsNotStored(err error) bool {
	var e *StoreConflictError
	return errors.As(err, &e)
}
