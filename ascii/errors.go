package ascii

import (
	"errors"
	"fmt"
	"strings"
)

// Error types for text protocol operations.
// They tell callers which outcomes are logical (the server answered) and
// which mean the stream can no longer be trusted.

// ErrConnectionClosed is wrapped by a TransportError when a read returns no
// bytes: the peer closed the connection or the stream is unusable.
var ErrConnectionClosed = errors.New("memc: connection closed by peer")

// ValidationError is returned when a request is rejected before any I/O.
//
// Common causes:
//   - Empty key or key longer than 250 bytes
//   - Key containing whitespace, control characters or DEL
//   - Missing keys for a retrieval, line breaks in a stats argument
//
// Connection handling: nothing was written, the connection is still valid
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "memc: invalid request: " + e.Message
}

// ShouldCloseConnection returns false - nothing reached the wire
func (e *ValidationError) ShouldCloseConnection() bool {
	return false
}

// ProtocolError is returned when a response line does not match the grammar
// of the command that was sent. Line holds the offending raw line.
//
// Server error lines (ERROR, CLIENT_ERROR, SERVER_ERROR) are complete
// responses and leave the stream in sync. Anything else means the client and
// the server disagree on framing; Desync is set and the connection must be
// closed.
type ProtocolError struct {
	Verb   Verb
	Line   string
	Desync bool
}

func (e *ProtocolError) Error() string {
	if e.Verb == "" {
		return fmt.Sprintf("memc: unexpected response: %q", e.Line)
	}
	return fmt.Sprintf("memc: unexpected response to %s: %q", e.Verb, e.Line)
}

// ShouldCloseConnection returns true when the stream is out of sync
func (e *ProtocolError) ShouldCloseConnection() bool {
	return e.Desync
}

// IsClientError reports whether the server rejected the request with CLIENT_ERROR.
func (e *ProtocolError) IsClientError() bool {
	return strings.HasPrefix(e.Line, ErrorClientPrefix)
}

// IsServerError reports whether the server failed with SERVER_ERROR.
func (e *ProtocolError) IsServerError() bool {
	return strings.HasPrefix(e.Line, ErrorServerPrefix)
}

// StoreConflictError is returned when a storage command was not applied:
// NOT_STORED for add/replace/append/prepend conditions, EXISTS for a stale
// cas token.
//
// Connection handling: logical outcome, connection can be REUSED
type StoreConflictError struct {
	Verb   Verb
	Key    string
	Status string
}

func (e *StoreConflictError) Error() string {
	return fmt.Sprintf("memc: %s %q: %s", e.Verb, e.Key, e.Status)
}

// ShouldCloseConnection returns false - the response was fully consumed
func (e *StoreConflictError) ShouldCloseConnection() bool {
	return false
}

// IsCASMismatch reports whether the item was modified since the cas token was read.
func (e *StoreConflictError) IsCASMismatch() bool {
	return e.Status == Exists
}

// KeyNotFoundError is returned when the key targeted by incr, decr, delete
// or a single-key fetch does not exist.
//
// Connection handling: logical outcome, connection can be REUSED
type KeyNotFoundError struct {
	Key string
}

func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("memc: key %q not found", e.Key)
}

// ShouldCloseConnection returns false - the response was fully consumed
func (e *KeyNotFoundError) ShouldCloseConnection() bool {
	return false
}

// TransportError wraps failures of the byte stream: dial, connect probe,
// read, write, timeout, or a circuit breaker refusing the address.
//
// Connection handling: connection is broken, CLOSE and RECONNECT
type TransportError struct {
	Op   string // dial, connect, read, write, breaker
	Addr string // remote address, when known
	Err  error
}

func (e *TransportError) Error() string {
	if e.Addr == "" {
		return fmt.Sprintf("memc: transport error during %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("memc: transport error during %s to %s: %v", e.Op, e.Addr, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *TransportError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - the connection is broken
func (e *TransportError) ShouldCloseConnection() bool {
	return true
}

// ErrorWithConnectionState is implemented by all protocol error types.
type ErrorWithConnectionState interface {
	error
	ShouldCloseConnection() bool
}

// ShouldCloseConnection reports whether err leaves the connection unusable.
//
// Returns true for TransportError, desynchronizing ProtocolError and unknown
// error types. Returns false for nil, ValidationError, StoreConflictError,
// KeyNotFoundError and server error lines.
func ShouldCloseConnection(err error) bool {
	if err == nil {
		return false
	}

	var e ErrorWithConnectionState
	if errors.As(err, &e) {
		return e.ShouldCloseConnection()
	}

	// Unknown error type - be conservative and close connection
	return true
}

// IsTransportError reports whether err is (or wraps) a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
