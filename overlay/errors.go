package overlay

import "errors"

// Sentinel error kinds (spec.md §7 "Error handling design"). Callers
// distinguish kinds with errors.Is; call sites wrap these with
// fmt.Errorf("...: %w", err) for context, mirroring the teacher's own
// first-party error handling.
var (
	// ErrMalformedMessage is a codec failure or unknown type; it always
	// drops the session.
	ErrMalformedMessage = errors.New("overlay: malformed message")
	// ErrProtocolViolation covers a non-HELLO message before handshake,
	// a duplicate HELLO, or a protocol version mismatch; it always drops
	// the session.
	ErrProtocolViolation = errors.New("overlay: protocol violation")
	// ErrHandshakeTimeout is raised when the handshake timer expires
	// before a HELLO is received.
	ErrHandshakeTimeout = errors.New("overlay: handshake timeout")
	// ErrTransport covers a read or write failure on the underlying
	// stream.
	ErrTransport = errors.New("overlay: transport error")
	// ErrInvalidArgument is returned by the loopback fault-injection
	// probability setters when given a value outside [0.0, 1.0].
	ErrInvalidArgument = errors.New("overlay: invalid argument")
)
