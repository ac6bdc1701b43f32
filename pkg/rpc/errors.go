package rpc

import (
	"errors"
	"fmt"
)

// Error kinds shared by every MeshFS service. Remote calls carry the
// kind across the wire, so a stub caller sees the same sentinel the
// remote implementation returned. Match with errors.Is.
var (
	// ErrInvalidArgument marks malformed paths, negative offsets and
	// lengths, and other caller mistakes.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound marks paths that do not resolve, or resolve to the
	// wrong kind of node for the operation.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState marks operations against a server in the wrong
	// lifecycle state: not started, already registered, or an empty
	// storage registry.
	ErrInvalidState = errors.New("invalid state")

	// ErrIO marks local storage read or write failures.
	ErrIO = errors.New("i/o error")

	// ErrRPC marks transport and dispatch failures on either peer.
	ErrRPC = errors.New("rpc error")

	// ErrCancelled marks a lock wait interrupted by shutdown. Callers
	// observe it as a no-op return with no lock held.
	ErrCancelled = errors.New("cancelled")
)

// Wire identifiers for the error kinds. They are part of the protocol
// and must not change.
const (
	kindInvalidArgument = "INVALID_ARGUMENT"
	kindNotFound        = "NOT_FOUND"
	kindInvalidState    = "INVALID_STATE"
	kindIO              = "IO"
	kindRPC             = "RPC"
	kindCancelled       = "CANCELLED"
)

// KindOf maps an error to its wire identifier. Errors outside the
// taxonomy are reported as RPC failures: the caller can only tell that
// the remote side misbehaved.
func KindOf(err error) string {
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return kindInvalidArgument
	case errors.Is(err, ErrNotFound):
		return kindNotFound
	case errors.Is(err, ErrInvalidState):
		return kindInvalidState
	case errors.Is(err, ErrIO):
		return kindIO
	case errors.Is(err, ErrCancelled):
		return kindCancelled
	default:
		return kindRPC
	}
}

// FromKind rebuilds a typed error from its wire identifier and remote
// message. Unknown identifiers collapse to ErrRPC.
func FromKind(kind, message string) error {
	var sentinel error
	switch kind {
	case kindInvalidArgument:
		sentinel = ErrInvalidArgument
	case kindNotFound:
		sentinel = ErrNotFound
	case kindInvalidState:
		sentinel = ErrInvalidState
	case kindIO:
		sentinel = ErrIO
	case kindCancelled:
		sentinel = ErrCancelled
	default:
		sentinel = ErrRPC
	}

	if message == "" {
		return sentinel
	}
	return fmt.Errorf("%s: %w", message, sentinel)
}
