// Package wfderr defines the shared error-kind taxonomy used by pkg/rtsp
// and pkg/wpactrl. Callers distinguish kinds with errors.Is against the
// sentinels below. Errors detected by those packages themselves wrap
// one of them; system-call failures and errors returned by a caller's
// event handler are passed through without one.
package wfderr

import "errors"

var (
	// ErrInvalidArgument marks a caller-supplied null/empty/out-of-range value.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrOutOfMemory marks an allocation failure. Retained for fidelity with
	// the taxonomy this library is modeled on; nothing in this module
	// returns it (see DESIGN.md).
	ErrOutOfMemory = errors.New("out of memory")

	// ErrAlreadyOpen marks a lifecycle mismatch: Open called on an already-open client.
	ErrAlreadyOpen = errors.New("already open")

	// ErrNotOpen marks a lifecycle mismatch: an operation requiring an open client.
	ErrNotOpen = errors.New("not open")

	// ErrTimeout marks a timed request or liveness probe exceeding its budget.
	ErrTimeout = errors.New("timeout")

	// ErrPipeClosed marks a peer hang-up on a control socket.
	ErrPipeClosed = errors.New("pipe closed")

	// ErrProtocolMalformed marks a structural parse failure: RTSP Content-Length,
	// an event payload, or a supplicant OK/PONG mismatch.
	ErrProtocolMalformed = errors.New("protocol malformed")

	// ErrInternal marks a self-consistency check failure (decoder post-condition).
	ErrInternal = errors.New("internal error")
)
