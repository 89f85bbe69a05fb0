package transport

import "context"

// RegisterHint carries an optional caller-chosen registration key. Left
// nil, the Provider assigns its own key. spec.md §9 flags the choice
// between provider-assigned and caller-chosen keys as an open question in
// the original code and says implementers should prefer provider-assigned
// keys while exposing a hook for later override; RegisterHint is that hook.
type RegisterHint struct {
	Key *uint64
}

// RegisteredMemory is a buffer that has been registered with the Provider
// for local and remote read/write access.
type RegisteredMemory interface {
	// LocalKey is the key required by a remote peer to target this buffer
	// with a one-sided write.
	LocalKey() uint64
}

// Endpoint is a Provider-level handle to a single remote peer, bound after
// Dial. It is the thing a Connection wraps.
type Endpoint interface {
	// WriteRemote issues a one-sided write of size bytes from
	// local[localOffset:localOffset+size] into the peer buffer identified by
	// (remoteKey, remoteAddr+localOffset). withCompletion requests a
	// transport-level completion signal before the call returns.
	WriteRemote(local RegisteredMemory, localOffset int, remoteKey uint64, remoteAddr uint64, size int, withCompletion bool) error
	// Sync rendezvouses with the peer to confirm liveness and that prior
	// writes have flushed.
	Sync(ctx context.Context) error
	// Close releases the endpoint. Idempotent.
	Close() error
}

// Provider is the external, one-sided remote-memory verbs provider
// (verbs or libfabric-style). It is out of scope per spec.md §1 — the core
// only ever consumes it through this interface. TransientResourceUnavailable
// is retried indefinitely by callers; any other registration error is
// fatal per spec.md §7.
type Provider interface {
	// Register registers buf for local and remote read/write access.
	Register(buf []byte, hint RegisterHint) (RegisteredMemory, error)
	// Dial establishes an Endpoint to the peer at addr.
	Dial(ctx context.Context, peer PeerID, addr Address) (Endpoint, error)
}

// ErrTransientResourceUnavailable is retried indefinitely at registration
// time per spec.md §7 and never escapes to a caller.
var ErrTransientResourceUnavailable = transientErr{}

type transientErr struct{}

func (transientErr) Error() string { return "resource temporarily unavailable" }
