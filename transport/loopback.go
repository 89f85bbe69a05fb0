package transport

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/atomic"
)

// LoopbackNetwork is the shared fabric backing LoopbackProvider instances
// within a single process. Tests and bundled demo binaries construct one
// LoopbackNetwork and hand every simulated peer its own LoopbackProvider
// bound to it, in lieu of the real, external one-sided-write verbs provider
// (spec.md §1 "Out of scope"). It exists purely so the SST, Memory Region
// and RPC Reply Tracker packages have something concrete to run their own
// tests and demos against.
type LoopbackNetwork struct {
	nextKey atomic.Uint64

	mu      sync.Mutex
	regions map[uint64][]byte

	barriers map[barrierKey]chan struct{}
}

type barrierKey struct {
	a, b PeerID
}

// NewLoopbackNetwork returns an empty, shared in-process fabric.
func NewLoopbackNetwork() *LoopbackNetwork {
	return &LoopbackNetwork{
		regions:  make(map[uint64][]byte),
		barriers: make(map[barrierKey]chan struct{}),
	}
}

// LoopbackProvider implements transport.Provider against a LoopbackNetwork,
// standing in for the real verbs/libfabric provider in tests and demos.
type LoopbackProvider struct {
	net  *LoopbackNetwork
	self PeerID
}

// NewLoopbackProvider returns a Provider for self, bound to net.
func NewLoopbackProvider(net *LoopbackNetwork, self PeerID) *LoopbackProvider {
	return &LoopbackProvider{net: net, self: self}
}

type loopbackMemory struct {
	key uint64
	buf []byte
}

func (m *loopbackMemory) LocalKey() uint64 { return m.key }

// Register assigns buf a provider key (or honors hint.Key, the caller-chosen
// override) and publishes it into the network so peers can target it.
func (p *LoopbackProvider) Register(buf []byte, hint RegisterHint) (RegisteredMemory, error) {
	var key uint64
	if hint.Key != nil {
		key = *hint.Key
	} else {
		key = p.net.nextKey.Add(1)
	}

	p.net.mu.Lock()
	p.net.regions[key] = buf
	p.net.mu.Unlock()

	return &loopbackMemory{key: key, buf: buf}, nil
}

// Dial returns an Endpoint bound to peer. addr is accepted but unused: the
// loopback fabric routes by PeerID, not by network address.
func (p *LoopbackProvider) Dial(_ context.Context, peer PeerID, _ Address) (Endpoint, error) {
	return &loopbackEndpoint{net: p.net, self: p.self, peer: peer}, nil
}

type loopbackEndpoint struct {
	net        *LoopbackNetwork
	self, peer PeerID
	closed     atomic.Bool
}

// WriteRemote copies local[localOffset:localOffset+size] into the buffer
// registered under remoteKey. remoteAddr is carried for bounds-checking
// symmetry with a real provider but otherwise unused, since every Region's
// registered buffer in the loopback fabric is addressed directly by key.
func (e *loopbackEndpoint) WriteRemote(local RegisteredMemory, localOffset int, remoteKey uint64, _ uint64, size int, _ bool) error {
	if e.closed.Load() {
		return ErrConnectionBroken
	}
	lm, ok := local.(*loopbackMemory)
	if !ok {
		return fmt.Errorf("loopback: local memory was not registered with this provider")
	}
	if localOffset+size > len(lm.buf) {
		return fmt.Errorf("loopback: local write [%d,%d) exceeds region of size %d", localOffset, localOffset+size, len(lm.buf))
	}

	e.net.mu.Lock()
	var remote, found = e.net.regions[remoteKey]
	e.net.mu.Unlock()
	if !found {
		return ErrConnectionRemoved
	}
	if localOffset+size > len(remote) {
		return fmt.Errorf("loopback: remote write [%d,%d) exceeds region of size %d", localOffset, localOffset+size, len(remote))
	}

	e.net.mu.Lock()
	copy(remote[localOffset:localOffset+size], lm.buf[localOffset:localOffset+size])
	e.net.mu.Unlock()
	return nil
}

// Sync rendezvouses with peer: the first of the pair to call Sync blocks on
// a shared channel until the second arrives, then both return.
func (e *loopbackEndpoint) Sync(ctx context.Context) error {
	if e.closed.Load() {
		return ErrConnectionBroken
	}
	var key = barrierKey{a: e.self, b: e.peer}
	if key.a > key.b {
		key.a, key.b = key.b, key.a
	}

	e.net.mu.Lock()
	ch, ok := e.net.barriers[key]
	if !ok {
		ch = make(chan struct{})
		e.net.barriers[key] = ch
		e.net.mu.Unlock()

		select {
		case <-ch:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	delete(e.net.barriers, key)
	e.net.mu.Unlock()
	close(ch)
	return nil
}

func (e *loopbackEndpoint) Close() error {
	e.closed.Store(true)
	return nil
}
