package rpc

import "github.com/glycerine/derecho/transport"

// Void is the reply payload for RPCs that carry no return value, so
// Pending[Void]/Query[Void] can still track per-peer completion and
// exceptions per spec.md §5's void specialization.
type Void struct{}

// NewVoidQuery starts tracking a void RPC sent to peers.
func NewVoidQuery(peers []transport.PeerID) *Query[Void] {
	return NewQuery[Void](peers)
}
