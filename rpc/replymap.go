package rpc

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/glycerine/derecho/transport"
	"go.uber.org/multierr"
)

// ReplyMap holds one Pending[T] per peer an RPC was sent to, per spec.md
// §5 "ReplyMap... contains/valid/get plus ordered iteration".
type ReplyMap[T any] struct {
	mu    sync.Mutex
	m     map[transport.PeerID]*Pending[T]
	order []transport.PeerID
}

// NewReplyMap preallocates one unfulfilled Pending per peer in peers.
func NewReplyMap[T any](peers []transport.PeerID) *ReplyMap[T] {
	var order = append([]transport.PeerID(nil), peers...)
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	var m = make(map[transport.PeerID]*Pending[T], len(order))
	for _, p := range order {
		m[p] = NewPending[T]()
	}
	return &ReplyMap[T]{m: m, order: order}
}

// Contains reports whether peer is a member of this reply map.
func (r *ReplyMap[T]) Contains(peer transport.PeerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.m[peer]
	return ok
}

// Valid reports whether peer's reply has been fulfilled without an
// exception.
func (r *ReplyMap[T]) Valid(peer transport.PeerID) bool {
	r.mu.Lock()
	p, ok := r.m[peer]
	r.mu.Unlock()
	if !ok || !p.Fulfilled() {
		return false
	}
	_, err := p.get()
	return err == nil
}

// Get returns peer's resolved value, blocking until it is fulfilled or ctx
// is done.
func (r *ReplyMap[T]) Get(ctx context.Context, peer transport.PeerID) (T, error) {
	r.mu.Lock()
	p, ok := r.m[peer]
	r.mu.Unlock()
	if !ok {
		var zero T
		return zero, transport.ErrPeerUnknown
	}
	return p.Get(ctx)
}

// pendingFor returns the Pending for peer, or nil if peer is not a member.
func (r *ReplyMap[T]) pendingFor(peer transport.PeerID) *Pending[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m[peer]
}

// Range calls fn once per peer in ascending peer-id order.
func (r *ReplyMap[T]) Range(fn func(peer transport.PeerID, p *Pending[T])) {
	r.mu.Lock()
	var order = append([]transport.PeerID(nil), r.order...)
	r.mu.Unlock()
	for _, peer := range order {
		fn(peer, r.pendingFor(peer))
	}
}

// Query is the caller-facing handle for an RPC fanned out to a group, per
// spec.md §5: one Pending per destination peer, plus a bulk wait.
type Query[T any] struct {
	replies *ReplyMap[T]
}

// NewQuery starts tracking an RPC sent to peers.
func NewQuery[T any](peers []transport.PeerID) *Query[T] {
	return &Query[T]{replies: NewReplyMap[T](peers)}
}

// Replies exposes the underlying ReplyMap for inspection.
func (q *Query[T]) Replies() *ReplyMap[T] { return q.replies }

// SetValue fulfills peer's reply with v; a no-op if peer is not a member
// of this query.
func (q *Query[T]) SetValue(peer transport.PeerID, v T) {
	if p := q.replies.pendingFor(peer); p != nil {
		p.SetValue(v)
	}
}

// SetException fulfills peer's reply with err.
func (q *Query[T]) SetException(peer transport.PeerID, err error) {
	if p := q.replies.pendingFor(peer); p != nil {
		p.SetException(err)
	}
}

// SetExceptionForRemovedNode fulfills peer's reply with
// NodeRemovedFromGroup, per spec.md §5's failure-upcall integration. Safe
// to call for a peer this query never sent to (no-op).
func (q *Query[T]) SetExceptionForRemovedNode(peer transport.PeerID) {
	if p := q.replies.pendingFor(peer); p != nil {
		p.SetExceptionForRemovedNode(peer)
	}
}

// WaitAll blocks until every peer's reply is fulfilled (value or
// exception), ctx is done, or timeout elapses, returning the combined
// (via multierr) set of per-peer exceptions. A nil return means every peer
// replied with a value.
func (q *Query[T]) WaitAll(ctx context.Context, timeout time.Duration) error {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var combined error

	q.replies.Range(func(peer transport.PeerID, p *Pending[T]) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Wait(ctx, timeout); err != nil {
				mu.Lock()
				combined = multierr.Append(combined, err)
				mu.Unlock()
			}
		}()
	})
	wg.Wait()
	return combined
}
