package rpc

import (
	"context"
	"sync"
	"time"

	"github.com/glycerine/derecho/transport"
	"go.uber.org/atomic"
)

// Pending is a single-peer RPC reply future, per spec.md §5: the first call
// of set_value or set_exception(_for_removed_node) takes effect and later
// calls are no-ops, and any number of callers may wait on or fetch the
// resolved outcome afterward.
type Pending[T any] struct {
	fulfilled atomic.Bool
	done      chan struct{}
	once      sync.Once

	mu    sync.Mutex
	value T
	err   error
}

// NewPending returns an unfulfilled Pending.
func NewPending[T any]() *Pending[T] {
	return &Pending[T]{done: make(chan struct{})}
}

// SetValue fulfills the pending reply with v. Fulfilling an already
// fulfilled Pending a second time is a no-op, matching "exactly once"
// semantics without panicking on a harmless duplicate delivery.
func (p *Pending[T]) SetValue(v T) {
	p.once.Do(func() {
		p.mu.Lock()
		p.value = v
		p.mu.Unlock()
		p.fulfilled.Store(true)
		close(p.done)
	})
}

// SetException fulfills the pending reply with an error instead of a
// value.
func (p *Pending[T]) SetException(err error) {
	p.once.Do(func() {
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		p.fulfilled.Store(true)
		close(p.done)
	})
}

// SetExceptionForRemovedNode fulfills the pending reply with
// NodeRemovedFromGroup(peer), per spec.md §5's failure-upcall integration:
// a reply that can now never arrive because the peer left the group.
func (p *Pending[T]) SetExceptionForRemovedNode(peer transport.PeerID) {
	p.SetException(NodeRemovedFromGroup(peer))
}

// Fulfilled reports whether a value or exception has been set.
func (p *Pending[T]) Fulfilled() bool { return p.fulfilled.Load() }

// Wait blocks until fulfilled, ctx is done, or timeout elapses (timeout <=
// 0 means no timeout), then returns the resolved value/error.
func (p *Pending[T]) Wait(ctx context.Context, timeout time.Duration) (T, error) {
	var timeoutCh <-chan time.Time
	if timeout > 0 {
		var timer = time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}
	select {
	case <-p.done:
		return p.get()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-timeoutCh:
		var zero T
		return zero, ErrPendingTimedOut
	}
}

// Get returns the resolved value/error, blocking with no timeout until
// fulfilled or ctx is done (then it returns ctx.Err()).
func (p *Pending[T]) Get(ctx context.Context) (T, error) {
	return p.Wait(ctx, 0)
}

func (p *Pending[T]) get() (T, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value, p.err
}
