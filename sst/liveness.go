package sst

import "go.uber.org/atomic"

// liveness is a per-rank bitmap of suspected-alive state, owned and read by
// the heartbeat failure detector without a table-wide lock
// (spec.md §4.3/§4.4: failure suspicion is observed independently of row
// content).
type liveness struct {
	bits []atomic.Bool
}

func newLiveness(n int) *liveness {
	var l = &liveness{bits: make([]atomic.Bool, n)}
	for i := range l.bits {
		l.bits[i].Store(true)
	}
	return l
}

func (l *liveness) isAlive(rank int) bool { return l.bits[rank].Load() }

// markDead returns true if this call transitioned the rank from alive to
// dead (so callers fire the failure upcall exactly once).
func (l *liveness) markDead(rank int) bool { return l.bits[rank].CompareAndSwap(true, false) }

func (l *liveness) markAlive(rank int) { l.bits[rank].Store(true) }
