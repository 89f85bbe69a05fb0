package transport

import (
	"go.uber.org/atomic"
)

// Connection carries a transport Endpoint and a broken flag. The Manager
// holds the sole strong reference; everything else holds a Handle.
type Connection struct {
	Peer     PeerID
	Endpoint Endpoint

	broken atomic.Bool
}

// MarkBroken flags the Connection unusable. Safe to call more than once.
func (c *Connection) MarkBroken() { c.broken.Store(true) }

// Broken reports whether the Connection has been flagged broken.
func (c *Connection) Broken() bool { return c.broken.Load() }

// Handle is a weak reference to a Connection, obtained from Manager.Get.
// Upgrading a Handle after the Manager has dropped its strong reference
// fails with ErrConnectionRemoved; this is implemented as a lookup against
// the Manager rather than a runtime weak pointer, since the contract that
// matters is "fails once the Manager forgets me", not automatic GC
// reclamation of the Connection struct itself.
type Handle struct {
	peer PeerID
	mgr  *Manager
}

// Upgrade resolves the Handle to its Connection. It fails with
// ErrConnectionRemoved if the Manager no longer holds peer's strong
// reference, and succeeds (returning a Connection that may be Broken) if it
// still does — mirroring the "broken flag stays observable until the
// Manager drops it" rule in spec.md §4.1.
func (h Handle) Upgrade() (*Connection, error) {
	return h.mgr.lookup(h.peer)
}
