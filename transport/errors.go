package transport

import "github.com/pkg/errors"

// ErrConnectionRemoved is returned when a Handle is upgraded after the
// Manager has dropped its strong reference to the named Connection.
var ErrConnectionRemoved = errors.New("connection removed")

// ErrConnectionBroken is returned by operations against a Connection which
// has been flagged broken, but whose strong reference is still held by the
// Manager (the failure is observable, but the entry hasn't been reaped yet).
var ErrConnectionBroken = errors.New("connection broken")

// ErrPeerUnknown reports a peer id that is not among the tracked members;
// rpc.ReplyMap.Get returns it for a peer the RPC was not sent to.
// Manager.Get does not return it: the Handle it hands out for a peer with no
// address fails to Upgrade with ErrConnectionRemoved.
var ErrPeerUnknown = errors.New("peer address unknown")
