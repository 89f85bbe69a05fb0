package rpc

import (
	"fmt"

	"github.com/glycerine/derecho/transport"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RemoteExceptionOccurred wraps a remote peer's reported failure of an RPC,
// per spec.md §5 "set_exception... the remote peer reported a failure".
func RemoteExceptionOccurred(peer transport.PeerID, cause error) error {
	return status.Errorf(codes.Unknown, "rpc: peer %d raised an exception: %v", peer, cause)
}

// NodeRemovedFromGroup reports that peer was removed from the group (via
// the failure upcall) while a reply from it was still outstanding, per
// spec.md §5 "set_exception_for_removed_node".
func NodeRemovedFromGroup(peer transport.PeerID) error {
	return status.Errorf(codes.Unavailable, "rpc: peer %d was removed from the group before replying", peer)
}

// IsNodeRemoved reports whether err is (or wraps) a NodeRemovedFromGroup
// exception, by gRPC status code.
func IsNodeRemoved(err error) bool {
	return status.Code(err) == codes.Unavailable
}

// ErrPendingTimedOut is returned by Pending.Wait / Query.WaitAll when the
// deadline elapses before a value or exception was set.
var ErrPendingTimedOut = fmt.Errorf("rpc: wait deadline exceeded before reply")
