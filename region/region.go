package region

import (
	"context"
	"time"

	"github.com/glycerine/derecho/transport"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Region is the per-peer pair of registered send/receive buffers of
// spec.md §3/§4.2. send_buf/recv_buf remain live and registered for the
// Region's entire lifetime; a Region is bound to exactly one remote peer.
type Region struct {
	Peer transport.PeerID
	Size int

	sendBuf, recvBuf []byte
	sendMem, recvMem transport.RegisteredMemory

	remoteKey  uint64
	remoteAddr uint64

	// Epoch is exchanged alongside the wire record (but not part of its
	// fixed 16 bytes) so a peer that restarts mid-session is detectable
	// rather than silently resuming with stale keys; see SPEC_FULL.md's
	// DOMAIN STACK entry for google/uuid. The Region only records
	// RemoteEpoch; it does not compare it against later exchanges.
	Epoch       uuid.UUID
	RemoteEpoch uuid.UUID

	handle   transport.Handle
	endpoint transport.Endpoint
}

// registrationBackoff is the delay between retries of a transient
// registration failure, per spec.md §7 "TransientResourceUnavailable...
// retried indefinitely at registration time; never escapes".
var registrationBackoff = 50 * time.Millisecond

// New constructs a Region bound to peer, following the five steps of
// spec.md §4.2:
//
//  1. upgrade the Connection Manager's weak handle;
//  2. register both buffers;
//  3. query local keys;
//  4. exchange the wire record (and an epoch token) over exch;
//  5. store the remote key and remote base address.
func New(ctx context.Context, tctx *transport.Context, peer transport.PeerID, size int, exch Exchanger) (*Region, error) {
	var handle = tctx.Manager.Get(ctx, peer)
	conn, err := handle.Upgrade()
	if err != nil {
		return nil, err
	}
	if conn.Broken() {
		return nil, transport.ErrConnectionBroken
	}

	var r = &Region{
		Peer:     peer,
		Size:     size,
		sendBuf:  make([]byte, size),
		recvBuf:  make([]byte, size),
		Epoch:    uuid.New(),
		handle:   handle,
		endpoint: conn.Endpoint,
	}

	r.sendMem, err = registerWithRetry(tctx.Provider, r.sendBuf)
	if err != nil {
		log.WithFields(log.Fields{"peer": peer, "err": err}).Fatal("fatal registration failure")
	}
	r.recvMem, err = registerWithRetry(tctx.Provider, r.recvBuf)
	if err != nil {
		log.WithFields(log.Fields{"peer": peer, "err": err}).Fatal("fatal registration failure")
	}

	var local = WireRecord{
		MRKey: r.recvMem.LocalKey(),
		VAddr: uint64(0), // provider-assigned base; see DESIGN.md open-question resolution.
	}
	var localPayload [payloadSize]byte
	copy(localPayload[:], local.Encode())

	remotePayload, err := exch.Exchange(ctx, peer, "mr", localPayload)
	if err != nil {
		return nil, errors.Wrap(err, "exchanging memory region descriptor")
	}
	var remote = DecodeWireRecord(remotePayload[:])
	r.remoteKey, r.remoteAddr = remote.MRKey, remote.VAddr

	remoteEpoch, err := exch.Exchange(ctx, peer, "epoch", [payloadSize]byte(r.Epoch))
	if err != nil {
		return nil, errors.Wrap(err, "exchanging region epoch")
	}
	r.RemoteEpoch = uuid.UUID(remoteEpoch)

	return r, nil
}

// registerWithRetry registers buf, retrying indefinitely on a transient
// failure and treating any other failure as fatal at the call site.
func registerWithRetry(p transport.Provider, buf []byte) (transport.RegisteredMemory, error) {
	for {
		mem, err := p.Register(buf, transport.RegisterHint{})
		if err == nil {
			return mem, nil
		}
		if errors.Is(err, transport.ErrTransientResourceUnavailable) {
			time.Sleep(registrationBackoff)
			continue
		}
		return nil, err
	}
}

// WriteRemote issues a one-sided remote write of send_buf[offset:offset+size]
// into the peer's recv_buf[offset:offset+size]. Precondition:
// offset+size <= r.Size; violating it is a programming error (S3).
func (r *Region) WriteRemote(offset, size int, withCompletion bool) (bool, error) {
	if offset < 0 || size < 0 || offset+size > r.Size {
		panic("region: write_remote precondition violated: offset+size exceeds region size")
	}

	conn, err := r.handle.Upgrade()
	if err != nil {
		return false, err
	}
	if conn.Broken() {
		return false, transport.ErrConnectionBroken
	}

	if err := r.endpoint.WriteRemote(r.sendMem, offset, r.remoteKey, r.remoteAddr, size, withCompletion); err != nil {
		return false, err
	}
	return true, nil
}

// Sync rendezvouses with the peer to confirm both sides are alive and
// flushed.
func (r *Region) Sync(ctx context.Context) (bool, error) {
	conn, err := r.handle.Upgrade()
	if err != nil {
		return false, err
	}
	if conn.Broken() {
		return false, transport.ErrConnectionBroken
	}
	if err := r.endpoint.Sync(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// SendBuf returns the local, registered send buffer backing this Region.
func (r *Region) SendBuf() []byte { return r.sendBuf }

// RecvBuf returns the local, registered receive buffer mirrored by the
// peer's one-sided writes.
func (r *Region) RecvBuf() []byte { return r.recvBuf }
