package region

import (
	"context"
	"encoding/binary"
	"net"
	"sync"
	"time"

	"github.com/glycerine/derecho/transport"
	"github.com/pkg/errors"
)

// payloadSize is the width of a single exchanged record: either the
// spec.md §6 16-byte Memory-Region descriptor, or the 16-byte epoch token
// region.go exchanges alongside it.
const payloadSize = 16

// Exchanger performs step 4 of Memory Region construction (spec.md §4.2):
// a symmetric, one-send-one-receive exchange of a fixed 16-byte payload
// with a peer over a side-channel, identified by tag so a Region can run
// more than one exchange (the wire descriptor, then the epoch token)
// against the same peer without them racing each other. TCPExchanger is
// the side-channel spec.md §6 specifies ("Exchanged once per region over
// TCP to the peer's configured port"); LoopbackExchanger
// (exchange_loopback.go) is an in-process stand-in used by this
// repository's own tests and demos.
type Exchanger interface {
	Exchange(ctx context.Context, peer transport.PeerID, tag string, local [payloadSize]byte) ([payloadSize]byte, error)
}

// TCPExchanger implements Exchanger over raw TCP, per spec.md §6.
type TCPExchanger struct {
	self  transport.PeerID
	peers map[transport.PeerID]transport.Address

	mu    sync.Mutex
	chans map[tcpExchangeKey]chan [payloadSize]byte
}

type tcpExchangeKey struct {
	peer transport.PeerID
	tag  string
}

// NewTCPExchanger returns a TCPExchanger for self, able to reach peers at
// the given addresses.
func NewTCPExchanger(self transport.PeerID, peers map[transport.PeerID]transport.Address) *TCPExchanger {
	return &TCPExchanger{
		self:  self,
		peers: peers,
		chans: make(map[tcpExchangeKey]chan [payloadSize]byte),
	}
}

// Serve accepts incoming exchange requests on addr until ctx is cancelled.
// It must be running (in its own goroutine) before any peer's Exchange call
// targeting self can be answered.
func (x *TCPExchanger) Serve(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return errors.Wrap(err, "listen")
	}
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go x.handle(ctx, conn)
	}
}

func (x *TCPExchanger) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	var tagLen [2]byte
	if _, err := readFull(conn, tagLen[:]); err != nil {
		return
	}
	var tagBuf = make([]byte, binary.BigEndian.Uint16(tagLen[:]))
	if _, err := readFull(conn, tagBuf); err != nil {
		return
	}

	var hdr [4 + payloadSize]byte
	if _, err := readFull(conn, hdr[:]); err != nil {
		return
	}
	var requester = transport.PeerID(binary.BigEndian.Uint32(hdr[:4]))
	// hdr[4:] carries the requester's own pushed payload, unused here: this
	// side answers solely from its own pending registration for
	// (requester, tag).

	var key = tcpExchangeKey{peer: requester, tag: string(tagBuf)}
	var ch = x.waitChan(key)
	select {
	case payload := <-ch:
		_, _ = conn.Write(payload[:])
	case <-ctx.Done():
	}
}

func (x *TCPExchanger) waitChan(key tcpExchangeKey) chan [payloadSize]byte {
	x.mu.Lock()
	defer x.mu.Unlock()

	if ch, ok := x.chans[key]; ok {
		return ch
	}
	var ch = make(chan [payloadSize]byte, 1)
	x.chans[key] = ch
	return ch
}

// Exchange dials peer, pushes local under tag, and returns peer's own
// payload once its listener answers from its matching pending registration.
func (x *TCPExchanger) Exchange(ctx context.Context, peer transport.PeerID, tag string, local [payloadSize]byte) ([payloadSize]byte, error) {
	var key = tcpExchangeKey{peer: peer, tag: tag}
	var ch = x.waitChan(key)
	select {
	case ch <- local:
	default:
	}

	var addr, ok = x.peers[peer]
	if !ok {
		return [payloadSize]byte{}, errors.Errorf("region: no address configured for peer %d", peer)
	}

	var dialer = net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr.String())
	if err != nil {
		return [payloadSize]byte{}, errors.Wrap(err, "dial")
	}
	defer conn.Close()

	var tagLen [2]byte
	binary.BigEndian.PutUint16(tagLen[:], uint16(len(tag)))

	var out = make([]byte, 0, 2+len(tag)+4+payloadSize)
	out = append(out, tagLen[:]...)
	out = append(out, tag...)
	var selfID [4]byte
	binary.BigEndian.PutUint32(selfID[:], uint32(x.self))
	out = append(out, selfID[:]...)
	out = append(out, local[:]...)

	if _, err := conn.Write(out); err != nil {
		return [payloadSize]byte{}, errors.Wrap(err, "write")
	}

	var in [payloadSize]byte
	if _, err := readFull(conn, in[:]); err != nil {
		return [payloadSize]byte{}, errors.Wrap(err, "read")
	}
	return in, nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	var n = 0
	for n < len(buf) {
		m, err := conn.Read(buf[n:])
		if err != nil {
			return n, err
		}
		n += m
	}
	return n, nil
}
