// Package rpc implements the reply-tracking core of spec.md §5: fixed RPC
// header framing plus Pending/Query futures keyed by peer, so a caller that
// fans an RPC out to every member of a group can wait on (or inspect) each
// peer's reply independently.
package rpc

import (
	"encoding/binary"

	"github.com/glycerine/derecho/transport"
)

// HeaderSize is the fixed byte width of an RPC header, per spec.md §4.5
// "populate_header/retrieve_header... native byte order": payload_size (8
// bytes) + opcode (8 bytes) + from (4 bytes).
const HeaderSize = 20

// Header is the fixed framing prefix of every RPC message. Opcode is
// 64-bit per spec.md §4.5, wide enough to carry a method pointer or similar
// dispatch tag without truncation.
type Header struct {
	PayloadSize uint64
	Opcode      uint64
	From        transport.PeerID
}

// PopulateHeader writes h into buf[:HeaderSize]. buf must be at least
// HeaderSize bytes.
func PopulateHeader(buf []byte, h Header) {
	binary.NativeEndian.PutUint64(buf[0:8], h.PayloadSize)
	binary.NativeEndian.PutUint64(buf[8:16], h.Opcode)
	binary.NativeEndian.PutUint32(buf[16:20], uint32(h.From))
}

// RetrieveHeader reads the header out of buf[:HeaderSize].
func RetrieveHeader(buf []byte) Header {
	return Header{
		PayloadSize: binary.NativeEndian.Uint64(buf[0:8]),
		Opcode:      binary.NativeEndian.Uint64(buf[8:16]),
		From:        transport.PeerID(binary.NativeEndian.Uint32(buf[16:20])),
	}
}

// AllocateMessage reserves HeaderSize bytes followed by payloadLen bytes,
// matching spec.md §5's "an allocator reserving header_space + N bytes" so
// callers never hand-roll the offset arithmetic.
func AllocateMessage(payloadLen int) []byte {
	return make([]byte, HeaderSize+payloadLen)
}

// Payload returns the mutable payload slice of a buffer allocated by
// AllocateMessage (or otherwise at least HeaderSize bytes long).
func Payload(buf []byte) []byte {
	return buf[HeaderSize:]
}
