// Package region implements the Memory Region of spec.md §3/§4.2: a
// per-peer pair of registered send/receive buffers with exchanged remote
// keys and remote virtual addresses, exposing write_remote and sync.
package region

import "encoding/binary"

// WireRecordSize is the fixed, big-endian, 16-byte Memory-Region exchange
// record of spec.md §6:
//
//	offset 0 : u64 mr_key
//	offset 8 : u64 vaddr
const WireRecordSize = 16

// WireRecord is the in-process representation of the exchange record.
type WireRecord struct {
	MRKey uint64
	VAddr uint64
}

// Encode serializes r into a fresh WireRecordSize-byte, big-endian buffer.
func (r WireRecord) Encode() []byte {
	var buf = make([]byte, WireRecordSize)
	binary.BigEndian.PutUint64(buf[0:8], r.MRKey)
	binary.BigEndian.PutUint64(buf[8:16], r.VAddr)
	return buf
}

// DecodeWireRecord parses a WireRecordSize-byte, big-endian buffer.
func DecodeWireRecord(buf []byte) WireRecord {
	if len(buf) != WireRecordSize {
		panic("region: wire record must be exactly WireRecordSize bytes")
	}
	return WireRecord{
		MRKey: binary.BigEndian.Uint64(buf[0:8]),
		VAddr: binary.BigEndian.Uint64(buf[8:16]),
	}
}
