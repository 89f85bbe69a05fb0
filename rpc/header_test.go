package rpc

import (
	"testing"

	"github.com/glycerine/derecho/transport"
	"github.com/stretchr/testify/assert"
)

// S5: header round-trip.
func TestHeaderRoundTrip(t *testing.T) {
	var h = Header{PayloadSize: 128, Opcode: 0xDEADBEEFCAFEBABE, From: transport.PeerID(3)}
	var buf = AllocateMessage(int(h.PayloadSize))
	PopulateHeader(buf, h)

	assert.Equal(t, h, RetrieveHeader(buf))
	assert.Len(t, buf, HeaderSize+128)
	assert.Len(t, Payload(buf), 128)
}

func TestPayloadViewSharesBackingArray(t *testing.T) {
	var buf = AllocateMessage(4)
	copy(Payload(buf), []byte{1, 2, 3, 4})
	assert.Equal(t, []byte{1, 2, 3, 4}, buf[HeaderSize:])
}
