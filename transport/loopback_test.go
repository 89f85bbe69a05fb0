package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopbackWriteRemoteRejectsOutOfBoundsLocal(t *testing.T) {
	var net = NewLoopbackNetwork()
	var p = NewLoopbackProvider(net, 1)

	var buf = make([]byte, 8)
	mem, err := p.Register(buf, RegisterHint{})
	require.NoError(t, err)

	ep, err := p.Dial(context.Background(), 2, Address{})
	require.NoError(t, err)

	assert.Error(t, ep.WriteRemote(mem, 4, mem.LocalKey(), 0, 8, false))
}

func TestLoopbackWriteRemoteUnknownKey(t *testing.T) {
	var net = NewLoopbackNetwork()
	var p = NewLoopbackProvider(net, 1)

	var buf = make([]byte, 8)
	mem, err := p.Register(buf, RegisterHint{})
	require.NoError(t, err)

	ep, err := p.Dial(context.Background(), 2, Address{})
	require.NoError(t, err)

	assert.ErrorIs(t, ep.WriteRemote(mem, 0, 99999, 0, 4, false), ErrConnectionRemoved)
}

func TestLoopbackRegisterHonorsKeyHint(t *testing.T) {
	var net = NewLoopbackNetwork()
	var p = NewLoopbackProvider(net, 1)

	var want uint64 = 777
	mem, err := p.Register(make([]byte, 4), RegisterHint{Key: &want})
	require.NoError(t, err)
	assert.Equal(t, want, mem.LocalKey())
}

func TestLoopbackEndpointCloseBreaksFurtherWrites(t *testing.T) {
	var net = NewLoopbackNetwork()
	var p = NewLoopbackProvider(net, 1)

	mem, err := p.Register(make([]byte, 4), RegisterHint{})
	require.NoError(t, err)

	ep, err := p.Dial(context.Background(), 2, Address{})
	require.NoError(t, err)
	require.NoError(t, ep.Close())

	assert.ErrorIs(t, ep.WriteRemote(mem, 0, mem.LocalKey(), 0, 4, false), ErrConnectionBroken)
}
