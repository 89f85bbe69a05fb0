package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManagerPair(t *testing.T) (mgrA, mgrB *Manager, net *LoopbackNetwork) {
	t.Helper()
	net = NewLoopbackNetwork()

	var peers = map[PeerID]Address{1: {IP: "x", Port: 1}, 2: {IP: "x", Port: 2}}
	mgrA = NewManager(&Config{Peers: peers}, NewLoopbackProvider(net, 1))
	mgrB = NewManager(&Config{Peers: peers}, NewLoopbackProvider(net, 2))
	return mgrA, mgrB, net
}

func TestManagerGetDialsLazily(t *testing.T) {
	mgrA, _, _ := newManagerPair(t)

	var handle = mgrA.Get(context.Background(), 2)
	conn, err := handle.Upgrade()
	require.NoError(t, err)
	assert.False(t, conn.Broken())
}

func TestManagerGetUnknownPeerFailsToUpgrade(t *testing.T) {
	mgrA, _, _ := newManagerPair(t)

	var handle = mgrA.Get(context.Background(), 99)
	_, err := handle.Upgrade()
	assert.ErrorIs(t, err, ErrConnectionRemoved)
}

func TestManagerMarkBrokenObservableThroughWeakHandle(t *testing.T) {
	mgrA, _, _ := newManagerPair(t)

	var handle = mgrA.Get(context.Background(), 2)
	mgrA.MarkBroken(2)

	conn, err := handle.Upgrade()
	require.NoError(t, err)
	assert.True(t, conn.Broken())
}

func TestManagerRemoveInvalidatesHandle(t *testing.T) {
	mgrA, _, _ := newManagerPair(t)

	var handle = mgrA.Get(context.Background(), 2)
	mgrA.Remove(2)

	_, err := handle.Upgrade()
	assert.ErrorIs(t, err, ErrConnectionRemoved)
}

func TestManagerShutdownInvalidatesAllHandles(t *testing.T) {
	mgrA, _, _ := newManagerPair(t)

	var h2 = mgrA.Get(context.Background(), 2)
	mgrA.Shutdown()

	_, err := h2.Upgrade()
	assert.ErrorIs(t, err, ErrConnectionRemoved)
}
