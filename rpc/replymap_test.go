package rpc

import (
	"context"
	"testing"
	"time"

	"github.com/glycerine/derecho/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// S4: partial reply map — some peers answer, one is later removed from
// the group while its reply is still outstanding.
func TestQueryPartialReplyThenRemovedNode(t *testing.T) {
	var peers = []transport.PeerID{1, 2, 3}
	var q = NewQuery[string](peers)

	q.SetValue(1, "ok-from-1")
	q.SetValue(2, "ok-from-2")
	// peer 3 never replies before being evicted from the group.
	q.SetExceptionForRemovedNode(3)

	assert.True(t, q.Replies().Valid(1))
	assert.True(t, q.Replies().Valid(2))
	assert.False(t, q.Replies().Valid(3))

	v, err := q.Replies().Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "ok-from-1", v)

	_, err = q.Replies().Get(context.Background(), 3)
	require.Error(t, err)
	assert.True(t, IsNodeRemoved(err))
}

func TestQueryWaitAllCombinesErrors(t *testing.T) {
	var peers = []transport.PeerID{1, 2}
	var q = NewQuery[int](peers)

	q.SetValue(1, 10)
	q.SetException(2, RemoteExceptionOccurred(2, assertErr("boom")))

	var err = q.WaitAll(context.Background(), time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestQueryWaitAllNilWhenAllValues(t *testing.T) {
	var peers = []transport.PeerID{1, 2}
	var q = NewQuery[int](peers)

	q.SetValue(1, 10)
	q.SetValue(2, 20)

	assert.NoError(t, q.WaitAll(context.Background(), time.Second))
}

func TestReplyMapContainsAndUnknownPeer(t *testing.T) {
	var q = NewQuery[int]([]transport.PeerID{1})
	assert.True(t, q.Replies().Contains(1))
	assert.False(t, q.Replies().Contains(99))

	_, err := q.Replies().Get(context.Background(), 99)
	assert.ErrorIs(t, err, transport.ErrPeerUnknown)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
