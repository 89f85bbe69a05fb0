package region

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/glycerine/derecho/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPair(t *testing.T) (a, b *Region, cleanup func()) {
	t.Helper()

	var net = transport.NewLoopbackNetwork()
	var hub = NewLoopbackExchangerHub()

	var cfg = &transport.Config{Peers: map[transport.PeerID]transport.Address{
		1: {IP: "127.0.0.1", Port: 0},
		2: {IP: "127.0.0.1", Port: 0},
	}}
	cfg.LocalID.ID = 1
	cfg.Transport = transport.KindVerbs
	cfg.PredicatePollInterval = time.Millisecond

	var ctxA, err = transport.NewContext(cfg, transport.NewLoopbackProvider(net, 1))
	require.NoError(t, err)

	var cfgB = &transport.Config{Peers: cfg.Peers}
	cfgB.LocalID.ID = 2
	cfgB.Transport = transport.KindVerbs
	cfgB.PredicatePollInterval = time.Millisecond
	ctxB, err := transport.NewContext(cfgB, transport.NewLoopbackProvider(net, 2))
	require.NoError(t, err)

	// The descriptor exchange blocks until the other side has published, so
	// both Regions are constructed concurrently.
	var errA, errB error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); a, errA = New(context.Background(), ctxA, 2, 4096, hub.Exchanger(1)) }()
	go func() { defer wg.Done(); b, errB = New(context.Background(), ctxB, 1, 4096, hub.Exchanger(2)) }()
	wg.Wait()
	require.NoError(t, errA)
	require.NoError(t, errB)

	return a, b, func() {
		ctxA.Close()
		ctxB.Close()
	}
}

func TestRegionConstructionExchangesKeys(t *testing.T) {
	a, b, cleanup := newTestPair(t)
	defer cleanup()

	assert.NotZero(t, a.remoteKey)
	assert.NotZero(t, b.remoteKey)
	assert.Equal(t, a.Epoch, b.RemoteEpoch)
	assert.Equal(t, b.Epoch, a.RemoteEpoch)
}

func TestWriteRemoteDeliversBytes(t *testing.T) {
	a, b, cleanup := newTestPair(t)
	defer cleanup()

	copy(a.SendBuf(), []byte("hello, region"))

	ok, err := a.WriteRemote(0, len("hello, region"), false)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, "hello, region", string(b.RecvBuf()[:len("hello, region")]))
}

// S3: region size 4096. write_remote(4080, 16, false) succeeds;
// write_remote(4081, 16, false) is a precondition violation.
func TestWriteRemoteBoundsS3(t *testing.T) {
	a, b, cleanup := newTestPair(t)
	defer cleanup()
	_ = b

	ok, err := a.WriteRemote(4080, 16, false)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Panics(t, func() {
		_, _ = a.WriteRemote(4081, 16, false)
	})
}

func TestSyncRendezvous(t *testing.T) {
	a, b, cleanup := newTestPair(t)
	defer cleanup()

	var ctx, cancel = context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var doneA, doneB = make(chan error, 1), make(chan error, 1)
	go func() { _, err := a.Sync(ctx); doneA <- err }()
	go func() { _, err := b.Sync(ctx); doneB <- err }()

	assert.NoError(t, <-doneA)
	assert.NoError(t, <-doneB)
}
