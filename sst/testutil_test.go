package sst

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/glycerine/derecho/region"
	"github.com/glycerine/derecho/transport"
	"github.com/stretchr/testify/require"
)

// newTestTables builds n transport contexts sharing one LoopbackNetwork and
// one LoopbackExchangerHub, then a Table over each, all with the given
// field layout. Peer ids are 1..n.
func newTestTables(t *testing.T, n int, specs []FieldSpec) (tables []*Table, cleanup func()) {
	t.Helper()

	var net = transport.NewLoopbackNetwork()
	var hub = region.NewLoopbackExchangerHub()

	var peers = make(map[transport.PeerID]transport.Address, n)
	for i := 1; i <= n; i++ {
		peers[transport.PeerID(i)] = transport.Address{IP: "127.0.0.1", Port: 0}
	}

	var ctxs []*transport.Context
	var closeAll = func() {
		for _, c := range ctxs {
			c.Close()
		}
	}

	for i := 1; i <= n; i++ {
		var cfg = &transport.Config{Peers: peers, Transport: transport.KindVerbs, PredicatePollInterval: time.Millisecond}
		cfg.LocalID.ID = transport.PeerID(i)

		tctx, err := transport.NewContext(cfg, transport.NewLoopbackProvider(net, transport.PeerID(i)))
		require.NoError(t, err)
		ctxs = append(ctxs, tctx)
	}

	// Each region's descriptor exchange blocks until the peer has published
	// its own, so every Table is constructed concurrently.
	tables = make([]*Table, n)
	var errs = make([]error, n)
	var wg sync.WaitGroup
	for i := 1; i <= n; i++ {
		var i, self = i, transport.PeerID(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			tables[i-1], errs[i-1] = NewTable(context.Background(), ctxs[i-1], specs, func(peer transport.PeerID) region.Exchanger {
				return hub.Exchanger(self)
			})
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	return tables, closeAll
}
