// Command sst-counter-demo runs spec.md scenario S1 in-process: N simulated
// peers, each bumping its own counter field and putting it for a fixed number
// of rounds, then syncing with every member and checking that every peer's
// mirror of every other peer's counter equals the round count.
package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	flags "github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"

	"github.com/glycerine/derecho/internal/mbp"
	"github.com/glycerine/derecho/region"
	"github.com/glycerine/derecho/sst"
	"github.com/glycerine/derecho/transport"
)

var Config = new(struct {
	Peers  int           `long:"peers" default:"3" description:"Number of simulated peers"`
	Rounds int           `long:"rounds" default:"5" description:"Counter bumps per peer before settling"`
	Log    mbp.LogConfig `group:"Logging" namespace:"log" env-namespace:"LOG"`
})

func main() {
	var parser = flags.NewParser(Config, flags.Default)
	mbp.MustParseArgs(parser)
	Config.Log.MustConfigure()

	if err := run(Config.Peers, Config.Rounds); err != nil {
		log.WithError(err).Error("sst-counter-demo failed")
		color.Red("FAIL: %v", err)
		os.Exit(-1)
	}
	color.Green("OK: counters converged across %d peers", Config.Peers)
	os.Exit(0)
}

var counterField sst.FieldID = 0

func run(n, rounds int) error {
	var net = transport.NewLoopbackNetwork()
	var hub = region.NewLoopbackExchangerHub()

	var peers = make(map[transport.PeerID]transport.Address, n)
	for i := 1; i <= n; i++ {
		peers[transport.PeerID(i)] = transport.Address{IP: "127.0.0.1", Port: 0}
	}

	var tables = make([]*sst.Table, n)
	var ctxs = make([]*transport.Context, 0, n)
	defer func() {
		for _, c := range ctxs {
			c.Close()
		}
	}()

	for i := 1; i <= n; i++ {
		var cfg = &transport.Config{
			Peers:                 peers,
			Transport:             transport.KindVerbs,
			PredicatePollInterval: time.Millisecond,
		}
		cfg.LocalID.ID = transport.PeerID(i)

		tctx, err := transport.NewContext(cfg, transport.NewLoopbackProvider(net, transport.PeerID(i)))
		if err != nil {
			return fmt.Errorf("constructing transport context for peer %d: %w", i, err)
		}
		ctxs = append(ctxs, tctx)
	}

	// Each region's descriptor exchange blocks until the peer has published
	// its own, so every peer's table is constructed concurrently.
	var errs = make([]error, n)
	var wg sync.WaitGroup
	for i := 1; i <= n; i++ {
		var i, self = i, transport.PeerID(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			tables[i-1], errs[i-1] = sst.NewTable(context.Background(), ctxs[i-1],
				[]sst.FieldSpec{sst.ScalarU32("counter")},
				func(peer transport.PeerID) region.Exchanger { return hub.Exchanger(self) },
			)
		}()
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("constructing table for peer %d: %w", i+1, err)
		}
	}

	var ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for round := 1; round <= rounds; round++ {
		for _, tbl := range tables {
			var cur = tbl.GetUint32(tbl.LocalRank(), counterField)
			tbl.SetUint32(tbl.LocalRank(), counterField, cur+1)
			if err := tbl.Put(ctx); err != nil {
				return fmt.Errorf("put round %d: %w", round, err)
			}
		}
		log.WithField("round", round).Info("counters bumped")
	}

	for _, tbl := range tables {
		if err := tbl.SyncWithMembers(ctx); err != nil {
			return fmt.Errorf("sync_with_members: %w", err)
		}
	}

	for _, tbl := range tables {
		for rank := 0; rank < tbl.NumRows(); rank++ {
			var want = uint32(rounds)
			var got = tbl.GetUint32(rank, counterField)
			if got != want {
				return fmt.Errorf("peer %d's mirror of rank %d: want counter %d, got %d",
					tbl.PeerAt(tbl.LocalRank()), rank, want, got)
			}
		}
	}
	return nil
}
