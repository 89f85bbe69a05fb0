package sst

import (
	"context"
	"fmt"
	"sync"

	"github.com/glycerine/derecho/region"
	"github.com/glycerine/derecho/transport"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ErrForeignRowWrite is returned (as a panic, matching region.WriteRemote's
// S3 precondition style) when a caller attempts to write a row other than
// local_rank's, per spec.md §4.3 invariant 4.
var ErrForeignRowWrite = errors.New("sst: write to non-local row is a programming error")

// The row stride is held in the unexported Table.rowWidth field.

// Table is the Shared State Table of spec.md §3/§4.3: one row per member,
// indexed by rank (ascending peer id order), mirrored pairwise over
// one-sided remote writes. LocalRank's row is the only one this process
// may write; every other row is a read-only mirror of a peer's writes.
type Table struct {
	cfg       *transport.Config
	mgr       *transport.Manager
	ranks     []transport.PeerID // rank -> peer id, ascending
	localRank int
	rowWidth  int
	fields    []fieldLayout

	mu       sync.Mutex
	localRow []byte

	regions map[int]*region.Region // rank -> region bound to that peer
}

// Manager returns the transport Manager backing this table's connections,
// for wiring a HeartbeatMonitor or other failure-detection machinery.
func (t *Table) Manager() *transport.Manager { return t.mgr }

// NewTable constructs a Table over cfg's membership, laying out fields in
// the order given, and establishing a region.Region to every other member.
// exchFor returns the Exchanger to use for a given peer (allowing callers
// to plug in region.TCPExchanger, region.LoopbackExchanger, or similar).
func NewTable(ctx context.Context, tctx *transport.Context, specs []FieldSpec, exchFor func(transport.PeerID) region.Exchanger) (*Table, error) {
	if err := tctx.Config.Validate(); err != nil {
		return nil, errors.Wrap(err, "sst: invalid transport config")
	}

	var layout, width = layoutFields(specs)
	var ranks = tctx.Config.Ranks()
	var localRank = tctx.Config.LocalRank()

	var t = &Table{
		cfg:       tctx.Config,
		mgr:       tctx.Manager,
		ranks:     ranks,
		localRank: localRank,
		rowWidth:  width,
		fields:    layout,
		localRow:  make([]byte, width),
		regions:   make(map[int]*region.Region, len(ranks)-1),
	}

	for rank, peer := range ranks {
		if rank == localRank {
			continue
		}
		reg, err := region.New(ctx, tctx, peer, width, exchFor(peer))
		if err != nil {
			return nil, errors.Wrapf(err, "sst: constructing region for peer %d", peer)
		}
		t.regions[rank] = reg
		log.WithFields(log.Fields{"peer": peer, "rank": rank}).Info("sst: row region established")
	}

	return t, nil
}

// NumRows is the table's member count (== len(cfg.Peers)).
func (t *Table) NumRows() int { return len(t.ranks) }

// LocalRank is this process's row index.
func (t *Table) LocalRank() int { return t.localRank }

// PeerAt returns the peer id owning row rank.
func (t *Table) PeerAt(rank int) transport.PeerID { return t.ranks[rank] }

func (t *Table) rowBuf(rank int) []byte {
	if rank == t.localRank {
		return t.localRow
	}
	var reg, ok = t.regions[rank]
	if !ok {
		panic(fmt.Sprintf("sst: no such row: %d", rank))
	}
	return reg.RecvBuf()
}

// GetUint32 reads field f of row rank. Mirror rows may be observed
// mid-update by a concurrent remote write (spec.md §4.3 invariant 5); this
// is read without additional synchronization, matching that guarantee.
func (t *Table) GetUint32(rank int, f FieldID) uint32 {
	var fl = t.fields[f]
	if rank == t.localRank {
		t.mu.Lock()
		defer t.mu.Unlock()
	}
	return getUint32At(t.rowBuf(rank), fl.Offset)
}

// GetUint64 reads field f of row rank (see GetUint32 for atomicity notes).
func (t *Table) GetUint64(rank int, f FieldID) uint64 {
	var fl = t.fields[f]
	if rank == t.localRank {
		t.mu.Lock()
		defer t.mu.Unlock()
	}
	return getUint64At(t.rowBuf(rank), fl.Offset)
}

// GetBytes reads the raw bytes of field f of row rank, returning a copy.
func (t *Table) GetBytes(rank int, f FieldID) []byte {
	var fl = t.fields[f]
	if rank == t.localRank {
		t.mu.Lock()
		defer t.mu.Unlock()
	}
	var buf = t.rowBuf(rank)
	var out = make([]byte, fl.Width())
	copy(out, buf[fl.Offset:fl.Offset+fl.Width()])
	return out
}

// SetUint32 writes field f of local_rank's row. Writing any other rank is
// a programming error and panics, per spec.md §4.3 invariant 4.
func (t *Table) SetUint32(rank int, f FieldID, v uint32) {
	t.mustBeLocal(rank)
	var fl = t.fields[f]
	t.mu.Lock()
	defer t.mu.Unlock()
	putUint32At(t.localRow, fl.Offset, v)
}

// SetUint64 writes field f of local_rank's row (see SetUint32).
func (t *Table) SetUint64(rank int, f FieldID, v uint64) {
	t.mustBeLocal(rank)
	var fl = t.fields[f]
	t.mu.Lock()
	defer t.mu.Unlock()
	putUint64At(t.localRow, fl.Offset, v)
}

// SetBytes writes the raw bytes of field f of local_rank's row.
func (t *Table) SetBytes(rank int, f FieldID, data []byte) {
	t.mustBeLocal(rank)
	var fl = t.fields[f]
	if len(data) != fl.Width() {
		panic(fmt.Sprintf("sst: field %q expects %d bytes, got %d", fl.Name, fl.Width(), len(data)))
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	copy(t.localRow[fl.Offset:fl.Offset+fl.Width()], data)
}

func (t *Table) mustBeLocal(rank int) {
	if rank != t.localRank {
		panic(ErrForeignRowWrite)
	}
}
