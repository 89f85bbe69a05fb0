package sst

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/net/trace"
	"golang.org/x/sync/errgroup"
)

func addTrace(ctx context.Context, format string, args ...interface{}) {
	if tr, ok := trace.FromContext(ctx); ok {
		tr.LazyPrintf(format, args...)
	}
}

// Put pushes the entire local row to every other member, without waiting
// for hardware completion acknowledgement (spec.md §4.3 "put()").
func (t *Table) Put(ctx context.Context) error {
	return t.putRange(ctx, 0, t.rowWidth, false)
}

// PutField pushes only field f's bytes of the local row to every other
// member (spec.md §4.3 "put(field)").
func (t *Table) PutField(ctx context.Context, f FieldID) error {
	var fl = t.fields[f]
	return t.putRange(ctx, fl.Offset, fl.Width(), false)
}

// PutFieldWithCompletion is PutField but blocks for hardware completion of
// every peer's write before returning (spec.md §4.3
// "put_with_completion(field)").
func (t *Table) PutFieldWithCompletion(ctx context.Context, f FieldID) error {
	var fl = t.fields[f]
	return t.putRange(ctx, fl.Offset, fl.Width(), true)
}

func (t *Table) putRange(ctx context.Context, offset, size int, withCompletion bool) error {
	t.mu.Lock()
	var snapshot = make([]byte, size)
	copy(snapshot, t.localRow[offset:offset+size])
	t.mu.Unlock()

	var grp, gctx = errgroup.WithContext(ctx)
	for rank, reg := range t.regions {
		var rank, reg = rank, reg
		grp.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			copy(reg.SendBuf()[offset:offset+size], snapshot)
			_, err := reg.WriteRemote(offset, size, withCompletion)
			if err != nil {
				addTrace(ctx, " ... put to rank %d (peer %d) failed: %v", rank, t.PeerAt(rank), err)
				return errors.Wrapf(err, "sst: put to rank %d (peer %d)", rank, t.PeerAt(rank))
			}
			addTrace(ctx, "put(offset=%d, size=%d) => rank %d (peer %d)", offset, size, rank, t.PeerAt(rank))
			return nil
		})
	}
	return grp.Wait()
}

// SyncWithMembers rendezvouses with every other member, per spec.md §4.3
// "sync_with_members()": returns only once every peer has reached its own
// call, or the context expires / a peer's connection breaks.
func (t *Table) SyncWithMembers(ctx context.Context) error {
	var grp, gctx = errgroup.WithContext(ctx)
	for rank, reg := range t.regions {
		var rank, reg = rank, reg
		grp.Go(func() error {
			_, err := reg.Sync(gctx)
			if err != nil {
				addTrace(ctx, " ... sync_with_members, rank %d (peer %d) failed: %v", rank, t.PeerAt(rank), err)
				return errors.Wrapf(err, "sst: sync_with_members, rank %d (peer %d)", rank, t.PeerAt(rank))
			}
			addTrace(ctx, "sync_with_members() => rank %d (peer %d) reached", rank, t.PeerAt(rank))
			return nil
		})
	}
	return grp.Wait()
}
