package sst

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// S1: three-peer counter replication. Each peer bumps its own counter field
// and puts it; every peer eventually observes every other peer's count.
func TestPutReplicatesCounterAcrossMembers(t *testing.T) {
	var specs = []FieldSpec{ScalarU32("counter")}
	var counterField FieldID = 0

	tables, cleanup := newTestTables(t, 3, specs)
	defer cleanup()

	var ctx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for rank, tbl := range tables {
		tbl.SetUint32(tbl.LocalRank(), counterField, uint32(10*(rank+1)))
		require.NoError(t, tbl.Put(ctx))
	}

	for _, tbl := range tables {
		for rank := 0; rank < tbl.NumRows(); rank++ {
			assert.Equal(t, uint32(10*(rank+1)), tbl.GetUint32(rank, counterField))
		}
	}
}

func TestPutFieldOnlyTouchesDeclaredField(t *testing.T) {
	var specs = []FieldSpec{ScalarU32("a"), ScalarU32("b")}
	var fieldA, fieldB FieldID = 0, 1

	tables, cleanup := newTestTables(t, 2, specs)
	defer cleanup()

	var ctx = context.Background()

	tables[0].SetUint32(tables[0].LocalRank(), fieldA, 111)
	tables[0].SetUint32(tables[0].LocalRank(), fieldB, 222)
	require.NoError(t, tables[0].PutField(ctx, fieldA))

	var remoteRank = tables[0].LocalRank()
	assert.Equal(t, uint32(111), tables[1].GetUint32(remoteRank, fieldA))
	assert.Equal(t, uint32(0), tables[1].GetUint32(remoteRank, fieldB))
}

func TestSetOnForeignRowPanics(t *testing.T) {
	var specs = []FieldSpec{ScalarU32("counter")}
	tables, cleanup := newTestTables(t, 2, specs)
	defer cleanup()

	var foreignRank = 1 - tables[0].LocalRank()
	assert.PanicsWithValue(t, ErrForeignRowWrite, func() {
		tables[0].SetUint32(foreignRank, 0, 1)
	})
}

func TestSyncWithMembersAllReturn(t *testing.T) {
	var specs = []FieldSpec{ScalarU32("counter")}
	tables, cleanup := newTestTables(t, 3, specs)
	defer cleanup()

	var ctx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var done = make(chan error, len(tables))
	for _, tbl := range tables {
		var tbl = tbl
		go func() { done <- tbl.SyncWithMembers(ctx) }()
	}
	for range tables {
		assert.NoError(t, <-done)
	}
}
