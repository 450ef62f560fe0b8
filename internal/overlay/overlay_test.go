package overlay_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flaxkv/flaxkv/internal/engine"
	"github.com/flaxkv/flaxkv/internal/overlay"
)

func TestOverlay_StagePutThenLookup(t *testing.T) {
	ov := overlay.New()

	ov.StagePut([]byte("k"), []byte("v1"))

	res := ov.Lookup([]byte("k"))
	require.Equal(t, overlay.Hit, res.State)
	require.Equal(t, []byte("v1"), res.Value)
}

func TestOverlay_LaterWriteReplacesEarlier(t *testing.T) {
	ov := overlay.New()

	ov.StagePut([]byte("k"), []byte("v1"))
	ov.StagePut([]byte("k"), []byte("v2"))

	res := ov.Lookup([]byte("k"))
	require.Equal(t, overlay.Hit, res.State)
	require.Equal(t, []byte("v2"), res.Value)
}

func TestOverlay_StageDeleteClearsBuffer(t *testing.T) {
	ov := overlay.New()

	ov.StagePut([]byte("k"), []byte("v1"))
	ov.StageDelete([]byte("k"))

	res := ov.Lookup([]byte("k"))
	require.Equal(t, overlay.Tombstoned, res.State)
}

func TestOverlay_PutAfterDeleteClearsTombstone(t *testing.T) {
	ov := overlay.New()

	ov.StageDelete([]byte("k"))
	ov.StagePut([]byte("k"), []byte("v1"))

	res := ov.Lookup([]byte("k"))
	require.Equal(t, overlay.Hit, res.State)
	require.Equal(t, []byte("v1"), res.Value)
}

func TestOverlay_LookupMiss(t *testing.T) {
	ov := overlay.New()

	res := ov.Lookup([]byte("nope"))
	require.Equal(t, overlay.Miss, res.State)
}

func TestOverlay_DrainEmptiesOverlayAndPreservesOrder(t *testing.T) {
	ov := overlay.New()

	ov.StagePut([]byte("a"), []byte("1"))
	ov.StagePut([]byte("b"), []byte("2"))
	ov.StageDelete([]byte("c"))

	require.Equal(t, 3, ov.Size())

	batch := ov.Drain()
	require.Len(t, batch, 3)
	require.Equal(t, "a", string(batch[0].Key))
	require.Equal(t, engine.OpPut, batch[0].Kind)
	require.Equal(t, "b", string(batch[1].Key))
	require.Equal(t, "c", string(batch[2].Key))
	require.Equal(t, engine.OpDelete, batch[2].Kind)

	require.Equal(t, 0, ov.Size())
	require.Equal(t, overlay.Miss, ov.Lookup([]byte("a")).State)
}

func TestOverlay_DrainDedupsRepeatedKey(t *testing.T) {
	ov := overlay.New()

	ov.StagePut([]byte("k"), []byte("1"))
	ov.StagePut([]byte("k"), []byte("2"))
	ov.StagePut([]byte("k"), []byte("3"))

	batch := ov.Drain()
	require.Len(t, batch, 1)
	require.Equal(t, []byte("3"), batch[0].Value)
}

func TestOverlay_TakeSnapshotIsPointInTime(t *testing.T) {
	ov := overlay.New()

	ov.StagePut([]byte("k"), []byte("v1"))

	snap := ov.TakeSnapshot()

	ov.StagePut([]byte("k"), []byte("v2"))

	require.Equal(t, []byte("v1"), snap.Buffer["k"])
	require.Equal(t, []byte("v2"), ov.Lookup([]byte("k")).Value)
}

func TestOverlay_RestageNewerWinsDiscardsStaleOp(t *testing.T) {
	ov := overlay.New()

	ov.StagePut([]byte("k"), []byte("old"))
	batch := ov.Drain()

	// A newer write lands after the batch was drained but before commit
	// is known to have failed.
	ov.StagePut([]byte("k"), []byte("new"))

	ov.RestageNewerWins(batch)

	res := ov.Lookup([]byte("k"))
	require.Equal(t, overlay.Hit, res.State)
	require.Equal(t, []byte("new"), res.Value)
}

func TestOverlay_RestageNewerWinsRecoversUncontendedOps(t *testing.T) {
	ov := overlay.New()

	ov.StagePut([]byte("a"), []byte("1"))
	ov.StageDelete([]byte("b"))

	batch := ov.Drain()
	require.Equal(t, 0, ov.Size())

	ov.RestageNewerWins(batch)

	require.Equal(t, 2, ov.Size())
	require.Equal(t, overlay.Hit, ov.Lookup([]byte("a")).State)
	require.Equal(t, overlay.Tombstoned, ov.Lookup([]byte("b")).State)
}

func TestOverlay_SizeCountsDistinctKeys(t *testing.T) {
	ov := overlay.New()

	require.Equal(t, 0, ov.Size())

	ov.StagePut([]byte("a"), []byte("1"))
	ov.StagePut([]byte("a"), []byte("2"))
	ov.StageDelete([]byte("b"))

	require.Equal(t, 2, ov.Size())
}
