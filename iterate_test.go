package flaxkv

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flaxkv/flaxkv/internal/codec"
	"github.com/flaxkv/flaxkv/internal/engine"
	"github.com/flaxkv/flaxkv/internal/overlay"
)

func encodeKeyT(t *testing.T, k Key) []byte {
	t.Helper()

	b, err := codec.EncodeKey(k)
	require.NoError(t, err)

	return b
}

func encodeValueT(t *testing.T, v Value) []byte {
	t.Helper()

	b, err := codec.EncodeValue(v)
	require.NoError(t, err)

	return b
}

func TestIterator_MergesEngineAndOverlay(t *testing.T) {
	eng := engine.NewMem()
	ov := overlay.New()

	require.NoError(t, eng.CommitBatch(engine.Batch{
		{Kind: engine.OpPut, Key: encodeKeyT(t, IntKey(1)), Value: encodeValueT(t, StringValue("one"))},
		{Kind: engine.OpPut, Key: encodeKeyT(t, IntKey(3)), Value: encodeValueT(t, StringValue("three"))},
	}))

	ov.StagePut(encodeKeyT(t, IntKey(2)), encodeValueT(t, StringValue("two")))

	it, err := newIterator(eng, ov, nil, nil)
	require.NoError(t, err)
	defer it.Close()

	var got []string

	for it.Next() {
		v, err := it.Value()
		require.NoError(t, err)
		got = append(got, v.String())
	}
	require.NoError(t, it.Err())

	require.Equal(t, []string{"one", "two", "three"}, got)
}

func TestIterator_OverlaySuppressesTombstonedEngineRecord(t *testing.T) {
	eng := engine.NewMem()
	ov := overlay.New()

	require.NoError(t, eng.CommitBatch(engine.Batch{
		{Kind: engine.OpPut, Key: encodeKeyT(t, IntKey(1)), Value: encodeValueT(t, StringValue("one"))},
	}))

	ov.StageDelete(encodeKeyT(t, IntKey(1)))

	it, err := newIterator(eng, ov, nil, nil)
	require.NoError(t, err)
	defer it.Close()

	require.False(t, it.Next())
	require.NoError(t, it.Err())
}

func TestIterator_OverlayWinsOverEngineForSameKey(t *testing.T) {
	eng := engine.NewMem()
	ov := overlay.New()

	require.NoError(t, eng.CommitBatch(engine.Batch{
		{Kind: engine.OpPut, Key: encodeKeyT(t, IntKey(1)), Value: encodeValueT(t, StringValue("old"))},
	}))

	ov.StagePut(encodeKeyT(t, IntKey(1)), encodeValueT(t, StringValue("new")))

	it, err := newIterator(eng, ov, nil, nil)
	require.NoError(t, err)
	defer it.Close()

	require.True(t, it.Next())

	v, err := it.Value()
	require.NoError(t, err)
	require.Equal(t, "new", v.String())

	require.False(t, it.Next())
}

func TestIterator_RespectsBounds(t *testing.T) {
	eng := engine.NewMem()
	ov := overlay.New()

	for i := int64(0); i < 5; i++ {
		require.NoError(t, eng.CommitBatch(engine.Batch{
			{Kind: engine.OpPut, Key: encodeKeyT(t, IntKey(i)), Value: encodeValueT(t, Int64Value(i))},
		}))
	}

	start := encodeKeyT(t, IntKey(1))
	end := encodeKeyT(t, IntKey(4))

	it, err := newIterator(eng, ov, start, end)
	require.NoError(t, err)
	defer it.Close()

	var got []int64

	for it.Next() {
		v, err := it.Value()
		require.NoError(t, err)
		got = append(got, v.Int())
	}

	require.Equal(t, []int64{1, 2, 3}, got)
}

func TestIterator_EmptyStoreProducesNoRecords(t *testing.T) {
	eng := engine.NewMem()
	ov := overlay.New()

	it, err := newIterator(eng, ov, nil, nil)
	require.NoError(t, err)
	defer it.Close()

	require.False(t, it.Next())
	require.NoError(t, it.Err())
}
