package codec_test

import (
	"testing"

	gocmp "github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/flaxkv/flaxkv/internal/codec"
)

func roundTrip(t *testing.T, v codec.Value) codec.Value {
	t.Helper()

	encoded, err := codec.EncodeValue(v)
	require.NoError(t, err)

	decoded, err := codec.DecodeValue(encoded)
	require.NoError(t, err)

	return decoded
}

func TestEncodeDecodeValue_Scalars(t *testing.T) {
	require.Equal(t, int64(42), roundTrip(t, codec.Int64Value(42)).Int())
	require.InDelta(t, 2.5, roundTrip(t, codec.Float64Value(2.5)).Float(), 0)
	require.True(t, roundTrip(t, codec.BoolValue(true)).Bool())
	require.Equal(t, "hello", roundTrip(t, codec.StringValue("hello")).String())
	require.Equal(t, []byte{1, 2, 3}, roundTrip(t, codec.BytesValue([]byte{1, 2, 3})).Bytes())
}

func TestEncodeDecodeValue_Sequence(t *testing.T) {
	// This is also the only representation any ordered-set or group
	// input degrades to: there is no separate variant to lose fidelity
	// against.
	v := codec.SequenceValue([]codec.Value{
		codec.Int64Value(1),
		codec.StringValue("two"),
		codec.BoolValue(true),
	})

	decoded := roundTrip(t, v)

	require.Equal(t, codec.ValSequence, decoded.Kind())
	require.Len(t, decoded.Sequence(), 3)
	require.Equal(t, int64(1), decoded.Sequence()[0].Int())
	require.Equal(t, "two", decoded.Sequence()[1].String())
	require.True(t, decoded.Sequence()[2].Bool())
}

func TestEncodeDecodeValue_Map(t *testing.T) {
	v := codec.MapValue(map[string]codec.Value{
		"a": codec.Int64Value(1),
		"b": codec.StringValue("x"),
	})

	decoded := roundTrip(t, v)

	require.Equal(t, codec.ValMap, decoded.Kind())
	require.Equal(t, int64(1), decoded.Map()["a"].Int())
	require.Equal(t, "x", decoded.Map()["b"].String())
}

func TestEncodeDecodeValue_NDArray(t *testing.T) {
	arr := codec.NDArray{
		DType: "float64",
		Shape: []int{2, 2},
		Data:  []byte{0, 1, 2, 3, 4, 5, 6, 7},
	}

	decoded := roundTrip(t, codec.NDArrayValue(arr))

	require.Equal(t, codec.ValNDArray, decoded.Kind())

	got := decoded.NDArray()
	require.Equal(t, arr.DType, got.DType)
	require.Equal(t, arr.Shape, got.Shape)
	require.Equal(t, arr.Data, got.Data)
}

func TestEncodeDecodeValue_NestedSequenceOfMaps(t *testing.T) {
	v := codec.SequenceValue([]codec.Value{
		codec.MapValue(map[string]codec.Value{"id": codec.Int64Value(1)}),
		codec.MapValue(map[string]codec.Value{"id": codec.Int64Value(2)}),
	})

	decoded := roundTrip(t, v)

	if diff := gocmp.Diff(v.Sequence()[0].Map()["id"].Int(), decoded.Sequence()[0].Map()["id"].Int()); diff != "" {
		t.Fatalf("nested round-trip mismatch: %s", diff)
	}

	require.Equal(t, int64(2), decoded.Sequence()[1].Map()["id"].Int())
}
