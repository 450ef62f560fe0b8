package codec_test

import (
	"math"
	"testing"

	gocmp "github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/flaxkv/flaxkv/internal/codec"
)

func TestEncodeDecodeKey_RoundTrip(t *testing.T) {
	cases := []codec.Key{
		codec.IntKey(0),
		codec.IntKey(-1),
		codec.IntKey(math.MaxInt64),
		codec.FloatKey(0),
		codec.FloatKey(3.14159),
		codec.FloatKey(-1.0 / 3.0),
		codec.BoolKey(true),
		codec.BoolKey(false),
		codec.StringKey(""),
		codec.StringKey("hello, world"),
		codec.BytesKey([]byte{0x00, 0xff, 0x10}),
		codec.GroupKey(codec.IntKey(1), codec.IntKey(2), codec.IntKey(3)),
		codec.GroupKey(codec.StringKey("a"), codec.IntKey(1)),
	}

	for _, k := range cases {
		encoded, err := codec.EncodeKey(k)
		require.NoError(t, err)

		decoded, err := codec.DecodeKey(encoded)
		require.NoError(t, err)

		require.Equal(t, k.Kind(), decoded.Kind())

		switch k.Kind() {
		case codec.KeyInt:
			require.Equal(t, k.Int(), decoded.Int())
		case codec.KeyFloat:
			require.Equal(t, k.Float(), decoded.Float())
		case codec.KeyBool:
			require.Equal(t, k.Bool(), decoded.Bool())
		case codec.KeyString:
			require.Equal(t, k.String(), decoded.String())
		case codec.KeyBytes:
			require.Equal(t, k.Bytes(), decoded.Bytes())
		case codec.KeyGroup:
			require.Len(t, decoded.Group(), len(k.Group()))
		}
	}
}

func TestEncodeKey_DistinctKindsDistinctBytes(t *testing.T) {
	// Integer 1 and text "1" must not collide.
	intEnc, err := codec.EncodeKey(codec.IntKey(1))
	require.NoError(t, err)

	strEnc, err := codec.EncodeKey(codec.StringKey("1"))
	require.NoError(t, err)

	require.NotEqual(t, intEnc, strEnc)
}

func TestEncodeKey_NaNRejected(t *testing.T) {
	_, err := codec.EncodeKey(codec.FloatKey(math.NaN()))
	require.Error(t, err)
}

func TestEncodeKey_TooLong(t *testing.T) {
	huge := make([]byte, codec.MaxKeyLength+1)

	_, err := codec.EncodeKey(codec.BytesKey(huge))
	require.ErrorIs(t, err, codec.ErrKeyTooLong)
}

func TestEncodeKey_GroupArityTooLarge(t *testing.T) {
	elems := make([]codec.Key, codec.MaxGroupArity+1)
	for i := range elems {
		elems[i] = codec.IntKey(int64(i))
	}

	_, err := codec.EncodeKey(codec.GroupKey(elems...))
	require.Error(t, err)
}

func TestDecodeKey_TruncatedBuffer(t *testing.T) {
	encoded, err := codec.EncodeKey(codec.StringKey("hello"))
	require.NoError(t, err)

	for n := range encoded {
		_, err := codec.DecodeKey(encoded[:n])
		require.Error(t, err)
	}
}

func TestDecodeKey_TrailingBytesRejected(t *testing.T) {
	encoded, err := codec.EncodeKey(codec.IntKey(1))
	require.NoError(t, err)

	_, err = codec.DecodeKey(append(encoded, 0xff))
	require.Error(t, err)
}

func TestEncodeKey_OrderPreservesGroupStructure(t *testing.T) {
	a, err := codec.EncodeKey(codec.GroupKey(codec.IntKey(1), codec.IntKey(2)))
	require.NoError(t, err)

	b, err := codec.EncodeKey(codec.GroupKey(codec.IntKey(2), codec.IntKey(1)))
	require.NoError(t, err)

	if diff := gocmp.Diff(a, b); diff == "" {
		t.Fatal("differently-ordered groups encoded identically")
	}
}
