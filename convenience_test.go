package flaxkv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConvenience_StringRoundTrip(t *testing.T) {
	s := openMemStore(t, Config{})

	require.NoError(t, s.PutString(StringKey("a"), "hello"))

	v, err := s.GetString(StringKey("a"))
	require.NoError(t, err)
	require.Equal(t, "hello", v)
}

func TestConvenience_Int64RoundTrip(t *testing.T) {
	s := openMemStore(t, Config{})

	require.NoError(t, s.PutInt64(StringKey("a"), 7))

	v, err := s.GetInt64(StringKey("a"))
	require.NoError(t, err)
	require.Equal(t, int64(7), v)
}

func TestConvenience_WrongKindIsError(t *testing.T) {
	s := openMemStore(t, Config{})

	require.NoError(t, s.PutString(StringKey("a"), "hello"))

	_, err := s.GetInt64(StringKey("a"))
	require.ErrorIs(t, err, ErrWrongKind)
}
