package flaxkv

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openMemStore(t *testing.T, cfg Config) *Store {
	t.Helper()

	cfg.EngineKind = EngineMemory

	s, err := Open(cfg)
	require.NoError(t, err)

	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	s := openMemStore(t, Config{})

	require.NoError(t, s.Put(StringKey("a"), Int64Value(42)))

	v, err := s.Get(StringKey("a"))
	require.NoError(t, err)
	require.Equal(t, int64(42), v.Int())
}

func TestStore_GetMissingReturnsNotFound(t *testing.T) {
	s := openMemStore(t, Config{})

	_, err := s.Get(StringKey("missing"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ReadYourWritesBeforeFlush(t *testing.T) {
	s := openMemStore(t, Config{FlushInterval: -1, HighWaterMark: -1})

	require.NoError(t, s.Put(IntKey(7), StringValue("seven")))

	v, err := s.Get(IntKey(7))
	require.NoError(t, err)
	require.Equal(t, "seven", v.String())
}

func TestStore_DeleteThenGetIsNotFound(t *testing.T) {
	s := openMemStore(t, Config{})

	require.NoError(t, s.Put(StringKey("a"), BoolValue(true)))
	require.NoError(t, s.Delete(StringKey("a")))

	_, err := s.Get(StringKey("a"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_DeleteMissingIsNotFound(t *testing.T) {
	s := openMemStore(t, Config{})

	err := s.Delete(StringKey("never-existed"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ContainsReflectsOverlayAndEngine(t *testing.T) {
	s := openMemStore(t, Config{})

	ok, err := s.Contains(StringKey("a"))
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Put(StringKey("a"), Int64Value(1)))

	ok, err = s.Contains(StringKey("a"))
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.Delete(StringKey("a")))

	ok, err = s.Contains(StringKey("a"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStore_PopReturnsAndRemoves(t *testing.T) {
	s := openMemStore(t, Config{})

	require.NoError(t, s.Put(StringKey("a"), Int64Value(99)))

	v, err := s.Pop(StringKey("a"))
	require.NoError(t, err)
	require.Equal(t, int64(99), v.Int())

	_, err = s.Get(StringKey("a"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_PopMissingIsNotFound(t *testing.T) {
	s := openMemStore(t, Config{})

	_, err := s.Pop(StringKey("missing"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SetDefaultInsertsOnlyOnce(t *testing.T) {
	s := openMemStore(t, Config{})

	v, err := s.SetDefault(StringKey("a"), Int64Value(1))
	require.NoError(t, err)
	require.Equal(t, int64(1), v.Int())

	v, err = s.SetDefault(StringKey("a"), Int64Value(2))
	require.NoError(t, err)
	require.Equal(t, int64(1), v.Int())
}

func TestStore_UpdateStagesEveryEntry(t *testing.T) {
	s := openMemStore(t, Config{})

	err := s.Update([]Entry{
		{Key: StringKey("a"), Value: Int64Value(1)},
		{Key: StringKey("b"), Value: Int64Value(2)},
	})
	require.NoError(t, err)

	va, err := s.Get(StringKey("a"))
	require.NoError(t, err)
	require.Equal(t, int64(1), va.Int())

	vb, err := s.Get(StringKey("b"))
	require.NoError(t, err)
	require.Equal(t, int64(2), vb.Int())
}

func TestStore_MixedKeyKindsAndGroupKeys(t *testing.T) {
	s := openMemStore(t, Config{})

	keys := []Key{
		IntKey(1),
		FloatKey(3.5),
		BoolKey(true),
		StringKey("x"),
		BytesKey([]byte{1, 2}),
		GroupKey(StringKey("user"), IntKey(42)),
	}

	for i, k := range keys {
		require.NoError(t, s.Put(k, Int64Value(int64(i))))
	}

	for i, k := range keys {
		v, err := s.Get(k)
		require.NoError(t, err)
		require.Equal(t, int64(i), v.Int())
	}
}

func TestStore_FlushNowMakesWritesDurableInEngine(t *testing.T) {
	s := openMemStore(t, Config{FlushInterval: -1, HighWaterMark: -1})

	require.NoError(t, s.Put(StringKey("a"), Int64Value(1)))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, s.FlushNow(ctx))

	n, err := s.LenExact(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestStore_ConcurrentWritesAllVisible(t *testing.T) {
	s := openMemStore(t, Config{})

	const (
		workers  = 8
		perWorker = 1250
	)

	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)

		go func(base int) {
			defer wg.Done()

			for i := 0; i < perWorker; i++ {
				k := IntKey(int64(base*perWorker + i))
				require.NoError(t, s.Put(k, Int64Value(int64(base))))
			}
		}(w)
	}

	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	n, err := s.LenExact(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(workers*perWorker), n)
}

func TestStore_PutDeleteContainsFlushReopen(t *testing.T) {
	dir := t.TempDir()

	cfg := Config{Path: dir, EngineKind: EngineMmapBTree, FlushInterval: -1, HighWaterMark: -1}

	s, err := Open(cfg)
	require.NoError(t, err)

	require.NoError(t, s.Put(StringKey("a"), Int64Value(1)))
	require.NoError(t, s.Put(StringKey("b"), Int64Value(2)))
	require.NoError(t, s.Delete(StringKey("b")))

	ok, err := s.Contains(StringKey("b"))
	require.NoError(t, err)
	require.False(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.FlushNow(ctx))
	require.NoError(t, s.Close())

	reopened, err := Open(cfg)
	require.NoError(t, err)
	defer reopened.Close()

	v, err := reopened.Get(StringKey("a"))
	require.NoError(t, err)
	require.Equal(t, int64(1), v.Int())

	ok, err = reopened.Contains(StringKey("b"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStore_ReopenWithMismatchedEngineKindFailsWithoutRebuild(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(Config{Path: dir, EngineKind: EngineMmapBTree})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(Config{Path: dir, EngineKind: EngineLSM})
	require.ErrorIs(t, err, ErrHeaderMismatch)
}

func TestStore_ReopenWithRebuildDropsExistingData(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(Config{Path: dir, EngineKind: EngineMmapBTree, FlushInterval: -1, HighWaterMark: -1})
	require.NoError(t, err)
	require.NoError(t, s.Put(StringKey("a"), Int64Value(1)))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.FlushNow(ctx))
	require.NoError(t, s.Close())

	rebuilt, err := Open(Config{Path: dir, EngineKind: EngineLSM, Rebuild: true})
	require.NoError(t, err)
	defer rebuilt.Close()

	_, err = rebuilt.Get(StringKey("a"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_EmptyStoreIterateProducesNothing(t *testing.T) {
	s := openMemStore(t, Config{})

	items, err := s.Items()
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestStore_ItemsKeysValuesInEncodedKeyOrder(t *testing.T) {
	s := openMemStore(t, Config{})

	require.NoError(t, s.Put(IntKey(3), StringValue("three")))
	require.NoError(t, s.Put(IntKey(1), StringValue("one")))
	require.NoError(t, s.Put(IntKey(2), StringValue("two")))

	keys, err := s.Keys()
	require.NoError(t, err)
	require.Len(t, keys, 3)
	require.Equal(t, int64(1), keys[0].Int())
	require.Equal(t, int64(2), keys[1].Int())
	require.Equal(t, int64(3), keys[2].Int())

	values, err := s.Values()
	require.NoError(t, err)
	require.Equal(t, "one", values[0].String())
}

func TestStore_OperationsAfterCloseReturnErrClosed(t *testing.T) {
	s := openMemStore(t, Config{})
	require.NoError(t, s.Close())

	_, err := s.Get(StringKey("a"))
	require.ErrorIs(t, err, ErrClosed)

	err = s.Put(StringKey("a"), Int64Value(1))
	require.ErrorIs(t, err, ErrClosed)
}

func TestStore_CloseIsIdempotent(t *testing.T) {
	s := openMemStore(t, Config{})
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestStore_OpErrorCarriesOpAndKey(t *testing.T) {
	s := openMemStore(t, Config{})

	_, err := s.Get(StringKey("missing"))

	var opErr *OpError
	require.True(t, errors.As(err, &opErr))
	require.Equal(t, "Get", opErr.Op)
	require.Equal(t, "missing", opErr.Key.String())
}

func TestCloseAll_ClosesEveryRegisteredStore(t *testing.T) {
	s1, err := Open(Config{EngineKind: EngineMemory})
	require.NoError(t, err)

	s2, err := Open(Config{EngineKind: EngineMemory})
	require.NoError(t, err)

	require.NoError(t, CloseAll())

	require.ErrorIs(t, s1.Put(StringKey("a"), Int64Value(1)), ErrClosed)
	require.ErrorIs(t, s2.Put(StringKey("a"), Int64Value(1)), ErrClosed)
}
