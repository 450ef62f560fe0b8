package flaxkv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flaxkv/flaxkv/internal/codec"
	"github.com/flaxkv/flaxkv/internal/engine"
	"github.com/flaxkv/flaxkv/internal/flusher"
	"github.com/flaxkv/flaxkv/internal/overlay"
)

// Entry is one key/value pair, used by [Store.Update] since [Key] is not a
// valid Go map key (its Group variant holds a slice, which is not
// comparable).
type Entry struct {
	Key   Key
	Value Value
}

// Store is the façade over a codec, an engine, an overlay, and that
// overlay's background flusher. It is the only type most callers need.
type Store struct {
	cfg Config
	dir string

	eng engine.Engine
	ov  *overlay.Overlay
	fl  *flusher.Flusher

	flCancel context.CancelFunc

	barrierMu sync.Mutex
	barrierCd *sync.Cond
	lastErr   error

	keyLocks keyedMutex

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Open opens or creates a store per cfg. For on-disk engine kinds, Path's
// directory is created if absent and its HEADER is checked against cfg;
// a mismatch is a fatal error unless cfg.Rebuild is set. With cfg.Rebuild,
// any existing data is dropped and a fresh header written, whether or not
// the old header matched.
func Open(cfg Config) (*Store, error) {
	cfg = cfg.withDefaults()

	eng, dir, err := openEngine(cfg)
	if err != nil {
		return nil, wrapOp("Open", err)
	}

	s := &Store{
		cfg: cfg,
		dir: dir,
		eng: eng,
		ov:  overlay.New(),
	}
	s.barrierCd = sync.NewCond(&s.barrierMu)

	s.fl = flusher.New(flusher.Config{
		Interval:      cfg.FlushInterval,
		RetryBackoff:  50 * time.Millisecond,
		ShutdownGrace: cfg.ShutdownGrace,
	}, s.ov, s.eng)

	ctx, cancel := context.WithCancel(context.Background())
	s.flCancel = cancel

	go s.fl.Run(ctx)
	go s.watchFlushErrors()

	globalRegistry.add(s)

	return s, nil
}

func openEngine(cfg Config) (engine.Engine, string, error) {
	if cfg.EngineKind == EngineMemory {
		return engine.NewMem(), "", nil
	}

	if cfg.Path == "" {
		return nil, "", errors.New("flaxkv: Config.Path is required for on-disk engines")
	}

	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, "", fmt.Errorf("flaxkv: create store directory: %w", err)
	}

	eng, err := openBackend(cfg)
	if err != nil {
		return nil, "", err
	}

	if err := reconcileHeader(cfg, eng); err != nil {
		_ = eng.Close()

		return nil, "", err
	}

	return eng, cfg.Path, nil
}

// reconcileHeader checks dir/HEADER against cfg, rebuilding (if
// cfg.Rebuild) or writing a fresh header (if none exists yet).
func reconcileHeader(cfg Config, eng engine.Engine) error {
	existing, err := readHeader(cfg.Path)

	switch {
	case err == nil:
		if existing.EngineKind == cfg.EngineKind && existing.CodecVer == codecVersion && !cfg.Rebuild {
			return nil
		}

		if !cfg.Rebuild {
			return fmt.Errorf("%w: have %s/v%d, want %s/v%d",
				ErrHeaderMismatch, existing.EngineKind, existing.CodecVer, cfg.EngineKind, codecVersion)
		}

		if err := eng.DropAll(); err != nil {
			return fmt.Errorf("flaxkv: rebuild drop: %w", err)
		}
	case os.IsNotExist(err):
		// fresh directory, header written below
	default:
		return fmt.Errorf("flaxkv: read header: %w", err)
	}

	return writeHeader(cfg.Path, newHeader(cfg.EngineKind, time.Now()))
}

func openBackend(cfg Config) (engine.Engine, error) {
	switch cfg.EngineKind {
	case EngineMmapBTree:
		return engine.NewBolt(cfg.Path+"/data.db", cfg.MapSizeHint)
	case EngineLSM:
		return engine.NewBadger(cfg.Path)
	default:
		return nil, fmt.Errorf("flaxkv: unknown engine kind %d", cfg.EngineKind)
	}
}

// watchFlushErrors drains the flusher's error channel for the store's
// lifetime, recording the latest error and waking anyone blocked at the
// high-water barrier so they can fail fast instead of waiting forever on a
// stuck flusher.
func (s *Store) watchFlushErrors() {
	for err := range s.fl.Errors() {
		s.barrierMu.Lock()
		s.lastErr = err
		s.barrierCd.Broadcast()
		s.barrierMu.Unlock()
	}
}

// Close drains the overlay, commits the final batch, stops the flusher,
// and releases the engine. Idempotent.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.flCancel()
		s.fl.Wait()

		s.barrierMu.Lock()
		s.barrierCd.Broadcast()
		s.barrierMu.Unlock()

		s.closeErr = s.eng.Close()
		globalRegistry.remove(s)
	})

	return s.closeErr
}

func (s *Store) checkOpen(op string) error {
	if s.closed.Load() {
		return wrapOp(op, ErrClosed)
	}

	return nil
}

// Put encodes k and v, stages the write in the overlay, and returns
// immediately unless the overlay is at its hard cap, in which case it
// blocks on the flush barrier (I5).
func (s *Store) Put(k Key, v Value) error {
	if err := s.checkOpen("Put"); err != nil {
		return err
	}

	ek, ev, err := s.encode("Put", k, v)
	if err != nil {
		return err
	}

	s.ov.StagePut(ek, ev)

	return s.afterWrite("Put", k)
}

func (s *Store) encode(op string, k Key, v Value) ([]byte, []byte, error) {
	ek, err := codec.EncodeKey(k)
	if err != nil {
		return nil, nil, wrapOp(op, err, withKey(k))
	}

	ev, err := codec.EncodeValue(v)
	if err != nil {
		return nil, nil, wrapOp(op, err, withKey(k))
	}

	return ek, ev, nil
}

// Get returns the latest value for k: the overlay is consulted first, then
// the engine. Returns ErrNotFound if k has no record anywhere.
func (s *Store) Get(k Key) (Value, error) {
	if err := s.checkOpen("Get"); err != nil {
		return Value{}, err
	}

	ek, err := codec.EncodeKey(k)
	if err != nil {
		return Value{}, wrapOp("Get", err, withKey(k))
	}

	switch res := s.ov.Lookup(ek); res.State {
	case overlay.Hit:
		v, err := codec.DecodeValue(res.Value)
		if err != nil {
			return Value{}, wrapOp("Get", err, withKey(k))
		}

		return v, nil

	case overlay.Tombstoned:
		return Value{}, wrapOp("Get", ErrNotFound, withKey(k))

	default: // overlay.Miss
		raw, ok, err := s.eng.Get(ek)
		if err != nil {
			return Value{}, wrapOp("Get", err, withKey(k))
		}

		if !ok {
			return Value{}, wrapOp("Get", ErrNotFound, withKey(k))
		}

		v, err := codec.DecodeValue(raw)
		if err != nil {
			return Value{}, wrapOp("Get", err, withKey(k))
		}

		return v, nil
	}
}

// Contains reports whether k has a record: an overlay hit is true, an
// overlay tombstone is false, otherwise the engine is consulted.
func (s *Store) Contains(k Key) (bool, error) {
	if err := s.checkOpen("Contains"); err != nil {
		return false, err
	}

	ek, err := codec.EncodeKey(k)
	if err != nil {
		return false, wrapOp("Contains", err, withKey(k))
	}

	switch res := s.ov.Lookup(ek); res.State {
	case overlay.Hit:
		return true, nil
	case overlay.Tombstoned:
		return false, nil
	default:
		ok, err := s.eng.Has(ek)
		if err != nil {
			return false, wrapOp("Contains", err, withKey(k))
		}

		return ok, nil
	}
}

// Delete stages a tombstone for k. Returns ErrNotFound if k is absent from
// both the overlay and the engine.
func (s *Store) Delete(k Key) error {
	if err := s.checkOpen("Delete"); err != nil {
		return err
	}

	ek, err := codec.EncodeKey(k)
	if err != nil {
		return wrapOp("Delete", err, withKey(k))
	}

	switch res := s.ov.Lookup(ek); res.State {
	case overlay.Tombstoned:
		return wrapOp("Delete", ErrNotFound, withKey(k))
	case overlay.Hit:
		// fall through to stage the tombstone
	default:
		has, err := s.eng.Has(ek)
		if err != nil {
			return wrapOp("Delete", err, withKey(k))
		}

		if !has {
			return wrapOp("Delete", ErrNotFound, withKey(k))
		}
	}

	s.ov.StageDelete(ek)

	return s.afterWrite("Delete", k)
}

// Pop atomically gets then deletes k, serialized against other Pop/
// SetDefault calls on the same encoded key.
func (s *Store) Pop(k Key) (Value, error) {
	if err := s.checkOpen("Pop"); err != nil {
		return Value{}, err
	}

	ek, err := codec.EncodeKey(k)
	if err != nil {
		return Value{}, wrapOp("Pop", err, withKey(k))
	}

	unlock := s.keyLocks.lock(ek)
	defer unlock()

	v, err := s.Get(k)
	if err != nil {
		return Value{}, err
	}

	if err := s.Delete(k); err != nil {
		return Value{}, err
	}

	return v, nil
}

// SetDefault atomically returns k's existing value if present, or stages v
// and returns it if not.
func (s *Store) SetDefault(k Key, v Value) (Value, error) {
	if err := s.checkOpen("SetDefault"); err != nil {
		return Value{}, err
	}

	ek, err := codec.EncodeKey(k)
	if err != nil {
		return Value{}, wrapOp("SetDefault", err, withKey(k))
	}

	unlock := s.keyLocks.lock(ek)
	defer unlock()

	existing, err := s.Get(k)
	switch {
	case err == nil:
		return existing, nil
	case errors.Is(err, ErrNotFound):
		// fall through to insert
	default:
		return Value{}, err
	}

	if err := s.Put(k, v); err != nil {
		return Value{}, err
	}

	return v, nil
}

// Update stages every entry, becoming visible one key at a time; there is
// no cross-key atomicity (a failure partway through leaves earlier entries
// staged).
func (s *Store) Update(entries []Entry) error {
	for _, e := range entries {
		if err := s.Put(e.Key, e.Value); err != nil {
			return err
		}
	}

	return nil
}

// Len returns a best-effort count: engine.EntryCount plus pending overlay
// puts for keys absent from the engine, minus overlay tombstones that hit
// an engine record. It never blocks on a flush. For an exact count, use
// [Store.LenExact].
func (s *Store) Len() (int64, error) {
	if err := s.checkOpen("Len"); err != nil {
		return 0, err
	}

	stat, err := s.eng.Stat()
	if err != nil {
		return 0, wrapOp("Len", err)
	}

	snap := s.ov.TakeSnapshot()

	delta := int64(0)

	for k := range snap.Buffer {
		has, err := s.eng.Has([]byte(k))
		if err != nil {
			return 0, wrapOp("Len", err)
		}

		if !has {
			delta++
		}
	}

	for k := range snap.Tombstones {
		has, err := s.eng.Has([]byte(k))
		if err != nil {
			return 0, wrapOp("Len", err)
		}

		if has {
			delta--
		}
	}

	return stat.EntryCount + delta, nil
}

// LenExact forces a flush via [Store.FlushNow] and then returns the
// engine's exact entry count. Slower than [Store.Len]; use it only when
// precision matters more than latency.
func (s *Store) LenExact(ctx context.Context) (int64, error) {
	if err := s.FlushNow(ctx); err != nil {
		return 0, err
	}

	stat, err := s.eng.Stat()
	if err != nil {
		return 0, wrapOp("LenExact", err)
	}

	return stat.EntryCount, nil
}

// FlushNow blocks until a flush covering every write issued-before this
// call returns, or until ctx is done, in which case it returns ErrTimeout
// without cancelling any in-flight engine commit.
func (s *Store) FlushNow(ctx context.Context) error {
	if err := s.checkOpen("FlushNow"); err != nil {
		return err
	}

	if err := s.fl.FlushNow(ctx); err != nil {
		return wrapOp("FlushNow", ErrTimeout)
	}

	return nil
}

// WriteImmediately is an alias of [Store.FlushNow].
func (s *Store) WriteImmediately(ctx context.Context) error {
	return s.FlushNow(ctx)
}

// Iterate returns a merge-scan [Iterator] over [start, end) of the store's
// logical keyspace. A zero Key (Kind() == 0) for start or end means "no
// bound" on that side.
// Callers must Close the returned Iterator.
func (s *Store) Iterate(start, end Key) (*Iterator, error) {
	if err := s.checkOpen("Iterate"); err != nil {
		return nil, err
	}

	startBytes, err := encodeBound(start)
	if err != nil {
		return nil, wrapOp("Iterate", err)
	}

	endBytes, err := encodeBound(end)
	if err != nil {
		return nil, wrapOp("Iterate", err)
	}

	it, err := newIterator(s.eng, s.ov, startBytes, endBytes)
	if err != nil {
		return nil, wrapOp("Iterate", err)
	}

	return it, nil
}

// encodeBound encodes a bound Key for Iterate, treating the zero Key
// (Kind() == 0) as "no bound".
func encodeBound(k Key) ([]byte, error) {
	if k.Kind() == 0 {
		return nil, nil
	}

	return codec.EncodeKey(k)
}

// Items returns every (key, value) pair currently visible in the store, in
// encoded-key order. For large stores, prefer [Store.Iterate].
func (s *Store) Items() ([]Entry, error) {
	it, err := s.Iterate(Key{}, Key{})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []Entry

	for it.Next() {
		k, err := it.Key()
		if err != nil {
			return nil, wrapOp("Items", err)
		}

		v, err := it.Value()
		if err != nil {
			return nil, wrapOp("Items", err)
		}

		out = append(out, Entry{Key: k, Value: v})
	}

	if err := it.Err(); err != nil {
		return nil, wrapOp("Items", err)
	}

	return out, nil
}

// Keys returns every key currently visible in the store, in encoded-key
// order.
func (s *Store) Keys() ([]Key, error) {
	items, err := s.Items()
	if err != nil {
		return nil, err
	}

	keys := make([]Key, len(items))
	for i, e := range items {
		keys[i] = e.Key
	}

	return keys, nil
}

// Values returns every value currently visible in the store, in
// encoded-key order of their keys.
func (s *Store) Values() ([]Value, error) {
	items, err := s.Items()
	if err != nil {
		return nil, err
	}

	values := make([]Value, len(items))
	for i, e := range items {
		values[i] = e.Value
	}

	return values, nil
}

// afterWrite enforces the I5 high-water barrier: once the overlay exceeds
// cfg.HighWaterMark, writers block until the flusher brings it back down
// or a persistent flush failure surfaces as CapacityExceeded.
func (s *Store) afterWrite(op string, k Key) error {
	if s.cfg.HighWaterMark <= 0 {
		return nil
	}

	size := s.ov.Size()

	if size >= s.cfg.HighWaterMark {
		s.fl.Notify()
	}

	if size <= s.cfg.HighWaterMark {
		return nil
	}

	s.barrierMu.Lock()
	defer s.barrierMu.Unlock()

	for s.ov.Size() > s.cfg.HighWaterMark {
		if s.lastErr != nil {
			err := s.lastErr
			s.lastErr = nil

			return wrapOp(op, fmt.Errorf("%w: %v", ErrCapacityExceeded, err), withKey(k))
		}

		if s.closed.Load() {
			return wrapOp(op, ErrClosed, withKey(k))
		}

		// The flusher does not signal barrierCd after a successful flush,
		// so a short timer wakes this writer to re-check the overlay size.
		wake := time.AfterFunc(10*time.Millisecond, func() {
			s.barrierMu.Lock()
			s.barrierCd.Broadcast()
			s.barrierMu.Unlock()
		})
		s.barrierCd.Wait()
		wake.Stop()
	}

	return nil
}

// keyedMutex holds one mutex per encoded key (created on first use and
// never removed) to serialize the compound Pop/SetDefault operations per
// key without serializing unrelated keys against each other.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (km *keyedMutex) lock(key []byte) func() {
	ks := string(key)

	km.mu.Lock()
	if km.locks == nil {
		km.locks = make(map[string]*sync.Mutex)
	}

	l, ok := km.locks[ks]
	if !ok {
		l = &sync.Mutex{}
		km.locks[ks] = l
	}
	km.mu.Unlock()

	l.Lock()

	return l.Unlock
}
