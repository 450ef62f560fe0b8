package flaxkv

import (
	"bytes"

	"github.com/flaxkv/flaxkv/internal/codec"
	"github.com/flaxkv/flaxkv/internal/engine"
	"github.com/flaxkv/flaxkv/internal/overlay"
)

// Iterator walks a store's logical keyspace in encoded-key order,
// interleaving the engine's records with a point-in-time overlay snapshot
// and suppressing any key the snapshot tombstones. It is a single-pass,
// forward-only merge scan: the engine side is a real [engine.Iterator]
// (closed when the Iterator is), the overlay side is already fully
// materialized in memory.
type Iterator struct {
	eng      engine.Iterator
	snapshot overlay.Snapshot
	overflow []string // snapshot buffer keys within [start, end), sorted
	overIdx  int

	engKey, engVal []byte
	engValid       bool
	engStarted     bool

	key, value []byte
	err        error
}

// newIterator builds a merge-scan Iterator over [start, end) of the
// store's engine plus the overlay snapshot taken at call time.
func newIterator(eng engine.Engine, ov *overlay.Overlay, start, end []byte) (*Iterator, error) {
	engIt, err := eng.NewIterator(start, end)
	if err != nil {
		return nil, err
	}

	snap := ov.TakeSnapshot()

	var overflow []string

	for k := range snap.Buffer {
		if inRange([]byte(k), start, end) {
			overflow = append(overflow, k)
		}
	}

	sortStrings(overflow)

	return &Iterator{eng: engIt, snapshot: snap, overflow: overflow}, nil
}

func inRange(key, start, end []byte) bool {
	if start != nil && bytes.Compare(key, start) < 0 {
		return false
	}

	if end != nil && bytes.Compare(key, end) >= 0 {
		return false
	}

	return true
}

func sortStrings(s []string) {
	// insertion sort: overflow sets are the overlay's pending-write
	// count, expected to be small relative to engine scan ranges.
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// Next advances to the next logical record. Overlay tombstones and
// buffered values win over the engine's record for the same encoded key.
func (it *Iterator) Next() bool {
	for {
		engKey, engOK := it.peekEngine()

		overKey, overOK := it.peekOverflow()

		switch {
		case !engOK && !overOK:
			return false

		case overOK && (!engOK || overKey < string(engKey)):
			it.advanceOverflow()

			if it.emitOverlay(overKey) {
				return true
			}

		case engOK && (!overOK || string(engKey) < overKey):
			emitted := it.emitEngine(engKey)
			it.advanceEngine()

			if emitted {
				return true
			}

		default: // equal: overlay wins, engine record is shadowed
			it.advanceOverflow()
			it.advanceEngine()

			if it.emitOverlay(overKey) {
				return true
			}
		}
	}
}

func (it *Iterator) peekEngine() ([]byte, bool) {
	if !it.engStarted {
		it.engValid = it.eng.Next()
		it.engStarted = true

		if it.engValid {
			it.engKey = it.eng.Key()
			it.engVal = it.eng.Value()
		}
	}

	return it.engKey, it.engValid
}

func (it *Iterator) advanceEngine() {
	it.engValid = it.eng.Next()

	if it.engValid {
		it.engKey = it.eng.Key()
		it.engVal = it.eng.Value()
	}
}

func (it *Iterator) peekOverflow() (string, bool) {
	if it.overIdx >= len(it.overflow) {
		return "", false
	}

	return it.overflow[it.overIdx], true
}

func (it *Iterator) advanceOverflow() {
	it.overIdx++
}

// emitEngine sets the current record from the engine unless the overlay
// tombstones it, and reports whether a record was emitted.
func (it *Iterator) emitEngine(key []byte) bool {
	ks := string(key)
	if _, tomb := it.snapshot.Tombstones[ks]; tomb {
		return false
	}

	it.key = key
	it.value = it.engVal

	return true
}

// emitOverlay sets the current record from the snapshot buffer for ks and
// reports whether a record was emitted. overflow holds only buffer keys;
// tombstones are applied in emitEngine.
func (it *Iterator) emitOverlay(ks string) bool {
	v, ok := it.snapshot.Buffer[ks]
	if !ok {
		return false
	}

	it.key = []byte(ks)
	it.value = v

	return true
}

// Key returns the current record's decoded logical key. Valid only after a
// Next call that returned true.
func (it *Iterator) Key() (Key, error) {
	k, err := codec.DecodeKey(it.key)
	if err != nil {
		it.err = err

		return Key{}, err
	}

	return k, nil
}

// Value returns the current record's decoded logical value.
func (it *Iterator) Value() (Value, error) {
	v, err := codec.DecodeValue(it.value)
	if err != nil {
		it.err = err

		return Value{}, err
	}

	return v, nil
}

// Err returns the first error encountered during iteration, if any.
func (it *Iterator) Err() error {
	if it.err != nil {
		return it.err
	}

	return it.eng.Err()
}

// Close releases the underlying engine iterator. Idempotent.
func (it *Iterator) Close() error {
	return it.eng.Close()
}
