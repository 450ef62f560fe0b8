// Package engine abstracts the backing embedded ordered key-value engine
// behind the minimal surface the store's flusher and merge-scan iterator
// need: point get, put/delete, ordered range iteration, atomic batch
// commit, and stat. See [Engine].
package engine

import "errors"

// ErrNotFound is the engine package's not-found sentinel. [Engine.Get] does
// not return it: an absent key is reported as (nil, false, nil).
var ErrNotFound = errors.New("engine: key not found")

// OpKind distinguishes the two mutation kinds a [Batch] can carry.
type OpKind uint8

const (
	OpPut OpKind = iota + 1
	OpDelete
)

// Op is one mutation within a [Batch]. Key and Value are already the
// codec's canonical encoded bytes; the engine never interprets them.
type Op struct {
	Kind  OpKind
	Key   []byte
	Value []byte // unused for OpDelete
}

// Batch is an ordered, atomic group of operations. Order matters: later
// operations on the same key in the same batch win (§4.4 "operations apply
// in overlay insertion order").
type Batch []Op

// Stat summarizes engine occupancy for the store's best-effort Len().
type Stat struct {
	EntryCount int64
	SizeBytes  int64
}

// Iterator walks engine records in engine-defined key order over a
// half-open [Start, End) byte range. A nil End means "no upper bound". The
// sequence is finite, not restartable, and must be [Iterator.Close]d on
// every exit path.
type Iterator interface {
	// Next advances to the next record and reports whether one exists.
	Next() bool
	// Key returns the current record's encoded key. Valid only after a
	// Next call that returned true, and only until the next Next/Close call.
	Key() []byte
	// Value returns the current record's encoded value, with the same
	// validity window as Key.
	Value() []byte
	// Err returns the first error encountered during iteration, if any.
	Err() error
	// Close releases resources held by the iterator. Idempotent.
	Close() error
}

// Engine is the uniform ordered-KV surface any backing store must provide
// (§4.2 / §6). Implementations: [NewBolt] (mmap B+tree), [NewBadger] (LSM),
// and [NewMem] (in-process, for tests and engine-less embedding).
//
// Implementations must provide atomic, durable-on-success batch commit and
// stable deterministic key ordering, and must allow concurrent reads during
// a write batch (via MVCC snapshots, or — as in [NewMem] — a short-lived
// reader lock).
type Engine interface {
	// Get returns the value for key, or (nil, false, nil) if absent.
	Get(key []byte) (value []byte, ok bool, err error)
	// Has reports whether key has an engine record.
	Has(key []byte) (bool, error)
	// NewIterator returns an [Iterator] over [start, end) in key order.
	// Caller must Close it.
	NewIterator(start, end []byte) (Iterator, error)
	// CommitBatch applies ops atomically. On success, every op in ops is
	// durable before CommitBatch returns.
	CommitBatch(ops Batch) error
	// Stat reports current occupancy.
	Stat() (Stat, error)
	// DropAll deletes every record, for rebuild-on-open.
	DropAll() error
	// Close releases the engine's file handles. Idempotent.
	Close() error
}
