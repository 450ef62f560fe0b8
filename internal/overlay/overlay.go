// Package overlay implements the in-memory write buffer and tombstone set
// that sits atop the engine (§4.3 of the design). It is the only place
// invariant I1 (single latest writer wins) and the buffer/tombstone mutual
// exclusion are enforced.
package overlay

import (
	"sync"

	"github.com/flaxkv/flaxkv/internal/engine"
)

// LookupState is the three-valued result of [Overlay.Lookup].
type LookupState uint8

const (
	Miss LookupState = iota
	Hit
	Tombstoned
)

// LookupResult is what [Overlay.Lookup] returns.
type LookupResult struct {
	State LookupState
	Value []byte // valid only when State == Hit
}

// Snapshot is a point-in-time, shallow view of the overlay suitable for a
// merge-scan against an engine iterator. Later mutations to the Overlay are
// never observed through an already-taken Snapshot.
type Snapshot struct {
	Buffer     map[string][]byte
	Tombstones map[string]struct{}
}

// Overlay holds the buffer and tombstone set. Staging, Lookup and Size are
// O(1) (map access); TakeSnapshot, Drain and RestageNewerWins are linear in
// the number of pending keys. All run under a single mutex that is never
// held across engine I/O — the
// flusher copies state out via [Overlay.Drain] before ever touching the
// engine.
type Overlay struct {
	mu sync.Mutex

	buffer     map[string][]byte
	tombstones map[string]struct{}

	// order is the insertion-order queue backing Drain's ordered batch.
	// present tracks membership so re-staging the same key twice doesn't
	// duplicate its queue slot (the queue records *when a key first
	// entered this flush window*, not every mutation).
	order   []string
	present map[string]bool
}

// New returns an empty Overlay.
func New() *Overlay {
	return &Overlay{
		buffer:     make(map[string][]byte),
		tombstones: make(map[string]struct{}),
		present:    make(map[string]bool),
	}
}

// StagePut records a pending write for key, removing it from tombstones if
// present (I1: replaces any prior overlay entry for key). value is retained
// by reference; callers must not mutate it afterward.
func (o *Overlay) StagePut(key, value []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ks := string(key)

	delete(o.tombstones, ks)
	o.buffer[ks] = value
	o.markPresentLocked(ks)
}

// StageDelete records a pending tombstone for key, removing any buffered
// value (I1).
func (o *Overlay) StageDelete(key []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ks := string(key)

	delete(o.buffer, ks)
	o.tombstones[ks] = struct{}{}
	o.markPresentLocked(ks)
}

func (o *Overlay) markPresentLocked(ks string) {
	if !o.present[ks] {
		o.present[ks] = true
		o.order = append(o.order, ks)
	}
}

// Lookup returns the overlay's view of key: Hit with the pending value,
// Tombstoned if key is pending-deleted, or Miss if the overlay has no
// opinion (the caller must fall back to the engine).
func (o *Overlay) Lookup(key []byte) LookupResult {
	o.mu.Lock()
	defer o.mu.Unlock()

	ks := string(key)

	if v, ok := o.buffer[ks]; ok {
		return LookupResult{State: Hit, Value: v}
	}

	if _, ok := o.tombstones[ks]; ok {
		return LookupResult{State: Tombstoned}
	}

	return LookupResult{State: Miss}
}

// TakeSnapshot returns a shallow, point-in-time copy of the overlay's
// contents. Value byte slices are shared (never mutated in place anywhere
// in this codebase), so only the two maps are actually copied.
func (o *Overlay) TakeSnapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	buf := make(map[string][]byte, len(o.buffer))
	for k, v := range o.buffer {
		buf[k] = v
	}

	tomb := make(map[string]struct{}, len(o.tombstones))
	for k := range o.tombstones {
		tomb[k] = struct{}{}
	}

	return Snapshot{Buffer: buf, Tombstones: tomb}
}

// Size returns the number of distinct pending keys (buffer + tombstones are
// mutually exclusive by construction, so this is just their combined size).
func (o *Overlay) Size() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return len(o.buffer) + len(o.tombstones)
}

// Drain atomically detaches the overlay's current contents and returns them
// as a commit-ready, ordered [engine.Batch]. The overlay is empty
// immediately after Drain returns. Order matches insertion order within
// this flush window (§4.3).
func (o *Overlay) Drain() engine.Batch {
	o.mu.Lock()
	defer o.mu.Unlock()

	batch := make(engine.Batch, 0, len(o.order))

	for _, ks := range o.order {
		key := []byte(ks)

		if v, ok := o.buffer[ks]; ok {
			batch = append(batch, engine.Op{Kind: engine.OpPut, Key: key, Value: v})

			continue
		}

		if _, ok := o.tombstones[ks]; ok {
			batch = append(batch, engine.Op{Kind: engine.OpDelete, Key: key})
		}
	}

	o.buffer = make(map[string][]byte)
	o.tombstones = make(map[string]struct{})
	o.order = nil
	o.present = make(map[string]bool)

	return batch
}

// RestageNewerWins re-stages a batch that failed to commit. Per-key,
// mutations staged *after* the failed Drain (i.e. already present in the
// overlay again) win over the failed batch's stale op, which is discarded
// (§4.4 step 5). Restaged ops are placed ahead of the current queue so they
// are first in line on the next flush.
func (o *Overlay) RestageNewerWins(batch engine.Batch) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var restaged []string

	for _, op := range batch {
		ks := string(op.Key)

		if o.present[ks] {
			// A newer mutation already occupies this key; the failed
			// batch's op for it is discarded.
			continue
		}

		switch op.Kind {
		case engine.OpPut:
			o.buffer[ks] = op.Value
		case engine.OpDelete:
			o.tombstones[ks] = struct{}{}
		}

		o.present[ks] = true
		restaged = append(restaged, ks)
	}

	o.order = append(restaged, o.order...)
}
