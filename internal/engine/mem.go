package engine

import (
	"bytes"
	"sort"
	"sync"
)

// memEngine is a plain in-process ordered map. It exists for tests and for
// embedding the store without touching disk at all; it implements exactly
// the same [Engine] contract as the real backends so overlay/flusher/façade
// code paths are exercised identically regardless of backend.
//
// Concurrency: bbolt and badger give concurrent MVCC snapshot reads during
// a write batch for free. memEngine has no such mechanism, so it takes the
// §4.2 fallback explicitly: "a short-lived reader lock that the store
// honors", implemented here as a plain [sync.RWMutex].
type memEngine struct {
	mu   sync.RWMutex
	keys [][]byte // sorted, parallel to vals
	vals [][]byte
}

// NewMem returns a fresh in-process [Engine] backed by nothing but memory.
func NewMem() Engine {
	return &memEngine{}
}

func (m *memEngine) find(key []byte) (int, bool) {
	i := sort.Search(len(m.keys), func(i int) bool {
		return bytes.Compare(m.keys[i], key) >= 0
	})

	if i < len(m.keys) && bytes.Equal(m.keys[i], key) {
		return i, true
	}

	return i, false
}

func (m *memEngine) Get(key []byte) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.find(key)
	if !ok {
		return nil, false, nil
	}

	return m.vals[i], true, nil
}

func (m *memEngine) Has(key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.find(key)

	return ok, nil
}

func (m *memEngine) CommitBatch(ops Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, op := range ops {
		switch op.Kind {
		case OpPut:
			m.putLocked(op.Key, op.Value)
		case OpDelete:
			m.deleteLocked(op.Key)
		}
	}

	return nil
}

func (m *memEngine) putLocked(key, value []byte) {
	i, ok := m.find(key)
	if ok {
		m.vals[i] = value

		return
	}

	m.keys = append(m.keys, nil)
	copy(m.keys[i+1:], m.keys[i:])
	m.keys[i] = bytesClone(key)

	m.vals = append(m.vals, nil)
	copy(m.vals[i+1:], m.vals[i:])
	m.vals[i] = bytesClone(value)
}

func (m *memEngine) deleteLocked(key []byte) {
	i, ok := m.find(key)
	if !ok {
		return
	}

	m.keys = append(m.keys[:i], m.keys[i+1:]...)
	m.vals = append(m.vals[:i], m.vals[i+1:]...)
}

func (m *memEngine) Stat() (Stat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var size int64
	for i := range m.keys {
		size += int64(len(m.keys[i]) + len(m.vals[i]))
	}

	return Stat{EntryCount: int64(len(m.keys)), SizeBytes: size}, nil
}

func (m *memEngine) DropAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.keys = nil
	m.vals = nil

	return nil
}

func (m *memEngine) Close() error { return nil }

func (m *memEngine) NewIterator(start, end []byte) (Iterator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lo := 0
	if start != nil {
		lo = sort.Search(len(m.keys), func(i int) bool { return bytes.Compare(m.keys[i], start) >= 0 })
	}

	hi := len(m.keys)
	if end != nil {
		hi = sort.Search(len(m.keys), func(i int) bool { return bytes.Compare(m.keys[i], end) >= 0 })
	}

	keys := make([][]byte, hi-lo)
	vals := make([][]byte, hi-lo)
	copy(keys, m.keys[lo:hi])
	copy(vals, m.vals[lo:hi])

	return &memIterator{keys: keys, vals: vals, idx: -1}, nil
}

type memIterator struct {
	keys [][]byte
	vals [][]byte
	idx  int
}

func (it *memIterator) Next() bool {
	it.idx++

	return it.idx < len(it.keys)
}

func (it *memIterator) Key() []byte   { return it.keys[it.idx] }
func (it *memIterator) Value() []byte { return it.vals[it.idx] }
func (it *memIterator) Err() error    { return nil }
func (it *memIterator) Close() error  { return nil }

func bytesClone(b []byte) []byte {
	if b == nil {
		return nil
	}

	cp := make([]byte, len(b))
	copy(cp, b)

	return cp
}

var _ Engine = (*memEngine)(nil)
