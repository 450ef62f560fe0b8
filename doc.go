// Package flaxkv is a persistent key-value store that presents a
// mapping-like interface while keeping write latency near memory speed.
//
// A Store buffers writes in an in-process overlay (a write buffer plus a
// delete tombstone set) and reads consult that overlay before falling
// back to the embedded engine underneath, so callers observe their own
// writes immediately. A single background goroutine per Store drains the
// overlay into the engine on a timer, under write pressure, or on demand,
// reconciling the two into one consistent view without blocking readers.
//
// The engine underneath is pluggable: [EngineMmapBTree] (go.etcd.io/bbolt)
// and [EngineLSM] (github.com/dgraph-io/badger/v4) are both wired, plus
// [EngineMemory] for tests and disk-free embedding.
package flaxkv
