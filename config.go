package flaxkv

import "time"

// EngineKind selects which embedded engine backs a [Store].
type EngineKind byte

const (
	// EngineMmapBTree is a single-file, memory-mapped B+tree
	// (go.etcd.io/bbolt): page-level MVCC, concurrent readers never
	// block the single writer, best for read-heavy workloads and
	// workloads that fit comfortably in the page cache.
	EngineMmapBTree EngineKind = iota + 1

	// EngineLSM is an LSM-tree engine with its own WAL and value log
	// (github.com/dgraph-io/badger/v4): better sustained write
	// throughput at the cost of background compaction.
	EngineLSM

	// EngineMemory is a plain in-process sorted map with no disk
	// footprint at all. There is no persistent header for this kind;
	// Config.Path is ignored.
	EngineMemory
)

// String renders the engine kind for logs and error messages.
func (k EngineKind) String() string {
	switch k {
	case EngineMmapBTree:
		return "mmap_btree"
	case EngineLSM:
		return "lsm"
	case EngineMemory:
		return "memory"
	default:
		return "unknown"
	}
}

// Config configures a [Store] at [Open]. The zero Config is not valid on
// its own — Path must be set for any on-disk EngineKind — but every other
// field has a documented default applied by Open.
type Config struct {
	// Path is the store's directory. Created if absent. Ignored when
	// EngineKind is EngineMemory.
	Path string

	// EngineKind selects the backing engine. Defaults to
	// EngineMmapBTree.
	EngineKind EngineKind

	// FlushInterval is how often the background flusher drains the
	// overlay into the engine on a timer, independent of the
	// high-water and demand triggers. Defaults to 100ms. A Duration of
	// -1 disables the timer trigger entirely (flushes then happen only
	// via HighWaterMark or an explicit FlushNow).
	FlushInterval time.Duration

	// HighWaterMark is the number of distinct pending overlay keys that
	// triggers an immediate out-of-band flush, on top of the timer.
	// Defaults to 1000. -1 disables this trigger.
	HighWaterMark int

	// MaxOverlayEntries is stored in the Config but not read by Open or
	// any Store method: it does not bound the overlay, and Put/Delete
	// never reject a write because of it. The only bound on pending
	// writes is the HighWaterMark barrier.
	MaxOverlayEntries int

	// Rebuild, if true, discards any existing data at Path (or an
	// incompatible header) and starts fresh instead of returning
	// ErrHeaderMismatch.
	Rebuild bool

	// MapSizeHint seeds EngineMmapBTree's initial mmap size, in bytes,
	// to avoid early remaps under a known working-set size. Ignored by
	// other engine kinds. Zero lets the engine pick its own default.
	MapSizeHint int

	// ShutdownGrace bounds how long Close's final flush may retry a
	// failing engine commit before giving up with writes still
	// pending. Defaults to 5s.
	ShutdownGrace time.Duration
}

// withDefaults returns a copy of cfg with every zero-valued, defaultable
// field filled in. Path, EngineKind (when explicitly EngineMemory), and
// Rebuild are never defaulted — they are either supplied or meaningfully
// zero.
func (cfg Config) withDefaults() Config {
	if cfg.EngineKind == 0 {
		cfg.EngineKind = EngineMmapBTree
	}

	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = 100 * time.Millisecond
	}

	if cfg.FlushInterval == -1 {
		cfg.FlushInterval = 0
	}

	if cfg.HighWaterMark == 0 {
		cfg.HighWaterMark = 1000
	}

	if cfg.HighWaterMark == -1 {
		cfg.HighWaterMark = 0
	}

	if cfg.ShutdownGrace == 0 {
		cfg.ShutdownGrace = 5 * time.Second
	}

	return cfg
}
