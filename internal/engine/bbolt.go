package engine

import (
	"bytes"
	"fmt"
	"os"

	bolt "go.etcd.io/bbolt"
)

// bucketName is the single bucket FlaxKV stores all records in. bbolt
// supports many buckets per file; the store only ever needs one flat
// ordered keyspace.
var bucketName = []byte("flaxkv")

// boltEngine adapts [go.etcd.io/bbolt] — a pure-Go, single-file,
// memory-mapped B+tree with reader/writer MVCC — to [Engine]. This is the
// "mmap_btree" engine kind (§6).
type boltEngine struct {
	db   *bolt.DB
	path string
}

// NewBolt opens (creating if absent) a bbolt-backed [Engine] at path.
// mapSizeHint, if non-zero, seeds the initial mmap size to avoid early
// remaps under a known working-set size.
func NewBolt(path string, mapSizeHint int) (Engine, error) {
	opts := &bolt.Options{}
	if mapSizeHint > 0 {
		opts.InitialMmapSize = mapSizeHint
	}

	db, err := bolt.Open(path, 0o600, opts)
	if err != nil {
		return nil, fmt.Errorf("engine: open bbolt: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)

		return err
	})
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("engine: create bucket: %w", err)
	}

	return &boltEngine{db: db, path: path}, nil
}

func (e *boltEngine) Get(key []byte) ([]byte, bool, error) {
	var value []byte

	err := e.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketName).Get(key)
		if v != nil {
			value = append([]byte(nil), v...)
		}

		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("engine: get: %w", err)
	}

	return value, value != nil, nil
}

func (e *boltEngine) Has(key []byte) (bool, error) {
	_, ok, err := e.Get(key)

	return ok, err
}

func (e *boltEngine) CommitBatch(ops Batch) error {
	err := e.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)

		for _, op := range ops {
			switch op.Kind {
			case OpPut:
				if err := bucket.Put(op.Key, op.Value); err != nil {
					return err
				}
			case OpDelete:
				if err := bucket.Delete(op.Key); err != nil {
					return err
				}
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("engine: commit batch: %w", err)
	}

	return nil
}

func (e *boltEngine) Stat() (Stat, error) {
	var count int64

	err := e.db.View(func(tx *bolt.Tx) error {
		count = int64(tx.Bucket(bucketName).Stats().KeyN)

		return nil
	})
	if err != nil {
		return Stat{}, fmt.Errorf("engine: stat: %w", err)
	}

	info, err := os.Stat(e.path)
	if err != nil {
		return Stat{}, fmt.Errorf("engine: stat file: %w", err)
	}

	return Stat{EntryCount: count, SizeBytes: info.Size()}, nil
}

func (e *boltEngine) DropAll() error {
	err := e.db.Update(func(tx *bolt.Tx) error {
		err := tx.DeleteBucket(bucketName)
		if err != nil && err != bolt.ErrBucketNotFound {
			return err
		}

		_, err = tx.CreateBucketIfNotExists(bucketName)

		return err
	})
	if err != nil {
		return fmt.Errorf("engine: drop all: %w", err)
	}

	return nil
}

func (e *boltEngine) Close() error {
	if e.db == nil {
		return nil
	}

	err := e.db.Close()
	e.db = nil

	if err != nil {
		return fmt.Errorf("engine: close: %w", err)
	}

	return nil
}

// boltIterator wraps a long-lived read-only bbolt transaction and cursor.
// Rollback (not Commit) is bbolt's documented way to release a read-only tx.
type boltIterator struct {
	tx     *bolt.Tx
	cursor *bolt.Cursor
	end    []byte
	key    []byte
	value  []byte
	done   bool
	primed bool
}

func (e *boltEngine) NewIterator(start, end []byte) (Iterator, error) {
	tx, err := e.db.Begin(false)
	if err != nil {
		return nil, fmt.Errorf("engine: begin iterator tx: %w", err)
	}

	cursor := tx.Bucket(bucketName).Cursor()

	it := &boltIterator{tx: tx, cursor: cursor, end: end}

	if start != nil {
		it.key, it.value = cursor.Seek(start)
	} else {
		it.key, it.value = cursor.First()
	}

	it.checkBounds()
	it.primed = true

	return it, nil
}

func (it *boltIterator) checkBounds() {
	if it.key == nil {
		it.done = true

		return
	}

	if it.end != nil && bytes.Compare(it.key, it.end) >= 0 {
		it.done = true
	}
}

func (it *boltIterator) Next() bool {
	if it.done {
		return false
	}

	if it.primed {
		it.primed = false

		return !it.done
	}

	it.key, it.value = it.cursor.Next()
	it.checkBounds()

	return !it.done
}

func (it *boltIterator) Key() []byte   { return it.key }
func (it *boltIterator) Value() []byte { return it.value }
func (it *boltIterator) Err() error    { return nil }

func (it *boltIterator) Close() error {
	if it.tx == nil {
		return nil
	}

	err := it.tx.Rollback()
	it.tx = nil

	if err != nil {
		return fmt.Errorf("engine: close iterator: %w", err)
	}

	return nil
}

var _ Engine = (*boltEngine)(nil)
