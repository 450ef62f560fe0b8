package fs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
)

// ErrAtomicWriteDirSync indicates the parent directory could not be fsynced
// after a rename. The rename itself already landed, so the new file is in
// place; only the guarantee that the rename survives a crash is in doubt.
// Callers can detect this with errors.Is(err, ErrAtomicWriteDirSync).
var ErrAtomicWriteDirSync = errors.New("dir sync")

// AtomicWriter replaces a file's contents via write-temp, fsync, rename,
// fsync-parent-dir, so a reader never observes a partially written file and
// a crash mid-write leaves the old content intact. The HEADER file written
// by [github.com/flaxkv/flaxkv.Open] goes through this.
type AtomicWriter struct {
	fs FS
}

// NewAtomicWriter builds an AtomicWriter over fs. Panics if fs is nil.
func NewAtomicWriter(fs FS) *AtomicWriter {
	if fs == nil {
		panic("fs is nil")
	}

	return &AtomicWriter{fs: fs}
}

// AtomicWriteOptions configures a single Write call.
type AtomicWriteOptions struct {
	// SyncDir, when true, fsyncs the parent directory after rename so the
	// rename itself is durable, not just the file content. Default: true.
	SyncDir bool

	// Perm is the mode the final file is chmod'd to, regardless of umask.
	// Must be non-zero.
	Perm os.FileMode
}

// DefaultOptions returns {SyncDir: true, Perm: 0o644}.
func (*AtomicWriter) DefaultOptions() AtomicWriteOptions {
	return AtomicWriteOptions{
		SyncDir: true,
		Perm:    0o644,
	}
}

// WriteWithDefaults is Write with DefaultOptions.
func (w *AtomicWriter) WriteWithDefaults(path string, r io.Reader) error {
	return w.Write(path, r, w.DefaultOptions())
}

// Write drains r into a hidden temp file next to path, fsyncs it, renames it
// over path, then (if opts.SyncDir) fsyncs the parent directory. The temp
// file lives in the same directory as path so the rename is guaranteed to
// be same-filesystem and therefore atomic.
//
// If only the directory-sync step fails, the new content is already in
// place at path and the returned error satisfies
// errors.Is(err, ErrAtomicWriteDirSync).
func (w *AtomicWriter) Write(path string, reader io.Reader, opts AtomicWriteOptions) error {
	if reader == nil {
		panic("reader is nil")
	}

	if path == "" {
		return errors.New("path is empty")
	}

	if opts.Perm == 0 {
		return errors.New("opts.Perm must be non-zero")
	}

	dir, base := filepath.Split(path)
	if base == "" || base == string(os.PathSeparator) || base == "." {
		return fmt.Errorf("path is invalid: %q", path)
	}

	if dir == "" {
		dir = "."
	}

	dir = filepath.Clean(dir)

	tmpFile, tmpPath, err := createAtomicTempFile(w.fs, dir, base, opts.Perm)
	if err != nil {
		return err
	}

	abort := func() error {
		closeErr := closeTmpFile(tmpPath, tmpFile)
		removeErr := removeTempFile(w.fs, tmpPath)

		return errors.Join(closeErr, removeErr)
	}

	if err := tmpFile.Chmod(opts.Perm); err != nil {
		return errors.Join(fmt.Errorf("chmod temp file %q: %w", tmpPath, err), abort())
	}

	if err := writeAndSyncTempFile(tmpFile, tmpPath, reader); err != nil {
		return errors.Join(err, abort())
	}

	if err := w.fs.Rename(tmpPath, path); err != nil {
		return errors.Join(fmt.Errorf("rename: %w", err), abort())
	}

	// The temp name has been renamed away, so abort now only closes the
	// still-open temp fd (its remove step finds nothing to delete).
	abortErr := abort()

	if opts.SyncDir {
		if err := fsyncDir(w.fs, dir); err != nil {
			return errors.Join(err, abortErr)
		}
	}

	return nil
}

func writeAndSyncTempFile(file File, path string, r io.Reader) error {
	if _, err := io.Copy(file, r); err != nil {
		return fmt.Errorf("write temp file %q: %w", path, err)
	}

	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync temp file %q: %w", path, err)
	}

	return nil
}

// atomicWriteMaxAttempts bounds the retry loop below against a pathological
// directory already full of stale ".base.tmp-N" names.
const atomicWriteMaxAttempts = 10000

var atomicWriteCounter atomic.Uint64

// createAtomicTempFile opens a fresh, exclusively-created temp file in dir
// named after base, retrying on name collision.
func createAtomicTempFile(fsys FS, dir, base string, perm os.FileMode) (File, string, error) {
	for range atomicWriteMaxAttempts {
		seq := atomicWriteCounter.Add(1)
		path := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d", base, seq))

		file, err := fsys.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
		if err == nil {
			return file, path, nil
		}

		if os.IsExist(err) {
			continue
		}

		return nil, "", fmt.Errorf("create temp file: %w", err)
	}

	return nil, "", fmt.Errorf("exhausted temp file attempts in %q", dir)
}

func fsyncDir(fsys FS, dirPath string) error {
	dirFd, err := fsys.Open(dirPath)
	if err != nil {
		return errors.Join(ErrAtomicWriteDirSync, fmt.Errorf("open dir %q: %w", dirPath, err))
	}

	if err := dirFd.Sync(); err != nil {
		return errors.Join(ErrAtomicWriteDirSync, fmt.Errorf("%q: %w", dirPath, err), closeDir(dirPath, dirFd))
	}

	return closeDir(dirPath, dirFd)
}

func closeDir(dir string, file File) error {
	if err := file.Close(); err != nil {
		return fmt.Errorf("close dir %q: %w", dir, err)
	}

	return nil
}

func closeTmpFile(path string, file File) error {
	if err := file.Close(); err != nil {
		return fmt.Errorf("close temp file %q: %w", path, err)
	}

	return nil
}

func removeTempFile(fsys FS, path string) error {
	if err := fsys.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove temp file %q: %w", path, err)
	}

	return nil
}
