package fs

import (
	"os"
)

// Real is the production [FS]: every method is a direct passthrough to the
// [os] package, with the same behavior and error semantics. [AtomicWriter]
// is built against this in [github.com/flaxkv/flaxkv.Open]'s HEADER write;
// the indirection exists so tests can swap in a fake FS instead of
// touching a real disk.
type Real struct{}

// NewReal returns the production filesystem.
func NewReal() *Real {
	return &Real{}
}

// Open opens path for reading. See [os.Open].
func (r *Real) Open(path string) (File, error) {
	return os.Open(path)
}

// OpenFile opens path with the given flags and permissions. See
// [os.OpenFile]. This is what [AtomicWriter] uses to create its temp files
// with O_EXCL.
func (r *Real) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	return os.OpenFile(path, flag, perm)
}

// Rename moves oldpath to newpath. See [os.Rename]. Atomic on same-filesystem
// renames, which is what [AtomicWriter] relies on.
func (r *Real) Rename(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}

// Remove deletes a file or empty directory. See [os.Remove].
func (r *Real) Remove(path string) error {
	return os.Remove(path)
}

// Create creates or truncates a file for writing. See [os.Create].
func (r *Real) Create(path string) (File, error) {
	return os.Create(path)
}

// ReadFile reads an entire file into memory. See [os.ReadFile].
func (r *Real) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFile writes data to path, creating it if necessary. See
// [os.WriteFile]. Not atomic or durable; use [AtomicWriter] when that
// matters.
func (r *Real) WriteFile(path string, data []byte, perm os.FileMode) error {
	return os.WriteFile(path, data, perm)
}

// ReadDir reads a directory's entries. See [os.ReadDir].
func (r *Real) ReadDir(path string) ([]os.DirEntry, error) {
	return os.ReadDir(path)
}

// MkdirAll creates a directory and all missing parents. See [os.MkdirAll].
func (r *Real) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// Stat returns file info for path. See [os.Stat].
func (r *Real) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

// Exists reports whether path exists, collapsing [os.ErrNotExist] into
// (false, nil) so callers don't have to special-case it at every call site.
func (r *Real) Exists(path string) (bool, error) {
	_, err := os.Stat(path)

	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, err
	}
}

// RemoveAll deletes path and any children. See [os.RemoveAll].
func (r *Real) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

var _ FS = (*Real)(nil)
