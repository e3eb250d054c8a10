// Package spool buffers write streams of unknown length to scratch files
// so that a length-requiring SQL driver can bind them synchronously, and
// spools read-side BLOBs to release the underlying result set early.
package spool

import (
	"io"
	"os"
	"path/filepath"
)

// Strategy selects how a stream of unknown length is delivered to the
// driver's BLOB bind.
type Strategy string

const (
	// Spool copies the whole stream to a scratch file first, then binds
	// a file reader with a known length. Safe for any driver.
	Spool Strategy = "SPOOL"
	// Unknown names the length -1 bind. The store reads the whole stream
	// into memory (no scratch file) and binds it as a byte slice; no
	// length hint reaches the driver.
	Unknown Strategy = "UNKNOWN"
	// Max names the length = MaxInt32 bind. The store handles it exactly
	// like Unknown: an in-memory byte slice, no length hint.
	Max Strategy = "MAX"
)

// ValidStrategy reports whether s names one of the three strategies.
func ValidStrategy(s Strategy) bool {
	switch s {
	case Spool, Unknown, Max:
		return true
	default:
		return false
	}
}

// Dir resolves and creates the directory scratch files are written under.
type Dir struct {
	path string
}

// NewDir ensures path exists and returns a Dir rooted there.
func NewDir(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, err
	}
	return &Dir{path: path}, nil
}

// File is a scratch file created by Copy. Close removes
// it from disk; it is safe to call Close more than once.
type File struct {
	*os.File
	removed bool
}

// Close closes the underlying file and deletes it from disk.
func (f *File) Close() error {
	if f.removed {
		return nil
	}
	closeErr := f.File.Close()
	f.removed = true
	if err := os.Remove(f.File.Name()); err != nil && !os.IsNotExist(err) {
		if closeErr == nil {
			return err
		}
	}
	return closeErr
}

// Copy drains src into a freshly created scratch file and rewinds it to
// the start, returning the file and the number of bytes copied. The
// caller owns the returned file and must Close it.
func (d *Dir) Copy(src io.Reader) (*File, int64, error) {
	f, err := os.CreateTemp(d.path, "blob-*.spool")
	if err != nil {
		return nil, 0, err
	}
	n, err := io.Copy(f, src)
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, 0, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, 0, err
	}
	return &File{File: f}, n, nil
}

// Path returns the directory scratch files are created under.
func (d *Dir) Path() string {
	return d.path
}

// Join is a convenience for building a path under the scratch directory.
func (d *Dir) Join(elem ...string) string {
	return filepath.Join(append([]string{d.path}, elem...)...)
}
