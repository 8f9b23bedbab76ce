// Package fs provides the narrow filesystem abstraction the stats dumper
// and config loader need. The config loader accepts any [FS]; the stats
// dumper always writes through [Real].
//
// The main types are:
//   - [FS]: interface for the handful of filesystem operations this
//     repo's config loading and atomic writing actually use
//   - [File]: interface for open files (satisfied by [os.File])
//   - [Real]: production implementation using [os] package
package fs

import (
	"io"
	"os"
)

// File represents an OS-backed open file descriptor, trimmed to the
// methods [AtomicWriter] actually calls on a temp file or directory
// handle: write the payload, sync it, chmod it, close it.
//
// This interface is satisfied by [os.File].
//
// Implementations must be safe for concurrent use by multiple goroutines.
type File interface {
	io.WriteCloser

	// Sync commits the file's contents to disk. See [os.File.Sync].
	Sync() error

	// Chmod changes the mode of the file. See [os.File.Chmod].
	Chmod(mode os.FileMode) error
}

// FS defines the filesystem operations the config loader and the atomic
// writer need.
//
// The only shipped implementation is [Real].
//
// Paths use OS semantics (like the os package and path/filepath), not the
// slash-separated paths used by the standard library io/fs package.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type FS interface {
	// Open opens a file for reading. See [os.Open]. [AtomicWriter] uses
	// this to open a directory handle for fsync after a rename.
	Open(path string) (File, error)

	// OpenFile opens a file with specified flags and permissions. See
	// [os.OpenFile]. [AtomicWriter] uses this to create its temp files.
	OpenFile(path string, flag int, perm os.FileMode) (File, error)

	// ReadFile reads an entire file into memory. See [os.ReadFile]; used
	// to load a cache config file.
	ReadFile(path string) ([]byte, error)

	// Remove deletes a file. See [os.Remove]; used by [AtomicWriter] to
	// clean up a temp file after a failed write.
	Remove(path string) error

	// Rename moves/renames a file. See [os.Rename]; atomic on the same
	// filesystem, the last step of [AtomicWriter.Write].
	Rename(oldpath, newpath string) error
}

// Compile-time interface checks.
var _ File = (*os.File)(nil)
