package backup

import "io"

// LocalDir represents a resolved local directory chosen for backup.
type LocalDir struct {
	absPath string
	name    string
}

// NewLocalDir creates a LocalDir from its components.
// This is primarily for use by FilesystemManager implementations.
func NewLocalDir(absPath, name string) *LocalDir {
	return &LocalDir{absPath: absPath, name: name}
}

// String returns the absolute path as a string.
func (d *LocalDir) String() string { return d.absPath }

// Name returns the directory's base name, used as the remote directory name.
func (d *LocalDir) Name() string { return d.name }

// LocalFile is a readable local file discovered inside a LocalDir.
type LocalFile interface {
	// Name returns the file's name relative to its directory.
	Name() string

	// Size returns the file's length in bytes.
	Size() int64

	// Open opens the file for reading.
	Open() (io.ReadCloser, error)
}

// FilesystemManager abstracts local file access so the upload engine can be
// tested without touching the real filesystem.
type FilesystemManager interface {
	// ResolveDir validates a raw path (plain or file:// form) and returns
	// a LocalDir. It fails if the path does not exist or is not a directory.
	ResolveDir(rawPath string) (*LocalDir, error)

	// ListFiles enumerates the immediate child files of a directory.
	// Sub-directories are not descended into. A directory with no children,
	// or one that can no longer be resolved, yields an empty slice and no
	// error.
	ListFiles(dir *LocalDir) ([]LocalFile, error)
}
