package fs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"smbsync/internal/backup"
)

// OSFilesystemManager is the real filesystem implementation of
// backup.FilesystemManager.
type OSFilesystemManager struct{}

// NewOSFilesystemManager creates a filesystem manager that operates on the
// real filesystem.
func NewOSFilesystemManager() *OSFilesystemManager {
	return &OSFilesystemManager{}
}

// ResolveDir validates a raw path and returns a LocalDir.
// Paths may be given in file:// form; the scheme is stripped.
func (m *OSFilesystemManager) ResolveDir(rawPath string) (*backup.LocalDir, error) {
	cleaned := strings.TrimPrefix(rawPath, "file://")

	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", absPath)
	}

	return backup.NewLocalDir(absPath, filepath.Base(absPath)), nil
}

// ListFiles enumerates the immediate child files of a directory.
// Sub-directories are not descended into. A missing or empty directory
// yields an empty slice, not an error.
func (m *OSFilesystemManager) ListFiles(dir *backup.LocalDir) ([]backup.LocalFile, error) {
	entries, err := os.ReadDir(dir.String())
	if err != nil {
		if os.IsNotExist(err) {
			return []backup.LocalFile{}, nil
		}
		return nil, fmt.Errorf("reading directory: %w", err)
	}

	files := make([]backup.LocalFile, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		files = append(files, &osFile{
			path: filepath.Join(dir.String(), entry.Name()),
			name: entry.Name(),
			size: info.Size(),
		})
	}

	return files, nil
}

// osFile is a LocalFile backed by the real filesystem.
type osFile struct {
	path string
	name string
	size int64
}

func (f *osFile) Name() string { return f.name }
func (f *osFile) Size() int64  { return f.size }

func (f *osFile) Open() (io.ReadCloser, error) {
	return os.Open(f.path)
}

// Compile-time check that OSFilesystemManager implements backup.FilesystemManager
var _ backup.FilesystemManager = (*OSFilesystemManager)(nil)
