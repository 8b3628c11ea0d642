package testutil

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"smbsync/internal/backup"
)

// MockFilesystemManager is an in-memory filesystem for testing. Paths are
// flat strings; files live directly under their directory.
type MockFilesystemManager struct {
	dirs  map[string]bool
	files map[string][]byte // absolute path -> content
}

// NewMockFilesystemManager creates a new mock filesystem.
func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{
		dirs:  make(map[string]bool),
		files: make(map[string][]byte),
	}
}

// AddDirectory adds a directory to the mock filesystem.
func (m *MockFilesystemManager) AddDirectory(p string) {
	m.dirs[p] = true
}

// AddFile adds a file to the mock filesystem, creating its directory.
func (m *MockFilesystemManager) AddFile(p string, content []byte) {
	m.dirs[path.Dir(p)] = true
	m.files[p] = content
}

func (m *MockFilesystemManager) ResolveDir(rawPath string) (*backup.LocalDir, error) {
	p := strings.TrimPrefix(rawPath, "file://")
	if !m.dirs[p] {
		return nil, fmt.Errorf("directory not found: %s", p)
	}
	return backup.NewLocalDir(p, path.Base(p)), nil
}

func (m *MockFilesystemManager) ListFiles(dir *backup.LocalDir) ([]backup.LocalFile, error) {
	var files []backup.LocalFile
	for p, content := range m.files {
		// Immediate children only.
		if path.Dir(p) != dir.String() {
			continue
		}
		files = append(files, &mockFile{name: path.Base(p), content: content})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })
	return files, nil
}

type mockFile struct {
	name    string
	content []byte
}

func (f *mockFile) Name() string { return f.name }
func (f *mockFile) Size() int64  { return int64(len(f.content)) }

func (f *mockFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.content)), nil
}

// Compile-time check that MockFilesystemManager implements backup.FilesystemManager
var _ backup.FilesystemManager = (*MockFilesystemManager)(nil)
