package testutil

import (
	"bytes"
	"context"
	"sync"

	"smbsync/internal/backup"
)

// FakeShareClient is an in-memory share for testing the upload engine.
// Remote state persists across sessions; failures can be scripted.
type FakeShareClient struct {
	mu sync.Mutex

	// ConnectErr, when set, fails every Connect call.
	ConnectErr error
	// OpenErrs maps remote paths to errors returned from OpenFile.
	OpenErrs map[string]error
	// WriteErr, when set, fails the first write of every opened file.
	WriteErr error

	dirs     map[string]bool
	files    map[string][]byte
	connects int
}

// NewFakeShareClient creates an empty fake share.
func NewFakeShareClient() *FakeShareClient {
	return &FakeShareClient{
		OpenErrs: make(map[string]error),
		dirs:     make(map[string]bool),
		files:    make(map[string][]byte),
	}
}

// SeedFile places a file on the fake remote ahead of a test.
func (c *FakeShareClient) SeedFile(path string, content []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files[path] = content
}

// FileContent returns the remote content stored at path.
func (c *FakeShareClient) FileContent(path string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.files[path]
	return b, ok
}

// HasDirectory reports whether the remote directory was created.
func (c *FakeShareClient) HasDirectory(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirs[name]
}

// Connects returns the number of successful Connect calls.
func (c *FakeShareClient) Connects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects
}

func (c *FakeShareClient) CanConnect(ctx context.Context, creds backup.Credentials) bool {
	_, err := c.Connect(ctx, creds)
	return err == nil
}

func (c *FakeShareClient) Connect(ctx context.Context, creds backup.Credentials) (backup.ShareSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ConnectErr != nil {
		return nil, c.ConnectErr
	}
	c.connects++
	return &fakeSession{client: c}, nil
}

type fakeSession struct {
	client *FakeShareClient
}

func (s *fakeSession) EnsureDirectory(name string) error {
	s.client.mu.Lock()
	defer s.client.mu.Unlock()
	s.client.dirs[name] = true
	return nil
}

func (s *fakeSession) OpenFile(path string, mode backup.FileMode) (backup.RemoteFile, backup.OpenStatus, error) {
	s.client.mu.Lock()
	defer s.client.mu.Unlock()

	if err, ok := s.client.OpenErrs[path]; ok {
		return nil, backup.StatusCreated, err
	}

	_, exists := s.client.files[path]
	if exists && mode == backup.CreateOnly {
		return nil, backup.StatusAlreadyExists, nil
	}

	return &fakeRemoteFile{client: s.client, path: path, writeErr: s.client.WriteErr}, backup.StatusCreated, nil
}

func (s *fakeSession) Close() error { return nil }

type fakeRemoteFile struct {
	client   *FakeShareClient
	path     string
	writeErr error
	buf      bytes.Buffer
}

func (f *fakeRemoteFile) Write(p []byte) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	return f.buf.Write(p)
}

func (f *fakeRemoteFile) Close() error {
	f.client.mu.Lock()
	defer f.client.mu.Unlock()
	f.client.files[f.path] = append([]byte(nil), f.buf.Bytes()...)
	return nil
}

// Compile-time check that FakeShareClient implements backup.ShareClient
var _ backup.ShareClient = (*FakeShareClient)(nil)
