package backup

import (
	"context"
	"io"

	"smbsync/internal/model"
)

// Credentials holds everything needed to authenticate against a share.
type Credentials struct {
	Address   string
	Username  string
	Secret    string
	ShareName string
}

// CredentialsFor extracts connection credentials from a server record.
func CredentialsFor(server *model.RemoteServer) Credentials {
	return Credentials{
		Address:   server.Address,
		Username:  server.Username,
		Secret:    server.Secret,
		ShareName: server.ShareName,
	}
}

// FileMode controls how a remote file is opened for writing.
type FileMode int

const (
	// CreateOrOverwrite truncates an existing remote file. Backup mode.
	CreateOrOverwrite FileMode = iota
	// CreateOnly fails if the remote file already exists. Incremental mode.
	CreateOnly
)

// OpenStatus reports what an OpenFile call found on the remote side.
// "Already exists" under CreateOnly is a status, not an error, so callers
// can branch on it directly.
type OpenStatus int

const (
	// StatusCreated means the remote file was created (or truncated) and
	// the returned handle is writable.
	StatusCreated OpenStatus = iota
	// StatusAlreadyExists means a CreateOnly open found an existing remote
	// file. No handle is returned; the content is presumed already present.
	StatusAlreadyExists
)

// RemoteFile is a writable handle to a file on the share.
type RemoteFile interface {
	io.WriteCloser
}

// ShareSession is an authenticated connection to one share. Sessions are
// not safe for concurrent use; the upload engine holds exactly one per run.
type ShareSession interface {
	// EnsureDirectory creates the named remote directory if it does not
	// exist. Opening an already-existing directory succeeds.
	EnsureDirectory(name string) error

	// OpenFile opens a remote file for writing under the given mode.
	// Under CreateOnly, an existing file yields (nil, StatusAlreadyExists, nil).
	OpenFile(path string, mode FileMode) (RemoteFile, OpenStatus, error)

	// Close tears down the share mount and the session.
	Close() error
}

// ShareClient provides access to remote SMB shares.
type ShareClient interface {
	// CanConnect attempts to authenticate and open the share. It returns
	// false on any connection failure and never returns an error; it backs
	// a "test connection" affordance that must not crash the caller.
	CanConnect(ctx context.Context, creds Credentials) bool

	// Connect authenticates and mounts the share, returning a session.
	Connect(ctx context.Context, creds Credentials) (ShareSession, error)
}
