// Package smb implements the backup.ShareClient interface on top of the
// go-smb2 library. It owns the mapping from SMB protocol failures to the
// sentinel errors the failure classifier understands.
package smb

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/hirochachacha/go-smb2"

	"smbsync/internal/backup"
)

const smbPort = "445"

// DefaultConnectTimeout bounds the TCP dial to the server.
const DefaultConnectTimeout = 30 * time.Second

// NT status codes surfaced by the server that we branch on.
const (
	ntStatusSharingViolation    = 0xC0000043
	ntStatusObjectNameCollision = 0xC0000035
)

// Client connects to SMB shares.
type Client struct {
	connectTimeout time.Duration
	logger         backup.Logger
}

// NewClient creates a Client. connectTimeout <= 0 selects DefaultConnectTimeout.
func NewClient(connectTimeout time.Duration, logger backup.Logger) *Client {
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	if logger == nil {
		logger = backup.NewNopLogger()
	}
	return &Client{connectTimeout: connectTimeout, logger: logger}
}

// CanConnect attempts to authenticate and mount the share. Any failure is
// reported as false; this backs a "test connection" affordance and must
// never crash the caller.
func (c *Client) CanConnect(ctx context.Context, creds backup.Credentials) bool {
	session, err := c.Connect(ctx, creds)
	if err != nil {
		c.logger.Debug("connection test failed", "address", creds.Address, "err", err)
		return false
	}
	session.Close()
	return true
}

// Connect dials the server, authenticates, and mounts the share.
func (c *Client) Connect(ctx context.Context, creds backup.Credentials) (backup.ShareSession, error) {
	dialer := &net.Dialer{Timeout: c.connectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(creds.Address, smbPort))
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", creds.Address, err)
	}

	d := &smb2.Dialer{
		Initiator: &smb2.NTLMInitiator{
			User:     creds.Username,
			Password: creds.Secret,
		},
	}

	session, err := d.DialContext(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, wrapProtocolError(fmt.Errorf("authenticating with %s: %w", creds.Address, err))
	}

	share, err := session.Mount(creds.ShareName)
	if err != nil {
		session.Logoff()
		conn.Close()
		return nil, wrapProtocolError(fmt.Errorf("mounting share %s: %w", creds.ShareName, err))
	}

	c.logger.Debug("share mounted", "address", creds.Address, "share", creds.ShareName)
	return &shareSession{conn: conn, session: session, share: share}, nil
}

// shareSession is an authenticated mount of one share. Not safe for
// concurrent use.
type shareSession struct {
	conn    net.Conn
	session *smb2.Session
	share   *smb2.Share
}

// EnsureDirectory creates the named remote directory. A name collision
// means the directory is already there, which is success.
func (s *shareSession) EnsureDirectory(name string) error {
	err := s.share.Mkdir(name, 0755)
	if err == nil || isExist(err) {
		return nil
	}
	return wrapProtocolError(fmt.Errorf("creating directory %s: %w", name, err))
}

// OpenFile opens a remote file for writing. Under CreateOnly, an existing
// file is reported via StatusAlreadyExists rather than an error so that
// incremental sync can treat it as already satisfied.
func (s *shareSession) OpenFile(path string, mode backup.FileMode) (backup.RemoteFile, backup.OpenStatus, error) {
	flags := os.O_WRONLY | os.O_CREATE
	if mode == backup.CreateOnly {
		flags |= os.O_EXCL
	} else {
		flags |= os.O_TRUNC
	}

	f, err := s.share.OpenFile(path, flags, 0644)
	if err != nil {
		if mode == backup.CreateOnly && isExist(err) {
			return nil, backup.StatusAlreadyExists, nil
		}
		return nil, backup.StatusCreated, wrapProtocolError(fmt.Errorf("opening remote file %s: %w", path, err))
	}

	return f, backup.StatusCreated, nil
}

// Close unmounts the share and tears down the session and connection.
func (s *shareSession) Close() error {
	var firstErr error
	if err := s.share.Umount(); err != nil {
		firstErr = err
	}
	if err := s.session.Logoff(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.conn.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// isExist reports whether err means the remote file or directory already
// exists.
func isExist(err error) bool {
	if os.IsExist(err) {
		return true
	}
	var respErr *smb2.ResponseError
	return errors.As(err, &respErr) && respErr.Code == ntStatusObjectNameCollision
}

// wrapProtocolError tags SMB response errors with the classifier sentinels.
// Network-level errors (timeouts, refused connections, DNS failures) are
// left as-is: the classifier inspects those directly.
func wrapProtocolError(err error) error {
	var respErr *smb2.ResponseError
	if !errors.As(err, &respErr) {
		return err
	}
	if respErr.Code == ntStatusSharingViolation {
		return fmt.Errorf("%w: %w", backup.ErrSharingViolation, err)
	}
	return fmt.Errorf("%w: %w", backup.ErrRemoteProtocol, err)
}

// Compile-time check that Client implements backup.ShareClient
var _ backup.ShareClient = (*Client)(nil)
