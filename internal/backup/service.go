package backup

import (
	"context"
	"fmt"

	"smbsync/internal/model"
)

// Service is the orchestration layer between the CLI and the ledger,
// share client, and filesystem. The upload engine itself runs separately
// under the host scheduler; Service covers the interactive operations.
type Service struct {
	ledger Ledger
	shares ShareClient
	fsmgr  FilesystemManager
	logger Logger
	clock  Clock
}

// NewService creates a Service with the provided dependencies.
func NewService(ledger Ledger, shares ShareClient, fsmgr FilesystemManager, logger Logger, clock Clock) *Service {
	return &Service{
		ledger: ledger,
		shares: shares,
		fsmgr:  fsmgr,
		logger: logger,
		clock:  clock,
	}
}

// RegisterServer inserts or updates a server record and returns its ID.
func (s *Service) RegisterServer(server *model.RemoteServer) (int64, error) {
	if server.Address == "" || server.ShareName == "" {
		return 0, fmt.Errorf("server address and share name are required")
	}
	if server.CreatedAt.IsZero() {
		server.CreatedAt = s.clock.Now()
	}

	id, err := s.ledger.UpsertServer(server)
	if err != nil {
		return 0, fmt.Errorf("saving server: %w", err)
	}

	s.logger.Info("server registered", "id", id, "address", server.Address, "share", server.ShareName)
	return id, nil
}

// RemoveServer deletes a server along with its saved directories and
// pending sync items.
func (s *Service) RemoveServer(id int64) error {
	server, err := s.ledger.FindServerByID(id)
	if err != nil {
		return fmt.Errorf("loading server: %w", err)
	}
	if server == nil {
		return fmt.Errorf("%w: id %d", ErrServerNotFound, id)
	}

	if err := s.ledger.DeleteServer(id); err != nil {
		return fmt.Errorf("deleting server: %w", err)
	}

	s.logger.Info("server removed", "id", id, "address", server.Address)
	return nil
}

// TestConnection attempts to authenticate and open the server's share.
// Connection problems are reported as false, never as an error.
func (s *Service) TestConnection(ctx context.Context, serverID int64) (bool, error) {
	server, err := s.ledger.FindServerByID(serverID)
	if err != nil {
		return false, fmt.Errorf("loading server: %w", err)
	}
	if server == nil {
		return false, fmt.Errorf("%w: id %d", ErrServerNotFound, serverID)
	}

	return s.shares.CanConnect(ctx, CredentialsFor(server)), nil
}

// AddDirectory registers a local directory for backup to a server and
// enqueues it for upload, in one atomic unit. Registering the same
// directory twice returns ErrAlreadySaved; exactly one row is stored and
// no second upload is scheduled.
func (s *Service) AddDirectory(serverID int64, rawPath, displayName string) (*model.SavedDirectory, error) {
	server, err := s.ledger.FindServerByID(serverID)
	if err != nil {
		return nil, fmt.Errorf("loading server: %w", err)
	}
	if server == nil {
		return nil, fmt.Errorf("%w: id %d", ErrServerNotFound, serverID)
	}

	local, err := s.fsmgr.ResolveDir(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving directory: %w", err)
	}

	dir := &model.SavedDirectory{
		ServerID:  serverID,
		LocalPath: local.String(),
	}
	if displayName != "" {
		dir.DisplayName = &displayName
	}

	saved, err := s.ledger.InsertAndEnqueue(dir)
	if err != nil {
		return nil, fmt.Errorf("saving directory: %w", err)
	}
	if saved == nil {
		return nil, ErrAlreadySaved
	}

	s.logger.Info("directory saved", "id", saved.ID, "server", serverID, "path", saved.LocalPath)
	return saved, nil
}

// RequeueDirectory puts an already-saved directory back on the pending
// queue for re-sync. Requeueing a directory that is already pending is a
// no-op.
func (s *Service) RequeueDirectory(dirID, serverID int64) error {
	dir, err := s.ledger.FindDirectoryByID(dirID, serverID)
	if err != nil {
		return fmt.Errorf("loading directory: %w", err)
	}
	if dir == nil {
		return fmt.Errorf("%w: id %d", ErrDirectoryNotFound, dirID)
	}

	if err := s.ledger.EnqueueDirectory(dir); err != nil {
		return fmt.Errorf("enqueueing directory: %w", err)
	}

	s.logger.Info("directory requeued", "id", dirID, "server", serverID)
	return nil
}

// RemoveDirectory deletes a saved directory and its pending sync items.
func (s *Service) RemoveDirectory(dirID, serverID int64) error {
	dir, err := s.ledger.FindDirectoryByID(dirID, serverID)
	if err != nil {
		return fmt.Errorf("loading directory: %w", err)
	}
	if dir == nil {
		return fmt.Errorf("%w: id %d", ErrDirectoryNotFound, dirID)
	}

	if err := s.ledger.DeleteDirectory(dirID, serverID); err != nil {
		return fmt.Errorf("deleting directory: %w", err)
	}

	s.logger.Info("directory removed", "id", dirID, "server", serverID)
	return nil
}

// ListServers returns all registered servers.
func (s *Service) ListServers() ([]*model.RemoteServer, error) {
	return s.ledger.ListServers()
}

// ListDirectories returns all saved directories for a server.
func (s *Service) ListDirectories(serverID int64) ([]*model.SavedDirectory, error) {
	return s.ledger.ListDirectories(serverID)
}

// PendingItems returns the current pending queue for a server.
func (s *Service) PendingItems(serverID int64) ([]*model.PendingSyncItem, error) {
	return s.ledger.PendingItems(serverID)
}

// ClearPending empties the pending queue for a server.
func (s *Service) ClearPending(serverID int64) error {
	return s.ledger.ClearAllPending(serverID)
}
