package backup

import "smbsync/internal/model"

// Ledger provides an interface for the persistent directory ledger:
// registered servers, saved directories, and the pending-sync queue.
// All methods must be safe for concurrent callers working on different
// servers; implementations serialize writers the way a transactional
// database does.
type Ledger interface {
	// Server operations

	// UpsertServer inserts a new server (ID == 0) or updates an existing
	// one by ID. Returns the server's ID.
	UpsertServer(server *model.RemoteServer) (int64, error)

	// FindServerByID returns the server with the given ID, or nil if it
	// does not exist.
	FindServerByID(id int64) (*model.RemoteServer, error)

	// ListServers returns all registered servers ordered by ID.
	ListServers() ([]*model.RemoteServer, error)

	// DeleteServer removes a server. All of its saved directories and
	// pending sync items are deleted with it.
	DeleteServer(id int64) error

	// Directory operations

	// IsDirectorySaved reports whether the (serverID, localPath) pair is
	// already registered.
	IsDirectorySaved(serverID int64, localPath string) (bool, error)

	// InsertAndEnqueue inserts a SavedDirectory and its PendingSyncItem in
	// one atomic unit. If the directory already exists for the server it
	// returns (nil, nil): duplicate registration is an expected user
	// action, not an error.
	InsertAndEnqueue(dir *model.SavedDirectory) (*model.SavedDirectory, error)

	// FindDirectoryByID returns the directory with the given ID belonging
	// to the given server, or nil if it does not exist.
	FindDirectoryByID(dirID, serverID int64) (*model.SavedDirectory, error)

	// ListDirectories returns all saved directories for a server ordered by ID.
	ListDirectories(serverID int64) ([]*model.SavedDirectory, error)

	// DeleteDirectory removes a saved directory and its pending sync items.
	DeleteDirectory(dirID, serverID int64) error

	// Queue operations

	// EnqueueDirectory adds a pending sync item for an already-saved
	// directory. Enqueueing a directory that is already pending is a no-op.
	EnqueueDirectory(dir *model.SavedDirectory) error

	// PendingItems returns the current queue snapshot for a server, in
	// insertion order. Items marked synced are not included.
	PendingItems(serverID int64) ([]*model.PendingSyncItem, error)

	// MarkSynced atomically sets the owning directory's LastSyncedAt to now
	// and deletes the pending item. Both effects happen or neither does.
	MarkSynced(item *model.PendingSyncItem) error

	// ClearAllPending deletes every pending sync item for a server. Used on
	// terminal failure or cancellation so the next run starts clean.
	ClearAllPending(serverID int64) error

	// Close closes the underlying store.
	Close() error
}
