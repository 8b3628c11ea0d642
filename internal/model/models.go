package model

import "time"

// RemoteServer is a registered SMB share endpoint with credentials.
type RemoteServer struct {
	ID        int64
	Address   string // Hostname or IP of the server
	Username  string
	Secret    string
	ShareName string
	CreatedAt time.Time
}

// SavedDirectory is a local directory the user has chosen to back up
// to a specific RemoteServer. The pair (ServerID, LocalPath) is unique.
type SavedDirectory struct {
	ID           int64
	ServerID     int64 // Foreign key to RemoteServer
	LocalPath    string
	DisplayName  *string
	LastSyncedAt *time.Time // Set only by the upload engine after a confirmed upload
}

// PendingSyncItem is a row of the durable work queue: its presence means
// the directory still needs to be uploaded or re-synced. ServerID is
// denormalized from the owning directory for query convenience.
// The triple (DirectoryID, ServerID, LocalPath) is unique; inserting a
// duplicate is a no-op, not an error.
type PendingSyncItem struct {
	ID          int64
	DirectoryID int64 // Foreign key to SavedDirectory
	ServerID    int64 // Foreign key to RemoteServer
	LocalPath   string
}
