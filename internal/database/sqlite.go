package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"smbsync/internal/backup"
	"smbsync/internal/database/migrations"
	"smbsync/internal/model"
)

// SQLiteLedger implements the backup.Ledger interface using SQLite.
type SQLiteLedger struct {
	db    *sql.DB
	path  string
	clock backup.Clock
}

// NewSQLiteLedger creates a new SQLite ledger.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteLedger(path string, clock backup.Clock) (*SQLiteLedger, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	return newLedgerFromDB(db, path, clock), nil
}

// NewSQLiteLedgerFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteLedgerFromDB(db *sql.DB, clock backup.Clock) *SQLiteLedger {
	return newLedgerFromDB(db, "", clock)
}

func newLedgerFromDB(db *sql.DB, path string, clock backup.Clock) *SQLiteLedger {
	if clock == nil {
		clock = backup.RealClock{}
	}
	return &SQLiteLedger{db: db, path: path, clock: clock}
}

// OpenConnection opens and configures a SQLite connection with appropriate
// PRAGMAs. Exported for tools and tests that need a properly configured
// connection. path can be a file path or ":memory:".
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Foreign keys enforce the cascade-delete invariants; SQLite defaults
	// them to OFF for backward compatibility.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Upload workers for different servers may write concurrently.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Server operations

func (s *SQLiteLedger) UpsertServer(server *model.RemoteServer) (int64, error) {
	if server.ID == 0 {
		res, err := s.db.Exec(`
			INSERT INTO remote_servers (address, username, secret, share_name, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			server.Address, server.Username, server.Secret, server.ShareName, server.CreatedAt)
		if err != nil {
			return 0, fmt.Errorf("inserting server: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("reading inserted server id: %w", err)
		}
		server.ID = id
		return id, nil
	}

	_, err := s.db.Exec(`
		INSERT INTO remote_servers (id, address, username, secret, share_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			address = excluded.address,
			username = excluded.username,
			secret = excluded.secret,
			share_name = excluded.share_name`,
		server.ID, server.Address, server.Username, server.Secret, server.ShareName, server.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("upserting server: %w", err)
	}
	return server.ID, nil
}

func (s *SQLiteLedger) FindServerByID(id int64) (*model.RemoteServer, error) {
	row := s.db.QueryRow(`
		SELECT id, address, username, secret, share_name, created_at
		FROM remote_servers WHERE id = ?`, id)

	server, err := scanServer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding server by id: %w", err)
	}
	return server, nil
}

func (s *SQLiteLedger) ListServers() ([]*model.RemoteServer, error) {
	rows, err := s.db.Query(`
		SELECT id, address, username, secret, share_name, created_at
		FROM remote_servers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing servers: %w", err)
	}
	defer rows.Close()

	var servers []*model.RemoteServer
	for rows.Next() {
		server, err := scanServer(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning server: %w", err)
		}
		servers = append(servers, server)
	}
	return servers, rows.Err()
}

func (s *SQLiteLedger) DeleteServer(id int64) error {
	// Saved directories and pending items cascade via foreign keys.
	if _, err := s.db.Exec(`DELETE FROM remote_servers WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting server: %w", err)
	}
	return nil
}

// Directory operations

func (s *SQLiteLedger) IsDirectorySaved(serverID int64, localPath string) (bool, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM saved_directories
		WHERE server_id = ? AND local_path = ?`, serverID, localPath).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking for saved directory: %w", err)
	}
	return n > 0, nil
}

// InsertAndEnqueue inserts the directory and its pending sync item in one
// transaction. A uniqueness violation on the directory yields (nil, nil):
// duplicate registration is an expected user action, not an error.
func (s *SQLiteLedger) InsertAndEnqueue(dir *model.SavedDirectory) (*model.SavedDirectory, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO saved_directories (server_id, local_path, display_name, last_synced_at)
		VALUES (?, ?, ?, NULL)`,
		dir.ServerID, dir.LocalPath, dir.DisplayName)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("inserting directory: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading inserted directory id: %w", err)
	}

	_, err = tx.Exec(`
		INSERT OR IGNORE INTO pending_sync_items (directory_id, server_id, local_path)
		VALUES (?, ?, ?)`,
		id, dir.ServerID, dir.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("enqueueing directory: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	saved := *dir
	saved.ID = id
	saved.LastSyncedAt = nil
	return &saved, nil
}

func (s *SQLiteLedger) FindDirectoryByID(dirID, serverID int64) (*model.SavedDirectory, error) {
	row := s.db.QueryRow(`
		SELECT id, server_id, local_path, display_name, last_synced_at
		FROM saved_directories WHERE id = ? AND server_id = ?`, dirID, serverID)

	dir, err := scanDirectory(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding directory by id: %w", err)
	}
	return dir, nil
}

func (s *SQLiteLedger) ListDirectories(serverID int64) ([]*model.SavedDirectory, error) {
	rows, err := s.db.Query(`
		SELECT id, server_id, local_path, display_name, last_synced_at
		FROM saved_directories WHERE server_id = ? ORDER BY id`, serverID)
	if err != nil {
		return nil, fmt.Errorf("listing directories: %w", err)
	}
	defer rows.Close()

	var dirs []*model.SavedDirectory
	for rows.Next() {
		dir, err := scanDirectory(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning directory: %w", err)
		}
		dirs = append(dirs, dir)
	}
	return dirs, rows.Err()
}

func (s *SQLiteLedger) DeleteDirectory(dirID, serverID int64) error {
	// Pending items cascade via foreign keys.
	_, err := s.db.Exec(`
		DELETE FROM saved_directories WHERE id = ? AND server_id = ?`, dirID, serverID)
	if err != nil {
		return fmt.Errorf("deleting directory: %w", err)
	}
	return nil
}

// Queue operations

func (s *SQLiteLedger) EnqueueDirectory(dir *model.SavedDirectory) error {
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO pending_sync_items (directory_id, server_id, local_path)
		VALUES (?, ?, ?)`,
		dir.ID, dir.ServerID, dir.LocalPath)
	if err != nil {
		return fmt.Errorf("enqueueing directory: %w", err)
	}
	return nil
}

func (s *SQLiteLedger) PendingItems(serverID int64) ([]*model.PendingSyncItem, error) {
	rows, err := s.db.Query(`
		SELECT id, directory_id, server_id, local_path
		FROM pending_sync_items WHERE server_id = ? ORDER BY id`, serverID)
	if err != nil {
		return nil, fmt.Errorf("reading pending queue: %w", err)
	}
	defer rows.Close()

	var items []*model.PendingSyncItem
	for rows.Next() {
		var item model.PendingSyncItem
		if err := rows.Scan(&item.ID, &item.DirectoryID, &item.ServerID, &item.LocalPath); err != nil {
			return nil, fmt.Errorf("scanning pending item: %w", err)
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

// MarkSynced sets the owning directory's last-synced timestamp and deletes
// the queue row in one transaction: both effects or neither.
func (s *SQLiteLedger) MarkSynced(item *model.PendingSyncItem) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.clock.Now()
	if _, err := tx.Exec(`
		UPDATE saved_directories SET last_synced_at = ? WHERE id = ?`,
		now, item.DirectoryID); err != nil {
		return fmt.Errorf("updating last synced time: %w", err)
	}

	if _, err := tx.Exec(`
		DELETE FROM pending_sync_items WHERE id = ?`, item.ID); err != nil {
		return fmt.Errorf("deleting pending item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLiteLedger) ClearAllPending(serverID int64) error {
	if _, err := s.db.Exec(`
		DELETE FROM pending_sync_items WHERE server_id = ?`, serverID); err != nil {
		return fmt.Errorf("clearing pending queue: %w", err)
	}
	return nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteLedger) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteLedger) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// MigrateUp brings the database schema to the latest version.
func (s *SQLiteLedger) MigrateUp() error {
	return migrations.MigrateUp(s.db)
}

// Close closes the database connection.
func (s *SQLiteLedger) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanServer(row scanner) (*model.RemoteServer, error) {
	var server model.RemoteServer
	err := row.Scan(&server.ID, &server.Address, &server.Username, &server.Secret, &server.ShareName, &server.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &server, nil
}

func scanDirectory(row scanner) (*model.SavedDirectory, error) {
	var dir model.SavedDirectory
	var displayName sql.NullString
	var lastSynced sql.NullTime
	err := row.Scan(&dir.ID, &dir.ServerID, &dir.LocalPath, &displayName, &lastSynced)
	if err != nil {
		return nil, err
	}
	if displayName.Valid {
		dir.DisplayName = &displayName.String
	}
	if lastSynced.Valid {
		t := lastSynced.Time
		dir.LastSyncedAt = &t
	}
	return &dir, nil
}

// isUniqueViolation reports whether err is a SQLite uniqueness constraint
// failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// Compile-time check that SQLiteLedger implements backup.Ledger
var _ backup.Ledger = (*SQLiteLedger)(nil)
