package database

// Schema is the full current schema. Kept in sync with the migration files;
// tests apply it directly to in-memory databases instead of running migrate.
const Schema = `
CREATE TABLE remote_servers (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    address TEXT NOT NULL,
    username TEXT NOT NULL,
    secret TEXT NOT NULL,
    share_name TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE saved_directories (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    server_id INTEGER NOT NULL REFERENCES remote_servers(id) ON DELETE CASCADE,
    local_path TEXT NOT NULL,
    display_name TEXT,
    last_synced_at TIMESTAMP,
    UNIQUE (server_id, local_path)
);

CREATE TABLE pending_sync_items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    directory_id INTEGER NOT NULL REFERENCES saved_directories(id) ON DELETE CASCADE,
    server_id INTEGER NOT NULL REFERENCES remote_servers(id) ON DELETE CASCADE,
    local_path TEXT NOT NULL,
    UNIQUE (directory_id, server_id, local_path)
);

CREATE INDEX idx_pending_sync_items_server ON pending_sync_items(server_id);
CREATE INDEX idx_saved_directories_server ON saved_directories(server_id);
`
