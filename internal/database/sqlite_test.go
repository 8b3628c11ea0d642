package database_test

import (
	"testing"
	"time"

	"smbsync/internal/backup"
	"smbsync/internal/model"
	"smbsync/internal/testutil"
)

func seedServer(t *testing.T, ledger backup.Ledger, address string) *model.RemoteServer {
	t.Helper()

	server := &model.RemoteServer{
		Address:   address,
		Username:  "backup",
		Secret:    "hunter2",
		ShareName: "archive",
		CreatedAt: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	id, err := ledger.UpsertServer(server)
	if err != nil {
		t.Fatalf("failed to seed server: %v", err)
	}
	server.ID = id
	return server
}

func seedDirectory(t *testing.T, ledger backup.Ledger, serverID int64, localPath string) *model.SavedDirectory {
	t.Helper()

	dir, err := ledger.InsertAndEnqueue(&model.SavedDirectory{
		ServerID:  serverID,
		LocalPath: localPath,
	})
	if err != nil {
		t.Fatalf("failed to seed directory: %v", err)
	}
	if dir == nil {
		t.Fatalf("directory %s already saved", localPath)
	}
	return dir
}

func TestUpsertServer(t *testing.T) {
	ledger := testutil.NewTestLedger(t)

	t.Run("insert and find", func(t *testing.T) {
		server := seedServer(t, ledger, "nas.local")

		found, err := ledger.FindServerByID(server.ID)
		if err != nil {
			t.Fatalf("FindServerByID failed: %v", err)
		}
		if found == nil {
			t.Fatal("server not found after insert")
		}
		if found.Address != "nas.local" || found.ShareName != "archive" {
			t.Errorf("unexpected server: %+v", found)
		}
		if !found.CreatedAt.Equal(server.CreatedAt) {
			t.Errorf("CreatedAt: got %v, want %v", found.CreatedAt, server.CreatedAt)
		}
	})

	t.Run("update preserves created_at", func(t *testing.T) {
		server := seedServer(t, ledger, "old.local")

		updated := *server
		updated.Address = "new.local"
		updated.CreatedAt = time.Time{}
		if _, err := ledger.UpsertServer(&updated); err != nil {
			t.Fatalf("UpsertServer update failed: %v", err)
		}

		found, err := ledger.FindServerByID(server.ID)
		if err != nil {
			t.Fatalf("FindServerByID failed: %v", err)
		}
		if found.Address != "new.local" {
			t.Errorf("address not updated: %q", found.Address)
		}
		if !found.CreatedAt.Equal(server.CreatedAt) {
			t.Errorf("CreatedAt changed on update: got %v, want %v", found.CreatedAt, server.CreatedAt)
		}
	})

	t.Run("unknown id yields nil", func(t *testing.T) {
		found, err := ledger.FindServerByID(9999)
		if err != nil {
			t.Fatalf("FindServerByID failed: %v", err)
		}
		if found != nil {
			t.Errorf("expected nil for unknown server, got %+v", found)
		}
	})
}

func TestInsertAndEnqueue(t *testing.T) {
	ledger := testutil.NewTestLedger(t)
	server := seedServer(t, ledger, "nas.local")

	dir := seedDirectory(t, ledger, server.ID, "/data/photos")
	if dir.ID == 0 {
		t.Error("inserted directory has no ID")
	}

	saved, err := ledger.IsDirectorySaved(server.ID, "/data/photos")
	if err != nil {
		t.Fatalf("IsDirectorySaved failed: %v", err)
	}
	if !saved {
		t.Error("directory not reported as saved")
	}

	items, err := ledger.PendingItems(server.ID)
	if err != nil {
		t.Fatalf("PendingItems failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one pending item, got %d", len(items))
	}
	if items[0].DirectoryID != dir.ID || items[0].LocalPath != "/data/photos" {
		t.Errorf("unexpected pending item: %+v", items[0])
	}

	t.Run("duplicate yields nil without error", func(t *testing.T) {
		dup, err := ledger.InsertAndEnqueue(&model.SavedDirectory{
			ServerID:  server.ID,
			LocalPath: "/data/photos",
		})
		if err != nil {
			t.Fatalf("duplicate insert errored: %v", err)
		}
		if dup != nil {
			t.Errorf("expected nil for duplicate, got %+v", dup)
		}

		dirs, err := ledger.ListDirectories(server.ID)
		if err != nil {
			t.Fatalf("ListDirectories failed: %v", err)
		}
		if len(dirs) != 1 {
			t.Errorf("expected one directory, got %d", len(dirs))
		}
		items, err := ledger.PendingItems(server.ID)
		if err != nil {
			t.Fatalf("PendingItems failed: %v", err)
		}
		if len(items) != 1 {
			t.Errorf("expected one pending item, got %d", len(items))
		}
	})

	t.Run("same path under another server is distinct", func(t *testing.T) {
		other := seedServer(t, ledger, "other.local")
		seedDirectory(t, ledger, other.ID, "/data/photos")
	})
}

func TestEnqueueDirectoryIdempotent(t *testing.T) {
	ledger := testutil.NewTestLedger(t)
	server := seedServer(t, ledger, "nas.local")
	dir := seedDirectory(t, ledger, server.ID, "/data/photos")

	// Already pending from the insert; enqueueing again must not add a row.
	if err := ledger.EnqueueDirectory(dir); err != nil {
		t.Fatalf("EnqueueDirectory failed: %v", err)
	}

	items, err := ledger.PendingItems(server.ID)
	if err != nil {
		t.Fatalf("PendingItems failed: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("expected one pending item, got %d", len(items))
	}
}

func TestPendingItemsOrder(t *testing.T) {
	ledger := testutil.NewTestLedger(t)
	server := seedServer(t, ledger, "nas.local")

	paths := []string{"/data/c", "/data/a", "/data/b"}
	for _, p := range paths {
		seedDirectory(t, ledger, server.ID, p)
	}

	items, err := ledger.PendingItems(server.ID)
	if err != nil {
		t.Fatalf("PendingItems failed: %v", err)
	}
	if len(items) != len(paths) {
		t.Fatalf("expected %d items, got %d", len(paths), len(items))
	}
	// Insertion order, not path order.
	for i, p := range paths {
		if items[i].LocalPath != p {
			t.Errorf("item %d: got %q, want %q", i, items[i].LocalPath, p)
		}
	}
}

func TestMarkSynced(t *testing.T) {
	clock := testutil.FixedClock()
	ledger := testutil.NewTestLedgerWithClock(t, clock)
	server := seedServer(t, ledger, "nas.local")
	dir := seedDirectory(t, ledger, server.ID, "/data/photos")

	items, err := ledger.PendingItems(server.ID)
	if err != nil {
		t.Fatalf("PendingItems failed: %v", err)
	}

	clock.Advance(42 * time.Minute)
	if err := ledger.MarkSynced(items[0]); err != nil {
		t.Fatalf("MarkSynced failed: %v", err)
	}

	remaining, err := ledger.PendingItems(server.ID)
	if err != nil {
		t.Fatalf("PendingItems failed: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("pending item survived MarkSynced: %+v", remaining)
	}

	found, err := ledger.FindDirectoryByID(dir.ID, server.ID)
	if err != nil {
		t.Fatalf("FindDirectoryByID failed: %v", err)
	}
	if found.LastSyncedAt == nil {
		t.Fatal("LastSyncedAt not set")
	}
	if !found.LastSyncedAt.Equal(clock.Now()) {
		t.Errorf("LastSyncedAt: got %v, want %v", found.LastSyncedAt, clock.Now())
	}
}

func TestClearAllPending(t *testing.T) {
	ledger := testutil.NewTestLedger(t)
	server := seedServer(t, ledger, "nas.local")
	other := seedServer(t, ledger, "other.local")
	seedDirectory(t, ledger, server.ID, "/data/photos")
	seedDirectory(t, ledger, server.ID, "/data/music")
	seedDirectory(t, ledger, other.ID, "/data/photos")

	if err := ledger.ClearAllPending(server.ID); err != nil {
		t.Fatalf("ClearAllPending failed: %v", err)
	}

	items, err := ledger.PendingItems(server.ID)
	if err != nil {
		t.Fatalf("PendingItems failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("queue not cleared: %+v", items)
	}

	// The other server's queue is untouched.
	items, err = ledger.PendingItems(other.ID)
	if err != nil {
		t.Fatalf("PendingItems failed: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("another server's queue was cleared: %+v", items)
	}
}

func TestDeleteDirectoryCascades(t *testing.T) {
	ledger := testutil.NewTestLedger(t)
	server := seedServer(t, ledger, "nas.local")
	dir := seedDirectory(t, ledger, server.ID, "/data/photos")
	kept := seedDirectory(t, ledger, server.ID, "/data/music")

	if err := ledger.DeleteDirectory(dir.ID, server.ID); err != nil {
		t.Fatalf("DeleteDirectory failed: %v", err)
	}

	found, err := ledger.FindDirectoryByID(dir.ID, server.ID)
	if err != nil {
		t.Fatalf("FindDirectoryByID failed: %v", err)
	}
	if found != nil {
		t.Errorf("directory survived deletion: %+v", found)
	}

	items, err := ledger.PendingItems(server.ID)
	if err != nil {
		t.Fatalf("PendingItems failed: %v", err)
	}
	if len(items) != 1 || items[0].DirectoryID != kept.ID {
		t.Errorf("unexpected queue after delete: %+v", items)
	}
}

func TestDeleteServerCascades(t *testing.T) {
	ledger := testutil.NewTestLedger(t)
	server := seedServer(t, ledger, "nas.local")
	seedDirectory(t, ledger, server.ID, "/data/photos")

	if err := ledger.DeleteServer(server.ID); err != nil {
		t.Fatalf("DeleteServer failed: %v", err)
	}

	dirs, err := ledger.ListDirectories(server.ID)
	if err != nil {
		t.Fatalf("ListDirectories failed: %v", err)
	}
	if len(dirs) != 0 {
		t.Errorf("directories survived server deletion: %+v", dirs)
	}

	items, err := ledger.PendingItems(server.ID)
	if err != nil {
		t.Fatalf("PendingItems failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("pending items survived server deletion: %+v", items)
	}
}
