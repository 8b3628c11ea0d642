package backup_test

import (
	"context"
	"syscall"
	"testing"

	"smbsync/internal/backup"
	"smbsync/internal/model"
	"smbsync/internal/testutil"
)

type workerFixture struct {
	ledger   backup.Ledger
	share    *testutil.FakeShareClient
	fsmgr    *testutil.MockFilesystemManager
	notifier *testutil.MemoryNotifier
	worker   *backup.Worker
}

func newWorkerFixture(t *testing.T) *workerFixture {
	t.Helper()

	f := &workerFixture{
		ledger:   testutil.NewTestLedger(t),
		share:    testutil.NewFakeShareClient(),
		fsmgr:    testutil.NewMockFilesystemManager(),
		notifier: testutil.NewMemoryNotifier(),
	}

	logger := backup.NewNopLogger()
	uploader := backup.NewUploader(f.fsmgr, logger, 0)
	f.worker = backup.NewWorker(f.ledger, f.share, uploader, f.notifier, logger, backup.MaxAttempts)
	return f
}

func (f *workerFixture) seedServer(t *testing.T) *model.RemoteServer {
	t.Helper()

	server := &model.RemoteServer{
		Address:   "nas.local",
		Username:  "backup",
		Secret:    "hunter2",
		ShareName: "archive",
	}
	id, err := f.ledger.UpsertServer(server)
	if err != nil {
		t.Fatalf("failed to seed server: %v", err)
	}
	server.ID = id
	return server
}

func (f *workerFixture) seedDirectory(t *testing.T, serverID int64, localPath string) *model.SavedDirectory {
	t.Helper()

	f.fsmgr.AddDirectory(localPath)
	dir, err := f.ledger.InsertAndEnqueue(&model.SavedDirectory{
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

func (f *workerFixture) pendingCount(t *testing.T, serverID int64) int {
	t.Helper()

	items, err := f.ledger.PendingItems(serverID)
	if err != nil {
		t.Fatalf("failed to read pending items: %v", err)
	}
	return len(items)
}

func TestWorkerRunBackup(t *testing.T) {
	f := newWorkerFixture(t)
	server := f.seedServer(t)
	f.seedDirectory(t, server.ID, "/data/photos")
	f.fsmgr.AddFile("/data/photos/a.jpg", []byte("first"))
	f.fsmgr.AddFile("/data/photos/b.jpg", []byte("second"))

	out := f.worker.Run(context.Background(), backup.WorkInput{
		ServerID: server.ID,
		Mode:     backup.ModeBackup,
		Attempt:  1,
	})

	if !out.Success {
		t.Fatalf("expected success, got %+v", out)
	}
	if !f.share.HasDirectory("photos") {
		t.Error("remote directory was not created")
	}
	for path, want := range map[string]string{
		"photos/a.jpg": "first",
		"photos/b.jpg": "second",
	} {
		got, ok := f.share.FileContent(path)
		if !ok {
			t.Errorf("remote file %s missing", path)
			continue
		}
		if string(got) != want {
			t.Errorf("remote file %s: got %q, want %q", path, got, want)
		}
	}

	if n := f.pendingCount(t, server.ID); n != 0 {
		t.Errorf("expected queue drained, %d items remain", n)
	}

	dirs, err := f.ledger.ListDirectories(server.ID)
	if err != nil {
		t.Fatalf("failed to list directories: %v", err)
	}
	if dirs[0].LastSyncedAt == nil {
		t.Error("LastSyncedAt was not set after a successful run")
	}

	msgs := f.notifier.Messages()
	if len(msgs) != 2 || msgs[0] != "upload started" || msgs[1] != "upload successful" {
		t.Errorf("unexpected notifications: %v", msgs)
	}
}

func TestWorkerRunEmptyQueue(t *testing.T) {
	f := newWorkerFixture(t)
	server := f.seedServer(t)

	out := f.worker.Run(context.Background(), backup.WorkInput{
		ServerID: server.ID,
		Mode:     backup.ModeBackup,
		Attempt:  1,
	})

	if !out.Success {
		t.Fatalf("expected success on empty queue, got %+v", out)
	}
	if f.share.Connects() != 0 {
		t.Error("worker connected to the share with nothing to upload")
	}
}

func TestWorkerRunSyncSkipsExistingFiles(t *testing.T) {
	f := newWorkerFixture(t)
	server := f.seedServer(t)
	f.seedDirectory(t, server.ID, "/data/photos")
	f.fsmgr.AddFile("/data/photos/a.jpg", []byte("local a"))
	f.fsmgr.AddFile("/data/photos/b.jpg", []byte("local b"))
	f.share.SeedFile("photos/a.jpg", []byte("remote a"))

	out := f.worker.Run(context.Background(), backup.WorkInput{
		ServerID: server.ID,
		Mode:     backup.ModeSync,
		Attempt:  1,
	})

	if !out.Success {
		t.Fatalf("expected success, got %+v", out)
	}

	// The existing remote file is left untouched; the missing one is uploaded.
	got, _ := f.share.FileContent("photos/a.jpg")
	if string(got) != "remote a" {
		t.Errorf("existing remote file was overwritten: %q", got)
	}
	got, ok := f.share.FileContent("photos/b.jpg")
	if !ok || string(got) != "local b" {
		t.Errorf("missing remote file was not uploaded: %q", got)
	}
}

func TestWorkerRunSyncTwiceIsIdempotent(t *testing.T) {
	f := newWorkerFixture(t)
	server := f.seedServer(t)
	dir := f.seedDirectory(t, server.ID, "/data/photos")
	f.fsmgr.AddFile("/data/photos/a.jpg", []byte("content"))

	in := backup.WorkInput{ServerID: server.ID, Mode: backup.ModeSync, Attempt: 1}
	if out := f.worker.Run(context.Background(), in); !out.Success {
		t.Fatalf("first run failed: %+v", out)
	}

	if err := f.ledger.EnqueueDirectory(dir); err != nil {
		t.Fatalf("failed to requeue: %v", err)
	}
	if out := f.worker.Run(context.Background(), in); !out.Success {
		t.Fatalf("second run failed: %+v", out)
	}
	if n := f.pendingCount(t, server.ID); n != 0 {
		t.Errorf("queue not drained after second run: %d items", n)
	}
}

func TestWorkerRunConnectFailure(t *testing.T) {
	t.Run("offline server is terminal", func(t *testing.T) {
		f := newWorkerFixture(t)
		server := f.seedServer(t)
		f.seedDirectory(t, server.ID, "/data/photos")
		f.share.ConnectErr = syscall.ECONNREFUSED

		out := f.worker.Run(context.Background(), backup.WorkInput{
			ServerID: server.ID,
			Mode:     backup.ModeBackup,
			Attempt:  1,
		})

		if out.Success || out.Retryable {
			t.Fatalf("expected terminal failure, got %+v", out)
		}
		if n := f.pendingCount(t, server.ID); n != 0 {
			t.Errorf("queue not cleared on terminal failure: %d items", n)
		}

		sent := f.notifier.Sent()
		last := sent[len(sent)-1]
		if last.Message != backup.MsgServerOffline || last.Priority != backup.PriorityHigh {
			t.Errorf("unexpected failure notification: %+v", last)
		}
	})

	t.Run("timeout is retryable and keeps the queue", func(t *testing.T) {
		f := newWorkerFixture(t)
		server := f.seedServer(t)
		f.seedDirectory(t, server.ID, "/data/photos")
		f.share.ConnectErr = syscall.ETIMEDOUT

		out := f.worker.Run(context.Background(), backup.WorkInput{
			ServerID: server.ID,
			Mode:     backup.ModeBackup,
			Attempt:  1,
		})

		if out.Success || !out.Retryable {
			t.Fatalf("expected retryable failure, got %+v", out)
		}
		if n := f.pendingCount(t, server.ID); n != 1 {
			t.Errorf("queue should survive a retryable failure, %d items remain", n)
		}

		msgs := f.notifier.Messages()
		if msgs[len(msgs)-1] != backup.MsgRetryShortly {
			t.Errorf("unexpected notifications: %v", msgs)
		}
	})
}

func TestWorkerRunFailsFast(t *testing.T) {
	f := newWorkerFixture(t)
	server := f.seedServer(t)
	f.seedDirectory(t, server.ID, "/data/photos")
	f.seedDirectory(t, server.ID, "/data/music")
	f.fsmgr.AddFile("/data/photos/a.jpg", []byte("a"))
	f.fsmgr.AddFile("/data/music/b.mp3", []byte("b"))
	f.share.OpenErrs["photos/a.jpg"] = backup.ErrSharingViolation

	out := f.worker.Run(context.Background(), backup.WorkInput{
		ServerID: server.ID,
		Mode:     backup.ModeBackup,
		Attempt:  1,
	})

	if out.Success {
		t.Fatal("expected the run to fail")
	}
	// The first failure aborts the batch: the second directory is untouched.
	if f.share.HasDirectory("music") {
		t.Error("second directory was processed after the first failed")
	}

	failures := 0
	for _, msg := range f.notifier.Messages() {
		if msg == backup.MsgCloseOpenFiles {
			failures++
		}
	}
	if failures != 1 {
		t.Errorf("expected exactly one failure notification, got %d", failures)
	}
}

func TestWorkerRunCancellation(t *testing.T) {
	f := newWorkerFixture(t)
	server := f.seedServer(t)
	f.seedDirectory(t, server.ID, "/data/photos")
	f.fsmgr.AddFile("/data/photos/a.jpg", []byte("a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := f.worker.Run(ctx, backup.WorkInput{
		ServerID: server.ID,
		Mode:     backup.ModeBackup,
		Attempt:  1,
	})

	if !out.Cancelled {
		t.Fatalf("expected cancellation, got %+v", out)
	}
	if n := f.pendingCount(t, server.ID); n != 0 {
		t.Errorf("queue not cleared on cancellation: %d items", n)
	}

	// Cancellation is silent: no failure message reaches the user.
	for _, msg := range f.notifier.Messages() {
		switch msg {
		case "upload started":
		default:
			t.Errorf("unexpected notification after cancellation: %q", msg)
		}
	}
}

func TestWorkerRunAttemptBudget(t *testing.T) {
	f := newWorkerFixture(t)
	server := f.seedServer(t)

	out := f.worker.Run(context.Background(), backup.WorkInput{
		ServerID: server.ID,
		Mode:     backup.ModeBackup,
		Attempt:  backup.MaxAttempts + 1,
	})

	if out.Success || out.Retryable {
		t.Fatalf("expected terminal failure past the budget, got %+v", out)
	}
	msgs := f.notifier.Messages()
	if len(msgs) != 1 || msgs[0] != backup.MsgRetriesExhausted {
		t.Errorf("unexpected notifications: %v", msgs)
	}
}

func TestWorkerRunInvalidInput(t *testing.T) {
	f := newWorkerFixture(t)

	tests := []struct {
		name string
		in   backup.WorkInput
	}{
		{"zero server id", backup.WorkInput{ServerID: 0, Mode: backup.ModeBackup, Attempt: 1}},
		{"unknown mode", backup.WorkInput{ServerID: 1, Mode: "PURGE", Attempt: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := f.worker.Run(context.Background(), tt.in)
			if out.Success || out.Retryable || out.Err == nil {
				t.Errorf("expected validation failure, got %+v", out)
			}
		})
	}
}

func TestWorkerEndToEndBackup(t *testing.T) {
	f := newWorkerFixture(t)

	serverID, err := f.ledger.UpsertServer(&model.RemoteServer{
		Address:   "192.168.100.1",
		Username:  "u",
		Secret:    "p",
		ShareName: "s",
	})
	if err != nil {
		t.Fatalf("failed to seed server: %v", err)
	}

	f.fsmgr.AddFile("/a/b/photo.jpg", []byte("pixels"))
	dir, err := f.ledger.InsertAndEnqueue(&model.SavedDirectory{
		ServerID:  serverID,
		LocalPath: "file:///a/b",
	})
	if err != nil || dir == nil {
		t.Fatalf("failed to seed directory: %v", err)
	}

	items, err := f.ledger.PendingItems(serverID)
	if err != nil {
		t.Fatalf("failed to read queue: %v", err)
	}
	if len(items) != 1 || items[0].LocalPath != "file:///a/b" {
		t.Fatalf("unexpected queue before run: %+v", items)
	}

	out := f.worker.Run(context.Background(), backup.WorkInput{
		ServerID: serverID,
		Mode:     backup.ModeBackup,
		Attempt:  1,
	})
	if !out.Success {
		t.Fatalf("run failed: %+v", out)
	}

	if n := f.pendingCount(t, serverID); n != 0 {
		t.Errorf("queue not empty after run: %d items", n)
	}
	found, err := f.ledger.FindDirectoryByID(dir.ID, serverID)
	if err != nil {
		t.Fatalf("FindDirectoryByID failed: %v", err)
	}
	if found.LastSyncedAt == nil {
		t.Error("LastSyncedAt still nil after a successful run")
	}
	if _, ok := f.share.FileContent("b/photo.jpg"); !ok {
		t.Error("file did not arrive on the share")
	}
}

func TestWorkerRunUnknownServer(t *testing.T) {
	f := newWorkerFixture(t)

	out := f.worker.Run(context.Background(), backup.WorkInput{
		ServerID: 42,
		Mode:     backup.ModeBackup,
		Attempt:  1,
	})

	if out.Success || out.Err == nil {
		t.Fatalf("expected failure for unknown server, got %+v", out)
	}
}
