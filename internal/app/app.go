package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"smbsync/internal/backup"
	"smbsync/internal/config"
	"smbsync/internal/database"
	"smbsync/internal/fs"
	"smbsync/internal/model"
	"smbsync/internal/notify"
	"smbsync/internal/scheduler"
	"smbsync/internal/smb"
)

// App is the application layer between the CLI and the backup core. It
// constructs all dependencies from config, exposes high-level operations,
// and manages resource lifecycles on Close.
type App struct {
	cfg     *config.Config
	ledger  backup.Ledger
	service *backup.Service
	sched   *scheduler.Scheduler
	logFile *os.File
}

// New creates a fully wired App from the given config.
// operation identifies the CLI command being run (e.g. "AddDirectory", "RunBackup").
// The caller must call Close when done.
func New(cfg *config.Config, operation string) (*App, error) {
	runID := time.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, runID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger.With("op", operation)}

	clock := backup.RealClock{}

	ledger, err := database.NewLedgerFromConfig(cfg.Database, clock)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating ledger: %w", err)
	}

	fsmgr := fs.NewOSFilesystemManager()
	shares := smb.NewClient(time.Duration(cfg.Upload.ConnectTimeoutSeconds)*time.Second, logger)
	notifier := notify.NewLogNotifier(logger)

	uploader := backup.NewUploader(fsmgr, logger, cfg.Upload.ChunkSizeKB*1024)
	worker := backup.NewWorker(ledger, shares, uploader, notifier, logger, cfg.Scheduler.MaxAttempts)

	sched := scheduler.New(worker, logger, backup.UUIDGenerator{}, scheduler.Options{
		MaxAttempts:   cfg.Scheduler.MaxAttempts,
		RetryDelay:    time.Duration(cfg.Scheduler.RetryDelaySeconds) * time.Second,
		MaxConcurrent: cfg.Scheduler.MaxConcurrent,
	})

	service := backup.NewService(ledger, shares, fsmgr, logger, clock)

	return &App{
		cfg:     cfg,
		ledger:  ledger,
		service: service,
		sched:   sched,
		logFile: logFile,
	}, nil
}

// Service exposes the interactive operations (server and directory CRUD).
func (a *App) Service() *backup.Service {
	return a.service
}

// Run enqueues an upload run for the server and waits for the scheduler to
// drain. Cancelling ctx cancels the run; the engine then clears the
// server's pending queue before exiting.
func (a *App) Run(ctx context.Context, serverID int64, mode backup.Mode) error {
	a.sched.Enqueue(backup.WorkInput{ServerID: serverID, Mode: mode})

	done := make(chan struct{})
	go func() {
		a.sched.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		a.sched.Cancel(serverID)
		<-done
		return ctx.Err()
	case <-done:
		return nil
	}
}

// AddDirectory registers a directory with a server and schedules its first
// upload run. The duplicate-directory outcome is returned unchanged so the
// CLI can surface it as informational.
func (a *App) AddDirectory(serverID int64, rawPath, displayName string) (*model.SavedDirectory, error) {
	return a.service.AddDirectory(serverID, rawPath, displayName)
}

// Close shuts the scheduler down and releases all resources.
func (a *App) Close() error {
	a.sched.Close()

	var firstErr error
	if err := a.ledger.Close(); err != nil {
		firstErr = fmt.Errorf("closing ledger: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
