package backup

import (
	"context"
	"errors"
	"fmt"
)

// Mode selects the upload behavior of a worker run.
type Mode string

const (
	// ModeBackup overwrites remote files that already exist.
	ModeBackup Mode = "BACKUP"
	// ModeSync skips remote files that already exist (incremental re-sync).
	ModeSync Mode = "SYNC"
)

// ParseMode converts the task-payload string form into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeBackup, ModeSync:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown worker mode: %q", s)
	}
}

// MaxAttempts is the default retry budget for a unit of work: the total
// number of invocations the host scheduler will make before giving up.
const MaxAttempts = 3

// WorkInput is the task payload the host scheduler hands to a worker run.
// Attempt is 1-based and counted by the scheduler, not by the worker.
type WorkInput struct {
	ServerID int64
	Mode     Mode
	Attempt  int
}

// Outcome is the terminal result of one worker invocation.
type Outcome struct {
	Success   bool
	Retryable bool // Meaningful only when Success is false
	Cancelled bool // Cancellation is not an error and is never retried
	Err       error
}

// Worker is the background upload engine. One invocation drains the pending
// sync queue for a single server over a single share session, sequentially.
// The host scheduler guarantees at most one active invocation per server.
type Worker struct {
	ledger      Ledger
	shares      ShareClient
	uploader    *Uploader
	notifier    Notifier
	logger      Logger
	maxAttempts int
}

// NewWorker creates a Worker. maxAttempts <= 0 selects MaxAttempts.
func NewWorker(ledger Ledger, shares ShareClient, uploader *Uploader, notifier Notifier, logger Logger, maxAttempts int) *Worker {
	if maxAttempts <= 0 {
		maxAttempts = MaxAttempts
	}
	return &Worker{
		ledger:      ledger,
		shares:      shares,
		uploader:    uploader,
		notifier:    notifier,
		logger:      logger,
		maxAttempts: maxAttempts,
	}
}

// Run executes one invocation of the upload engine.
//
// The queue is read once at start; items enqueued during the run are left
// for the next invocation. The first item failure aborts the rest of the
// batch. On cancellation the whole queue for this server is cleared and the
// run exits without notifying: cancellation is not an error.
func (w *Worker) Run(ctx context.Context, in WorkInput) Outcome {
	if in.Attempt > w.maxAttempts {
		w.notifier.Notify(MsgRetriesExhausted, "Upload failed", PriorityLow)
		return Outcome{Err: fmt.Errorf("retry budget exhausted after %d attempts", w.maxAttempts)}
	}

	if in.ServerID <= 0 || (in.Mode != ModeBackup && in.Mode != ModeSync) {
		return Outcome{Err: fmt.Errorf("invalid work input: server=%d mode=%q", in.ServerID, in.Mode)}
	}

	server, err := w.ledger.FindServerByID(in.ServerID)
	if err != nil {
		return Outcome{Err: fmt.Errorf("loading server: %w", err)}
	}
	if server == nil {
		return Outcome{Err: fmt.Errorf("%w: id %d", ErrServerNotFound, in.ServerID)}
	}

	w.notifier.Notify("upload started", server.Address, PriorityLow)
	w.logger.Info("upload run started", "server", server.Address, "mode", string(in.Mode), "attempt", in.Attempt)

	items, err := w.ledger.PendingItems(in.ServerID)
	if err != nil {
		return w.fail(ctx, in.ServerID, fmt.Errorf("reading pending queue: %w", err))
	}

	if len(items) == 0 {
		w.notifier.Notify("upload successful", server.Address, PriorityLow)
		return Outcome{Success: true}
	}

	session, err := w.shares.Connect(ctx, CredentialsFor(server))
	if err != nil {
		if cancelled(ctx, err) {
			return w.cancel(in.ServerID, err)
		}
		return w.fail(ctx, in.ServerID, fmt.Errorf("connecting to share: %w", err))
	}
	defer session.Close()

	incremental := in.Mode == ModeSync

	for _, item := range items {
		dir, err := w.ledger.FindDirectoryByID(item.DirectoryID, in.ServerID)
		if err != nil {
			return w.fail(ctx, in.ServerID, fmt.Errorf("loading directory: %w", err))
		}
		if dir == nil {
			// Queue row outlived its directory; nothing to upload for it.
			w.logger.Warn("pending item references missing directory", "directory", item.DirectoryID)
			continue
		}

		if err := w.uploader.UploadDirectory(ctx, session, dir, incremental); err != nil {
			if cancelled(ctx, err) {
				return w.cancel(in.ServerID, err)
			}
			return w.fail(ctx, in.ServerID, err)
		}

		if err := w.ledger.MarkSynced(item); err != nil {
			return w.fail(ctx, in.ServerID, fmt.Errorf("marking directory synced: %w", err))
		}
	}

	w.notifier.Notify("upload successful", server.Address, PriorityLow)
	w.logger.Info("upload run finished", "server", server.Address, "items", len(items))
	return Outcome{Success: true}
}

// fail classifies err, notifies the user, and clears the queue when the
// failure is terminal so a future run does not resume stale state.
func (w *Worker) fail(ctx context.Context, serverID int64, err error) Outcome {
	c := Classify(err)
	w.logger.Error("upload run failed", "server", serverID, "retryable", c.Retryable, "err", err)
	w.notifier.Notify(c.Message, "Upload failed", PriorityHigh)

	if !c.Retryable {
		if clearErr := w.ledger.ClearAllPending(serverID); clearErr != nil {
			w.logger.Error("clearing pending queue", "server", serverID, "err", clearErr)
		}
	}
	return Outcome{Retryable: c.Retryable, Err: err}
}

// cancel clears the queue and exits silently: a cancelled run must leave no
// stale pending rows and shows no failure message.
func (w *Worker) cancel(serverID int64, err error) Outcome {
	w.logger.Info("upload run cancelled", "server", serverID)
	if clearErr := w.ledger.ClearAllPending(serverID); clearErr != nil {
		w.logger.Error("clearing pending queue", "server", serverID, "err", clearErr)
	}
	return Outcome{Cancelled: true, Err: err}
}

// cancelled reports whether err (or the context) represents external
// cancellation rather than a real failure.
func cancelled(ctx context.Context, err error) bool {
	return errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled)
}
