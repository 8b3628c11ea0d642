// Package scheduler is the in-process host scheduler for upload engine
// work. It enforces the external contract the engine relies on: at most one
// active run per server, an append-or-replace enqueue policy under that
// unique key, a bounded retry budget with a fixed delay, and cancellation
// by server or across the board.
package scheduler

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"smbsync/internal/backup"
)

// DefaultRetryDelay is the pause between retryable attempts.
const DefaultRetryDelay = 5 * time.Second

// DefaultMaxConcurrent bounds runs for distinct servers executing at once.
const DefaultMaxConcurrent = 4

// Runner executes one upload engine invocation.
type Runner interface {
	Run(ctx context.Context, in backup.WorkInput) backup.Outcome
}

// Options configure a Scheduler. Zero values select the defaults.
type Options struct {
	MaxAttempts   int
	RetryDelay    time.Duration
	MaxConcurrent int64
}

// Scheduler runs upload work with per-server single-flight semantics.
type Scheduler struct {
	runner Runner
	logger backup.Logger
	idgen  backup.IDGenerator

	maxAttempts int
	retryDelay  time.Duration
	sem         *semaphore.Weighted

	baseCtx context.Context
	stop    context.CancelFunc

	mu   sync.Mutex
	jobs map[int64]*job
	wg   sync.WaitGroup
}

// job tracks the active run for one server. next holds work enqueued while
// the run was in flight: it appends one follow-up run rather than a
// duplicate, and a later enqueue replaces it.
type job struct {
	cancel context.CancelFunc
	next   *backup.WorkInput
}

// New creates a Scheduler. The caller must call Close when done.
func New(runner Runner, logger backup.Logger, idgen backup.IDGenerator, opts Options) *Scheduler {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = backup.MaxAttempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if idgen == nil {
		idgen = backup.UUIDGenerator{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		runner:      runner,
		logger:      logger,
		idgen:       idgen,
		maxAttempts: opts.MaxAttempts,
		retryDelay:  opts.RetryDelay,
		sem:         semaphore.NewWeighted(opts.MaxConcurrent),
		baseCtx:     ctx,
		stop:        cancel,
		jobs:        make(map[int64]*job),
	}
}

// Enqueue schedules an upload run for in.ServerID. If a run for that server
// is already active, the input is recorded as the single follow-up run
// (replacing any previously recorded follow-up) instead of starting a
// concurrent duplicate.
func (s *Scheduler) Enqueue(in backup.WorkInput) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.jobs[in.ServerID]; ok {
		existing.next = &in
		s.logger.Debug("work appended to in-flight run", "server", in.ServerID, "mode", string(in.Mode))
		return
	}

	jobCtx, cancel := context.WithCancel(s.baseCtx)
	s.jobs[in.ServerID] = &job{cancel: cancel}

	s.wg.Add(1)
	go s.runJob(jobCtx, in)
}

// Cancel interrupts the active run for a server, if any. The engine's own
// cleanup (clearing the pending queue) happens inside the run.
func (s *Scheduler) Cancel(serverID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if j, ok := s.jobs[serverID]; ok {
		j.next = nil
		j.cancel()
	}
}

// CancelAll interrupts every active run.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, j := range s.jobs {
		j.next = nil
		j.cancel()
	}
}

// Wait blocks until all active runs (and their follow-ups) have finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Close cancels all work and waits for it to wind down.
func (s *Scheduler) Close() {
	s.stop()
	s.wg.Wait()
}

// runJob drives one server's work to completion: the bounded-attempt loop,
// then any follow-up enqueued while it ran.
func (s *Scheduler) runJob(ctx context.Context, in backup.WorkInput) {
	defer s.wg.Done()

	runID := s.idgen.New()

	for {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			s.finishJob(in.ServerID)
			return
		}
		outcome := s.runAttempts(ctx, in, runID)
		s.sem.Release(1)

		if outcome.Cancelled {
			s.finishJob(in.ServerID)
			return
		}

		next := s.takeFollowUp(in.ServerID)
		if next == nil {
			return
		}
		in = *next
		runID = s.idgen.New()
	}
}

// runAttempts invokes the runner up to maxAttempts times, pausing between
// retryable failures.
func (s *Scheduler) runAttempts(ctx context.Context, in backup.WorkInput, runID string) backup.Outcome {
	var outcome backup.Outcome

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		in.Attempt = attempt
		outcome = s.runner.Run(ctx, in)

		switch {
		case outcome.Success:
			s.logger.Info("run succeeded", "run", runID, "server", in.ServerID, "attempt", attempt)
			return outcome
		case outcome.Cancelled:
			s.logger.Info("run cancelled", "run", runID, "server", in.ServerID)
			return outcome
		case !outcome.Retryable:
			s.logger.Warn("run failed", "run", runID, "server", in.ServerID, "err", outcome.Err)
			return outcome
		}

		s.logger.Warn("run failed, will retry", "run", runID, "server", in.ServerID, "attempt", attempt, "err", outcome.Err)

		if attempt < s.maxAttempts {
			select {
			case <-time.After(s.retryDelay):
			case <-ctx.Done():
				outcome.Cancelled = true
				return outcome
			}
		}
	}

	s.logger.Warn("retry budget exhausted", "run", runID, "server", in.ServerID)
	return outcome
}

// takeFollowUp atomically claims the follow-up input for a server, or
// removes the job entry when there is none.
func (s *Scheduler) takeFollowUp(serverID int64) *backup.WorkInput {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[serverID]
	if !ok {
		return nil
	}
	if j.next == nil {
		j.cancel()
		delete(s.jobs, serverID)
		return nil
	}

	next := j.next
	j.next = nil
	return next
}

// finishJob drops a server's job entry after a cancelled run; any recorded
// follow-up is discarded with it.
func (s *Scheduler) finishJob(serverID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if j, ok := s.jobs[serverID]; ok {
		j.cancel()
		delete(s.jobs, serverID)
	}
}
