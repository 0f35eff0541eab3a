package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"catalogsync/config"
	"catalogsync/internal/catalog/business/orchestrator"
	"catalogsync/internal/catalog/models"
	"catalogsync/pkg/logger"
)

// ErrSyncInProgress is returned when a sync is requested while another full
// or incremental run is still going. At most one runs at a time.
var ErrSyncInProgress = errors.New("a sync is already in progress")

// errorLogCap bounds the in-memory error log to the most recent entries.
const errorLogCap = 50

// SyncRunner is the orchestrator surface the scheduler drives.
type SyncRunner interface {
	PerformSyncAll(ctx context.Context) orchestrator.AggregateReport
	PerformIncremental(ctx context.Context, syncType models.SyncType, staleness time.Duration) orchestrator.SyncReport
	SyncPart(ctx context.Context, partNumber string) models.SyncResult
}

// Queue is the pending-update store the queue processor drains.
type Queue interface {
	Dequeue(limit int) ([]models.PendingUpdateRequest, error)
	Complete(id int64, status models.PendingStatus, errText string) error
	Enqueue(partNumber, requestedBy string, priority int) (int64, error)
}

// History answers the startup missed-run check.
type History interface {
	LastCompleted(syncType models.SyncType) (*models.SyncLogEntry, error)
}

// Schedules persists run bookkeeping across restarts.
type Schedules interface {
	RecordRun(syncType models.SyncType, lastRun, nextRun time.Time, retryCount int) error
}

// ErrorEntry is one remembered failure, kept in memory for quick diagnosis
// without a round trip to the sync log.
type ErrorEntry struct {
	At      time.Time
	Source  string
	Message string
}

// Scheduler drives periodic syncs: a daily full sync, interval incremental
// syncs, and frequent small queue drains. Queue drains are skipped while a
// sync holds the busy flag; queued requests just wait for the next pass.
type Scheduler struct {
	runner    SyncRunner
	queue     Queue
	history   History
	schedules Schedules
	cfg       config.SchedulerConfig
	log       logger.Logger

	mu         sync.Mutex
	busy       bool
	stopped    bool
	errors     []ErrorEntry
	retryTimer *time.Timer

	cancel context.CancelFunc
	done   sync.WaitGroup
	now    func() time.Time
}

func NewScheduler(runner SyncRunner, queue Queue, history History, schedules Schedules,
	cfg config.SchedulerConfig, writer io.Writer) *Scheduler {

	_log := logger.NewLogger(writer, "[SyncScheduler]")
	return &Scheduler{
		runner:    runner,
		queue:     queue,
		history:   history,
		schedules: schedules,
		cfg:       cfg,
		log:       _log,
		now:       time.Now,
	}
}

// Initialize starts the timer loops and runs the startup missed-run check.
func (s *Scheduler) Initialize(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if s.startupFullSyncDue() {
		s.log.Log("no recent full sync on record, running one now")
		s.done.Add(1)
		go func() {
			defer s.done.Done()
			s.runFull(ctx)
		}()
	}

	s.done.Add(3)
	go s.fullSyncLoop(ctx)
	go s.incrementalLoop(ctx)
	go s.queueLoop(ctx)

	s.log.Log("scheduler started: full sync at %s, incremental every %dh, queue every %dm",
		s.cfg.FullSyncAt, s.cfg.IncrementalHours, s.cfg.QueueIntervalMinutes)
	return nil
}

// Destroy stops the loops, cancels any pending retry, and waits for
// in-flight work to finish.
func (s *Scheduler) Destroy() {
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Lock()
	s.stopped = true
	if s.retryTimer != nil {
		s.retryTimer.Stop()
	}
	s.mu.Unlock()
	s.done.Wait()
	s.log.Log("scheduler stopped")
}

// startupFullSyncDue reports whether no full sync has completed within the
// configured ceiling. Lookup failures err on the side of syncing.
func (s *Scheduler) startupFullSyncDue() bool {
	last, err := s.history.LastCompleted(models.SyncTypeInventory)
	if err != nil {
		s.log.Log("startup check failed, assuming sync due: %v", err)
		return true
	}
	if last == nil || last.CompletedAt == nil {
		return true
	}
	ceiling := time.Duration(s.cfg.FullSyncCeilingHours) * time.Hour
	return s.now().Sub(*last.CompletedAt) > ceiling
}

func (s *Scheduler) fullSyncLoop(ctx context.Context) {
	defer s.done.Done()
	for {
		wait := s.untilNextFullSync()
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.runFull(ctx)
		}
	}
}

// untilNextFullSync computes the wait until the configured HH:MM, rolling to
// tomorrow when today's slot has passed.
func (s *Scheduler) untilNextFullSync() time.Duration {
	at, err := time.Parse("15:04", s.cfg.FullSyncAt)
	if err != nil {
		s.log.Log("bad full_sync_at %q, defaulting to 02:00", s.cfg.FullSyncAt)
		at, _ = time.Parse("15:04", "02:00")
	}
	now := s.now()
	next := time.Date(now.Year(), now.Month(), now.Day(), at.Hour(), at.Minute(), 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}

func (s *Scheduler) incrementalLoop(ctx context.Context) {
	defer s.done.Done()
	interval := time.Duration(s.cfg.IncrementalHours) * time.Hour
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runIncremental(ctx)
		}
	}
}

func (s *Scheduler) queueLoop(ctx context.Context) {
	defer s.done.Done()
	ticker := time.NewTicker(time.Duration(s.cfg.QueueIntervalMinutes) * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.drainQueue(ctx)
		}
	}
}

// acquire takes the busy flag, failing fast when a sync already runs.
func (s *Scheduler) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrSyncInProgress
	}
	s.busy = true
	return nil
}

func (s *Scheduler) release() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// TriggerFullSync runs a full sync immediately on caller demand.
func (s *Scheduler) TriggerFullSync(ctx context.Context) (*orchestrator.AggregateReport, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()
	report := s.runner.PerformSyncAll(ctx)
	s.afterFullSync(ctx, &report, 0)
	return &report, nil
}

// TriggerIncrementalSync runs an incremental pass immediately.
func (s *Scheduler) TriggerIncrementalSync(ctx context.Context) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()
	s.incrementalPass(ctx)
	return nil
}

func (s *Scheduler) runFull(ctx context.Context) {
	s.runFullAttempt(ctx, 0)
}

func (s *Scheduler) runFullAttempt(ctx context.Context, attempt int) {
	if err := s.acquire(); err != nil {
		s.log.Log("skipping scheduled full sync: %v", err)
		return
	}
	defer s.release()
	report := s.runner.PerformSyncAll(ctx)
	s.afterFullSync(ctx, &report, attempt)
}

// afterFullSync does post-run bookkeeping: error log, schedule rows, and the
// single failure retry. A failed retry is not retried again; the next daily
// slot picks it up. Rate-limited runs are not retried on the short delay
// either; their cooldown is longer than the retry would wait.
func (s *Scheduler) afterFullSync(ctx context.Context, report *orchestrator.AggregateReport, attempt int) {
	now := s.now()
	next := now.Add(24 * time.Hour)

	for _, rep := range report.Reports {
		for _, e := range rep.Result.Errors {
			s.recordError(fmt.Sprintf("full/%s", rep.SyncType), e)
		}
		if err := s.schedules.RecordRun(rep.SyncType, now, next, attempt); err != nil {
			s.log.Log("failed to record %s schedule run: %v", rep.SyncType, err)
		}
	}

	if !shouldRetry(report, attempt) {
		return
	}
	delay := time.Duration(s.cfg.RetryDelayMinutes) * time.Minute
	s.log.Log("full sync failed, retrying once in %s", delay)

	// The retry rides a stoppable timer rather than a tracked goroutine so
	// Destroy can cancel it without racing the wait group.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || ctx.Err() != nil {
		return
	}
	s.retryTimer = time.AfterFunc(delay, func() {
		if ctx.Err() != nil {
			return
		}
		s.runFullAttempt(ctx, attempt+1)
	})
}

// shouldRetry allows exactly one retry, and only for outright failures.
func shouldRetry(report *orchestrator.AggregateReport, attempt int) bool {
	if report.Success || attempt > 0 {
		return false
	}
	for _, rep := range report.Reports {
		if !rep.Result.Success && rep.Result.Status != models.SyncRunRateLimited {
			return true
		}
	}
	return false
}

func (s *Scheduler) runIncremental(ctx context.Context) {
	if err := s.acquire(); err != nil {
		s.log.Log("skipping scheduled incremental sync: %v", err)
		return
	}
	defer s.release()
	s.incrementalPass(ctx)
}

func (s *Scheduler) incrementalPass(ctx context.Context) {
	staleness := time.Duration(s.cfg.IncrementalHours) * time.Hour
	for _, syncType := range models.AllSyncTypes {
		rep := s.runner.PerformIncremental(ctx, syncType, staleness)
		for _, e := range rep.Result.Errors {
			s.recordError(fmt.Sprintf("incremental/%s", syncType), e)
		}
	}
}

// drainQueue processes a bounded batch of pending part-update requests. It
// never runs concurrently with a sync; contention on the supplier budget is
// not worth a couple of minutes of queue latency.
func (s *Scheduler) drainQueue(ctx context.Context) {
	if err := s.acquire(); err != nil {
		s.log.Log("queue drain deferred: %v", err)
		return
	}
	defer s.release()

	requests, err := s.queue.Dequeue(s.cfg.QueueDrainLimit)
	if err != nil {
		s.recordError("queue", err.Error())
		return
	}
	if len(requests) == 0 {
		return
	}
	s.log.Log("draining %d queued part updates", len(requests))

	for _, req := range requests {
		result := s.runner.SyncPart(ctx, req.PartNumber)
		switch {
		case result.Status == models.SyncRunRateLimited:
			// Put it back; the next drain after the cooldown picks it up.
			if _, err := s.queue.Enqueue(req.PartNumber, req.RequestedBy, req.Priority); err != nil {
				s.recordError("queue", fmt.Sprintf("requeue %s failed: %v", req.PartNumber, err))
			}
			if err := s.queue.Complete(req.ID, models.PendingStatusFailed, "rate limited, requeued"); err != nil {
				s.recordError("queue", err.Error())
			}
		case result.Failed > 0:
			msg := "update failed"
			if len(result.Errors) > 0 {
				msg = result.Errors[0]
			}
			s.recordError("queue", msg)
			if err := s.queue.Complete(req.ID, models.PendingStatusFailed, msg); err != nil {
				s.recordError("queue", err.Error())
			}
		default:
			if err := s.queue.Complete(req.ID, models.PendingStatusCompleted, ""); err != nil {
				s.recordError("queue", err.Error())
			}
		}
	}
}

func (s *Scheduler) recordError(source, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, ErrorEntry{At: s.now(), Source: source, Message: message})
	if len(s.errors) > errorLogCap {
		s.errors = s.errors[len(s.errors)-errorLogCap:]
	}
}

// RecentErrors returns a copy of the in-memory error log, newest last.
func (s *Scheduler) RecentErrors() []ErrorEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ErrorEntry, len(s.errors))
	copy(out, s.errors)
	return out
}

// Busy reports whether a sync currently holds the flag.
func (s *Scheduler) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}
