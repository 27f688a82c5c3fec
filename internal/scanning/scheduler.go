package scanning

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/NubleX/LEGION2/internal/db"
	"github.com/NubleX/LEGION2/internal/errors"
	"github.com/NubleX/LEGION2/internal/events"
	"github.com/NubleX/LEGION2/internal/logging"
	"github.com/NubleX/LEGION2/internal/metrics"
	"github.com/NubleX/LEGION2/internal/results"
	"github.com/NubleX/LEGION2/internal/runner"
	"github.com/NubleX/LEGION2/internal/targets"
	"github.com/NubleX/LEGION2/internal/tools"
)

const persistTimeout = 10 * time.Second

// Store persists merged results and job history.
type Store interface {
	Merge(ctx context.Context, set results.Set) (db.MergeSummary, error)
	RecordScan(ctx context.Context, rec *db.ScanRecord) error
}

// Launcher starts tool processes.
type Launcher interface {
	Start(ctx context.Context, c runner.Command) (*runner.Process, error)
}

// Publisher receives job notifications.
type Publisher interface {
	Publish(e events.Event)
}

// ToolRegistry resolves scan types to tools.
type ToolRegistry interface {
	Get(scanType string) (tools.Tool, error)
}

// Dependencies are the collaborators of a Scheduler. Metrics and Logger are optional.
type Dependencies struct {
	Store    Store
	Tools    ToolRegistry
	Launcher Launcher
	Events   Publisher
	Metrics  metrics.Recorder
	Logger   *logging.Logger
}

// job is the scheduler's mutable record of a Job. Fields are guarded by
// Scheduler.mu except the persistence bookkeeping, which has its own lock.
type job struct {
	Job

	tool       tools.Tool
	maxRetries int
	plan       *rangePlan
	rawOutput  string

	// inFlight is set while a worker owns the job. proc is its running tool
	// process; cancel stops an attempt that has not launched one yet.
	inFlight        bool
	cancel          context.CancelFunc
	proc            *runner.Process
	cancelRequested bool
	retryTimer      *time.Timer

	version   uint64
	persistMu sync.Mutex
	persisted uint64
}

// rangePlan carries phase two of a range scan on its discovery job.
type rangePlan struct {
	hosts   map[string]bool
	request Request
	spawned map[string]bool
}

// Scheduler runs scan jobs on a fixed pool of workers.
type Scheduler struct {
	cfg      Config
	deps     Dependencies
	logger   *logging.Logger
	validate *validator.Validate
	now      func() time.Time

	mu     sync.Mutex
	jobs   map[string]*job
	order  []string
	active int
	closed bool

	queue     *JobQueue
	ctx       context.Context
	stop      context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
}

// NewScheduler creates a scheduler. Call Start to begin running jobs.
func NewScheduler(cfg Config, deps Dependencies) *Scheduler {
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Scheduler{
		cfg:      cfg.withDefaults(),
		deps:     deps,
		logger:   deps.Logger.WithComponent("scheduler"),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      func() time.Time { return time.Now().UTC() },
		jobs:     make(map[string]*job),
		queue:    NewJobQueue(),
		ctx:      ctx,
		stop:     stop,
	}
}

// Start launches the worker pool.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		s.logger.Info("Starting scan scheduler", "workers", s.cfg.WorkerPoolSize)
		for i := 0; i < s.cfg.WorkerPoolSize; i++ {
			s.wg.Add(1)
			go s.worker(i)
		}
	})
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()
	for {
		jobID, err := s.queue.Pop(s.ctx)
		if err != nil {
			return
		}
		s.logger.Debug("Worker picked job", "worker_id", id, "job_id", jobID)
		s.runAttempt(jobID)
	}
}

// Submit validates req and queues a job for it. It never waits for a slot.
func (s *Scheduler) Submit(ctx context.Context, req Request) (string, error) {
	if err := s.validate.Struct(req); err != nil {
		return "", errors.WrapScanError(errors.CodeValidation, "invalid scan request", err)
	}
	req.Target = strings.TrimSpace(req.Target)
	if _, err := targets.ValidateTarget(req.Target); err != nil {
		return "", err
	}
	tool, err := s.deps.Tools.Get(req.ScanType)
	if err != nil {
		return "", err
	}
	if err := tool.Validate(req.Target, req.Options); err != nil {
		return "", err
	}
	return s.enqueue(ctx, req, tool, nil)
}

func (s *Scheduler) enqueue(ctx context.Context, req Request, tool tools.Tool, plan *rangePlan) (string, error) {
	maxRetries := s.cfg.Retry.MaxRetries
	if req.MaxRetries != nil {
		maxRetries = *req.MaxRetries
	}

	j := &job{
		Job: Job{
			ID:        uuid.NewString(),
			ParentID:  req.parentID,
			Target:    req.Target,
			ScanType:  req.ScanType,
			Options:   req.Options,
			Priority:  req.Priority,
			Status:    StatusQueued,
			Phase:     "queued",
			CreatedAt: s.now(),
		},
		tool:       tool,
		maxRetries: maxRetries,
		plan:       plan,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", errors.NewScanError(errors.CodeCancelled, "scheduler is shut down")
	}
	s.jobs[j.ID] = j
	s.order = append(s.order, j.ID)
	rec, version := s.recordLocked(j)
	s.mu.Unlock()

	s.persistCtx(ctx, j, rec, version)

	if err := s.queue.Push(j.ID, j.Priority); err != nil {
		s.mu.Lock()
		ev, rec, version, ok := s.settleLocked(j, StatusCancelled, "scheduler is shut down")
		s.mu.Unlock()
		if ok {
			s.afterSettle(j, ev, rec, version)
		}
		return "", errors.WrapScanError(errors.CodeCancelled, "scheduler is shut down", err)
	}

	s.deps.Metrics.JobSubmitted(j.ScanType)
	s.updateGauges()
	s.logger.WithJob(j.ID, j.ScanType).Info("Scan job queued",
		"target", j.Target, "priority", j.Priority, "parent_id", j.ParentID)
	return j.ID, nil
}

// Cancel stops a job. A queued job settles immediately; a running job
// settles once its process has exited. Cancelling a finished job is a no-op.
func (s *Scheduler) Cancel(id string) error {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return errors.ErrNotFoundWithID("scan job", id)
	}
	if j.Status.Terminal() {
		s.mu.Unlock()
		return nil
	}
	if j.inFlight {
		j.cancelRequested = true
		j.Phase = "cancelling"
		switch {
		case j.proc != nil:
			j.proc.Cancel()
		case j.cancel != nil:
			j.cancel()
		}
		s.mu.Unlock()
		s.logger.WithJob(id, j.ScanType).Info("Cancellation requested for running job")
		return nil
	}

	s.queue.Remove(id)
	if j.retryTimer != nil {
		j.retryTimer.Stop()
		j.retryTimer = nil
	}
	ev, rec, version, settled := s.settleLocked(j, StatusCancelled, "")
	s.mu.Unlock()

	if settled {
		s.afterSettle(j, ev, rec, version)
	}
	return nil
}

// CancelAll requests cancellation of every unfinished job and returns how
// many were asked to stop.
func (s *Scheduler) CancelAll() int {
	s.mu.Lock()
	var ids []string
	for _, id := range s.order {
		if !s.jobs[id].Status.Terminal() {
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()

	count := 0
	for _, id := range ids {
		if err := s.Cancel(id); err == nil {
			count++
		}
	}
	return count
}

// Job returns a snapshot of one job.
func (s *Scheduler) Job(id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, errors.ErrNotFoundWithID("scan job", id)
	}
	return j.Job, nil
}

// Jobs returns snapshots of every job in submission order.
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.jobs[id].Job)
	}
	return out
}

// ActiveCount returns the number of jobs currently owned by a worker.
func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// PendingCount returns the number of jobs not yet in a terminal state.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, j := range s.jobs {
		if !j.Status.Terminal() {
			n++
		}
	}
	return n
}

// Shutdown cancels every job, stops the workers and waits for them to exit
// or for ctx to end.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.logger.Info("Shutting down scan scheduler")
	cancelled := s.CancelAll()
	s.queue.Close()
	s.stop()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Scan scheduler stopped", "cancelled_jobs", cancelled)
		return nil
	case <-ctx.Done():
		s.logger.Warn("Scan scheduler shutdown timed out")
		return ctx.Err()
	}
}

// requeue puts a job back in the queue once its backoff has elapsed.
func (s *Scheduler) requeue(id string) {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok || j.Status.Terminal() || j.inFlight {
		s.mu.Unlock()
		return
	}
	j.retryTimer = nil
	j.Phase = "queued for retry"
	priority := j.Priority
	s.mu.Unlock()

	if err := s.queue.Push(id, priority); err != nil {
		s.mu.Lock()
		ev, rec, version, settled := s.settleLocked(j, StatusCancelled, "")
		s.mu.Unlock()
		if settled {
			s.afterSettle(j, ev, rec, version)
		}
	}
	s.updateGauges()
}

// settleLocked moves j to a terminal status exactly once and returns the
// terminal event to publish. ok is false when j had already settled.
func (s *Scheduler) settleLocked(j *job, status Status, message string) (events.Event, db.ScanRecord, uint64, bool) {
	if j.Status.Terminal() {
		return events.Event{}, db.ScanRecord{}, 0, false
	}
	now := s.now()
	j.Status = status
	j.EndTime = &now
	j.Phase = string(status)
	if message != "" {
		j.ErrorMessage = message
	}
	if status == StatusCompleted {
		j.Progress = 100
	}

	snap := j.Job
	var ev events.Event
	switch status {
	case StatusFailed:
		ev = events.NewError(j.ID, j.ErrorMessage, now, true)
	default:
		ev = events.NewCompleted(j.ID, snap)
	}
	rec, version := s.recordLocked(j)
	return ev, rec, version, true
}

func (s *Scheduler) afterSettle(j *job, ev events.Event, rec db.ScanRecord, version uint64) {
	s.deps.Events.Publish(ev)
	s.persist(j, rec, version)
	s.deps.Metrics.JobFinished(rec.ScanType, rec.Status, time.Duration(rec.DurationMS)*time.Millisecond)
	s.updateGauges()

	log := s.logger.WithJob(rec.ID, rec.ScanType)
	if rec.Status == string(StatusFailed) {
		log.Warn("Scan job failed", "target", rec.Target, "attempts", rec.Attempts, "error", j.ErrorMessage)
		return
	}
	log.Info("Scan job finished", "status", rec.Status, "target", rec.Target,
		"open_ports", rec.OpenPorts, "vulnerabilities", rec.Vulnerabilities)
}

// recordLocked converts j into its history row and bumps its version.
func (s *Scheduler) recordLocked(j *job) (db.ScanRecord, uint64) {
	j.version++
	rec := db.ScanRecord{
		ID:              j.ID,
		Target:          j.Target,
		ScanType:        j.ScanType,
		Status:          string(j.Status),
		Progress:        j.Progress,
		Attempts:        j.Attempts,
		OpenPorts:       j.OpenPorts,
		Vulnerabilities: j.Vulnerabilities,
		CreatedAt:       j.CreatedAt,
		StartTime:       j.StartTime,
		EndTime:         j.EndTime,
	}
	if j.ParentID != "" {
		parent := j.ParentID
		rec.ParentID = &parent
	}
	if j.ErrorMessage != "" {
		msg := j.ErrorMessage
		rec.ErrorMessage = &msg
	}
	if j.rawOutput != "" {
		raw := j.rawOutput
		rec.RawOutput = &raw
	}
	return rec, j.version
}

// persist writes rec unless a newer version of the job was already written.
func (s *Scheduler) persist(j *job, rec db.ScanRecord, version uint64) {
	s.persistCtx(context.Background(), j, rec, version)
}

func (s *Scheduler) persistCtx(ctx context.Context, j *job, rec db.ScanRecord, version uint64) {
	j.persistMu.Lock()
	defer j.persistMu.Unlock()
	if version <= j.persisted {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := s.deps.Store.RecordScan(ctx, &rec); err != nil {
		s.logger.WithJob(rec.ID, rec.ScanType).Warn("Failed to record scan history", "error", err)
	}
	j.persisted = version
}

func (s *Scheduler) updateGauges() {
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()
	s.deps.Metrics.SetActiveJobs(active)
	s.deps.Metrics.SetQueuedJobs(s.queue.Len())
}
