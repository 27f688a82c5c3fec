// Package scheduler submits recurring scans on cron schedules. Each
// schedule targets a single host, a network range, or every up inventory
// host carrying a tag.
package scheduler

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/NubleX/LEGION2/internal/config"
	"github.com/NubleX/LEGION2/internal/db"
	"github.com/NubleX/LEGION2/internal/errors"
	"github.com/NubleX/LEGION2/internal/logging"
	"github.com/NubleX/LEGION2/internal/results"
	"github.com/NubleX/LEGION2/internal/scanning"
)

const (
	submitTimeout = time.Minute
	// Upper bound on hosts a single tag schedule rescans.
	maxTaggedHosts = 1000
)

// Submitter queues scans and reads the inventory.
type Submitter interface {
	StartScan(ctx context.Context, req scanning.Request) (string, error)
	ScanNetworkRange(ctx context.Context, req scanning.RangeRequest) ([]string, error)
	GetHosts(ctx context.Context, f db.HostFilter) ([]db.Host, int, error)
}

// Scheduler manages scheduled scans.
type Scheduler struct {
	submitter Submitter
	cron      *cron.Cron
	logger    *logging.Logger
	jobs      map[uuid.UUID]*ScheduledJob
	mu        sync.RWMutex
	running   bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// ScheduledJob is a registered schedule and the outcome of its last run.
type ScheduledJob struct {
	ID         uuid.UUID             `json:"id"`
	CronID     cron.EntryID          `json:"-"`
	Config     config.ScheduleConfig `json:"config"`
	Enabled    bool                  `json:"enabled"`
	Running    bool                  `json:"running"`
	Runs       int                   `json:"runs"`
	LastRun    time.Time             `json:"last_run,omitempty"`
	NextRun    time.Time             `json:"next_run,omitempty"`
	LastJobIDs []string              `json:"last_job_ids,omitempty"`
	LastError  string                `json:"last_error,omitempty"`
}

// NewScheduler creates a scheduler. Schedules use the standard five-field
// cron syntax plus descriptors such as @hourly and @every.
func NewScheduler(submitter Submitter, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	logger = logger.WithComponent("scheduler")

	return &Scheduler{
		submitter: submitter,
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger{logger}),
		)),
		logger: logger,
		jobs:   make(map[uuid.UUID]*ScheduledJob),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Load registers every configured schedule.
func (s *Scheduler) Load(schedules []config.ScheduleConfig) error {
	for _, sc := range schedules {
		if _, err := s.Add(sc); err != nil {
			return fmt.Errorf("schedule %q: %w", sc.Name, err)
		}
	}
	return nil
}

// Start begins firing schedules.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("Scheduler started", "schedules", len(s.jobs))
	return nil
}

// Stop stops firing schedules and waits for submissions in flight.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	<-s.cron.Stop().Done()

	s.logger.Info("Scheduler stopped")
}

// Add registers a schedule.
func (s *Scheduler) Add(sc config.ScheduleConfig) (uuid.UUID, error) {
	if err := validateSchedule(sc); err != nil {
		return uuid.Nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, j := range s.jobs {
		if j.Config.Name == sc.Name {
			return uuid.Nil, errors.NewScanError(errors.CodeConflict,
				fmt.Sprintf("schedule %q already exists", sc.Name))
		}
	}

	id := uuid.New()
	cronID, err := s.cron.AddFunc(sc.Cron, func() { s.execute(id) })
	if err != nil {
		return uuid.Nil, errors.WrapScanError(errors.CodeValidation, "invalid cron expression", err)
	}

	s.jobs[id] = &ScheduledJob{
		ID:      id,
		CronID:  cronID,
		Config:  sc,
		Enabled: true,
		NextRun: s.cron.Entry(cronID).Next,
	}

	s.logger.Info("Added scheduled scan",
		"schedule", sc.Name,
		"cron", sc.Cron,
		"scan_type", sc.ScanType)
	return id, nil
}

func validateSchedule(sc config.ScheduleConfig) error {
	if sc.Name == "" {
		return errors.NewScanError(errors.CodeValidation, "schedule name is required")
	}
	if sc.ScanType == "" {
		return errors.NewScanError(errors.CodeValidation, "schedule scan type is required")
	}
	set := 0
	for _, v := range []string{sc.Target, sc.CIDR, sc.Tag} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return errors.NewScanError(errors.CodeValidation, "exactly one of target, cidr and tag is required")
	}
	if _, err := cron.ParseStandard(sc.Cron); err != nil {
		return errors.WrapScanError(errors.CodeValidation, "invalid cron expression", err)
	}
	return nil
}

// Remove unregisters a schedule.
func (s *Scheduler) Remove(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return errors.ErrNotFoundWithID("schedule", id.String())
	}

	s.cron.Remove(job.CronID)
	delete(s.jobs, id)

	s.logger.Info("Removed scheduled scan", "schedule", job.Config.Name)
	return nil
}

// EnableJob enables a schedule.
func (s *Scheduler) EnableJob(id uuid.UUID) error {
	return s.setJobEnabled(id, true)
}

// DisableJob disables a schedule. A disabled schedule keeps its cron entry
// but submits nothing.
func (s *Scheduler) DisableJob(id uuid.UUID) error {
	return s.setJobEnabled(id, false)
}

func (s *Scheduler) setJobEnabled(id uuid.UUID, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return errors.ErrNotFoundWithID("schedule", id.String())
	}
	job.Enabled = enabled

	action := "disabled"
	if enabled {
		action = "enabled"
	}
	s.logger.Info("Schedule "+action, "schedule", job.Config.Name)
	return nil
}

// Jobs returns a copy of every schedule, ordered by name.
func (s *Scheduler) Jobs() []ScheduledJob {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ScheduledJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		c := *j
		c.LastJobIDs = append([]string(nil), j.LastJobIDs...)
		if entry := s.cron.Entry(j.CronID); entry.Valid() {
			c.NextRun = entry.Next
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Config.Name < out[k].Config.Name })
	return out
}

// RunNow fires a schedule immediately, outside its cron timing.
func (s *Scheduler) RunNow(id uuid.UUID) error {
	s.mu.RLock()
	_, exists := s.jobs[id]
	s.mu.RUnlock()
	if !exists {
		return errors.ErrNotFoundWithID("schedule", id.String())
	}
	s.execute(id)
	return nil
}

// execute submits one run of a schedule. Overlapping runs of the same
// schedule are skipped.
func (s *Scheduler) execute(id uuid.UUID) {
	job, ok := s.prepareJobExecution(id)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, submitTimeout)
	defer cancel()

	ids, err := s.submit(ctx, job.Config)

	s.mu.Lock()
	if j, exists := s.jobs[id]; exists {
		j.Running = false
		j.Runs++
		j.LastJobIDs = ids
		j.LastError = ""
		if err != nil {
			j.LastError = err.Error()
		}
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("Scheduled scan failed", "schedule", job.Config.Name, "error", err)
		return
	}
	s.logger.Info("Scheduled scan submitted", "schedule", job.Config.Name, "jobs", len(ids))
}

// prepareJobExecution marks a schedule running and returns a copy of it.
func (s *Scheduler) prepareJobExecution(id uuid.UUID) (ScheduledJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists || !job.Enabled {
		return ScheduledJob{}, false
	}
	if job.Running {
		s.logger.Warn("Scheduled scan is still submitting, skipping", "schedule", job.Config.Name)
		return ScheduledJob{}, false
	}

	job.Running = true
	job.LastRun = time.Now()
	return *job, true
}

func (s *Scheduler) submit(ctx context.Context, sc config.ScheduleConfig) ([]string, error) {
	switch {
	case sc.Target != "":
		id, err := s.submitter.StartScan(ctx, scanning.Request{
			Target:   sc.Target,
			ScanType: sc.ScanType,
			Options:  sc.Options,
			Priority: sc.Priority,
		})
		if err != nil {
			return nil, err
		}
		return []string{id}, nil

	case sc.CIDR != "":
		return s.submitter.ScanNetworkRange(ctx, scanning.RangeRequest{
			CIDR:     sc.CIDR,
			Excludes: sc.Excludes,
			ScanType: sc.ScanType,
			Options:  sc.Options,
			Priority: sc.Priority,
		})

	default:
		return s.submitTagged(ctx, sc)
	}
}

// submitTagged queues one scan per up host carrying the schedule's tag.
// A host that cannot be queued does not stop the rest.
func (s *Scheduler) submitTagged(ctx context.Context, sc config.ScheduleConfig) ([]string, error) {
	hosts, _, err := s.submitter.GetHosts(ctx, db.HostFilter{
		Status: results.StatusUp,
		Tag:    sc.Tag,
		Limit:  maxTaggedHosts,
	})
	if err != nil {
		return nil, err
	}
	if len(hosts) == 0 {
		s.logger.Info("Scheduled scan found no hosts", "schedule", sc.Name, "tag", sc.Tag)
		return nil, nil
	}

	var (
		ids  []string
		errs []error
	)
	for i := range hosts {
		id, err := s.submitter.StartScan(ctx, scanning.Request{
			Target:   hosts[i].IP,
			ScanType: sc.ScanType,
			Options:  sc.Options,
			Priority: sc.Priority,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", hosts[i].IP, err))
			continue
		}
		ids = append(ids, id)
	}
	return ids, stderrors.Join(errs...)
}

// cronLogger adapts the structured logger to cron's logger interface.
type cronLogger struct {
	logger *logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
