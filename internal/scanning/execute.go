package scanning

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/NubleX/LEGION2/internal/db"
	"github.com/NubleX/LEGION2/internal/errors"
	"github.com/NubleX/LEGION2/internal/events"
	"github.com/NubleX/LEGION2/internal/results"
	"github.com/NubleX/LEGION2/internal/runner"
	"github.com/NubleX/LEGION2/internal/tools"
)

// outcome is what one attempt produced.
type outcome struct {
	err       error
	exitCode  int
	rawOutput string
	set       results.Set
	mergeErr  error
}

// runAttempt executes one attempt of a job on the calling worker.
func (s *Scheduler) runAttempt(id string) {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok || j.Status.Terminal() || j.inFlight {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	now := s.now()
	j.inFlight = true
	j.cancel = cancel
	j.Attempts++
	if j.Status == StatusQueued {
		j.Status = StatusRunning
		j.StartTime = &now
	}
	j.Phase = "running"
	s.active++
	snap := j.Job
	rec, version := s.recordLocked(j)
	s.mu.Unlock()

	s.updateGauges()
	s.persist(j, rec, version)
	s.deps.Events.Publish(events.NewResult(j.ID, snap))
	s.logger.WithJob(j.ID, j.ScanType).Info("Scan job started", "target", j.Target, "attempt", snap.Attempts)

	o := s.execute(ctx, j)
	s.endAttempt(j, o)
}

// execute runs the tool, normalizes its output and merges the results. It
// publishes every non-terminal event of the attempt.
func (s *Scheduler) execute(ctx context.Context, j *job) outcome {
	inv, err := j.tool.BuildInvocation(j.Target, j.Options)
	if err != nil {
		return outcome{err: err}
	}

	proc, err := s.deps.Launcher.Start(ctx, runner.Command{
		Path:        inv.Path,
		Args:        inv.Args,
		Timeout:     s.cfg.timeoutFor(j.ScanType, j.Options),
		GracePeriod: s.cfg.GracePeriod,
	})
	if err != nil {
		return outcome{err: err}
	}
	s.mu.Lock()
	j.proc = proc
	j.PID = proc.PID()
	s.mu.Unlock()
	s.logger.WithJob(j.ID, j.ScanType).Debug("Tool process started", "pid", proc.PID(), "path", inv.Path)

	for line := range proc.Lines() {
		if pct, ok := j.tool.EstimateProgress(line.Text); ok {
			s.reportProgress(j, pct)
		}
	}
	res := proc.Wait()
	if res.Truncated {
		s.logger.WithJob(j.ID, j.ScanType).Warn("Tool output truncated", "bytes", len(res.Stdout))
	}

	if res.Err != nil && !acceptedExit(j.tool, res) {
		return outcome{err: res.Err, exitCode: res.ExitCode}
	}
	if s.cancelRequested(j) {
		return outcome{err: errors.NewScanError(errors.CodeCancelled, "scan cancelled")}
	}

	set, err := j.tool.ParseOutput(j.Target, res.Stdout)
	if err != nil {
		return outcome{err: err, rawOutput: truncateOutput(res.Stdout)}
	}

	o := outcome{set: set}
	summary, err := s.merge(j, set)
	if err != nil {
		o.mergeErr = err
		s.deps.Events.Publish(events.NewError(j.ID, incompleteMessage(err), s.now(), false))
		return o
	}

	for _, h := range summary.Hosts {
		if h.Status == results.StatusUp {
			s.deps.Events.Publish(events.NewHostDiscovered(j.ID, h))
		}
	}
	for _, v := range summary.NewVulnerabilities {
		s.deps.Events.Publish(events.NewVulnerabilityFound(j.ID, v))
	}
	if j.plan != nil && !s.cancelRequested(j) {
		s.spawnHostJobs(j, summary.Hosts)
	}
	return o
}

func acceptedExit(tool tools.Tool, res runner.Result) bool {
	if !errors.IsCode(res.Err, errors.CodeNonZeroExit) {
		return false
	}
	accepter, ok := tool.(tools.ExitAccepter)
	return ok && accepter.AcceptsExit(res.ExitCode)
}

func (s *Scheduler) cancelRequested(j *job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return j.cancelRequested
}

// endAttempt releases the worker and decides the job's next state.
func (s *Scheduler) endAttempt(j *job, o outcome) {
	s.mu.Lock()
	j.inFlight = false
	j.cancel = nil
	j.proc = nil
	j.PID = 0
	s.active--

	var (
		ev       events.Event
		rec      db.ScanRecord
		version  uint64
		settled  bool
		retrying bool
		attempts int
		delay    time.Duration
		final    *events.Event
	)
	switch {
	case j.cancelRequested || errors.IsCode(o.err, errors.CodeCancelled):
		ev, rec, version, settled = s.settleLocked(j, StatusCancelled, "")

	case o.err != nil && s.retryableLocked(j, o):
		retrying = true
		attempts = j.Attempts
		delay = s.cfg.Retry.Delay(attempts)
		j.Phase = "waiting to retry"
		id := j.ID
		j.retryTimer = time.AfterFunc(delay, func() { s.requeue(id) })

	case o.err != nil:
		j.rawOutput = o.rawOutput
		ev, rec, version, settled = s.settleLocked(j, StatusFailed, o.err.Error())

	default:
		j.OpenPorts = o.set.OpenPorts()
		j.Vulnerabilities = len(o.set.Vulnerabilities)
		j.HostsFound = len(o.set.LiveHosts())
		message := ""
		if o.mergeErr != nil {
			message = incompleteMessage(o.mergeErr)
		}
		if j.Progress < 100 && !j.Status.Terminal() {
			p := events.NewProgress(events.Progress{
				JobID:           j.ID,
				Percent:         100,
				Phase:           "completed",
				DiscoveredHosts: j.HostsFound,
				OpenPortsFound:  j.OpenPorts,
			})
			final = &p
		}
		ev, rec, version, settled = s.settleLocked(j, StatusCompleted, message)
	}
	s.mu.Unlock()

	if retrying {
		s.deps.Metrics.JobRetried(j.ScanType)
		s.updateGauges()
		s.logger.WithJob(j.ID, j.ScanType).Warn("Scan attempt failed, retrying",
			"attempt", attempts, "delay", delay, "error", o.err)
		return
	}
	if settled {
		if final != nil {
			s.deps.Events.Publish(*final)
		}
		s.afterSettle(j, ev, rec, version)
	}
}

// retryableLocked reports whether a failed attempt may run again.
func (s *Scheduler) retryableLocked(j *job, o outcome) bool {
	if s.closed || j.Attempts > j.maxRetries {
		return false
	}
	switch errors.GetCode(o.err) {
	case errors.CodeTimeout:
		return true
	case errors.CodeNonZeroExit:
		return j.tool.RecoverableExit(o.exitCode)
	default:
		return false
	}
}

// reportProgress publishes a progress update if pct moves the job forward.
func (s *Scheduler) reportProgress(j *job, pct float64) {
	if pct > 100 {
		pct = 100
	}
	s.mu.Lock()
	if j.Status.Terminal() || j.cancelRequested || pct <= j.Progress {
		s.mu.Unlock()
		return
	}
	j.Progress = pct
	p := events.Progress{JobID: j.ID, Percent: pct, Phase: j.Phase}
	s.mu.Unlock()

	s.deps.Events.Publish(events.NewProgress(p))
}

// merge stores set, retrying a failed merge once.
func (s *Scheduler) merge(j *job, set results.Set) (db.MergeSummary, error) {
	if set.Empty() {
		return db.MergeSummary{}, nil
	}

	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), mergeTimeout)
		start := time.Now()
		summary, err := s.deps.Store.Merge(ctx, set)
		cancel()
		s.deps.Metrics.MergeCompleted(time.Since(start), err)
		if err == nil {
			return summary, nil
		}
		lastErr = err
		s.logger.WithJob(j.ID, j.ScanType).Warn("Failed to merge scan results", "attempt", attempt, "error", err)
	}
	return db.MergeSummary{}, lastErr
}

// spawnHostJobs queues phase two of a range scan for every live host inside
// the range.
func (s *Scheduler) spawnHostJobs(parent *job, hosts []db.Host) {
	plan := parent.plan
	for _, h := range hosts {
		if h.Status != results.StatusUp {
			continue
		}
		addr, err := netip.ParseAddr(h.IP)
		if err != nil || !plan.hosts[addr.String()] {
			continue
		}

		s.mu.Lock()
		seen := plan.spawned[addr.String()]
		plan.spawned[addr.String()] = true
		s.mu.Unlock()
		if seen {
			continue
		}

		req := plan.request
		req.Target = addr.String()
		req.parentID = parent.ID

		tool, err := s.deps.Tools.Get(req.ScanType)
		if err == nil {
			err = tool.Validate(req.Target, req.Options)
		}
		if err != nil {
			s.logger.WithJob(parent.ID, parent.ScanType).Warn("Skipping discovered host", "ip", req.Target, "error", err)
			continue
		}

		id, err := s.enqueue(context.Background(), req, tool, nil)
		if err != nil {
			s.logger.WithJob(parent.ID, parent.ScanType).Warn("Failed to queue host scan", "ip", req.Target, "error", err)
			continue
		}
		if child, err := s.Job(id); err == nil {
			s.deps.Events.Publish(events.NewResult(id, child))
		}
	}
}

func incompleteMessage(err error) string {
	return fmt.Sprintf("results may be incomplete: %v", err)
}

func truncateOutput(stdout []byte) string {
	if len(stdout) > maxRawOutputBytes {
		stdout = stdout[:maxRawOutputBytes]
	}
	return string(stdout)
}
