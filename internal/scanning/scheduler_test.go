//go:build unix

package scanning

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/NubleX/LEGION2/internal/db"
	"github.com/NubleX/LEGION2/internal/errors"
	"github.com/NubleX/LEGION2/internal/events"
	"github.com/NubleX/LEGION2/internal/logging"
	"github.com/NubleX/LEGION2/internal/results"
	"github.com/NubleX/LEGION2/internal/runner"
	"github.com/NubleX/LEGION2/internal/tools"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	scanShell   = "shell"
	recoverable = 75
)

// shellTool runs its options' custom args as a shell script with the target
// as $1, and reads lines of "host IP", "port IP N", "vuln IP NAME" and
// "progress N".
type shellTool struct {
	name   string
	script string
}

func (t *shellTool) Name() string { return t.name }

func (t *shellTool) Validate(target string, _ tools.Options) error {
	if strings.Contains(target, "bad") {
		return errors.ErrInvalidTarget(target, fmt.Errorf("rejected by tool"))
	}
	return nil
}

func (t *shellTool) BuildInvocation(target string, opts tools.Options) (tools.Invocation, error) {
	script := opts.CustomArgs
	if script == "" {
		script = t.script
	}
	return tools.Invocation{Path: "/bin/sh", Args: []string{"-c", script, "sh", target}}, nil
}

func (t *shellTool) ParseOutput(_ string, stdout []byte) (results.Set, error) {
	var set results.Set
	for _, line := range strings.Split(string(stdout), "\n") {
		f := strings.Fields(line)
		if len(f) == 0 {
			continue
		}
		switch {
		case f[0] == "progress":
		case f[0] == "host" && len(f) == 2:
			set.Hosts = append(set.Hosts, results.Host{IP: f[1], Status: results.StatusUp})
		case f[0] == "port" && len(f) == 3:
			n, _ := strconv.Atoi(f[2])
			set.Ports = append(set.Ports, results.Port{HostIP: f[1], Number: n, Protocol: "tcp", State: "open"})
		case f[0] == "vuln" && len(f) == 3:
			set.Vulnerabilities = append(set.Vulnerabilities, results.Vulnerability{
				HostIP: f[1], Name: f[2], Severity: results.SeverityHigh, Description: f[2],
			})
		default:
			return results.Set{}, errors.NewScanError(errors.CodeParseError, "unexpected line: "+line)
		}
	}
	return set, nil
}

func (t *shellTool) EstimateProgress(line string) (float64, bool) {
	f := strings.Fields(line)
	if len(f) != 2 || f[0] != "progress" {
		return 0, false
	}
	v, err := strconv.ParseFloat(f[1], 64)
	return v, err == nil
}

func (t *shellTool) RecoverableExit(code int) bool { return code == recoverable }

type toolMap map[string]tools.Tool

func (m toolMap) Get(scanType string) (tools.Tool, error) {
	if t, ok := m[scanType]; ok {
		return t, nil
	}
	return nil, errors.ErrToolNotFound(scanType)
}

type fakeStore struct {
	mu         sync.Mutex
	merges     []results.Set
	records    map[string]db.ScanRecord
	failMerges int
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]db.ScanRecord)}
}

func (f *fakeStore) Merge(_ context.Context, set results.Set) (db.MergeSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failMerges > 0 {
		f.failMerges--
		return db.MergeSummary{}, errors.NewDatabaseError(errors.CodeDatabaseConflict, "database is locked")
	}
	f.merges = append(f.merges, set)

	var summary db.MergeSummary
	seen := make(map[string]bool)
	addHost := func(ip, status string) {
		if !seen[ip] {
			seen[ip] = true
			summary.Hosts = append(summary.Hosts, db.Host{ID: "host-" + ip, IP: ip, Status: status})
		}
	}
	for _, h := range set.Hosts {
		addHost(h.IP, h.Status)
	}
	for _, p := range set.Ports {
		addHost(p.HostIP, results.StatusUp)
	}
	for _, v := range set.Vulnerabilities {
		summary.NewVulnerabilities = append(summary.NewVulnerabilities, db.Vulnerability{HostID: "host-" + v.HostIP, Name: v.Name})
	}
	summary.Inserted = len(summary.Hosts)
	return summary, nil
}

func (f *fakeStore) RecordScan(_ context.Context, rec *db.ScanRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[rec.ID] = *rec
	return nil
}

func (f *fakeStore) record(id string) db.ScanRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[id]
}

func (f *fakeStore) mergeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.merges)
}

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) Publish(e events.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) forJob(id string) []events.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []events.Event
	for _, e := range l.events {
		if e.JobID == id {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	sched *Scheduler
	store *fakeStore
	log   *eventLog
	tool  *shellTool
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	cfg := DefaultConfig()
	cfg.WorkerPoolSize = 2
	cfg.GracePeriod = 200 * time.Millisecond
	cfg.Retry = RetryPolicy{MaxRetries: 0, BaseDelay: 10 * time.Millisecond, Multiplier: 2, MaxDelay: 50 * time.Millisecond}
	if mutate != nil {
		mutate(&cfg)
	}

	h := &harness{
		store: newFakeStore(),
		log:   &eventLog{},
		tool:  &shellTool{name: scanShell, script: "echo host $1"},
	}
	discovery := &shellTool{name: tools.ScanDiscovery, script: "true"}
	h.sched = NewScheduler(cfg, Dependencies{
		Store:    h.store,
		Tools:    toolMap{scanShell: h.tool, tools.ScanDiscovery: discovery},
		Launcher: runner.New(),
		Events:   h.log,
		Logger:   logging.Discard(),
	})
	h.sched.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, h.sched.Shutdown(ctx))
	})
	return h
}

func (h *harness) submit(t *testing.T, target, script string, mutate ...func(*Request)) string {
	t.Helper()
	req := Request{Target: target, ScanType: scanShell, Options: tools.Options{CustomArgs: script}}
	for _, m := range mutate {
		m(&req)
	}
	id, err := h.sched.Submit(context.Background(), req)
	require.NoError(t, err)
	return id
}

func (h *harness) waitStatus(t *testing.T, id string, status Status) Job {
	t.Helper()
	require.Eventually(t, func() bool {
		j, err := h.sched.Job(id)
		return err == nil && j.Status == status
	}, 10*time.Second, 10*time.Millisecond, "job %s never reached %s", id, status)
	j, _ := h.sched.Job(id)
	return j
}

func (h *harness) waitTerminal(t *testing.T, id string) Job {
	t.Helper()
	require.Eventually(t, func() bool {
		j, err := h.sched.Job(id)
		return err == nil && j.Status.Terminal()
	}, 10*time.Second, 10*time.Millisecond)
	j, _ := h.sched.Job(id)
	return j
}

func assertSingleTerminalLast(t *testing.T, evs []events.Event) {
	t.Helper()
	require.NotEmpty(t, evs)
	terminals := 0
	for _, e := range evs {
		if e.Terminal {
			terminals++
		}
	}
	assert.Equal(t, 1, terminals)
	assert.True(t, evs[len(evs)-1].Terminal, "terminal event must be last")
}

func TestSubmitCompletes(t *testing.T) {
	h := newHarness(t, nil)
	id := h.submit(t, "10.0.0.5", "echo progress 40; echo progress 20; echo host $1; echo port $1 22; echo vuln $1 weak-cipher")

	j := h.waitStatus(t, id, StatusCompleted)
	assert.Equal(t, 100.0, j.Progress)
	assert.Equal(t, 1, j.Attempts)
	assert.Equal(t, 1, j.OpenPorts)
	assert.Equal(t, 1, j.Vulnerabilities)
	assert.Empty(t, j.ErrorMessage)
	require.NotNil(t, j.StartTime)
	require.NotNil(t, j.EndTime)

	evs := h.log.forJob(id)
	assertSingleTerminalLast(t, evs)

	var types []events.Type
	var percents []float64
	for _, e := range evs {
		types = append(types, e.Type)
		if p, ok := e.Data.(events.Progress); ok {
			percents = append(percents, p.Percent)
		}
	}
	assert.Equal(t, []float64{40, 100}, percents)
	assert.Contains(t, types, events.TypeHostDiscovered)
	assert.Contains(t, types, events.TypeVulnerabilityFound)
	assert.Equal(t, events.TypeScanResult, types[0])
	assert.Equal(t, events.TypeScanCompleted, types[len(types)-1])

	rec := h.store.record(id)
	assert.Equal(t, db.ScanStatusCompleted, rec.Status)
	assert.Equal(t, 1, h.store.mergeCount())
}

func TestSubmitRejectsBeforeCreatingJob(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		req  Request
		code errors.ErrorCode
	}{
		{"invalid target", Request{Target: "10.0.0.0/33", ScanType: scanShell}, errors.CodeInvalidTarget},
		{"unknown tool", Request{Target: "10.0.0.5", ScanType: "openvas"}, errors.CodeToolNotFound},
		{"tool rejects target", Request{Target: "bad.example.com", ScanType: scanShell}, errors.CodeInvalidTarget},
		{"priority out of range", Request{Target: "10.0.0.5", ScanType: scanShell, Priority: 11}, errors.CodeValidation},
		{"missing scan type", Request{Target: "10.0.0.5"}, errors.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.sched.Submit(ctx, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetCode(err))
		})
	}
	assert.Empty(t, h.sched.Jobs())
}

func TestPriorityOrdering(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.WorkerPoolSize = 1 })

	blocker := h.submit(t, "10.0.0.1", "sleep 0.3")
	h.waitStatus(t, blocker, StatusRunning)

	low := h.submit(t, "10.0.0.2", "true")
	high := h.submit(t, "10.0.0.3", "true", func(r *Request) { r.Priority = 9 })

	lowJob := h.waitStatus(t, low, StatusCompleted)
	highJob := h.waitStatus(t, high, StatusCompleted)
	assert.True(t, highJob.StartTime.Before(*lowJob.StartTime) || highJob.StartTime.Equal(*lowJob.StartTime))
	assert.True(t, !highJob.EndTime.After(*lowJob.StartTime))
}

func TestCancelQueuedJobNeverStarts(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.WorkerPoolSize = 1 })

	blocker := h.submit(t, "10.0.0.1", "sleep 10")
	h.waitStatus(t, blocker, StatusRunning)
	queued := h.submit(t, "10.0.0.2", "echo host $1")

	require.NoError(t, h.sched.Cancel(queued))
	j, err := h.sched.Job(queued)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, j.Status)
	assert.Zero(t, j.Attempts)
	assert.Nil(t, j.StartTime)
	assertSingleTerminalLast(t, h.log.forJob(queued))

	require.NoError(t, h.sched.Cancel(blocker))
	h.waitStatus(t, blocker, StatusCancelled)
	assert.Zero(t, h.store.mergeCount())

	require.NoError(t, h.sched.Cancel(queued), "cancelling a finished job is a no-op")
}

func TestCancelRunningJobSettlesCancelled(t *testing.T) {
	h := newHarness(t, nil)
	id := h.submit(t, "10.0.0.5", "echo host $1; sleep 10")
	h.waitStatus(t, id, StatusRunning)
	require.Eventually(t, func() bool {
		j, err := h.sched.Job(id)
		return err == nil && j.PID > 0
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, h.sched.Cancel(id))
	j := h.waitTerminal(t, id)
	assert.Equal(t, StatusCancelled, j.Status)
	assert.Zero(t, j.PID)
	assert.Zero(t, h.store.mergeCount())
	assertSingleTerminalLast(t, h.log.forJob(id))
	assert.Equal(t, db.ScanStatusCancelled, h.store.record(id).Status)
}

func TestCancelUnknownJob(t *testing.T) {
	h := newHarness(t, nil)
	err := h.sched.Cancel("missing")
	assert.True(t, errors.IsNotFound(err))
}

func TestCancelAll(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.WorkerPoolSize = 3 })

	var ids []string
	for i := 1; i <= 3; i++ {
		ids = append(ids, h.submit(t, fmt.Sprintf("10.0.0.%d", i), "sleep 10"))
	}
	require.Eventually(t, func() bool { return h.sched.ActiveCount() == 3 }, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, 3, h.sched.CancelAll())
	for _, id := range ids {
		assert.Equal(t, StatusCancelled, h.waitTerminal(t, id).Status)
	}
	require.Eventually(t, func() bool { return h.sched.ActiveCount() == 0 }, 5*time.Second, 10*time.Millisecond)
	assert.Zero(t, h.sched.PendingCount())
}

func TestRetryRecoverableExit(t *testing.T) {
	h := newHarness(t, nil)
	maxRetries := 2
	id := h.submit(t, "10.0.0.5", fmt.Sprintf("exit %d", recoverable), func(r *Request) { r.MaxRetries = &maxRetries })

	j := h.waitStatus(t, id, StatusFailed)
	assert.Equal(t, 3, j.Attempts)
	assert.Contains(t, j.ErrorMessage, "status 75")
	assertSingleTerminalLast(t, h.log.forJob(id))
}

func TestRetryThenSucceed(t *testing.T) {
	h := newHarness(t, nil)
	counter := filepath.Join(t.TempDir(), "count")
	script := fmt.Sprintf(`n=$(cat %[1]s 2>/dev/null || echo 0); n=$((n+1)); echo $n > %[1]s; [ $n -ge 2 ] || exit %[2]d; echo host $1`, counter, recoverable)
	maxRetries := 3
	id := h.submit(t, "10.0.0.5", script, func(r *Request) { r.MaxRetries = &maxRetries })

	j := h.waitStatus(t, id, StatusCompleted)
	assert.Equal(t, 2, j.Attempts)
	data, err := os.ReadFile(counter)
	require.NoError(t, err)
	assert.Equal(t, "2", strings.TrimSpace(string(data)))
}

func TestNonRecoverableExitFailsImmediately(t *testing.T) {
	h := newHarness(t, nil)
	maxRetries := 3
	id := h.submit(t, "10.0.0.5", "echo oops >&2; exit 1", func(r *Request) { r.MaxRetries = &maxRetries })

	j := h.waitStatus(t, id, StatusFailed)
	assert.Equal(t, 1, j.Attempts)
	assert.Contains(t, j.ErrorMessage, "oops")
}

func TestTimeoutFailsJob(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.Timeouts = map[string]time.Duration{scanShell: 100 * time.Millisecond}
	})
	id := h.submit(t, "10.0.0.5", "sleep 5")

	j := h.waitStatus(t, id, StatusFailed)
	assert.Equal(t, 1, j.Attempts)
	assert.NotEmpty(t, j.ErrorMessage)
}

func TestParseErrorKeepsRawOutput(t *testing.T) {
	h := newHarness(t, nil)
	id := h.submit(t, "10.0.0.5", "echo garbage output")

	j := h.waitStatus(t, id, StatusFailed)
	assert.Contains(t, j.ErrorMessage, "unexpected line")

	require.Eventually(t, func() bool {
		rec := h.store.record(id)
		return rec.RawOutput != nil && strings.Contains(*rec.RawOutput, "garbage output")
	}, 5*time.Second, 10*time.Millisecond)
}

func TestMergeRetriedOnce(t *testing.T) {
	h := newHarness(t, nil)
	h.store.failMerges = 1
	id := h.submit(t, "10.0.0.5", "echo host $1")

	j := h.waitStatus(t, id, StatusCompleted)
	assert.Empty(t, j.ErrorMessage)
	assert.Equal(t, 1, h.store.mergeCount())
}

func TestMergeFailureCompletesWithWarning(t *testing.T) {
	h := newHarness(t, nil)
	h.store.failMerges = 2
	id := h.submit(t, "10.0.0.5", "echo host $1")

	j := h.waitStatus(t, id, StatusCompleted)
	assert.Contains(t, j.ErrorMessage, "results may be incomplete")

	evs := h.log.forJob(id)
	assertSingleTerminalLast(t, evs)
	var sawError bool
	for _, e := range evs[:len(evs)-1] {
		if e.Type == events.TypeScanError {
			sawError = true
			assert.False(t, e.Terminal)
		}
	}
	assert.True(t, sawError, "expected a non-terminal scan-error before completion")
}

func TestSubmitRange(t *testing.T) {
	h := newHarness(t, nil)
	disc, err := h.sched.deps.Tools.Get(tools.ScanDiscovery)
	require.NoError(t, err)
	disc.(*shellTool).script = "echo host 10.0.0.1; echo host 10.0.0.2; echo host 10.0.0.3; echo host 10.0.0.9"

	ids, err := h.sched.SubmitRange(context.Background(), RangeRequest{
		CIDR:     "10.0.0.0/29",
		Excludes: []string{"10.0.0.2"},
		ScanType: scanShell,
	})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	parent := h.waitStatus(t, ids[0], StatusCompleted)
	assert.Equal(t, tools.ScanDiscovery, parent.ScanType)
	assert.Equal(t, "10.0.0.0/29", parent.Target)

	var children []Job
	require.Eventually(t, func() bool {
		children = children[:0]
		for _, j := range h.sched.Jobs() {
			if j.ParentID == ids[0] {
				children = append(children, j)
			}
		}
		return len(children) == 2
	}, 5*time.Second, 10*time.Millisecond)

	var childTargets []string
	for _, c := range children {
		childTargets = append(childTargets, c.Target)
		assert.Equal(t, scanShell, c.ScanType)
		h.waitStatus(t, c.ID, StatusCompleted)
	}
	assert.ElementsMatch(t, []string{"10.0.0.1", "10.0.0.3"}, childTargets)

	for _, c := range children {
		evs := h.log.forJob(c.ID)
		require.NotEmpty(t, evs)
		assert.Equal(t, events.TypeScanResult, evs[0].Type)
	}
	discovered := 0
	for _, e := range h.log.forJob(ids[0]) {
		if e.Type == events.TypeHostDiscovered {
			discovered++
		}
	}
	assert.Equal(t, 4, discovered)
}

func TestSubmitRangeRejects(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.sched.SubmitRange(ctx, RangeRequest{CIDR: "10.0.0.0/30", Excludes: []string{"10.0.0.0/30"}, ScanType: scanShell})
	assert.Equal(t, errors.CodeInvalidTarget, errors.GetCode(err))

	_, err = h.sched.SubmitRange(ctx, RangeRequest{CIDR: "10.0.0.0/8", ScanType: scanShell})
	assert.Equal(t, errors.CodeInvalidTarget, errors.GetCode(err))

	_, err = h.sched.SubmitRange(ctx, RangeRequest{CIDR: "10.0.0.0/29", ScanType: "openvas"})
	assert.Equal(t, errors.CodeToolNotFound, errors.GetCode(err))

	assert.Empty(t, h.sched.Jobs())
}

func TestShutdownCancelsRunningJobs(t *testing.T) {
	h := newHarness(t, nil)
	id := h.submit(t, "10.0.0.5", "sleep 10")
	h.waitStatus(t, id, StatusRunning)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.sched.Shutdown(ctx))

	j, err := h.sched.Job(id)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, j.Status)

	_, err = h.sched.Submit(context.Background(), Request{Target: "10.0.0.6", ScanType: scanShell})
	assert.Equal(t, errors.CodeCancelled, errors.GetCode(err))
}

func TestRetryPolicyDelay(t *testing.T) {
	p := RetryPolicy{BaseDelay: time.Second, Multiplier: 2, MaxDelay: 5 * time.Second}
	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 4*time.Second, p.Delay(3))
	assert.Equal(t, 5*time.Second, p.Delay(4))
	assert.Equal(t, time.Second, p.Delay(0))
}

func TestTimeoutFor(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 10*time.Minute, cfg.timeoutFor(tools.ScanDiscovery, tools.Options{}))
	assert.Equal(t, defaultTimeout, cfg.timeoutFor(tools.ScanNikto, tools.Options{}))
	assert.Equal(t, 90*time.Second, cfg.timeoutFor(tools.ScanNikto, tools.Options{Timeout: 90}))
}
