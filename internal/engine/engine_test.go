//go:build unix

package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NubleX/LEGION2/internal/config"
	"github.com/NubleX/LEGION2/internal/db"
	"github.com/NubleX/LEGION2/internal/errors"
	"github.com/NubleX/LEGION2/internal/events"
	"github.com/NubleX/LEGION2/internal/export"
	"github.com/NubleX/LEGION2/internal/logging"
	"github.com/NubleX/LEGION2/internal/results"
	"github.com/NubleX/LEGION2/internal/scanning"
	"github.com/NubleX/LEGION2/internal/tools"
)

const scanShell = "shell"

// scriptTool runs a shell script with the target as $1 and understands
// "host IP", "port IP N" and "vuln IP NAME" lines.
type scriptTool struct {
	name   string
	script string
}

func (t *scriptTool) Name() string                            { return t.name }
func (t *scriptTool) Validate(string, tools.Options) error    { return nil }
func (t *scriptTool) EstimateProgress(string) (float64, bool) { return 0, false }
func (t *scriptTool) RecoverableExit(int) bool                { return false }

func (t *scriptTool) BuildInvocation(target string, opts tools.Options) (tools.Invocation, error) {
	script := opts.CustomArgs
	if script == "" {
		script = t.script
	}
	return tools.Invocation{Path: "/bin/sh", Args: []string{"-c", script, "sh", target}}, nil
}

func (t *scriptTool) ParseOutput(_ string, stdout []byte) (results.Set, error) {
	var set results.Set
	for _, line := range strings.Split(string(stdout), "\n") {
		f := strings.Fields(line)
		switch {
		case len(f) == 2 && f[0] == "host":
			set.Hosts = append(set.Hosts, results.Host{IP: f[1], Status: results.StatusUp})
		case len(f) == 3 && f[0] == "port":
			n, _ := strconv.Atoi(f[2])
			set.Ports = append(set.Ports, results.Port{HostIP: f[1], Number: n, Protocol: "tcp", State: "open"})
		case len(f) == 3 && f[0] == "vuln":
			set.Vulnerabilities = append(set.Vulnerabilities, results.Vulnerability{
				HostIP: f[1], Name: f[2], Severity: results.SeverityHigh, Description: f[2],
			})
		}
	}
	return set, nil
}

type toolMap map[string]tools.Tool

func (m toolMap) Get(scanType string) (tools.Tool, error) {
	if t, ok := m[scanType]; ok {
		return t, nil
	}
	return nil, errors.ErrToolNotFound(scanType)
}

type fakeResolver struct {
	mu    sync.Mutex
	names map[string]string
	calls int
}

func (r *fakeResolver) LookupPTR(_ context.Context, ip string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.names[ip], nil
}

func newTestEngine(t *testing.T, resolver PTRResolver) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Database = db.Config{Driver: db.DriverSQLite, Path: ":memory:"}
	cfg.Scanning.WorkerPoolSize = 2
	cfg.Scanning.GracePeriod = 200 * time.Millisecond
	cfg.Scanning.Retry.MaxRetries = 0

	opts := Options{
		Logger: logging.Discard(),
		Tools: toolMap{
			scanShell:           &scriptTool{name: scanShell, script: "echo host $1"},
			tools.ScanDiscovery: &scriptTool{name: tools.ScanDiscovery, script: "echo host 10.0.0.1; echo host 10.0.0.2"},
		},
	}
	if resolver != nil {
		opts.Resolver = resolver
	}

	e, err := Open(context.Background(), cfg, opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, e.Close(ctx))
	})
	return e
}

func collectJob(t *testing.T, sub *events.Subscription, id string) []events.Event {
	t.Helper()
	deadline := time.After(10 * time.Second)
	var out []events.Event
	for {
		select {
		case ev, ok := <-sub.C():
			require.True(t, ok, "subscription closed early")
			if ev.JobID != id {
				continue
			}
			out = append(out, ev)
			if ev.Terminal {
				return out
			}
		case <-deadline:
			t.Fatalf("no terminal event for job %s", id)
		}
	}
}

func waitJob(t *testing.T, e *Engine, id string, status scanning.Status) scanning.Job {
	t.Helper()
	var j scanning.Job
	require.Eventually(t, func() bool {
		var err error
		j, err = e.GetScan(context.Background(), id)
		return err == nil && j.Status == status
	}, 10*time.Second, 10*time.Millisecond)
	return j
}

func TestScanToInventory(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	sub := e.Subscribe()
	defer sub.Close()

	id, err := e.StartScan(ctx, scanning.Request{
		Target:   "10.0.0.5",
		ScanType: scanShell,
		Options:  tools.Options{CustomArgs: "echo host $1; echo port $1 22; echo port $1 80; echo vuln $1 weak-ssh"},
	})
	require.NoError(t, err)

	evs := collectJob(t, sub, id)
	last := evs[len(evs)-1]
	assert.Equal(t, events.TypeScanCompleted, last.Type)
	require.GreaterOrEqual(t, len(evs), 2)
	prev := evs[len(evs)-2]
	assert.Equal(t, events.TypeScanProgress, prev.Type)
	assert.Equal(t, 100.0, prev.Data.(events.Progress).Percent)

	hosts, total, err := e.GetHosts(ctx, db.HostFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, "10.0.0.5", hosts[0].IP)

	details, err := e.GetHostDetails(ctx, hosts[0].ID)
	require.NoError(t, err)
	assert.Len(t, details.Ports, 2)
	assert.Len(t, details.Vulnerabilities, 1)
	require.NotEmpty(t, details.RecentScans)
	assert.Equal(t, id, details.RecentScans[0].ID)

	byIP, err := e.GetHostDetails(ctx, "10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, hosts[0].ID, byIP.Host.ID)
	_, err = e.GetHostDetails(ctx, "10.0.0.99")
	assert.True(t, errors.IsNotFound(err))

	vulns, err := e.ListVulnerabilities(ctx, db.VulnerabilityFilter{HostID: hosts[0].ID})
	require.NoError(t, err)
	require.Len(t, vulns, 1)
	assert.Equal(t, "10.0.0.5", vulns[0].HostIP)
	_, err = e.ListVulnerabilities(ctx, db.VulnerabilityFilter{MinSeverity: "severe"})
	assert.Equal(t, errors.CodeValidation, errors.GetCode(err))

	job, err := e.GetScan(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, scanning.StatusCompleted, job.Status)
	assert.Equal(t, 2, job.OpenPorts)

	require.Eventually(t, func() bool {
		s, err := e.Statistics(ctx)
		return err == nil && s.CompletedScans == 1
	}, 5*time.Second, 10*time.Millisecond)
	s, err := e.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.TotalScans)
	assert.Zero(t, s.ActiveScans)
	assert.Equal(t, int64(1), s.TotalHostsDiscovered)
	assert.Equal(t, int64(2), s.TotalPortsDiscovered)
	assert.Equal(t, int64(1), s.TotalVulnerabilities)

	var buf bytes.Buffer
	require.NoError(t, e.ExportHosts(ctx, &buf, export.FormatJSON, nil))
	var doc export.Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Hosts, 1)
	assert.Len(t, doc.Hosts[0].Ports, 2)

	require.NoError(t, e.DeletePort(ctx, hosts[0].ID, details.Ports[0].ID))
	assert.True(t, errors.IsNotFound(e.DeletePort(ctx, hosts[0].ID, details.Ports[0].ID)))
	details, err = e.GetHostDetails(ctx, hosts[0].ID)
	require.NoError(t, err)
	assert.Len(t, details.Ports, 1)
}

func TestHostManagement(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	var ids []string
	for _, ip := range []string{"10.0.0.7", "10.0.0.8"} {
		id, err := e.StartScan(ctx, scanning.Request{Target: ip, ScanType: scanShell})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	for _, id := range ids {
		waitJob(t, e, id, scanning.StatusCompleted)
	}

	hosts, total, err := e.GetHosts(ctx, db.HostFilter{})
	require.NoError(t, err)
	require.Equal(t, 2, total)

	require.NoError(t, e.TagHost(ctx, hosts[0].ID, "dmz"))
	tagged, _, err := e.GetHosts(ctx, db.HostFilter{Tag: "dmz"})
	require.NoError(t, err)
	require.Len(t, tagged, 1)
	require.NoError(t, e.UntagHost(ctx, hosts[0].ID, "dmz"))

	require.NoError(t, e.DeleteHost(ctx, hosts[0].ID))
	_, err = e.GetHostDetails(ctx, hosts[0].ID)
	assert.True(t, errors.IsNotFound(err))

	n, err := e.DeleteHosts(ctx, []string{hosts[1].ID, "missing"})
	assert.Equal(t, 1, n)
	assert.True(t, errors.IsNotFound(err))

	_, err = e.DeleteHosts(ctx, nil)
	assert.Equal(t, errors.CodeValidation, errors.GetCode(err))

	_, total, err = e.GetHosts(ctx, db.HostFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestCancelScans(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	id, err := e.StartScan(ctx, scanning.Request{
		Target: "10.0.0.5", ScanType: scanShell, Options: tools.Options{CustomArgs: "sleep 10"},
	})
	require.NoError(t, err)
	waitJob(t, e, id, scanning.StatusRunning)

	require.NoError(t, e.CancelScan(ctx, id))
	waitJob(t, e, id, scanning.StatusCancelled)
	assert.Zero(t, e.CancelAllScans(ctx))

	err = e.CancelScan(ctx, "no-such-job")
	assert.True(t, errors.IsNotFound(err))
}

func TestScanNetworkRange(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	ids, err := e.ScanNetworkRange(ctx, scanning.RangeRequest{CIDR: "10.0.0.0/30", ScanType: scanShell})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	require.Eventually(t, func() bool {
		jobs := e.ListScans(ctx)
		if len(jobs) != 3 {
			return false
		}
		for _, j := range jobs {
			if j.Status != scanning.StatusCompleted {
				return false
			}
		}
		return true
	}, 10*time.Second, 20*time.Millisecond)

	_, total, err := e.GetHosts(ctx, db.HostFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestHostnameFilledFromReverseDNS(t *testing.T) {
	resolver := &fakeResolver{names: map[string]string{"10.0.0.5": "web01.lab"}}
	e := newTestEngine(t, resolver)
	ctx := context.Background()

	id, err := e.StartScan(ctx, scanning.Request{Target: "10.0.0.5", ScanType: scanShell})
	require.NoError(t, err)
	waitJob(t, e, id, scanning.StatusCompleted)

	require.Eventually(t, func() bool {
		hosts, _, err := e.GetHosts(ctx, db.HostFilter{})
		return err == nil && len(hosts) == 1 && hosts[0].Hostname != nil && *hosts[0].Hostname == "web01.lab"
	}, 5*time.Second, 20*time.Millisecond)

	hosts, _, err := e.GetHosts(ctx, db.HostFilter{})
	require.NoError(t, err)
	assert.Equal(t, results.StatusUp, hosts[0].Status)
}

func TestProjects(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	p, err := e.CreateProject(ctx, "acme-external", "perimeter assessment")
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)

	_, err = e.CreateProject(ctx, "acme-external", "")
	assert.True(t, errors.IsConflict(err))

	projects, err := e.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "acme-external", projects[0].Name)
}

func TestHealth(t *testing.T) {
	e := newTestEngine(t, nil)
	assert.NoError(t, e.Health(context.Background()))
}
