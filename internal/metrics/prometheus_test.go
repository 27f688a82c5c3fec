package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusMetrics_InitializationAndUpdate(t *testing.T) {
	pm := NewPrometheusMetrics()
	if pm.GetRegistry() == nil {
		t.Fatalf("GetRegistry returned nil")
	}

	pm.UpdateSystemMetrics()
	before := pm.GetUptime()
	time.Sleep(10 * time.Millisecond)
	after := pm.GetUptime()
	if before >= after {
		t.Fatalf("expected uptime to increase, before=%v after=%v", before, after)
	}
	if pm.GetLastUpdate().IsZero() {
		t.Fatalf("expected last update to be set")
	}
}

func TestPrometheusMetrics_HandlerServes(t *testing.T) {
	pm := NewPrometheusMetrics()
	pm.UpdateSystemMetrics()
	pm.JobSubmitted("nmap")

	rr := httptest.NewRecorder()
	pm.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	for _, name := range []string{"legion_system_uptime_seconds", "legion_scan_jobs_submitted_total"} {
		if !strings.Contains(body, name) {
			t.Errorf("expected %s in metrics output", name)
		}
	}
}

func TestPrometheusMetrics_JobMetrics(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.JobSubmitted("nmap")
	pm.JobSubmitted("nmap")
	pm.JobSubmitted("masscan")
	if got := testutil.ToFloat64(pm.jobsSubmitted.WithLabelValues("nmap")); got != 2 {
		t.Errorf("expected 2 nmap submissions, got %v", got)
	}

	pm.JobFinished("nmap", "completed", 5*time.Second)
	pm.JobFinished("nmap", "failed", time.Second)
	if count := testutil.CollectAndCount(pm.jobsFinished); count != 2 {
		t.Errorf("expected 2 label combinations, got %d", count)
	}
	if count := testutil.CollectAndCount(pm.jobDuration); count != 1 {
		t.Errorf("expected 1 duration series, got %d", count)
	}

	pm.SetActiveJobs(3)
	pm.SetQueuedJobs(7)
	if got := testutil.ToFloat64(pm.activeJobs); got != 3 {
		t.Errorf("expected 3 active jobs, got %v", got)
	}
	if got := testutil.ToFloat64(pm.queuedJobs); got != 7 {
		t.Errorf("expected 7 queued jobs, got %v", got)
	}

	pm.JobRetried("nmap")
	if got := testutil.ToFloat64(pm.jobRetries.WithLabelValues("nmap")); got != 1 {
		t.Errorf("expected 1 retry, got %v", got)
	}
}

func TestPrometheusMetrics_InventoryAndEvents(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.MergeCompleted(10*time.Millisecond, nil)
	pm.MergeCompleted(20*time.Millisecond, errors.New("locked"))
	if got := testutil.ToFloat64(pm.merges.WithLabelValues("error")); got != 1 {
		t.Errorf("expected 1 failed merge, got %v", got)
	}
	if got := testutil.ToFloat64(pm.merges.WithLabelValues("success")); got != 1 {
		t.Errorf("expected 1 successful merge, got %v", got)
	}

	pm.EventDropped("scan-progress")
	pm.EventDropped("scan-progress")
	if got := testutil.ToFloat64(pm.droppedEvents.WithLabelValues("scan-progress")); got != 2 {
		t.Errorf("expected 2 dropped events, got %v", got)
	}

	pm.RecordHTTPRequest(http.MethodGet, "/api/v1/hosts", "200", 3*time.Millisecond)
	if count := testutil.CollectAndCount(pm.httpRequests); count != 1 {
		t.Errorf("expected 1 request series, got %d", count)
	}
}

func TestPrometheusMetrics_PeriodicUpdates(t *testing.T) {
	pm := NewPrometheusMetrics()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		pm.StartPeriodicUpdates(ctx, 5*time.Millisecond)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("periodic updates did not stop")
	}
	if pm.GetLastUpdate().IsZero() {
		t.Fatal("expected system metrics to be updated")
	}
}

func TestNopRecorder(t *testing.T) {
	var r Recorder = Nop{}
	r.JobSubmitted("nmap")
	r.JobFinished("nmap", "completed", time.Second)
	r.MergeCompleted(time.Millisecond, nil)
}
