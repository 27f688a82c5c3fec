// Package stats derives scan statistics from the job history, the inventory
// and the scheduler. Nothing is cached; every Snapshot queries its sources.
package stats

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/NubleX/LEGION2/internal/db"
)

// History reads aggregated job history.
type History interface {
	ScanCounts(ctx context.Context) (db.ScanCounts, error)
}

// Inventory reads inventory row counts.
type Inventory interface {
	Counts(ctx context.Context) (db.InventoryCounts, error)
}

// Jobs reports live scheduler state.
type Jobs interface {
	// PendingCount is the number of jobs not yet in a terminal state.
	PendingCount() int
	// ActiveCount is the number of jobs holding a worker slot.
	ActiveCount() int
}

// Snapshot is a point-in-time view of scanning activity. Durations are in
// seconds.
type Snapshot struct {
	TotalScans           int64     `json:"total_scans"`
	ActiveScans          int       `json:"active_scans"`
	RunningScans         int       `json:"running_scans"`
	CompletedScans       int64     `json:"completed_scans"`
	FailedScans          int64     `json:"failed_scans"`
	CancelledScans       int64     `json:"cancelled_scans"`
	TotalHostsDiscovered int64     `json:"total_hosts_discovered"`
	TotalPortsDiscovered int64     `json:"total_ports_discovered"`
	TotalVulnerabilities int64     `json:"total_vulnerabilities"`
	ScanTimeTotal        float64   `json:"scan_time_total"`
	AvgScanDuration      float64   `json:"avg_scan_duration"`
	GeneratedAt          time.Time `json:"generated_at"`
}

// Aggregator builds snapshots.
type Aggregator struct {
	history   History
	inventory Inventory
	jobs      Jobs
}

// NewAggregator creates an aggregator. jobs may be nil when no scheduler runs
// in this process, in which case active counts are zero.
func NewAggregator(history History, inventory Inventory, jobs Jobs) *Aggregator {
	return &Aggregator{history: history, inventory: inventory, jobs: jobs}
}

// Snapshot queries every source and combines the results.
func (a *Aggregator) Snapshot(ctx context.Context) (Snapshot, error) {
	var (
		scans db.ScanCounts
		inv   db.InventoryCounts
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		scans, err = a.history.ScanCounts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		inv, err = a.inventory.Counts(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	s := Snapshot{
		TotalScans:           scans.Total,
		CompletedScans:       scans.Completed,
		FailedScans:          scans.Failed,
		CancelledScans:       scans.Cancelled,
		TotalHostsDiscovered: inv.Hosts,
		TotalPortsDiscovered: inv.Ports,
		TotalVulnerabilities: inv.Vulnerabilities,
		ScanTimeTotal:        scans.TotalDuration.Seconds(),
		GeneratedAt:          time.Now().UTC(),
	}
	if scans.Finished > 0 {
		s.AvgScanDuration = (scans.TotalDuration / time.Duration(scans.Finished)).Seconds()
	}
	if a.jobs != nil {
		s.ActiveScans = a.jobs.PendingCount()
		s.RunningScans = a.jobs.ActiveCount()
	}
	return s, nil
}
