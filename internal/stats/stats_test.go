package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NubleX/LEGION2/internal/db"
)

type fakeHistory struct {
	counts db.ScanCounts
	err    error
	calls  int
}

func (f *fakeHistory) ScanCounts(context.Context) (db.ScanCounts, error) {
	f.calls++
	return f.counts, f.err
}

type fakeInventory struct {
	counts db.InventoryCounts
	err    error
}

func (f *fakeInventory) Counts(context.Context) (db.InventoryCounts, error) {
	return f.counts, f.err
}

type fakeJobs struct{ pending, active int }

func (f fakeJobs) PendingCount() int { return f.pending }
func (f fakeJobs) ActiveCount() int  { return f.active }

func TestSnapshot(t *testing.T) {
	history := &fakeHistory{counts: db.ScanCounts{
		Total:         7,
		Completed:     3,
		Failed:        1,
		Cancelled:     0,
		Finished:      4,
		TotalDuration: 2 * time.Minute,
	}}
	inventory := &fakeInventory{counts: db.InventoryCounts{Hosts: 12, Ports: 40, Vulnerabilities: 5}}
	agg := NewAggregator(history, inventory, fakeJobs{pending: 3, active: 2})

	s, err := agg.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), s.TotalScans)
	assert.Equal(t, 3, s.ActiveScans)
	assert.Equal(t, 2, s.RunningScans)
	assert.Equal(t, int64(3), s.CompletedScans)
	assert.Equal(t, int64(1), s.FailedScans)
	assert.Equal(t, int64(12), s.TotalHostsDiscovered)
	assert.Equal(t, int64(40), s.TotalPortsDiscovered)
	assert.Equal(t, int64(5), s.TotalVulnerabilities)
	assert.InDelta(t, 120.0, s.ScanTimeTotal, 0.001)
	assert.InDelta(t, 30.0, s.AvgScanDuration, 0.001)
	assert.False(t, s.GeneratedAt.IsZero())
}

func TestSnapshotEmptyHistory(t *testing.T) {
	agg := NewAggregator(&fakeHistory{}, &fakeInventory{}, nil)
	s, err := agg.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Zero(t, s.AvgScanDuration)
	assert.Zero(t, s.ActiveScans)
}

func TestSnapshotIsNotCached(t *testing.T) {
	history := &fakeHistory{counts: db.ScanCounts{Total: 1}}
	agg := NewAggregator(history, &fakeInventory{}, nil)

	first, err := agg.Snapshot(context.Background())
	require.NoError(t, err)
	history.counts.Total = 2
	second, err := agg.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.TotalScans)
	assert.Equal(t, int64(2), second.TotalScans)
	assert.Equal(t, 2, history.calls)
}

func TestSnapshotSourceError(t *testing.T) {
	boom := errors.New("database is down")
	agg := NewAggregator(&fakeHistory{}, &fakeInventory{err: boom}, nil)
	_, err := agg.Snapshot(context.Background())
	assert.ErrorIs(t, err, boom)
}
