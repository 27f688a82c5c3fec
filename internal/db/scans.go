package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	"github.com/NubleX/LEGION2/internal/errors"
)

// Scan job statuses as persisted in the history table.
const (
	ScanStatusQueued    = "queued"
	ScanStatusRunning   = "running"
	ScanStatusCompleted = "completed"
	ScanStatusFailed    = "failed"
	ScanStatusCancelled = "cancelled"
)

const scanColumns = `id, parent_id, target, scan_type, status, progress, attempts, open_ports,
	vulnerabilities, error_message, raw_output, created_at, start_time, end_time, duration_ms`

// ScanFilter narrows a scan history listing.
type ScanFilter struct {
	Status string
	Target string
	Limit  int
	Offset int
}

// RecordScan inserts or replaces the history row for one job.
func (s *Store) RecordScan(ctx context.Context, rec *ScanRecord) error {
	if rec.ID == "" {
		return errors.NewDatabaseError(errors.CodeValidation, "scan id is required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	if rec.StartTime != nil && rec.EndTime != nil {
		rec.DurationMS = rec.EndTime.Sub(*rec.StartTime).Milliseconds()
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO scans (`+scanColumns+`)
		VALUES (:id, :parent_id, :target, :scan_type, :status, :progress, :attempts, :open_ports,
			:vulnerabilities, :error_message, :raw_output, :created_at, :start_time, :end_time, :duration_ms)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			progress = excluded.progress,
			attempts = excluded.attempts,
			open_ports = excluded.open_ports,
			vulnerabilities = excluded.vulnerabilities,
			error_message = excluded.error_message,
			raw_output = excluded.raw_output,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			duration_ms = excluded.duration_ms`, rec)
	if err != nil {
		return sanitizeDBError("record scan", err)
	}
	return nil
}

// GetScan returns the history row for one job.
func (s *Store) GetScan(ctx context.Context, id string) (*ScanRecord, error) {
	var rec ScanRecord
	err := s.db.GetContext(ctx, &rec, s.db.Rebind(`SELECT `+scanColumns+` FROM scans WHERE id = ?`), id)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.ErrNotFoundWithID("scan", id)
	}
	if err != nil {
		return nil, sanitizeDBError("get scan", err)
	}
	return &rec, nil
}

// ListScans returns scan history newest first.
func (s *Store) ListScans(ctx context.Context, f ScanFilter) ([]ScanRecord, error) {
	var (
		clauses []string
		args    []interface{}
	)
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	if f.Target != "" {
		clauses = append(clauses, "target = ?")
		args = append(args, f.Target)
	}

	query := `SELECT ` + scanColumns + ` FROM scans`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultHostLimit
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, max(f.Offset, 0))

	recs := []ScanRecord{}
	if err := s.db.SelectContext(ctx, &recs, s.db.Rebind(query), args...); err != nil {
		return nil, sanitizeDBError("list scans", err)
	}
	return recs, nil
}

// RecentScans returns the latest scans whose target is one of targets.
func (s *Store) RecentScans(ctx context.Context, targets []string, limit int) ([]ScanRecord, error) {
	recs := []ScanRecord{}
	if len(targets) == 0 {
		return recs, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(targets)), ", ")
	query := `SELECT ` + scanColumns + ` FROM scans WHERE target IN (` + placeholders + `)
		ORDER BY created_at DESC LIMIT ?`

	args := make([]interface{}, 0, len(targets)+1)
	for _, t := range targets {
		args = append(args, t)
	}
	args = append(args, limit)

	if err := s.db.SelectContext(ctx, &recs, s.db.Rebind(query), args...); err != nil {
		return nil, sanitizeDBError("list recent scans", err)
	}
	return recs, nil
}

// ScanCounts aggregates scan history by status.
func (s *Store) ScanCounts(ctx context.Context) (ScanCounts, error) {
	var rows []struct {
		Status   string `db:"status"`
		Count    int64  `db:"n"`
		Duration int64  `db:"duration_ms"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT status, COUNT(*) AS n, COALESCE(SUM(duration_ms), 0) AS duration_ms
		FROM scans GROUP BY status`)
	if err != nil {
		return ScanCounts{}, sanitizeDBError("count scans", err)
	}

	var c ScanCounts
	for _, r := range rows {
		c.Total += r.Count
		switch r.Status {
		case ScanStatusCompleted:
			c.Completed += r.Count
		case ScanStatusFailed:
			c.Failed += r.Count
		case ScanStatusCancelled:
			c.Cancelled += r.Count
		default:
			continue
		}
		c.Finished += r.Count
		c.TotalDuration += time.Duration(r.Duration) * time.Millisecond
	}
	return c, nil
}

// MarkInterruptedScans fails every scan left queued or running by a previous
// process. It returns the number of rows changed.
func (s *Store) MarkInterruptedScans(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE scans SET status = ?, error_message = ?, end_time = ?
		WHERE status IN (?, ?)`),
		ScanStatusFailed, "interrupted by shutdown", s.now(), ScanStatusQueued, ScanStatusRunning)
	if err != nil {
		return 0, sanitizeDBError("mark interrupted scans", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Warn("Marked interrupted scans as failed", "count", n)
	}
	return n, nil
}
