package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/NubleX/LEGION2/internal/errors"
	"github.com/NubleX/LEGION2/internal/results"
)

const (
	defaultHostLimit = 100
	maxHostLimit     = 1000
)

// HostFilter narrows a host listing. Zero values mean "no constraint".
type HostFilter struct {
	Status             string `json:"status,omitempty"`
	OSFamily           string `json:"os_family,omitempty"`
	HasVulnerabilities *bool  `json:"has_vulnerabilities,omitempty"`
	MinSeverity        string `json:"min_severity,omitempty"`
	MinPorts           *int   `json:"min_ports,omitempty"`
	MaxPorts           *int   `json:"max_ports,omitempty"`
	Search             string `json:"search,omitempty"`
	Tag                string `json:"tag,omitempty"`
	LastSeenDays       int    `json:"last_seen_days,omitempty"`
	Limit              int    `json:"limit,omitempty"`
	Offset             int    `json:"offset,omitempty"`
}

// severityRankSQL maps a severity column to its numeric rank.
func severityRankSQL(col string) string {
	return fmt.Sprintf(`CASE %s WHEN 'critical' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 WHEN 'low' THEN 1 ELSE 0 END`, col)
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// buildHostQuery returns the WHERE clause and arguments for f, using ? placeholders.
func (s *Store) buildHostQuery(f HostFilter) (string, []interface{}, error) {
	var (
		clauses []string
		args    []interface{}
	)

	if f.Status != "" {
		switch f.Status {
		case results.StatusUp, results.StatusDown, results.StatusUnknown:
		default:
			return "", nil, errors.NewDatabaseError(errors.CodeValidation, fmt.Sprintf("invalid status filter %q", f.Status))
		}
		clauses = append(clauses, "h.status = ?")
		args = append(args, f.Status)
	}

	if f.OSFamily != "" {
		clauses = append(clauses, "LOWER(h.os_family) = ?")
		args = append(args, strings.ToLower(f.OSFamily))
	}

	if f.HasVulnerabilities != nil {
		exists := "EXISTS (SELECT 1 FROM vulnerabilities v WHERE v.host_id = h.id)"
		if *f.HasVulnerabilities {
			clauses = append(clauses, exists)
		} else {
			clauses = append(clauses, "NOT "+exists)
		}
	}

	if f.MinSeverity != "" {
		rank := results.SeverityRank(strings.ToLower(strings.TrimSpace(f.MinSeverity)))
		if rank == 0 {
			return "", nil, errors.NewDatabaseError(errors.CodeValidation, fmt.Sprintf("invalid severity filter %q", f.MinSeverity))
		}
		clauses = append(clauses, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM vulnerabilities v WHERE v.host_id = h.id AND %s >= ?)",
			severityRankSQL("v.severity")))
		args = append(args, rank)
	}

	if f.MinPorts != nil {
		clauses = append(clauses, "(SELECT COUNT(*) FROM ports p WHERE p.host_id = h.id) >= ?")
		args = append(args, *f.MinPorts)
	}
	if f.MaxPorts != nil {
		clauses = append(clauses, "(SELECT COUNT(*) FROM ports p WHERE p.host_id = h.id) <= ?")
		args = append(args, *f.MaxPorts)
	}

	if f.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(f.Search)) + "%"
		clauses = append(clauses, `(LOWER(h.ip) LIKE ? ESCAPE '\' OR LOWER(h.hostname) LIKE ? ESCAPE '\'
			OR LOWER(h.os_name) LIKE ? ESCAPE '\' OR LOWER(h.mac_address) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern, pattern)
	}

	if f.Tag != "" {
		clauses = append(clauses, "EXISTS (SELECT 1 FROM host_tags t WHERE t.host_id = h.id AND t.tag = ?)")
		args = append(args, f.Tag)
	}

	if f.LastSeenDays > 0 {
		clauses = append(clauses, "h.last_seen >= ?")
		args = append(args, s.now().Add(-time.Duration(f.LastSeenDays)*24*time.Hour))
	}

	if len(clauses) == 0 {
		return "", args, nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

// ListHosts returns hosts matching f ordered by most recently seen, together
// with the total number of matches ignoring pagination.
func (s *Store) ListHosts(ctx context.Context, f HostFilter) ([]Host, int, error) {
	where, args, err := s.buildHostQuery(f)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := s.db.GetContext(ctx, &total,
		s.db.Rebind(`SELECT COUNT(*) FROM hosts h`+where), args...); err != nil {
		return nil, 0, sanitizeDBError("count hosts", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultHostLimit
	}
	if limit > maxHostLimit {
		limit = maxHostLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + hostColumns + ` FROM hosts h` + where +
		` ORDER BY h.last_seen DESC, h.ip LIMIT ? OFFSET ?`
	pageArgs := append(append([]interface{}{}, args...), limit, offset)

	hosts := []Host{}
	if err := s.db.SelectContext(ctx, &hosts, s.db.Rebind(query), pageArgs...); err != nil {
		return nil, 0, sanitizeDBError("list hosts", err)
	}
	return hosts, total, nil
}

// HostIDs returns the ids of every host matching f, ignoring pagination.
func (s *Store) HostIDs(ctx context.Context, f HostFilter) ([]string, error) {
	where, args, err := s.buildHostQuery(f)
	if err != nil {
		return nil, err
	}
	ids := []string{}
	if err := s.db.SelectContext(ctx, &ids,
		s.db.Rebind(`SELECT h.id FROM hosts h`+where+` ORDER BY h.ip`), args...); err != nil {
		return nil, sanitizeDBError("list host ids", err)
	}
	return ids, nil
}
