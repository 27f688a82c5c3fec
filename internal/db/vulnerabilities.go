package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/NubleX/LEGION2/internal/errors"
	"github.com/NubleX/LEGION2/internal/results"
)

const maxVulnerabilityLimit = 5000

// VulnerabilityFilter narrows a finding listing. Zero values mean "no constraint".
type VulnerabilityFilter struct {
	HostID      string `json:"host_id,omitempty"`
	MinSeverity string `json:"min_severity,omitempty"`
	Limit       int    `json:"limit,omitempty"`
}

// HostVulnerability is a finding together with the address of its host.
type HostVulnerability struct {
	Vulnerability
	HostIP string `db:"host_ip" json:"host_ip"`
}

// ListVulnerabilities returns findings matching f, most severe first. A
// host filter naming a missing host is a not-found error.
func (s *Store) ListVulnerabilities(ctx context.Context, f VulnerabilityFilter) ([]HostVulnerability, error) {
	var (
		clauses []string
		args    []interface{}
	)

	if f.HostID != "" {
		if _, err := s.GetHost(ctx, f.HostID); err != nil {
			return nil, err
		}
		clauses = append(clauses, "host_id = ?")
		args = append(args, f.HostID)
	}

	if f.MinSeverity != "" {
		rank := results.SeverityRank(strings.ToLower(strings.TrimSpace(f.MinSeverity)))
		if rank == 0 {
			return nil, errors.NewDatabaseError(errors.CodeValidation, fmt.Sprintf("invalid severity filter %q", f.MinSeverity))
		}
		clauses = append(clauses, severityRankSQL("severity")+" >= ?")
		args = append(args, rank)
	}

	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	limit := f.Limit
	if limit <= 0 || limit > maxVulnerabilityLimit {
		limit = maxVulnerabilityLimit
	}
	args = append(args, limit)

	query := `SELECT ` + vulnerabilityColumns + `,
		(SELECT ip FROM hosts WHERE hosts.id = vulnerabilities.host_id) AS host_ip
		FROM vulnerabilities` + where + `
		ORDER BY ` + severityRankSQL("severity") + ` DESC, discovered_at DESC, id LIMIT ?`

	out := []HostVulnerability{}
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(query), args...); err != nil {
		return nil, sanitizeDBError("list vulnerabilities", err)
	}
	return out, nil
}
