package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/NubleX/LEGION2/internal/errors"
	"github.com/NubleX/LEGION2/internal/logging"
	"github.com/NubleX/LEGION2/internal/results"
)

const recentScansLimit = 10

// hostColumns selects a host row plus its derived counts; the table alias must be h.
const hostColumns = `
	h.id, h.ip, h.hostname, h.mac_address, h.vendor, h.os_name, h.os_family,
	h.os_accuracy, h.status, h.created_at, h.updated_at, h.last_seen,
	(SELECT COUNT(*) FROM ports p WHERE p.host_id = h.id) AS port_count,
	(SELECT COUNT(*) FROM vulnerabilities v WHERE v.host_id = h.id) AS vulnerability_count`

const portColumns = `id, host_id, number, protocol, state, service, version, banner,
	confidence, created_at, updated_at`

const vulnerabilityColumns = `id, host_id, port_id, name, severity, description, cvss_score,
	cve_id, refs, exploitable, verified, false_positive, discovered_at, updated_at`

var validPortStates = map[string]bool{
	"open": true, "closed": true, "filtered": true, "unfiltered": true,
	"open|filtered": true, "closed|filtered": true,
}

// Store is the inventory: the single owner of host, port, vulnerability and
// script rows. All writes are serialized through writeMu so natural-key
// upserts never race; reads take no application locks.
type Store struct {
	db      *DB
	writeMu sync.Mutex
	logger  *logging.Logger
	now     func() time.Time
}

// NewStore creates an inventory store over an open database.
func NewStore(db *DB) *Store {
	return &Store{
		db:     db,
		logger: logging.Default().WithComponent("inventory"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// DB exposes the underlying database handle.
func (s *Store) DB() *DB {
	return s.db
}

type portKey struct {
	hostID   string
	number   int
	protocol string
}

// merger carries per-call state for one merge transaction.
type merger struct {
	tx      *sqlx.Tx
	now     time.Time
	hostIDs map[string]string
	portIDs map[portKey]string
	hosts   map[string]*Host
	summary MergeSummary
}

// Merge folds a normalized record set into the inventory in one transaction.
// Hosts are matched by IP, ports by (host, number, protocol), vulnerabilities
// and scripts by (host, port, name). Either the whole set is applied or none of it.
func (s *Store) Merge(ctx context.Context, set results.Set) (MergeSummary, error) {
	if err := validateSet(&set); err != nil {
		return MergeSummary{}, err
	}
	if set.Empty() {
		return MergeSummary{}, nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return MergeSummary{}, sanitizeDBError("begin merge", err)
	}
	defer func() { _ = tx.Rollback() }()

	m := &merger{
		tx:      tx,
		now:     s.now(),
		hostIDs: make(map[string]string),
		portIDs: make(map[portKey]string),
		hosts:   make(map[string]*Host),
	}

	for i := range set.Hosts {
		if err := m.upsertHost(ctx, &set.Hosts[i]); err != nil {
			return MergeSummary{}, err
		}
	}
	for i := range set.Ports {
		if err := m.upsertPort(ctx, &set.Ports[i]); err != nil {
			return MergeSummary{}, err
		}
	}
	for i := range set.Vulnerabilities {
		if err := m.upsertVulnerability(ctx, &set.Vulnerabilities[i]); err != nil {
			return MergeSummary{}, err
		}
	}
	for i := range set.Scripts {
		if err := m.upsertScript(ctx, &set.Scripts[i]); err != nil {
			return MergeSummary{}, err
		}
	}
	if err := m.loadHosts(ctx); err != nil {
		return MergeSummary{}, err
	}

	if err := tx.Commit(); err != nil {
		return MergeSummary{}, sanitizeDBError("commit merge", err)
	}

	for _, ip := range orderedIPs(set) {
		if h, ok := m.hosts[ip]; ok {
			m.summary.Hosts = append(m.summary.Hosts, *h)
		}
	}

	s.logger.Debug("Merged scan results",
		"hosts", len(set.Hosts), "ports", len(set.Ports),
		"vulnerabilities", len(set.Vulnerabilities), "scripts", len(set.Scripts),
		"inserted", m.summary.Inserted, "updated", m.summary.Updated)
	return m.summary, nil
}

// validateSet normalizes defaults and rejects records the schema would refuse,
// so a bad record fails the merge before any row is touched.
func validateSet(set *results.Set) error {
	for i := range set.Hosts {
		h := &set.Hosts[i]
		if net.ParseIP(h.IP) == nil {
			return errors.NewDatabaseError(errors.CodeValidation, fmt.Sprintf("invalid host ip %q", h.IP))
		}
		switch h.Status {
		case results.StatusUp, results.StatusDown, results.StatusUnknown:
		case "":
			h.Status = results.StatusUnknown
		default:
			return errors.NewDatabaseError(errors.CodeValidation, fmt.Sprintf("invalid host status %q", h.Status))
		}
		if h.OSAccuracy < 0 || h.OSAccuracy > 100 {
			return errors.NewDatabaseError(errors.CodeValidation, "os accuracy out of range")
		}
	}
	for i := range set.Ports {
		p := &set.Ports[i]
		if net.ParseIP(p.HostIP) == nil {
			return errors.NewDatabaseError(errors.CodeValidation, fmt.Sprintf("invalid port host ip %q", p.HostIP))
		}
		if p.Number < 0 || p.Number > 65535 {
			return errors.NewDatabaseError(errors.CodeValidation, fmt.Sprintf("invalid port number %d", p.Number))
		}
		p.Protocol = normalizeProtocol(p.Protocol)
		if !validPortStates[p.State] {
			return errors.NewDatabaseError(errors.CodeValidation, fmt.Sprintf("invalid port state %q", p.State))
		}
	}
	for i := range set.Vulnerabilities {
		v := &set.Vulnerabilities[i]
		if net.ParseIP(v.HostIP) == nil {
			return errors.NewDatabaseError(errors.CodeValidation, fmt.Sprintf("invalid vulnerability host ip %q", v.HostIP))
		}
		if v.Name == "" || v.Description == "" {
			return errors.NewDatabaseError(errors.CodeValidation, "vulnerability name and description are required")
		}
		if results.SeverityRank(v.Severity) == 0 {
			v.Severity = results.NormalizeSeverity(v.Severity)
		}
		v.Protocol = normalizeProtocol(v.Protocol)
	}
	for i := range set.Scripts {
		sc := &set.Scripts[i]
		if net.ParseIP(sc.HostIP) == nil || sc.Name == "" {
			return errors.NewDatabaseError(errors.CodeValidation, "script requires a host ip and name")
		}
		sc.Protocol = normalizeProtocol(sc.Protocol)
	}
	return nil
}

func normalizeProtocol(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return "tcp"
	}
	return p
}

func orderedIPs(set results.Set) []string {
	seen := make(map[string]bool)
	var ips []string
	add := func(ip string) {
		if !seen[ip] {
			seen[ip] = true
			ips = append(ips, ip)
		}
	}
	for i := range set.Hosts {
		add(set.Hosts[i].IP)
	}
	for i := range set.Ports {
		add(set.Ports[i].HostIP)
	}
	return ips
}

func (m *merger) upsertHost(ctx context.Context, in *results.Host) error {
	var id string
	err := m.tx.GetContext(ctx, &id, m.tx.Rebind(`SELECT id FROM hosts WHERE ip = ?`), in.IP)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		id = uuid.NewString()
		_, err = m.tx.ExecContext(ctx, m.tx.Rebind(`
			INSERT INTO hosts (id, ip, hostname, mac_address, vendor, os_name, os_family,
				os_accuracy, status, created_at, updated_at, last_seen)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			id, in.IP, strPtr(in.Hostname), strPtr(in.MACAddress), strPtr(in.Vendor),
			strPtr(in.OSName), strPtr(in.OSFamily), intPtr(in.OSAccuracy), in.Status,
			m.now, m.now, m.now)
		if err != nil {
			return sanitizeDBError("insert host", err)
		}
		m.summary.Inserted++
	case err != nil:
		return sanitizeDBError("lookup host", err)
	default:
		// Absent optional values keep what an earlier scan found; unknown
		// status never downgrades a known one.
		var status *string
		if in.Status != results.StatusUnknown {
			status = &in.Status
		}
		_, err = m.tx.ExecContext(ctx, m.tx.Rebind(`
			UPDATE hosts SET
				hostname = COALESCE(?, hostname),
				mac_address = COALESCE(?, mac_address),
				vendor = COALESCE(?, vendor),
				os_name = COALESCE(?, os_name),
				os_family = COALESCE(?, os_family),
				os_accuracy = COALESCE(?, os_accuracy),
				status = COALESCE(?, status),
				updated_at = ?,
				last_seen = ?
			WHERE id = ?`),
			strPtr(in.Hostname), strPtr(in.MACAddress), strPtr(in.Vendor),
			strPtr(in.OSName), strPtr(in.OSFamily), intPtr(in.OSAccuracy), status,
			m.now, m.now, id)
		if err != nil {
			return sanitizeDBError("update host", err)
		}
		m.summary.Updated++
	}

	m.hostIDs[in.IP] = id
	return nil
}

// loadHosts re-reads every host the merge touched, so the summary carries
// the merged rows with fields kept from earlier scans and current counts.
func (m *merger) loadHosts(ctx context.Context) error {
	for ip, id := range m.hostIDs {
		var h Host
		if err := m.tx.GetContext(ctx, &h, m.tx.Rebind(
			`SELECT `+hostColumns+` FROM hosts h WHERE h.id = ?`), id); err != nil {
			return sanitizeDBError("reload host", err)
		}
		m.hosts[ip] = &h
	}
	return nil
}

// resolveHost returns the id for ip, creating a bare host row when a port or
// finding arrives for an address the batch did not describe.
func (m *merger) resolveHost(ctx context.Context, ip string) (string, error) {
	if id, ok := m.hostIDs[ip]; ok {
		return id, nil
	}
	if err := m.upsertHost(ctx, &results.Host{IP: ip, Status: results.StatusUp}); err != nil {
		return "", err
	}
	return m.hostIDs[ip], nil
}

func (m *merger) upsertPort(ctx context.Context, in *results.Port) error {
	hostID, err := m.resolveHost(ctx, in.HostIP)
	if err != nil {
		return err
	}

	key := portKey{hostID, in.Number, in.Protocol}
	var id string
	err = m.tx.GetContext(ctx, &id,
		m.tx.Rebind(`SELECT id FROM ports WHERE host_id = ? AND number = ? AND protocol = ?`),
		hostID, in.Number, in.Protocol)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		id = uuid.NewString()
		_, err = m.tx.ExecContext(ctx, m.tx.Rebind(`
			INSERT INTO ports (id, host_id, number, protocol, state, service, version, banner,
				confidence, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			id, hostID, in.Number, in.Protocol, in.State, strPtr(in.Service), strPtr(in.Version),
			strPtr(in.Banner), intPtr(in.Confidence), m.now, m.now)
		if err != nil {
			return sanitizeDBError("insert port", err)
		}
		m.summary.Inserted++
	case err != nil:
		return sanitizeDBError("lookup port", err)
	default:
		_, err = m.tx.ExecContext(ctx, m.tx.Rebind(`
			UPDATE ports SET
				state = ?,
				service = COALESCE(?, service),
				version = COALESCE(?, version),
				banner = COALESCE(?, banner),
				confidence = COALESCE(?, confidence),
				updated_at = ?
			WHERE id = ?`),
			in.State, strPtr(in.Service), strPtr(in.Version), strPtr(in.Banner),
			intPtr(in.Confidence), m.now, id)
		if err != nil {
			return sanitizeDBError("update port", err)
		}
		m.summary.Updated++
	}

	m.portIDs[key] = id
	return nil
}

// resolvePort finds the port a finding refers to. A finding for a port that
// was never recorded is kept host-wide.
func (m *merger) resolvePort(ctx context.Context, hostID string, number int, protocol string) (*string, error) {
	if number <= 0 {
		return nil, nil
	}
	key := portKey{hostID, number, protocol}
	if id, ok := m.portIDs[key]; ok {
		return &id, nil
	}

	var id string
	err := m.tx.GetContext(ctx, &id,
		m.tx.Rebind(`SELECT id FROM ports WHERE host_id = ? AND number = ? AND protocol = ?`),
		hostID, number, protocol)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, sanitizeDBError("lookup port", err)
	}
	m.portIDs[key] = id
	return &id, nil
}

func (m *merger) upsertVulnerability(ctx context.Context, in *results.Vulnerability) error {
	hostID, err := m.resolveHost(ctx, in.HostIP)
	if err != nil {
		return err
	}
	portID, err := m.resolvePort(ctx, hostID, in.PortNumber, in.Protocol)
	if err != nil {
		return err
	}

	var id string
	if portID == nil {
		err = m.tx.GetContext(ctx, &id, m.tx.Rebind(
			`SELECT id FROM vulnerabilities WHERE host_id = ? AND port_id IS NULL AND name = ?`),
			hostID, in.Name)
	} else {
		err = m.tx.GetContext(ctx, &id, m.tx.Rebind(
			`SELECT id FROM vulnerabilities WHERE host_id = ? AND port_id = ? AND name = ?`),
			hostID, *portID, in.Name)
	}

	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		v := Vulnerability{
			ID:            uuid.NewString(),
			HostID:        hostID,
			PortID:        portID,
			Name:          in.Name,
			Severity:      in.Severity,
			Description:   in.Description,
			CVSSScore:     in.CVSSScore,
			CVEID:         strPtr(in.CVEID),
			References:    StringList(in.References),
			Exploitable:   in.Exploitable,
			Verified:      in.Verified,
			FalsePositive: in.FalsePositive,
			DiscoveredAt:  m.now,
			UpdatedAt:     m.now,
		}
		_, err = m.tx.NamedExecContext(ctx, `
			INSERT INTO vulnerabilities (`+vulnerabilityColumns+`)
			VALUES (:id, :host_id, :port_id, :name, :severity, :description, :cvss_score,
				:cve_id, :refs, :exploitable, :verified, :false_positive, :discovered_at, :updated_at)`, &v)
		if err != nil {
			return sanitizeDBError("insert vulnerability", err)
		}
		m.summary.Inserted++
		m.summary.NewVulnerabilities = append(m.summary.NewVulnerabilities, v)
	case err != nil:
		return sanitizeDBError("lookup vulnerability", err)
	default:
		// verified and false_positive are analyst judgements; rescans leave them alone.
		var refs interface{}
		if len(in.References) > 0 {
			refs, _ = StringList(in.References).Value()
		}
		_, err = m.tx.ExecContext(ctx, m.tx.Rebind(`
			UPDATE vulnerabilities SET
				severity = ?,
				description = ?,
				cvss_score = COALESCE(?, cvss_score),
				cve_id = COALESCE(?, cve_id),
				refs = COALESCE(?, refs),
				exploitable = ?,
				updated_at = ?
			WHERE id = ?`),
			in.Severity, in.Description, in.CVSSScore, strPtr(in.CVEID), refs,
			in.Exploitable, m.now, id)
		if err != nil {
			return sanitizeDBError("update vulnerability", err)
		}
		m.summary.Updated++
	}
	return nil
}

func (m *merger) upsertScript(ctx context.Context, in *results.Script) error {
	hostID, err := m.resolveHost(ctx, in.HostIP)
	if err != nil {
		return err
	}
	portID, err := m.resolvePort(ctx, hostID, in.PortNumber, in.Protocol)
	if err != nil {
		return err
	}

	executedAt := in.ExecutedAt.UTC()
	if in.ExecutedAt.IsZero() {
		executedAt = m.now
	}

	var id string
	if portID == nil {
		err = m.tx.GetContext(ctx, &id, m.tx.Rebind(
			`SELECT id FROM scripts WHERE host_id = ? AND port_id IS NULL AND name = ?`), hostID, in.Name)
	} else {
		err = m.tx.GetContext(ctx, &id, m.tx.Rebind(
			`SELECT id FROM scripts WHERE host_id = ? AND port_id = ? AND name = ?`), hostID, *portID, in.Name)
	}

	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		_, err = m.tx.ExecContext(ctx, m.tx.Rebind(`
			INSERT INTO scripts (id, host_id, port_id, name, output, executed_at)
			VALUES (?, ?, ?, ?, ?, ?)`),
			uuid.NewString(), hostID, portID, in.Name, in.Output, executedAt)
		if err != nil {
			return sanitizeDBError("insert script", err)
		}
		m.summary.Inserted++
	case err != nil:
		return sanitizeDBError("lookup script", err)
	default:
		_, err = m.tx.ExecContext(ctx, m.tx.Rebind(
			`UPDATE scripts SET output = ?, executed_at = ? WHERE id = ?`), in.Output, executedAt, id)
		if err != nil {
			return sanitizeDBError("update script", err)
		}
		m.summary.Updated++
	}
	return nil
}

// GetHost returns one host by id.
func (s *Store) GetHost(ctx context.Context, id string) (*Host, error) {
	var h Host
	query := s.db.Rebind(`SELECT ` + hostColumns + ` FROM hosts h WHERE h.id = ?`)
	if err := s.db.GetContext(ctx, &h, query, id); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.ErrNotFoundWithID("host", id)
		}
		return nil, sanitizeDBError("get host", err)
	}
	return &h, nil
}

// GetHostByIP returns the host recorded for ip.
func (s *Store) GetHostByIP(ctx context.Context, ip string) (*Host, error) {
	var h Host
	query := s.db.Rebind(`SELECT ` + hostColumns + ` FROM hosts h WHERE h.ip = ?`)
	if err := s.db.GetContext(ctx, &h, query, ip); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.ErrNotFoundWithID("host", ip)
		}
		return nil, sanitizeDBError("get host by ip", err)
	}
	return &h, nil
}

// GetHostDetails returns a host with its ports, findings, scripts, tags and
// the most recent scans that targeted it.
func (s *Store) GetHostDetails(ctx context.Context, id string) (*HostDetails, error) {
	host, err := s.GetHost(ctx, id)
	if err != nil {
		return nil, err
	}

	details := &HostDetails{
		Host:            *host,
		Ports:           []Port{},
		Vulnerabilities: []Vulnerability{},
		Scripts:         []Script{},
		Tags:            []string{},
		RecentScans:     []ScanRecord{},
	}

	if err := s.db.SelectContext(ctx, &details.Ports, s.db.Rebind(
		`SELECT `+portColumns+` FROM ports WHERE host_id = ? ORDER BY number, protocol`), id); err != nil {
		return nil, sanitizeDBError("list host ports", err)
	}

	if err := s.db.SelectContext(ctx, &details.Vulnerabilities, s.db.Rebind(
		`SELECT `+vulnerabilityColumns+` FROM vulnerabilities WHERE host_id = ?
		ORDER BY `+severityRankSQL("severity")+` DESC, discovered_at DESC`), id); err != nil {
		return nil, sanitizeDBError("list host vulnerabilities", err)
	}

	if err := s.db.SelectContext(ctx, &details.Scripts, s.db.Rebind(
		`SELECT id, host_id, port_id, name, output, executed_at FROM scripts
		WHERE host_id = ? ORDER BY name`), id); err != nil {
		return nil, sanitizeDBError("list host scripts", err)
	}

	if err := s.db.SelectContext(ctx, &details.Tags, s.db.Rebind(
		`SELECT tag FROM host_tags WHERE host_id = ? ORDER BY tag`), id); err != nil {
		return nil, sanitizeDBError("list host tags", err)
	}

	targets := []string{host.IP}
	if host.Hostname != nil {
		targets = append(targets, *host.Hostname)
	}
	recent, err := s.RecentScans(ctx, targets, recentScansLimit)
	if err != nil {
		return nil, err
	}
	details.RecentScans = recent

	return details, nil
}

// DeleteHost removes a host and everything it owns in one transaction.
func (s *Store) DeleteHost(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.deleteHost(ctx, id)
}

// DeleteHosts deletes each host in its own transaction. Missing hosts do not
// stop the others; their errors are joined and returned with the count deleted.
func (s *Store) DeleteHosts(ctx context.Context, ids []string) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var errs []error
	deleted := 0
	for _, id := range ids {
		if err := s.deleteHost(ctx, id); err != nil {
			errs = append(errs, err)
			continue
		}
		deleted++
	}
	return deleted, stderrors.Join(errs...)
}

func (s *Store) deleteHost(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return sanitizeDBError("begin delete host", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.GetContext(ctx, &exists,
		tx.Rebind(`SELECT EXISTS(SELECT 1 FROM hosts WHERE id = ?)`), id); err != nil {
		return sanitizeDBError("check host existence", err)
	}
	if !exists {
		return errors.ErrNotFoundWithID("host", id)
	}

	// Children are removed explicitly as well as by ON DELETE CASCADE, so a
	// connection without foreign key enforcement behaves the same.
	for _, q := range []string{
		`DELETE FROM scripts WHERE host_id = ?`,
		`DELETE FROM vulnerabilities WHERE host_id = ?`,
		`DELETE FROM ports WHERE host_id = ?`,
		`DELETE FROM host_tags WHERE host_id = ?`,
		`DELETE FROM hosts WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, tx.Rebind(q), id); err != nil {
			return sanitizeDBError("delete host", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return sanitizeDBError("commit delete host", err)
	}
	s.logger.Info("Deleted host", "host_id", id)
	return nil
}

// DeletePort removes one port of a host. Findings and scripts that
// referenced it stay on the host with no port.
func (s *Store) DeletePort(ctx context.Context, hostID, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return sanitizeDBError("begin delete port", err)
	}
	defer func() { _ = tx.Rollback() }()

	var owned int
	if err := tx.GetContext(ctx, &owned, tx.Rebind(
		`SELECT COUNT(*) FROM ports WHERE id = ? AND host_id = ?`), id, hostID); err != nil {
		return sanitizeDBError("find port", err)
	}
	if owned == 0 {
		return errors.ErrNotFoundWithID("port", id)
	}

	for _, q := range []string{
		`UPDATE vulnerabilities SET port_id = NULL WHERE port_id = ?`,
		`UPDATE scripts SET port_id = NULL WHERE port_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, tx.Rebind(q), id); err != nil {
			return sanitizeDBError("detach port", err)
		}
	}

	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM ports WHERE id = ?`), id)
	if err != nil {
		return sanitizeDBError("delete port", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.ErrNotFoundWithID("port", id)
	}

	if err := tx.Commit(); err != nil {
		return sanitizeDBError("commit delete port", err)
	}
	s.logger.Info("Deleted port", "host_id", hostID, "port_id", id)
	return nil
}

// Counts returns row counts of the inventory tables.
func (s *Store) Counts(ctx context.Context) (InventoryCounts, error) {
	var c InventoryCounts
	err := s.db.GetContext(ctx, &c, `
		SELECT
			(SELECT COUNT(*) FROM hosts) AS hosts,
			(SELECT COUNT(*) FROM ports) AS ports,
			(SELECT COUNT(*) FROM vulnerabilities) AS vulnerabilities`)
	if err != nil {
		return InventoryCounts{}, sanitizeDBError("count inventory", err)
	}
	return c, nil
}

// TagHost attaches tag to a host. Tagging twice is a no-op.
func (s *Store) TagHost(ctx context.Context, hostID, tag string) error {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return errors.NewDatabaseError(errors.CodeValidation, "tag must not be empty")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return sanitizeDBError("begin tag host", err)
	}
	defer func() { _ = tx.Rollback() }()

	var hostExists, tagged bool
	if err := tx.GetContext(ctx, &hostExists,
		tx.Rebind(`SELECT EXISTS(SELECT 1 FROM hosts WHERE id = ?)`), hostID); err != nil {
		return sanitizeDBError("check host existence", err)
	}
	if !hostExists {
		return errors.ErrNotFoundWithID("host", hostID)
	}
	if err := tx.GetContext(ctx, &tagged,
		tx.Rebind(`SELECT EXISTS(SELECT 1 FROM host_tags WHERE host_id = ? AND tag = ?)`), hostID, tag); err != nil {
		return sanitizeDBError("check tag", err)
	}
	if !tagged {
		if _, err := tx.ExecContext(ctx,
			tx.Rebind(`INSERT INTO host_tags (host_id, tag, created_at) VALUES (?, ?, ?)`),
			hostID, tag, s.now()); err != nil {
			return sanitizeDBError("tag host", err)
		}
	}
	return sanitizeDBError("commit tag host", tx.Commit())
}

// UntagHost removes tag from a host.
func (s *Store) UntagHost(ctx context.Context, hostID, tag string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx,
		s.db.Rebind(`DELETE FROM host_tags WHERE host_id = ? AND tag = ?`), hostID, tag)
	if err != nil {
		return sanitizeDBError("untag host", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.ErrNotFoundWithID("tag", tag)
	}
	return nil
}
