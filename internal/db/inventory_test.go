package db

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/NubleX/LEGION2/internal/errors"
	"github.com/NubleX/LEGION2/internal/results"
)

// InventoryTestSuite runs the inventory behaviour against a migrated database.
// The default run uses an in-memory SQLite database; the integration build
// runs the same suite against PostgreSQL.
type InventoryTestSuite struct {
	suite.Suite
	config Config
	db     *DB
	store  *Store
	ctx    context.Context
}

func (s *InventoryTestSuite) SetupTest() {
	s.ctx = context.Background()
	db, err := ConnectAndMigrate(s.ctx, &s.config)
	s.Require().NoError(err)
	s.db = db
	s.store = NewStore(db)

	if s.config.Driver == DriverPostgres {
		for _, table := range []string{"host_tags", "scripts", "vulnerabilities", "ports", "hosts", "scans", "projects"} {
			_, err := db.Exec("DELETE FROM " + table)
			s.Require().NoError(err)
		}
	}
}

func (s *InventoryTestSuite) TearDownTest() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func TestInventorySQLite(t *testing.T) {
	suite.Run(t, &InventoryTestSuite{config: Config{Driver: DriverSQLite, Path: ":memory:"}})
}

func sampleSet() results.Set {
	return results.Set{
		Hosts: []results.Host{
			{IP: "10.0.0.5", Hostname: "web01", OSName: "Linux 5.x", OSFamily: "linux", OSAccuracy: 95, Status: results.StatusUp},
		},
		Ports: []results.Port{
			{HostIP: "10.0.0.5", Number: 22, Protocol: "tcp", State: "open", Service: "ssh", Version: "OpenSSH 8.9"},
			{HostIP: "10.0.0.5", Number: 80, Protocol: "tcp", State: "open", Service: "http"},
		},
		Vulnerabilities: []results.Vulnerability{
			{HostIP: "10.0.0.5", PortNumber: 80, Protocol: "tcp", Name: "outdated-server", Severity: results.SeverityHigh, Description: "Server version is outdated"},
		},
		Scripts: []results.Script{
			{HostIP: "10.0.0.5", PortNumber: 22, Protocol: "tcp", Name: "ssh-hostkey", Output: "2048 aa:bb"},
		},
	}
}

func (s *InventoryTestSuite) TestMergeInsertsThenUpdates() {
	first, err := s.store.Merge(s.ctx, sampleSet())
	s.Require().NoError(err)
	s.Equal(5, first.Inserted)
	s.Equal(0, first.Updated)
	s.Len(first.Hosts, 1)
	s.Len(first.NewVulnerabilities, 1)

	second, err := s.store.Merge(s.ctx, sampleSet())
	s.Require().NoError(err)
	s.Equal(0, second.Inserted)
	s.Equal(5, second.Updated)
	s.Empty(second.NewVulnerabilities)

	counts, err := s.store.Counts(s.ctx)
	s.Require().NoError(err)
	s.Equal(InventoryCounts{Hosts: 1, Ports: 2, Vulnerabilities: 1}, counts)
}

func (s *InventoryTestSuite) TestMergeKeepsKnownFields() {
	_, err := s.store.Merge(s.ctx, sampleSet())
	s.Require().NoError(err)

	_, err = s.store.Merge(s.ctx, results.Set{
		Hosts: []results.Host{{IP: "10.0.0.5", Status: results.StatusUnknown}},
	})
	s.Require().NoError(err)

	host, err := s.store.GetHostByIP(s.ctx, "10.0.0.5")
	s.Require().NoError(err)
	s.Require().NotNil(host.Hostname)
	s.Equal("web01", *host.Hostname)
	s.Equal(results.StatusUp, host.Status)
	s.Equal(2, host.PortCount)
	s.Equal(1, host.VulnerabilityCount)
}

func (s *InventoryTestSuite) TestMergeSummaryCarriesMergedHost() {
	first, err := s.store.Merge(s.ctx, sampleSet())
	s.Require().NoError(err)
	s.Require().Len(first.Hosts, 1)
	created := first.Hosts[0].CreatedAt
	s.False(created.IsZero())
	s.Equal(2, first.Hosts[0].PortCount)

	again, err := s.store.Merge(s.ctx, results.Set{
		Hosts: []results.Host{{IP: "10.0.0.5", Status: results.StatusUnknown}},
	})
	s.Require().NoError(err)
	s.Require().Len(again.Hosts, 1)
	h := again.Hosts[0]
	s.Equal(first.Hosts[0].ID, h.ID)
	s.True(created.Equal(h.CreatedAt))
	s.Require().NotNil(h.Hostname)
	s.Equal("web01", *h.Hostname)
	s.Require().NotNil(h.OSFamily)
	s.Equal("linux", *h.OSFamily)
	s.Equal(results.StatusUp, h.Status)
	s.Equal(2, h.PortCount)
	s.Equal(1, h.VulnerabilityCount)
}

func (s *InventoryTestSuite) TestMergeCreatesHostForUnknownPortIP() {
	summary, err := s.store.Merge(s.ctx, results.Set{
		Ports: []results.Port{{HostIP: "10.0.0.9", Number: 443, Protocol: "tcp", State: "open"}},
	})
	s.Require().NoError(err)
	s.Equal(2, summary.Inserted)

	host, err := s.store.GetHostByIP(s.ctx, "10.0.0.9")
	s.Require().NoError(err)
	s.Equal(results.StatusUp, host.Status)
}

func (s *InventoryTestSuite) TestMergePortNaturalKey() {
	set := results.Set{
		Ports: []results.Port{
			{HostIP: "10.0.0.5", Number: 53, Protocol: "tcp", State: "open"},
			{HostIP: "10.0.0.5", Number: 53, Protocol: "udp", State: "open|filtered"},
		},
	}
	_, err := s.store.Merge(s.ctx, set)
	s.Require().NoError(err)

	set.Ports[0].State = "closed"
	_, err = s.store.Merge(s.ctx, set)
	s.Require().NoError(err)

	host, err := s.store.GetHostByIP(s.ctx, "10.0.0.5")
	s.Require().NoError(err)
	details, err := s.store.GetHostDetails(s.ctx, host.ID)
	s.Require().NoError(err)
	s.Require().Len(details.Ports, 2)
	s.Equal("tcp", details.Ports[0].Protocol)
	s.Equal("closed", details.Ports[0].State)
	s.Equal("udp", details.Ports[1].Protocol)
}

func (s *InventoryTestSuite) TestMergeRejectsInvalidSetAtomically() {
	set := sampleSet()
	set.Ports = append(set.Ports, results.Port{HostIP: "10.0.0.5", Number: 8080, State: "bogus"})

	_, err := s.store.Merge(s.ctx, set)
	s.Require().Error(err)
	s.Equal(errors.CodeValidation, errors.GetCode(err))

	counts, err := s.store.Counts(s.ctx)
	s.Require().NoError(err)
	s.Zero(counts.Hosts)
}

func (s *InventoryTestSuite) TestMergeKeepsAnalystFlags() {
	_, err := s.store.Merge(s.ctx, sampleSet())
	s.Require().NoError(err)

	_, err = s.db.Exec(`UPDATE vulnerabilities SET verified = TRUE, false_positive = TRUE`)
	s.Require().NoError(err)

	_, err = s.store.Merge(s.ctx, sampleSet())
	s.Require().NoError(err)

	host, err := s.store.GetHostByIP(s.ctx, "10.0.0.5")
	s.Require().NoError(err)
	details, err := s.store.GetHostDetails(s.ctx, host.ID)
	s.Require().NoError(err)
	s.Require().Len(details.Vulnerabilities, 1)
	s.True(details.Vulnerabilities[0].Verified)
	s.True(details.Vulnerabilities[0].FalsePositive)
}

func (s *InventoryTestSuite) TestConcurrentMergesOfSameHost() {
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Merge(s.ctx, sampleSet())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.NoError(err)
	}

	counts, err := s.store.Counts(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), counts.Hosts)
	s.Equal(int64(2), counts.Ports)
}

func (s *InventoryTestSuite) TestGetHostDetails() {
	_, err := s.store.Merge(s.ctx, sampleSet())
	s.Require().NoError(err)
	host, err := s.store.GetHostByIP(s.ctx, "10.0.0.5")
	s.Require().NoError(err)
	s.Require().NoError(s.store.TagHost(s.ctx, host.ID, "dmz"))

	start := time.Now().UTC().Add(-time.Minute)
	end := time.Now().UTC()
	s.Require().NoError(s.store.RecordScan(s.ctx, &ScanRecord{
		ID: "11111111-1111-1111-1111-111111111111", Target: "10.0.0.5", ScanType: "nmap",
		Status: ScanStatusCompleted, Progress: 100, StartTime: &start, EndTime: &end,
	}))

	details, err := s.store.GetHostDetails(s.ctx, host.ID)
	s.Require().NoError(err)
	s.Len(details.Ports, 2)
	s.Len(details.Scripts, 1)
	s.Require().NotNil(details.Scripts[0].PortID)
	s.Equal([]string{"dmz"}, details.Tags)
	s.Require().Len(details.RecentScans, 1)
	s.InDelta(time.Minute.Milliseconds(), details.RecentScans[0].DurationMS, 1000)

	_, err = s.store.GetHostDetails(s.ctx, "missing")
	s.True(errors.IsNotFound(err))
}

func (s *InventoryTestSuite) TestDeleteHostCascades() {
	_, err := s.store.Merge(s.ctx, sampleSet())
	s.Require().NoError(err)
	host, err := s.store.GetHostByIP(s.ctx, "10.0.0.5")
	s.Require().NoError(err)
	s.Require().NoError(s.store.TagHost(s.ctx, host.ID, "dmz"))

	s.Require().NoError(s.store.DeleteHost(s.ctx, host.ID))

	counts, err := s.store.Counts(s.ctx)
	s.Require().NoError(err)
	s.Equal(InventoryCounts{}, counts)

	var scripts int
	s.Require().NoError(s.db.Get(&scripts, `SELECT COUNT(*) FROM scripts`))
	s.Zero(scripts)

	err = s.store.DeleteHost(s.ctx, host.ID)
	s.True(errors.IsNotFound(err))
}

func (s *InventoryTestSuite) TestDeleteHostsReportsMissing() {
	_, err := s.store.Merge(s.ctx, results.Set{Hosts: []results.Host{
		{IP: "10.0.0.1", Status: results.StatusUp},
		{IP: "10.0.0.2", Status: results.StatusUp},
	}})
	s.Require().NoError(err)
	ids, err := s.store.HostIDs(s.ctx, HostFilter{})
	s.Require().NoError(err)
	s.Require().Len(ids, 2)

	deleted, err := s.store.DeleteHosts(s.ctx, append(ids, "does-not-exist"))
	s.Equal(2, deleted)
	s.Require().Error(err)
	s.Contains(err.Error(), "does-not-exist")
}

func (s *InventoryTestSuite) TestDeletePortDetachesFindings() {
	_, err := s.store.Merge(s.ctx, sampleSet())
	s.Require().NoError(err)
	host, err := s.store.GetHostByIP(s.ctx, "10.0.0.5")
	s.Require().NoError(err)
	details, err := s.store.GetHostDetails(s.ctx, host.ID)
	s.Require().NoError(err)

	var httpPort Port
	for _, p := range details.Ports {
		if p.Number == 80 {
			httpPort = p
		}
	}
	s.Require().NotEmpty(httpPort.ID)
	s.True(errors.IsNotFound(s.store.DeletePort(s.ctx, "other-host", httpPort.ID)))
	s.Require().NoError(s.store.DeletePort(s.ctx, host.ID, httpPort.ID))

	details, err = s.store.GetHostDetails(s.ctx, host.ID)
	s.Require().NoError(err)
	s.Len(details.Ports, 1)
	s.Require().Len(details.Vulnerabilities, 1)
	s.Nil(details.Vulnerabilities[0].PortID)

	s.True(errors.IsNotFound(s.store.DeletePort(s.ctx, host.ID, httpPort.ID)))
}

func (s *InventoryTestSuite) TestListVulnerabilities() {
	set := sampleSet()
	set.Hosts = append(set.Hosts, results.Host{IP: "10.0.0.7", Status: results.StatusUp})
	set.Vulnerabilities = append(set.Vulnerabilities,
		results.Vulnerability{HostIP: "10.0.0.7", Name: "weak-cipher", Severity: results.SeverityLow, Description: "RC4 offered"},
		results.Vulnerability{HostIP: "10.0.0.7", Name: "rce", Severity: results.SeverityCritical, Description: "Remote code execution"},
	)
	_, err := s.store.Merge(s.ctx, set)
	s.Require().NoError(err)

	all, err := s.store.ListVulnerabilities(s.ctx, VulnerabilityFilter{})
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal("rce", all[0].Name)
	s.Equal("10.0.0.7", all[0].HostIP)
	s.Equal("outdated-server", all[1].Name)
	s.Equal("10.0.0.5", all[1].HostIP)

	high, err := s.store.ListVulnerabilities(s.ctx, VulnerabilityFilter{MinSeverity: "High"})
	s.Require().NoError(err)
	s.Len(high, 2)

	other, err := s.store.GetHostByIP(s.ctx, "10.0.0.7")
	s.Require().NoError(err)
	own, err := s.store.ListVulnerabilities(s.ctx, VulnerabilityFilter{HostID: other.ID, MinSeverity: "medium"})
	s.Require().NoError(err)
	s.Require().Len(own, 1)
	s.Equal("rce", own[0].Name)

	_, err = s.store.ListVulnerabilities(s.ctx, VulnerabilityFilter{MinSeverity: "urgent"})
	s.Equal(errors.CodeValidation, errors.GetCode(err))

	_, err = s.store.ListVulnerabilities(s.ctx, VulnerabilityFilter{HostID: "missing"})
	s.True(errors.IsNotFound(err))
}

func (s *InventoryTestSuite) TestListHostsFilters() {
	_, err := s.store.Merge(s.ctx, sampleSet())
	s.Require().NoError(err)
	_, err = s.store.Merge(s.ctx, results.Set{Hosts: []results.Host{
		{IP: "10.0.0.6", Hostname: "printer_1", MACAddress: "AA:BB:CC:DD:EE:FF", Vendor: "Acme", OSFamily: "embedded", Status: results.StatusDown},
	}})
	s.Require().NoError(err)

	yes := true
	two := 2
	tests := []struct {
		name   string
		filter HostFilter
		want   []string
	}{
		{"all", HostFilter{}, []string{"10.0.0.5", "10.0.0.6"}},
		{"status", HostFilter{Status: results.StatusDown}, []string{"10.0.0.6"}},
		{"os family", HostFilter{OSFamily: "LINUX"}, []string{"10.0.0.5"}},
		{"has vulnerabilities", HostFilter{HasVulnerabilities: &yes}, []string{"10.0.0.5"}},
		{"min severity high", HostFilter{MinSeverity: "high"}, []string{"10.0.0.5"}},
		{"min severity critical", HostFilter{MinSeverity: "critical"}, nil},
		{"min ports", HostFilter{MinPorts: &two}, []string{"10.0.0.5"}},
		{"search hostname", HostFilter{Search: "WEB"}, []string{"10.0.0.5"}},
		{"search underscore literal", HostFilter{Search: "r_1"}, []string{"10.0.0.6"}},
		{"search mac address", HostFilter{Search: "dd:ee"}, []string{"10.0.0.6"}},
		{"search ignores vendor", HostFilter{Search: "acme"}, nil},
		{"min severity mixed case", HostFilter{MinSeverity: " High "}, []string{"10.0.0.5"}},
		{"last seen", HostFilter{LastSeenDays: 1}, []string{"10.0.0.5", "10.0.0.6"}},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			hosts, total, err := s.store.ListHosts(s.ctx, tt.filter)
			s.Require().NoError(err)
			var ips []string
			for _, h := range hosts {
				ips = append(ips, h.IP)
			}
			s.ElementsMatch(tt.want, ips)
			s.Equal(len(tt.want), total)
		})
	}

	_, _, err = s.store.ListHosts(s.ctx, HostFilter{MinSeverity: "extreme"})
	s.Equal(errors.CodeValidation, errors.GetCode(err))
}

func (s *InventoryTestSuite) TestListHostsPagination() {
	set := results.Set{}
	for _, ip := range []string{"10.0.1.1", "10.0.1.2", "10.0.1.3"} {
		set.Hosts = append(set.Hosts, results.Host{IP: ip, Status: results.StatusUp})
	}
	_, err := s.store.Merge(s.ctx, set)
	s.Require().NoError(err)

	hosts, total, err := s.store.ListHosts(s.ctx, HostFilter{Limit: 2, Offset: 1})
	s.Require().NoError(err)
	s.Equal(3, total)
	s.Len(hosts, 2)
}

func (s *InventoryTestSuite) TestTags() {
	_, err := s.store.Merge(s.ctx, sampleSet())
	s.Require().NoError(err)
	host, err := s.store.GetHostByIP(s.ctx, "10.0.0.5")
	s.Require().NoError(err)

	s.Require().NoError(s.store.TagHost(s.ctx, host.ID, "prod"))
	s.Require().NoError(s.store.TagHost(s.ctx, host.ID, "prod"))

	hosts, _, err := s.store.ListHosts(s.ctx, HostFilter{Tag: "prod"})
	s.Require().NoError(err)
	s.Len(hosts, 1)

	s.Require().NoError(s.store.UntagHost(s.ctx, host.ID, "prod"))
	s.True(errors.IsNotFound(s.store.UntagHost(s.ctx, host.ID, "prod")))
	s.True(errors.IsNotFound(s.store.TagHost(s.ctx, "nope", "prod")))
}

func (s *InventoryTestSuite) TestScanHistory() {
	start := time.Now().UTC().Add(-2 * time.Second)
	end := time.Now().UTC()
	rec := &ScanRecord{ID: "22222222-2222-2222-2222-222222222222", Target: "10.0.0.0/24", ScanType: "discovery", Status: ScanStatusRunning, StartTime: &start}
	s.Require().NoError(s.store.RecordScan(s.ctx, rec))

	rec.Status = ScanStatusCompleted
	rec.Progress = 100
	rec.EndTime = &end
	s.Require().NoError(s.store.RecordScan(s.ctx, rec))

	s.Require().NoError(s.store.RecordScan(s.ctx, &ScanRecord{
		ID: "33333333-3333-3333-3333-333333333333", Target: "10.0.0.7", ScanType: "nmap", Status: ScanStatusQueued,
	}))

	got, err := s.store.GetScan(s.ctx, rec.ID)
	s.Require().NoError(err)
	s.Equal(ScanStatusCompleted, got.Status)
	s.Positive(got.DurationMS)

	counts, err := s.store.ScanCounts(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(2), counts.Total)
	s.Equal(int64(1), counts.Completed)
	s.Equal(int64(1), counts.Finished)

	n, err := s.store.MarkInterruptedScans(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	failed, err := s.store.ListScans(s.ctx, ScanFilter{Status: ScanStatusFailed})
	s.Require().NoError(err)
	s.Len(failed, 1)

	_, err = s.store.GetScan(s.ctx, "missing")
	s.True(errors.IsNotFound(err))
}

func (s *InventoryTestSuite) TestProjects() {
	p, err := s.store.CreateProject(s.ctx, "internal-audit", "Q3 audit")
	s.Require().NoError(err)

	_, err = s.store.CreateProject(s.ctx, "internal-audit", "")
	s.True(errors.IsConflict(err))

	updated, err := s.store.UpdateProjectDescription(s.ctx, p.ID, "Q4 audit")
	s.Require().NoError(err)
	s.Require().NotNil(updated.Description)
	s.Equal("Q4 audit", *updated.Description)

	all, err := s.store.ListProjects(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 1)

	_, err = s.store.GetProject(s.ctx, "missing")
	s.True(errors.IsNotFound(err))
}

func TestValidateSetNormalizes(t *testing.T) {
	set := results.Set{
		Hosts:           []results.Host{{IP: "192.168.1.1"}},
		Ports:           []results.Port{{HostIP: "192.168.1.1", Number: 22, Protocol: " TCP ", State: "open"}},
		Vulnerabilities: []results.Vulnerability{{HostIP: "192.168.1.1", Name: "x", Description: "y", Severity: "info"}},
	}
	require.NoError(t, validateSet(&set))
	assert.Equal(t, results.StatusUnknown, set.Hosts[0].Status)
	assert.Equal(t, "tcp", set.Ports[0].Protocol)
	assert.Equal(t, results.SeverityLow, set.Vulnerabilities[0].Severity)

	bad := results.Set{Hosts: []results.Host{{IP: "not-an-ip"}}}
	assert.Equal(t, errors.CodeValidation, errors.GetCode(validateSet(&bad)))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\%\_off\\`, escapeLike(`50%_off\`))
}
