package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/NubleX/LEGION2/internal/db"
)

// CSV rows are flattened: one host row per host, followed by one row per port
// and one per vulnerability. The record column tells them apart.
const (
	recordHost          = "host"
	recordPort          = "port"
	recordVulnerability = "vulnerability"
)

func csvHeader() []string {
	return []string{
		"record",
		"host_id",
		"ip_address",
		"hostname",
		"status",
		"os_name",
		"mac_address",
		"vendor",
		"last_seen",
		"port",
		"protocol",
		"state",
		"service",
		"version",
		"vulnerability",
		"severity",
		"cve_id",
		"cvss_score",
		"tags",
	}
}

func writeCSV(w io.Writer, doc Document) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i := range doc.Hosts {
		d := &doc.Hosts[i]
		if err := writer.Write(hostRow(d)); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
		portNumbers := make(map[string]db.Port, len(d.Ports))
		for _, p := range d.Ports {
			portNumbers[p.ID] = p
			if err := writer.Write(portRow(d.Host, p)); err != nil {
				return fmt.Errorf("write row: %w", err)
			}
		}
		for _, v := range d.Vulnerabilities {
			var port *db.Port
			if v.PortID != nil {
				if p, ok := portNumbers[*v.PortID]; ok {
					port = &p
				}
			}
			if err := writer.Write(vulnerabilityRow(d.Host, port, v)); err != nil {
				return fmt.Errorf("write row: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func baseRow(record string, h db.Host) []string {
	row := make([]string, len(csvHeader()))
	row[0] = record
	row[1] = h.ID
	row[2] = h.IP
	row[3] = deref(h.Hostname)
	return row
}

func hostRow(d *db.HostDetails) []string {
	h := d.Host
	row := baseRow(recordHost, h)
	row[4] = h.Status
	row[5] = deref(h.OSName)
	row[6] = deref(h.MACAddress)
	row[7] = deref(h.Vendor)
	row[8] = formatTime(h.LastSeen)
	row[18] = strings.Join(d.Tags, ";")
	return row
}

func portRow(h db.Host, p db.Port) []string {
	row := baseRow(recordPort, h)
	row[9] = strconv.Itoa(p.Number)
	row[10] = p.Protocol
	row[11] = p.State
	row[12] = deref(p.Service)
	row[13] = deref(p.Version)
	return row
}

func vulnerabilityRow(h db.Host, p *db.Port, v db.Vulnerability) []string {
	row := baseRow(recordVulnerability, h)
	if p != nil {
		row[9] = strconv.Itoa(p.Number)
		row[10] = p.Protocol
	}
	row[14] = v.Name
	row[15] = v.Severity
	row[16] = deref(v.CVEID)
	if v.CVSSScore != nil {
		row[17] = strconv.FormatFloat(*v.CVSSScore, 'f', 1, 64)
	}
	return row
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}
