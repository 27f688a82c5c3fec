// Package results defines the normalized record set every scan tool parser
// produces and the inventory store consumes. Records refer to their host by
// IP address because database ids do not exist until merge time.
package results

import (
	"strings"
	"time"
)

// Host states.
const (
	StatusUp      = "up"
	StatusDown    = "down"
	StatusUnknown = "unknown"
)

// Severity levels, ordered from least to most severe.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Host is a discovered host keyed by IP.
type Host struct {
	IP         string `json:"ip"`
	Hostname   string `json:"hostname,omitempty"`
	MACAddress string `json:"mac_address,omitempty"`
	Vendor     string `json:"vendor,omitempty"`
	OSName     string `json:"os_name,omitempty"`
	OSFamily   string `json:"os_family,omitempty"`
	OSAccuracy int    `json:"os_accuracy,omitempty"`
	Status     string `json:"status"`
}

// Port is a discovered port on HostIP.
type Port struct {
	HostIP     string `json:"host_ip"`
	Number     int    `json:"number"`
	Protocol   string `json:"protocol"`
	State      string `json:"state"`
	Service    string `json:"service,omitempty"`
	Version    string `json:"version,omitempty"`
	Banner     string `json:"banner,omitempty"`
	Confidence int    `json:"confidence,omitempty"`
}

// Vulnerability is a finding on HostIP, optionally tied to a port.
// PortNumber zero means the finding is host-wide.
type Vulnerability struct {
	HostIP        string   `json:"host_ip"`
	PortNumber    int      `json:"port_number,omitempty"`
	Protocol      string   `json:"protocol,omitempty"`
	Name          string   `json:"name"`
	Severity      string   `json:"severity"`
	Description   string   `json:"description"`
	CVSSScore     *float64 `json:"cvss_score,omitempty"`
	CVEID         string   `json:"cve_id,omitempty"`
	References    []string `json:"references,omitempty"`
	Exploitable   bool     `json:"exploitable,omitempty"`
	Verified      bool     `json:"verified,omitempty"`
	FalsePositive bool     `json:"false_positive,omitempty"`
}

// Script is the output of a named tool script run against HostIP.
type Script struct {
	HostIP     string    `json:"host_ip"`
	PortNumber int       `json:"port_number,omitempty"`
	Protocol   string    `json:"protocol,omitempty"`
	Name       string    `json:"name"`
	Output     string    `json:"output"`
	ExecutedAt time.Time `json:"executed_at"`
}

// Set is the canonical record set handed from a tool parser to the store.
type Set struct {
	Hosts           []Host          `json:"hosts"`
	Ports           []Port          `json:"ports"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
	Scripts         []Script        `json:"scripts"`
}

// Empty reports whether the set carries no records at all.
func (s *Set) Empty() bool {
	return len(s.Hosts) == 0 && len(s.Ports) == 0 && len(s.Vulnerabilities) == 0 && len(s.Scripts) == 0
}

// Append adds every record of other to s.
func (s *Set) Append(other Set) {
	s.Hosts = append(s.Hosts, other.Hosts...)
	s.Ports = append(s.Ports, other.Ports...)
	s.Vulnerabilities = append(s.Vulnerabilities, other.Vulnerabilities...)
	s.Scripts = append(s.Scripts, other.Scripts...)
}

// OpenPorts counts ports reported in the open state.
func (s *Set) OpenPorts() int {
	n := 0
	for i := range s.Ports {
		if s.Ports[i].State == "open" {
			n++
		}
	}
	return n
}

// LiveHosts returns the IPs of hosts reported up, in input order.
func (s *Set) LiveHosts() []string {
	ips := make([]string, 0, len(s.Hosts))
	for i := range s.Hosts {
		if s.Hosts[i].Status == StatusUp {
			ips = append(ips, s.Hosts[i].IP)
		}
	}
	return ips
}

// SeverityRank orders severities; unknown values rank zero.
func SeverityRank(severity string) int {
	switch severity {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// NormalizeSeverity maps tool vocabularies onto the four stored levels.
// Informational findings are stored as low.
func NormalizeSeverity(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "critical", "crit":
		return SeverityCritical
	case "high":
		return SeverityHigh
	case "medium", "moderate", "med":
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// SeverityFromCVSS derives a severity from a CVSS v3 base score.
func SeverityFromCVSS(score float64) string {
	switch {
	case score >= 9.0:
		return SeverityCritical
	case score >= 7.0:
		return SeverityHigh
	case score >= 4.0:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
