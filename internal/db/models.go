package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// StringList stores an ordered list of strings as a JSON array column.
type StringList []string

// Scan implements sql.Scanner for JSON array text columns.
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into StringList", value)
	}
	if len(raw) == 0 {
		*l = nil
		return nil
	}

	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("failed to decode string list: %w", err)
	}
	*l = out
	return nil
}

// Value implements driver.Valuer, always producing a JSON array.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Host represents a discovered network host. IP is the natural key.
type Host struct {
	ID         string    `db:"id" json:"id"`
	IP         string    `db:"ip" json:"ip"`
	Hostname   *string   `db:"hostname" json:"hostname,omitempty"`
	MACAddress *string   `db:"mac_address" json:"mac_address,omitempty"`
	Vendor     *string   `db:"vendor" json:"vendor,omitempty"`
	OSName     *string   `db:"os_name" json:"os_name,omitempty"`
	OSFamily   *string   `db:"os_family" json:"os_family,omitempty"`
	OSAccuracy *int      `db:"os_accuracy" json:"os_accuracy,omitempty"`
	Status     string    `db:"status" json:"status"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
	LastSeen   time.Time `db:"last_seen" json:"last_seen"`

	// Derived counts, populated by host queries.
	PortCount          int `db:"port_count" json:"port_count"`
	VulnerabilityCount int `db:"vulnerability_count" json:"vulnerability_count"`
}

// Port represents a port observed on a host. (HostID, Number, Protocol) is the natural key.
type Port struct {
	ID         string    `db:"id" json:"id"`
	HostID     string    `db:"host_id" json:"host_id"`
	Number     int       `db:"number" json:"number"`
	Protocol   string    `db:"protocol" json:"protocol"`
	State      string    `db:"state" json:"state"`
	Service    *string   `db:"service" json:"service,omitempty"`
	Version    *string   `db:"version" json:"version,omitempty"`
	Banner     *string   `db:"banner" json:"banner,omitempty"`
	Confidence *int      `db:"confidence" json:"confidence,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Vulnerability represents a finding on a host, optionally tied to one port.
type Vulnerability struct {
	ID            string     `db:"id" json:"id"`
	HostID        string     `db:"host_id" json:"host_id"`
	PortID        *string    `db:"port_id" json:"port_id,omitempty"`
	Name          string     `db:"name" json:"name"`
	Severity      string     `db:"severity" json:"severity"`
	Description   string     `db:"description" json:"description"`
	CVSSScore     *float64   `db:"cvss_score" json:"cvss_score,omitempty"`
	CVEID         *string    `db:"cve_id" json:"cve_id,omitempty"`
	References    StringList `db:"refs" json:"references"`
	Exploitable   bool       `db:"exploitable" json:"exploitable"`
	Verified      bool       `db:"verified" json:"verified"`
	FalsePositive bool       `db:"false_positive" json:"false_positive"`
	DiscoveredAt  time.Time  `db:"discovered_at" json:"discovered_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// Script is a named tool-script execution attached to a host.
type Script struct {
	ID         string    `db:"id" json:"id"`
	HostID     string    `db:"host_id" json:"host_id"`
	PortID     *string   `db:"port_id" json:"port_id,omitempty"`
	Name       string    `db:"name" json:"name"`
	Output     string    `db:"output" json:"output"`
	ExecutedAt time.Time `db:"executed_at" json:"executed_at"`
}

// ScanRecord is the persisted history row for one scan job.
type ScanRecord struct {
	ID              string     `db:"id" json:"id"`
	ParentID        *string    `db:"parent_id" json:"parent_id,omitempty"`
	Target          string     `db:"target" json:"target"`
	ScanType        string     `db:"scan_type" json:"scan_type"`
	Status          string     `db:"status" json:"status"`
	Progress        float64    `db:"progress" json:"progress"`
	Attempts        int        `db:"attempts" json:"attempts"`
	OpenPorts       int        `db:"open_ports" json:"open_ports"`
	Vulnerabilities int        `db:"vulnerabilities" json:"vulnerabilities"`
	ErrorMessage    *string    `db:"error_message" json:"error_message,omitempty"`
	RawOutput       *string    `db:"raw_output" json:"-"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	StartTime       *time.Time `db:"start_time" json:"start_time,omitempty"`
	EndTime         *time.Time `db:"end_time" json:"end_time,omitempty"`
	DurationMS      int64      `db:"duration_ms" json:"duration_ms"`
}

// Project groups work under a name.
type Project struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// HostDetails is a host together with everything it owns.
type HostDetails struct {
	Host            Host            `json:"host"`
	Ports           []Port          `json:"ports"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
	Scripts         []Script        `json:"scripts"`
	Tags            []string        `json:"tags"`
	RecentScans     []ScanRecord    `json:"recent_scans"`
}

// MergeSummary counts rows written by one merge call, across all record kinds.
type MergeSummary struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`

	// Hosts lists every host row touched by the merge; NewVulnerabilities
	// lists findings first seen in this merge.
	Hosts              []Host          `json:"-"`
	NewVulnerabilities []Vulnerability `json:"-"`
}

// ScanCounts aggregates the scan history table.
type ScanCounts struct {
	Total         int64 `json:"total"`
	Completed     int64 `json:"completed"`
	Failed        int64 `json:"failed"`
	Cancelled     int64 `json:"cancelled"`
	TotalDuration time.Duration
	// Finished counts jobs in a terminal state.
	Finished int64
}

// InventoryCounts are row counts of the inventory tables.
type InventoryCounts struct {
	Hosts           int64 `db:"hosts" json:"hosts"`
	Ports           int64 `db:"ports" json:"ports"`
	Vulnerabilities int64 `db:"vulnerabilities" json:"vulnerabilities"`
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func intPtr(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}
