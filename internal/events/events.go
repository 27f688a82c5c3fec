// Package events delivers scan notifications to any number of subscribers
// without ever blocking the publisher.
package events

import (
	"time"

	"github.com/NubleX/LEGION2/internal/db"
)

// Type identifies the kind of notification.
type Type string

const (
	TypeScanProgress       Type = "scan-progress"
	TypeScanResult         Type = "scan-result"
	TypeScanCompleted      Type = "scan-completed"
	TypeScanError          Type = "scan-error"
	TypeHostDiscovered     Type = "host-discovered"
	TypeVulnerabilityFound Type = "vulnerability-found"
)

// Event is one notification. Terminal events close out a job and are never
// dropped by a subscriber buffer.
type Event struct {
	Type      Type      `json:"type"`
	JobID     string    `json:"job_id,omitempty"`
	Terminal  bool      `json:"terminal,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// Progress is the payload of a scan-progress event.
type Progress struct {
	JobID           string         `json:"job_id"`
	Percent         float64        `json:"percent"`
	Phase           string         `json:"phase,omitempty"`
	DiscoveredHosts int            `json:"discovered_hosts,omitempty"`
	PortsScanned    int            `json:"ports_scanned,omitempty"`
	OpenPortsFound  int            `json:"open_ports_found,omitempty"`
	ETA             *time.Duration `json:"eta,omitempty"`
	Message         string         `json:"message,omitempty"`
}

// ErrorInfo is the payload of a scan-error event.
type ErrorInfo struct {
	JobID     string    `json:"job_id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// VulnerabilityFound is the payload of a vulnerability-found event.
type VulnerabilityFound struct {
	HostID        string           `json:"host_id"`
	Vulnerability db.Vulnerability `json:"vulnerability"`
}

// NewProgress builds a scan-progress event.
func NewProgress(p Progress) Event {
	return Event{Type: TypeScanProgress, JobID: p.JobID, Data: p}
}

// NewResult builds a non-terminal scan-result event carrying a job snapshot.
func NewResult(jobID string, snapshot any) Event {
	return Event{Type: TypeScanResult, JobID: jobID, Data: snapshot}
}

// NewCompleted builds the terminal scan-completed event for a job.
func NewCompleted(jobID string, snapshot any) Event {
	return Event{Type: TypeScanCompleted, JobID: jobID, Terminal: true, Data: snapshot}
}

// NewError builds a scan-error event. terminal marks the error as the job's
// final notification.
func NewError(jobID, message string, at time.Time, terminal bool) Event {
	return Event{
		Type:     TypeScanError,
		JobID:    jobID,
		Terminal: terminal,
		Data:     ErrorInfo{JobID: jobID, Message: message, Timestamp: at},
	}
}

// NewHostDiscovered announces a live host stored from jobID's results.
func NewHostDiscovered(jobID string, host db.Host) Event {
	return Event{Type: TypeHostDiscovered, JobID: jobID, Data: host}
}

// NewVulnerabilityFound announces a finding stored for the first time.
func NewVulnerabilityFound(jobID string, v db.Vulnerability) Event {
	return Event{
		Type:  TypeVulnerabilityFound,
		JobID: jobID,
		Data:  VulnerabilityFound{HostID: v.HostID, Vulnerability: v},
	}
}
