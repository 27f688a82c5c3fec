package scanning

import (
	"math"
	"time"

	"github.com/NubleX/LEGION2/internal/db"
	"github.com/NubleX/LEGION2/internal/tools"
)

// Status is a job lifecycle state.
type Status string

const (
	StatusQueued    Status = db.ScanStatusQueued
	StatusRunning   Status = db.ScanStatusRunning
	StatusCompleted Status = db.ScanStatusCompleted
	StatusFailed    Status = db.ScanStatusFailed
	StatusCancelled Status = db.ScanStatusCancelled
)

// Terminal reports whether no further transition can happen from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

const (
	// Request priority bounds; higher runs first.
	MinPriority = 0
	MaxPriority = 10

	defaultWorkerPoolSize = 10
	defaultTimeout        = 30 * time.Minute
	defaultGracePeriod    = 5 * time.Second
	defaultMaxRetries     = 2
	defaultBaseDelay      = 5 * time.Second
	defaultMultiplier     = 2.0
	defaultMaxDelay       = 2 * time.Minute
	maxRawOutputBytes     = 1024 * 1024
	mergeTimeout          = time.Minute
)

// Request asks for one tool run against one target.
type Request struct {
	Target   string        `json:"target" validate:"required,max=255"`
	ScanType string        `json:"scan_type" validate:"required,max=64"`
	Options  tools.Options `json:"options"`
	Priority int           `json:"priority,omitempty" validate:"min=0,max=10"`
	// MaxRetries overrides the configured retry count when set.
	MaxRetries *int `json:"max_retries,omitempty" validate:"omitempty,min=0,max=10"`

	parentID string
}

// RangeRequest asks for a two-phase scan of a network range.
type RangeRequest struct {
	CIDR       string        `json:"cidr" validate:"required"`
	Excludes   []string      `json:"excludes,omitempty"`
	ScanType   string        `json:"scan_type" validate:"required,max=64"`
	Options    tools.Options `json:"options"`
	Priority   int           `json:"priority,omitempty" validate:"min=0,max=10"`
	MaxRetries *int          `json:"max_retries,omitempty" validate:"omitempty,min=0,max=10"`
}

// Job is a point-in-time copy of a scan job.
type Job struct {
	ID              string        `json:"id"`
	ParentID        string        `json:"parent_id,omitempty"`
	Target          string        `json:"target"`
	ScanType        string        `json:"scan_type"`
	Options         tools.Options `json:"options"`
	Priority        int           `json:"priority"`
	Status          Status        `json:"status"`
	Progress        float64       `json:"progress"`
	Phase           string        `json:"phase,omitempty"`
	Attempts        int           `json:"attempts"`
	OpenPorts       int           `json:"open_ports"`
	Vulnerabilities int           `json:"vulnerabilities"`
	HostsFound      int           `json:"hosts_found"`
	// PID is the tool's process id while an attempt is running.
	PID          int        `json:"pid,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartTime    *time.Time `json:"start_time,omitempty"`
	EndTime      *time.Time `json:"end_time,omitempty"`
}

// Duration is the job's run time so far, or its total once finished.
func (j Job) Duration() time.Duration {
	if j.StartTime == nil {
		return 0
	}
	end := time.Now()
	if j.EndTime != nil {
		end = *j.EndTime
	}
	return end.Sub(*j.StartTime)
}

// RetryPolicy controls exponential backoff between attempts.
type RetryPolicy struct {
	MaxRetries int           `yaml:"max_retries" json:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay" json:"base_delay"`
	Multiplier float64       `yaml:"multiplier" json:"multiplier"`
	MaxDelay   time.Duration `yaml:"max_delay" json:"max_delay"`
}

// DefaultRetryPolicy returns the default backoff settings.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: defaultMaxRetries,
		BaseDelay:  defaultBaseDelay,
		Multiplier: defaultMultiplier,
		MaxDelay:   defaultMaxDelay,
	}
}

// Delay returns the wait before retry number n, starting at 1.
func (p RetryPolicy) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.BaseDelay) * math.Pow(mult, float64(n-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// Config configures a Scheduler.
type Config struct {
	WorkerPoolSize int
	GracePeriod    time.Duration
	// Timeouts holds per-scan-type defaults; DefaultTimeout covers the rest.
	Timeouts       map[string]time.Duration
	DefaultTimeout time.Duration
	Retry          RetryPolicy
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		WorkerPoolSize: defaultWorkerPoolSize,
		GracePeriod:    defaultGracePeriod,
		DefaultTimeout: defaultTimeout,
		Timeouts: map[string]time.Duration{
			tools.ScanDiscovery:         10 * time.Minute,
			tools.ScanNmapQuick:         10 * time.Minute,
			tools.ScanNmapComprehensive: 2 * time.Hour,
			tools.ScanMasscan:           time.Hour,
		},
		Retry: DefaultRetryPolicy(),
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.WorkerPoolSize <= 0 {
		c.WorkerPoolSize = def.WorkerPoolSize
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = def.GracePeriod
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = def.DefaultTimeout
	}
	if c.Timeouts == nil {
		c.Timeouts = def.Timeouts
	}
	if c.Retry.MaxRetries < 0 {
		c.Retry.MaxRetries = 0
	}
	return c
}

func (c Config) timeoutFor(scanType string, opts tools.Options) time.Duration {
	if opts.Timeout > 0 {
		return time.Duration(opts.Timeout) * time.Second
	}
	if d, ok := c.Timeouts[scanType]; ok && d > 0 {
		return d
	}
	return c.DefaultTimeout
}
