// Package config loads the LEGION configuration file.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/NubleX/LEGION2/internal/db"
	"github.com/NubleX/LEGION2/internal/errors"
	"github.com/NubleX/LEGION2/internal/events"
	"github.com/NubleX/LEGION2/internal/logging"
	"github.com/NubleX/LEGION2/internal/scanning"
	"github.com/NubleX/LEGION2/internal/tools"
)

// Config represents the complete configuration
type Config struct {
	// Daemon configuration
	Daemon DaemonConfig `yaml:"daemon" json:"daemon" mapstructure:"daemon"`

	// Database configuration
	Database db.Config `yaml:"database" json:"database" mapstructure:"database"`

	// Scanning configuration
	Scanning ScanningConfig `yaml:"scanning" json:"scanning" mapstructure:"scanning"`

	// Event delivery configuration
	Events EventsConfig `yaml:"events" json:"events" mapstructure:"events"`

	// API configuration
	API APIConfig `yaml:"api" json:"api" mapstructure:"api"`

	// Logging configuration
	Logging logging.Config `yaml:"logging" json:"logging" mapstructure:"logging"`

	// Recurring scans
	Schedules []ScheduleConfig `yaml:"schedules" json:"schedules" mapstructure:"schedules"`
}

// DaemonConfig holds settings of the long-running server process
type DaemonConfig struct {
	// PID file location, empty for none
	PIDFile string `yaml:"pid_file" json:"pid_file" mapstructure:"pid_file"`

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// ScanningConfig holds scanning-related settings
type ScanningConfig struct {
	// Number of concurrent tool processes
	WorkerPoolSize int `yaml:"worker_pool_size" json:"worker_pool_size" mapstructure:"worker_pool_size"`

	// Time a tool gets to exit after SIGTERM before it is killed
	GracePeriod time.Duration `yaml:"grace_period" json:"grace_period" mapstructure:"grace_period"`

	// Wall-clock limit per scan type, and for every other type
	Timeouts       map[string]time.Duration `yaml:"timeouts" json:"timeouts" mapstructure:"timeouts"`
	DefaultTimeout time.Duration            `yaml:"default_timeout" json:"default_timeout" mapstructure:"default_timeout"`

	// Retry configuration
	Retry RetryConfig `yaml:"retry" json:"retry" mapstructure:"retry"`

	// Tool binaries
	Tools tools.Paths `yaml:"tools" json:"tools" mapstructure:"tools"`

	// Use connect scans and skip OS detection when raw sockets are unavailable
	Unprivileged bool `yaml:"unprivileged" json:"unprivileged" mapstructure:"unprivileged"`

	// Default masscan packet rate
	MasscanRate int `yaml:"masscan_rate" json:"masscan_rate" mapstructure:"masscan_rate"`

	// Default dirb wordlist
	DirbWordlist string `yaml:"dirb_wordlist" json:"dirb_wordlist" mapstructure:"dirb_wordlist"`

	// Fill missing hostnames with reverse DNS after discovery
	ResolveHostnames bool     `yaml:"resolve_hostnames" json:"resolve_hostnames" mapstructure:"resolve_hostnames"`
	DNSServers       []string `yaml:"dns_servers" json:"dns_servers" mapstructure:"dns_servers"`
}

// RetryConfig holds retry settings for failed scans
type RetryConfig struct {
	// Maximum number of retries after the first attempt
	MaxRetries int `yaml:"max_retries" json:"max_retries" mapstructure:"max_retries"`

	// Delay before the first retry
	BaseDelay time.Duration `yaml:"base_delay" json:"base_delay" mapstructure:"base_delay"`

	// Exponential backoff multiplier
	Multiplier float64 `yaml:"multiplier" json:"multiplier" mapstructure:"multiplier"`

	// Upper bound of any retry delay
	MaxDelay time.Duration `yaml:"max_delay" json:"max_delay" mapstructure:"max_delay"`
}

// EventsConfig holds event bus settings
type EventsConfig struct {
	// Per-subscriber buffer
	BufferSize int `yaml:"buffer_size" json:"buffer_size" mapstructure:"buffer_size"`
}

// APIConfig holds API server settings
type APIConfig struct {
	// Enable API server
	Enabled bool `yaml:"enabled" json:"enabled" mapstructure:"enabled"`

	// Listen address
	ListenAddr string `yaml:"listen_addr" json:"listen_addr" mapstructure:"listen_addr"`

	// Listen port
	Port int `yaml:"port" json:"port" mapstructure:"port"`

	// Server timeouts
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout" mapstructure:"idle_timeout"`

	// Maximum request size
	MaxRequestSize int64 `yaml:"max_request_size" json:"max_request_size" mapstructure:"max_request_size"`

	// Require an API key on every route except health and metrics
	AuthEnabled bool `yaml:"auth_enabled" json:"auth_enabled" mapstructure:"auth_enabled"`

	// bcrypt hashes of accepted API keys
	APIKeyHashes []string `yaml:"api_key_hashes" json:"api_key_hashes" mapstructure:"api_key_hashes"`

	// CORS settings
	CORS CORSConfig `yaml:"cors" json:"cors" mapstructure:"cors"`
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	// Enable CORS
	Enabled bool `yaml:"enabled" json:"enabled" mapstructure:"enabled"`

	// Allowed origins
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins" mapstructure:"allowed_origins"`

	// Allowed methods
	AllowedMethods []string `yaml:"allowed_methods" json:"allowed_methods" mapstructure:"allowed_methods"`

	// Allowed headers
	AllowedHeaders []string `yaml:"allowed_headers" json:"allowed_headers" mapstructure:"allowed_headers"`
}

// ScheduleConfig is a scan submitted on a cron schedule. Exactly one of
// Target, CIDR and Tag is set; Tag rescans every up inventory host carrying it.
type ScheduleConfig struct {
	Name     string        `yaml:"name" json:"name" mapstructure:"name"`
	Cron     string        `yaml:"cron" json:"cron" mapstructure:"cron"`
	Target   string        `yaml:"target,omitempty" json:"target,omitempty" mapstructure:"target"`
	CIDR     string        `yaml:"cidr,omitempty" json:"cidr,omitempty" mapstructure:"cidr"`
	Tag      string        `yaml:"tag,omitempty" json:"tag,omitempty" mapstructure:"tag"`
	Excludes []string      `yaml:"excludes,omitempty" json:"excludes,omitempty" mapstructure:"excludes"`
	ScanType string        `yaml:"scan_type" json:"scan_type" mapstructure:"scan_type"`
	Options  tools.Options `yaml:"options,omitempty" json:"options,omitempty" mapstructure:"options"`
	Priority int           `yaml:"priority,omitempty" json:"priority,omitempty" mapstructure:"priority"`
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	sched := scanning.DefaultConfig()
	return &Config{
		Daemon: DaemonConfig{
			ShutdownTimeout: 30 * time.Second,
		},
		Database: db.DefaultConfig(),
		Scanning: ScanningConfig{
			WorkerPoolSize: sched.WorkerPoolSize,
			GracePeriod:    sched.GracePeriod,
			Timeouts:       sched.Timeouts,
			DefaultTimeout: sched.DefaultTimeout,
			Retry: RetryConfig{
				MaxRetries: sched.Retry.MaxRetries,
				BaseDelay:  sched.Retry.BaseDelay,
				Multiplier: sched.Retry.Multiplier,
				MaxDelay:   sched.Retry.MaxDelay,
			},
			MasscanRate: 1000,
		},
		Events: EventsConfig{
			BufferSize: events.DefaultBufferSize,
		},
		API: APIConfig{
			Enabled:        true,
			ListenAddr:     "127.0.0.1",
			Port:           8080,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxRequestSize: 1024 * 1024, // 1MB
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "Authorization", "X-API-Key"},
			},
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load loads configuration from a file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	config, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Read parses path over the defaults without validating the result. A
// missing file yields the defaults.
func Read(path string) (*Config, error) {
	config := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapConfigError(errors.CodeConfiguration, "failed to read config file", err)
	}

	// YAML is a superset of JSON, so .json files parse the same way.
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.WrapConfigError(errors.CodeConfiguration,
			fmt.Sprintf("failed to parse config %s", filepath.Base(path)), err)
	}
	return config, nil
}

// Save saves configuration to a file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// The file may carry database credentials.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return err
	}

	s := c.Scanning
	if s.WorkerPoolSize <= 0 {
		return errors.ErrConfigInvalid("scanning.worker_pool_size", s.WorkerPoolSize)
	}
	if s.GracePeriod < 0 {
		return errors.ErrConfigInvalid("scanning.grace_period", s.GracePeriod)
	}
	for scanType, d := range s.Timeouts {
		if d <= 0 {
			return errors.ErrConfigInvalid("scanning.timeouts."+scanType, d)
		}
	}
	if s.Retry.MaxRetries < 0 || s.Retry.MaxRetries > 10 {
		return errors.ErrConfigInvalid("scanning.retry.max_retries", s.Retry.MaxRetries)
	}
	if s.Retry.Multiplier != 0 && s.Retry.Multiplier < 1 {
		return errors.ErrConfigInvalid("scanning.retry.multiplier", s.Retry.Multiplier)
	}
	if s.MasscanRate < 0 {
		return errors.ErrConfigInvalid("scanning.masscan_rate", s.MasscanRate)
	}

	if c.Events.BufferSize < 0 {
		return errors.ErrConfigInvalid("events.buffer_size", c.Events.BufferSize)
	}

	if c.API.Enabled {
		if c.API.Port <= 0 || c.API.Port > 65535 {
			return errors.ErrConfigInvalid("api.port", c.API.Port)
		}
		if c.API.ListenAddr == "" {
			return errors.ErrConfigInvalid("api.listen_addr", c.API.ListenAddr)
		}
		if c.API.AuthEnabled && len(c.API.APIKeyHashes) == 0 {
			return errors.NewConfigFieldError(errors.CodeValidation,
				"at least one API key hash is required when auth is enabled", "api.api_key_hashes", nil)
		}
	}

	switch c.Logging.Level {
	case logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError:
	default:
		return errors.ErrConfigInvalid("logging.level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case logging.FormatText, logging.FormatJSON:
	default:
		return errors.ErrConfigInvalid("logging.format", c.Logging.Format)
	}

	names := make(map[string]bool, len(c.Schedules))
	for i, sc := range c.Schedules {
		field := fmt.Sprintf("schedules[%d]", i)
		if sc.Name == "" || names[sc.Name] {
			return errors.ErrConfigInvalid(field+".name", sc.Name)
		}
		names[sc.Name] = true
		if _, err := cron.ParseStandard(sc.Cron); err != nil {
			return errors.NewConfigFieldError(errors.CodeValidation,
				"invalid cron expression: "+err.Error(), field+".cron", sc.Cron)
		}
		set := 0
		for _, v := range []string{sc.Target, sc.CIDR, sc.Tag} {
			if v != "" {
				set++
			}
		}
		if set != 1 {
			return errors.NewConfigFieldError(errors.CodeValidation,
				"exactly one of target, cidr and tag is required", field, sc.Name)
		}
		if sc.ScanType == "" {
			return errors.ErrConfigInvalid(field+".scan_type", sc.ScanType)
		}
	}

	return nil
}

// SchedulerConfig converts the scanning section for the job scheduler.
func (c *Config) SchedulerConfig() scanning.Config {
	s := c.Scanning
	return scanning.Config{
		WorkerPoolSize: s.WorkerPoolSize,
		GracePeriod:    s.GracePeriod,
		Timeouts:       s.Timeouts,
		DefaultTimeout: s.DefaultTimeout,
		Retry: scanning.RetryPolicy{
			MaxRetries: s.Retry.MaxRetries,
			BaseDelay:  s.Retry.BaseDelay,
			Multiplier: s.Retry.Multiplier,
			MaxDelay:   s.Retry.MaxDelay,
		},
	}
}

// ToolsConfig converts the scanning section for the tool registry.
func (c *Config) ToolsConfig() tools.RegistryConfig {
	return tools.RegistryConfig{
		Paths:        c.Scanning.Tools,
		Unprivileged: c.Scanning.Unprivileged,
		MasscanRate:  c.Scanning.MasscanRate,
		DirbWordlist: c.Scanning.DirbWordlist,
	}
}

// EventsBusConfig converts the events section for the event bus.
func (c *Config) EventsBusConfig() events.Config {
	return events.Config{BufferSize: c.Events.BufferSize}
}

// GetAPIAddress returns the full API address
func (c *Config) GetAPIAddress() string {
	return net.JoinHostPort(c.API.ListenAddr, strconv.Itoa(c.API.Port))
}
