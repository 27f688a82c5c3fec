// Package daemon runs LEGION as a long-lived service. It owns the process
// lifecycle: PID file, signal handling, the scan engine, recurring
// schedules, the API server and periodic health checks.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/NubleX/LEGION2/internal/api"
	"github.com/NubleX/LEGION2/internal/api/handlers"
	"github.com/NubleX/LEGION2/internal/config"
	"github.com/NubleX/LEGION2/internal/engine"
	"github.com/NubleX/LEGION2/internal/logging"
	"github.com/NubleX/LEGION2/internal/metrics"
	"github.com/NubleX/LEGION2/internal/scheduler"
)

const (
	defaultHealthCheckInterval = 10 * time.Second
	metricsUpdateInterval      = 30 * time.Second
	statusCheckTimeout         = 5 * time.Second
)

// File permission constants.
const (
	DefaultDirPermissions  = 0o750
	DefaultFilePermissions = 0o600
)

// Options are the collaborators of a Daemon that do not come from the
// configuration file.
type Options struct {
	// ConfigPath is re-read on SIGHUP. Empty disables reloading.
	ConfigPath string
	Logger     *logging.Logger
	Build      handlers.BuildInfo
	// Engine is passed through to engine.Open.
	Engine engine.Options
	// HealthCheckInterval defaults to ten seconds.
	HealthCheckInterval time.Duration
}

// Daemon represents the main daemon process.
type Daemon struct {
	config    *config.Config
	opts      Options
	engine    *engine.Engine
	scheduler *scheduler.Scheduler
	apiServer *api.Server
	metrics   *metrics.PrometheusMetrics
	pidFile   string
	logger    *logging.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	ready     chan struct{}
	done      chan struct{}
	debugMode bool
	healthy   bool
	mu        sync.RWMutex

	cleanupOnce sync.Once
}

// New creates a new daemon instance.
func New(cfg *config.Config, opts Options) *Daemon {
	ctx, cancel := context.WithCancel(context.Background())
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	if opts.HealthCheckInterval <= 0 {
		opts.HealthCheckInterval = defaultHealthCheckInterval
	}

	return &Daemon{
		config:  cfg,
		opts:    opts,
		metrics: metrics.NewPrometheusMetrics(),
		pidFile: cfg.Daemon.PIDFile,
		logger:  logger.WithComponent("daemon"),
		ctx:     ctx,
		cancel:  cancel,
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start brings every component up and blocks until the daemon is stopped
// by Stop or a termination signal.
func (d *Daemon) Start() error {
	defer close(d.done)
	d.logger.Info("Starting LEGION daemon", "version", d.opts.Build.Version, "pid", os.Getpid())

	if err := d.config.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	if err := d.createPIDFile(); err != nil {
		return fmt.Errorf("failed to create PID file: %w", err)
	}

	d.setupSignalHandlers()

	if err := d.initEngine(); err != nil {
		d.cleanup()
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	if err := d.initScheduler(); err != nil {
		d.cleanup()
		return fmt.Errorf("failed to initialize scheduler: %w", err)
	}

	if err := d.initAPIServer(); err != nil {
		d.cleanup()
		return fmt.Errorf("failed to initialize API server: %w", err)
	}

	d.logger.Info("Daemon started successfully")
	err := d.run()
	d.cleanup()
	return err
}

// Stop asks the daemon to shut down and waits up to the configured
// shutdown timeout for it to finish.
func (d *Daemon) Stop() error {
	d.logger.Info("Stopping daemon")
	d.cancel()

	timeout := d.config.Daemon.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	select {
	case <-d.done:
		d.logger.Info("Daemon stopped gracefully")
		return nil
	case <-time.After(timeout):
		d.logger.Warn("Shutdown timeout reached", "timeout", timeout)
		return fmt.Errorf("daemon did not stop within %s", timeout)
	}
}

// Ready is closed once every component is up.
func (d *Daemon) Ready() <-chan struct{} {
	return d.ready
}

// createPIDFile creates the PID file.
func (d *Daemon) createPIDFile() error {
	if d.pidFile == "" {
		return nil
	}

	dir := filepath.Dir(d.pidFile)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		return fmt.Errorf("failed to create PID file directory: %w", err)
	}

	if err := d.checkExistingPID(); err != nil {
		return err
	}

	pid := os.Getpid()
	if err := os.WriteFile(d.pidFile, []byte(strconv.Itoa(pid)), DefaultFilePermissions); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	d.logger.Info("Created PID file", "path", d.pidFile, "pid", pid)
	return nil
}

// checkExistingPID fails when the PID file names a live process and
// removes it when stale.
func (d *Daemon) checkExistingPID() error {
	pid, err := ReadPIDFile(d.pidFile)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		d.logger.Warn("Removing unreadable PID file", "path", d.pidFile, "error", err)
		_ = os.Remove(d.pidFile)
		return nil
	}

	if pid != os.Getpid() && IsProcessRunning(pid) {
		return fmt.Errorf("daemon already running with PID %d", pid)
	}

	_ = os.Remove(d.pidFile)
	return nil
}

// ReadPIDFile returns the PID recorded in path.
func ReadPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file %s: %w", path, err)
	}
	return pid, nil
}

// IsProcessRunning checks if a process with the given PID is running.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// setupSignalHandlers sets up signal handling for graceful shutdown.
func (d *Daemon) setupSignalHandlers() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan,
		syscall.SIGTERM,
		syscall.SIGINT,
		syscall.SIGHUP,  // reload schedules and log level
		syscall.SIGUSR1, // dump status
		syscall.SIGUSR2, // toggle debug logging
	)

	go func() {
		defer signal.Stop(sigChan)
		for {
			select {
			case <-d.ctx.Done():
				return
			case sig := <-sigChan:
				d.handleSignal(sig)
			}
		}
	}()
}

func (d *Daemon) handleSignal(sig os.Signal) {
	d.logger.Info("Received signal", "signal", sig.String())

	switch sig {
	case syscall.SIGTERM, syscall.SIGINT:
		d.logger.Info("Initiating graceful shutdown")
		d.cancel()
	case syscall.SIGHUP:
		if err := d.reloadConfiguration(); err != nil {
			d.logger.Error("Configuration reload failed", "error", err)
		}
	case syscall.SIGUSR1:
		d.dumpStatus()
	case syscall.SIGUSR2:
		d.toggleDebugMode()
	}
}

// initEngine opens the database and starts the scan engine.
func (d *Daemon) initEngine() error {
	d.logger.Info("Opening scan engine",
		"driver", d.config.Database.Driver,
		"workers", d.config.Scanning.WorkerPoolSize)

	opts := d.opts.Engine
	if opts.Logger == nil {
		opts.Logger = d.opts.Logger
	}
	opts.Metrics = d.metrics

	eng, err := engine.Open(d.ctx, d.config, opts)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.engine = eng
	d.healthy = true
	d.mu.Unlock()
	return nil
}

// initScheduler registers the configured schedules and starts firing them.
func (d *Daemon) initScheduler() error {
	sched := scheduler.NewScheduler(d.engine, d.opts.Logger)
	if err := sched.Load(d.config.Schedules); err != nil {
		return err
	}
	if err := sched.Start(); err != nil {
		return err
	}

	d.mu.Lock()
	d.scheduler = sched
	d.mu.Unlock()
	return nil
}

// initAPIServer initializes the API server.
func (d *Daemon) initAPIServer() error {
	if !d.config.API.Enabled {
		d.logger.Info("API server disabled, skipping initialization")
		return nil
	}

	apiServer, err := api.New(d.config, d.engine, api.Options{
		Logger:  d.opts.Logger,
		Metrics: d.metrics,
		Build:   d.opts.Build,
	})
	if err != nil {
		return fmt.Errorf("API server creation failed: %w", err)
	}

	d.apiServer = apiServer
	return nil
}

// run executes the main daemon loop.
func (d *Daemon) run() error {
	apiErr := make(chan error, 1)
	if d.apiServer != nil {
		go func() {
			apiErr <- d.apiServer.Start(d.ctx)
		}()
	}
	go d.metrics.StartPeriodicUpdates(d.ctx, metricsUpdateInterval)

	close(d.ready)

	ticker := time.NewTicker(d.opts.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			d.logger.Info("Shutdown signal received")
			if d.apiServer != nil {
				// Start returns once the server has shut down.
				if err := <-apiErr; err != nil {
					d.logger.Error("API server shutdown error", "error", err)
				}
			}
			return nil

		case err := <-apiErr:
			if err != nil {
				d.logger.Error("API server error", "error", err)
				d.cancel()
				return err
			}
			return nil

		case <-ticker.C:
			d.performHealthCheck()
		}
	}
}

// performHealthCheck verifies the database behind the engine is reachable.
func (d *Daemon) performHealthCheck() {
	ctx, cancel := context.WithTimeout(d.ctx, statusCheckTimeout)
	defer cancel()

	err := d.engine.Health(ctx)

	d.mu.Lock()
	wasHealthy := d.healthy
	d.healthy = err == nil
	d.mu.Unlock()

	switch {
	case err != nil && wasHealthy:
		d.logger.Error("Database health check failed", "error", err)
	case err == nil && !wasHealthy:
		d.logger.Info("Database health restored")
	}
}

// Healthy reports the outcome of the last health check.
func (d *Daemon) Healthy() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.healthy
}

// cleanup stops components in reverse start order.
func (d *Daemon) cleanup() {
	d.cleanupOnce.Do(func() {
		d.logger.Info("Performing cleanup")
		d.cancel()

		d.mu.RLock()
		sched, eng := d.scheduler, d.engine
		d.mu.RUnlock()

		if sched != nil {
			sched.Stop()
		}

		if eng != nil {
			timeout := d.config.Daemon.ShutdownTimeout
			if timeout <= 0 {
				timeout = 30 * time.Second
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			if err := eng.Close(ctx); err != nil {
				d.logger.Error("Error closing engine", "error", err)
			}
			cancel()
		}

		if d.pidFile != "" {
			if err := os.Remove(d.pidFile); err != nil && !os.IsNotExist(err) {
				d.logger.Error("Error removing PID file", "path", d.pidFile, "error", err)
			} else {
				d.logger.Info("Removed PID file", "path", d.pidFile)
			}
		}

		d.logger.Info("Cleanup completed")
	})
}

// GetPID returns the daemon's PID.
func (d *Daemon) GetPID() int {
	return os.Getpid()
}

// IsRunning checks if the daemon is running.
func (d *Daemon) IsRunning() bool {
	select {
	case <-d.ctx.Done():
		return false
	default:
		return true
	}
}

// APIAddress returns the address the API server listens on, or "" when the
// API is disabled.
func (d *Daemon) APIAddress() string {
	if d.apiServer == nil {
		return ""
	}
	return d.apiServer.GetAddress()
}

// Schedules returns the registered schedules.
func (d *Daemon) Schedules() []scheduler.ScheduledJob {
	d.mu.RLock()
	sched := d.scheduler
	d.mu.RUnlock()
	if sched == nil {
		return nil
	}
	return sched.Jobs()
}

// reloadConfiguration re-reads the configuration file and applies the
// settings that can change at runtime: schedules and the log level. API and
// database settings need a restart.
func (d *Daemon) reloadConfiguration() error {
	if d.opts.ConfigPath == "" {
		d.logger.Warn("No configuration file to reload")
		return nil
	}
	d.logger.Info("Reloading configuration", "path", d.opts.ConfigPath)

	newConfig, err := config.Load(d.opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load new configuration: %w", err)
	}
	if err := newConfig.Validate(); err != nil {
		return fmt.Errorf("new configuration is invalid: %w", err)
	}

	sched := scheduler.NewScheduler(d.engine, d.opts.Logger)
	if err := sched.Load(newConfig.Schedules); err != nil {
		return err
	}

	d.mu.Lock()
	old := d.scheduler
	d.scheduler = sched
	d.debugMode = false
	d.mu.Unlock()

	if old != nil {
		old.Stop()
	}
	if err := sched.Start(); err != nil {
		return err
	}

	d.logger.SetLevel(logging.ParseLevel(newConfig.Logging.Level))

	if d.hasRestartOnlyChanges(newConfig) {
		d.logger.Warn("API or database settings changed; restart the daemon to apply them")
	}

	d.mu.Lock()
	d.config.Schedules = newConfig.Schedules
	d.config.Logging = newConfig.Logging
	d.mu.Unlock()

	d.logger.Info("Configuration reloaded", "schedules", len(newConfig.Schedules))
	return nil
}

func (d *Daemon) hasRestartOnlyChanges(newConfig *config.Config) bool {
	oldAPI, newAPI := d.config.API, newConfig.API
	return oldAPI.Enabled != newAPI.Enabled ||
		oldAPI.ListenAddr != newAPI.ListenAddr ||
		oldAPI.Port != newAPI.Port ||
		oldAPI.AuthEnabled != newAPI.AuthEnabled ||
		d.config.Database != newConfig.Database
}

// dumpStatus writes the current daemon status to the log.
func (d *Daemon) dumpStatus() {
	d.mu.RLock()
	debugMode := d.debugMode
	healthy := d.healthy
	d.mu.RUnlock()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	fields := []any{
		"pid", os.Getpid(),
		"debug_mode", debugMode,
		"database_healthy", healthy,
		"alloc_kb", m.Alloc / 1024,
		"sys_kb", m.Sys / 1024,
		"num_gc", m.NumGC,
		"goroutines", runtime.NumGoroutine(),
		"schedules", len(d.Schedules()),
	}

	if d.engine != nil {
		ctx, cancel := context.WithTimeout(d.ctx, statusCheckTimeout)
		snap, err := d.engine.Statistics(ctx)
		cancel()
		if err != nil {
			fields = append(fields, "statistics_error", err)
		} else {
			fields = append(fields,
				"active_scans", snap.ActiveScans,
				"running_scans", snap.RunningScans,
				"total_scans", snap.TotalScans,
				"hosts", snap.TotalHostsDiscovered)
		}
	}
	if d.apiServer != nil {
		fields = append(fields,
			"api_address", d.apiServer.GetAddress(),
			"event_clients", d.apiServer.ConnectedClients())
	}

	d.logger.Info("Daemon status", fields...)
}

// toggleDebugMode switches between debug logging and the configured level.
func (d *Daemon) toggleDebugMode() {
	d.mu.Lock()
	d.debugMode = !d.debugMode
	enabled := d.debugMode
	configured := d.config.Logging.Level
	d.mu.Unlock()

	if enabled {
		d.logger.SetLevel(slog.LevelDebug)
	} else {
		d.logger.SetLevel(logging.ParseLevel(configured))
	}
	d.logger.Info("Debug mode toggled", "enabled", enabled)
}

// IsDebugMode reports whether debug logging was switched on by SIGUSR2.
func (d *Daemon) IsDebugMode() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.debugMode
}
