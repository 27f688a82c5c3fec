// Package engine is the command surface of LEGION. It owns the inventory
// store, the scan scheduler and the event bus, and exposes every operation
// the API and the CLI offer.
package engine

import (
	"context"
	"io"
	"net/netip"
	"sync"

	"github.com/NubleX/LEGION2/internal/config"
	"github.com/NubleX/LEGION2/internal/db"
	"github.com/NubleX/LEGION2/internal/errors"
	"github.com/NubleX/LEGION2/internal/events"
	"github.com/NubleX/LEGION2/internal/export"
	"github.com/NubleX/LEGION2/internal/logging"
	"github.com/NubleX/LEGION2/internal/metrics"
	"github.com/NubleX/LEGION2/internal/runner"
	"github.com/NubleX/LEGION2/internal/scanning"
	"github.com/NubleX/LEGION2/internal/stats"
	"github.com/NubleX/LEGION2/internal/targets"
	"github.com/NubleX/LEGION2/internal/tools"
)

// Engine wires the store, scheduler and bus together.
type Engine struct {
	database  *db.DB
	store     *db.Store
	scheduler *scanning.Scheduler
	bus       *events.Bus
	stats     *stats.Aggregator
	exporter  *export.Exporter
	registry  *tools.Registry
	logger    *logging.Logger

	hostnames *hostnameFiller
	closeOnce sync.Once
}

// Options are the optional collaborators of Open.
type Options struct {
	Logger  *logging.Logger
	Metrics *metrics.PrometheusMetrics
	// Launcher and Tools replace the process runner and the built-in
	// tools, mainly in tests.
	Launcher scanning.Launcher
	Tools    scanning.ToolRegistry
	// Resolver fills missing hostnames. When nil and the configuration asks
	// for hostname resolution, one is built from the configured servers.
	Resolver PTRResolver
}

// Open connects to the database, applies migrations, fails scans left over
// from a previous process and starts the scheduler.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}

	database, err := db.ConnectAndMigrate(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}
	store := db.NewStore(database)
	if _, err := store.MarkInterruptedScans(ctx); err != nil {
		_ = database.Close()
		return nil, err
	}

	resolver := opts.Resolver
	if resolver == nil && cfg.Scanning.ResolveHostnames {
		r, err := targets.NewResolver(cfg.Scanning.DNSServers, 0)
		if err != nil {
			logger.Warn("Hostname resolution disabled", "error", err)
		} else {
			resolver = r
		}
	}

	e := New(store, cfg, Dependencies{
		Logger:   logger,
		Metrics:  opts.Metrics,
		Launcher: opts.Launcher,
		Tools:    opts.Tools,
		Resolver: resolver,
	})
	e.database = database
	return e, nil
}

// Dependencies are the collaborators of New.
type Dependencies struct {
	Logger   *logging.Logger
	Metrics  *metrics.PrometheusMetrics
	Launcher scanning.Launcher
	Resolver PTRResolver
	Tools    scanning.ToolRegistry
}

// New builds an engine over an existing store and starts its scheduler.
func New(store *db.Store, cfg *config.Config, deps Dependencies) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}

	var recorder metrics.Recorder = metrics.Nop{}
	if deps.Metrics != nil {
		recorder = deps.Metrics
	}

	busCfg := cfg.EventsBusConfig()
	busCfg.OnDrop = func(ev events.Event) { recorder.EventDropped(string(ev.Type)) }
	bus := events.NewBus(busCfg, logger)

	registry := tools.NewRegistry(cfg.ToolsConfig())
	var toolSet scanning.ToolRegistry = registry
	if deps.Tools != nil {
		toolSet = deps.Tools
	}
	launcher := deps.Launcher
	if launcher == nil {
		launcher = runner.New()
	}

	sched := scanning.NewScheduler(cfg.SchedulerConfig(), scanning.Dependencies{
		Store:    store,
		Tools:    toolSet,
		Launcher: launcher,
		Events:   bus,
		Metrics:  recorder,
		Logger:   logger,
	})

	e := &Engine{
		store:     store,
		scheduler: sched,
		bus:       bus,
		stats:     stats.NewAggregator(store, store, sched),
		exporter:  export.New(store),
		registry:  registry,
		logger:    logger.WithComponent("engine"),
	}
	if deps.Resolver != nil {
		e.hostnames = startHostnameFiller(bus, store, deps.Resolver, logger)
	}
	sched.Start()
	return e
}

// StartScan queues a scan of one target and returns its job id.
func (e *Engine) StartScan(ctx context.Context, req scanning.Request) (string, error) {
	return e.scheduler.Submit(ctx, req)
}

// CancelScan requests cancellation of a job.
func (e *Engine) CancelScan(_ context.Context, id string) error {
	return e.scheduler.Cancel(id)
}

// CancelAllScans requests cancellation of every unfinished job and returns
// how many were asked to stop.
func (e *Engine) CancelAllScans(_ context.Context) int {
	return e.scheduler.CancelAll()
}

// ScanNetworkRange queues a discovery sweep of a range followed by one scan
// per live host. Only the sweep's id is returned; the per-host jobs are
// announced as scan-result events.
func (e *Engine) ScanNetworkRange(ctx context.Context, req scanning.RangeRequest) ([]string, error) {
	return e.scheduler.SubmitRange(ctx, req)
}

// GetScan returns a live job, falling back to history for jobs of earlier
// processes.
func (e *Engine) GetScan(ctx context.Context, id string) (scanning.Job, error) {
	if j, err := e.scheduler.Job(id); err == nil {
		return j, nil
	}
	rec, err := e.store.GetScan(ctx, id)
	if err != nil {
		return scanning.Job{}, err
	}
	return jobFromRecord(rec), nil
}

// ListScans returns the jobs of this process in submission order.
func (e *Engine) ListScans(_ context.Context) []scanning.Job {
	return e.scheduler.Jobs()
}

// ScanHistory returns persisted jobs newest first.
func (e *Engine) ScanHistory(ctx context.Context, f db.ScanFilter) ([]db.ScanRecord, error) {
	return e.store.ListScans(ctx, f)
}

// GetHosts lists hosts matching f and the total number of matches.
func (e *Engine) GetHosts(ctx context.Context, f db.HostFilter) ([]db.Host, int, error) {
	return e.store.ListHosts(ctx, f)
}

// GetHostDetails returns one host with everything it owns. The host may be
// named by id or by IP address.
func (e *Engine) GetHostDetails(ctx context.Context, id string) (*db.HostDetails, error) {
	if addr, err := netip.ParseAddr(id); err == nil {
		host, err := e.store.GetHostByIP(ctx, addr.String())
		if err != nil {
			return nil, err
		}
		id = host.ID
	}
	return e.store.GetHostDetails(ctx, id)
}

// DeleteHost removes a host and its ports, findings and scripts.
func (e *Engine) DeleteHost(ctx context.Context, id string) error {
	if err := e.store.DeleteHost(ctx, id); err != nil {
		return err
	}
	e.logger.Info("Host deleted", "host_id", id)
	return nil
}

// DeletePort removes one port of a host; its findings stay on the host.
func (e *Engine) DeletePort(ctx context.Context, hostID, portID string) error {
	if err := e.store.DeletePort(ctx, hostID, portID); err != nil {
		return err
	}
	e.logger.Info("Port deleted", "host_id", hostID, "port_id", portID)
	return nil
}

// ListVulnerabilities returns findings across the inventory, most severe
// first, optionally limited to one host or a minimum severity.
func (e *Engine) ListVulnerabilities(ctx context.Context, f db.VulnerabilityFilter) ([]db.HostVulnerability, error) {
	return e.store.ListVulnerabilities(ctx, f)
}

// DeleteHosts removes several hosts. Missing ids do not stop the others; the
// returned error joins their failures.
func (e *Engine) DeleteHosts(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, errors.NewScanError(errors.CodeValidation, "at least one host id is required")
	}
	n, err := e.store.DeleteHosts(ctx, ids)
	e.logger.Info("Hosts deleted", "requested", len(ids), "deleted", n)
	return n, err
}

// ExportHosts writes the named hosts, or all hosts when ids is empty.
func (e *Engine) ExportHosts(ctx context.Context, w io.Writer, format export.Format, ids []string) error {
	return e.exporter.Export(ctx, w, format, ids)
}

// Statistics returns a fresh statistics snapshot.
func (e *Engine) Statistics(ctx context.Context) (stats.Snapshot, error) {
	return e.stats.Snapshot(ctx)
}

// TagHost attaches a tag to a host.
func (e *Engine) TagHost(ctx context.Context, hostID, tag string) error {
	return e.store.TagHost(ctx, hostID, tag)
}

// UntagHost removes a tag from a host.
func (e *Engine) UntagHost(ctx context.Context, hostID, tag string) error {
	return e.store.UntagHost(ctx, hostID, tag)
}

// CreateProject stores a new project.
func (e *Engine) CreateProject(ctx context.Context, name, description string) (*db.Project, error) {
	return e.store.CreateProject(ctx, name, description)
}

// ListProjects returns every project.
func (e *Engine) ListProjects(ctx context.Context) ([]db.Project, error) {
	return e.store.ListProjects(ctx)
}

// ScanTypes lists the scan types the engine can run.
func (e *Engine) ScanTypes() []string {
	return e.registry.Types()
}

// Subscribe returns a new event subscription. Callers must Close it.
func (e *Engine) Subscribe() *events.Subscription {
	return e.bus.Subscribe()
}

// Health reports whether the database is reachable.
func (e *Engine) Health(ctx context.Context) error {
	if e.database == nil {
		return nil
	}
	return e.database.Ping(ctx)
}

// Close cancels running jobs, stops the scheduler and event delivery, and
// closes the database when the engine opened it.
func (e *Engine) Close(ctx context.Context) error {
	var err error
	e.closeOnce.Do(func() {
		err = e.scheduler.Shutdown(ctx)
		if e.hostnames != nil {
			e.hostnames.stop()
		}
		e.bus.Close()
		if e.database != nil {
			if cerr := e.database.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
		e.logger.Info("Engine stopped")
	})
	return err
}

func jobFromRecord(rec *db.ScanRecord) scanning.Job {
	j := scanning.Job{
		ID:              rec.ID,
		Target:          rec.Target,
		ScanType:        rec.ScanType,
		Status:          scanning.Status(rec.Status),
		Progress:        rec.Progress,
		Phase:           rec.Status,
		Attempts:        rec.Attempts,
		OpenPorts:       rec.OpenPorts,
		Vulnerabilities: rec.Vulnerabilities,
		CreatedAt:       rec.CreatedAt,
		StartTime:       rec.StartTime,
		EndTime:         rec.EndTime,
	}
	if rec.ParentID != nil {
		j.ParentID = *rec.ParentID
	}
	if rec.ErrorMessage != nil {
		j.ErrorMessage = *rec.ErrorMessage
	}
	return j
}
